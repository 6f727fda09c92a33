package rules

import (
	"fmt"
	"sort"

	"github.com/maxpert/ldifconv/cfg"
	"github.com/maxpert/ldifconv/ldif"
)

// Pipeline applies a fixed, priority ordered set of rules to records.
type Pipeline struct {
	rules RuleSet
}

// NewPipeline orders rules by priority. Rules sharing a priority keep the
// order they were given in.
func NewPipeline(rules ...Rule) *Pipeline {
	rs := append(RuleSet(nil), rules...)
	sort.Stable(rs)
	return &Pipeline{rules: rs}
}

// Compile builds the pipeline for a configuration. Only configured rule
// kinds are included. A nil recorder discards statistics.
func Compile(c *cfg.Configuration, recorder Recorder) (*Pipeline, error) {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	cmp := Comparison{CaseInsensitive: c.CaseInsensitive}

	var rs []Rule
	if len(c.RemoveObjects) > 0 {
		rs = append(rs, NewObjectClassRemoval(cmp, c.RemoveObjects, recorder))
	}
	if len(c.RemoveAttrs) > 0 {
		rs = append(rs, NewAttributeRemoval(cmp, c.RemoveAttrs, recorder))
	}
	if len(c.DNRemoveAttrs) > 0 {
		rs = append(rs, NewKeyAttributeRemoval(cmp, c.DNRemoveAttrs, recorder))
	}
	if len(c.SchemaRegex) > 0 {
		r, err := NewValueRewrite(cmp, c.SchemaRegex)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}
	if len(c.RenameAttrs) > 0 {
		rs = append(rs, NewRename(cmp, c.RenameAttrs))
	}
	if len(c.RenameDNAttrs) > 0 {
		rs = append(rs, NewKeySuffixRename(cmp, c.RenameDNAttrs))
	}
	if len(c.SchemaValidate) > 0 {
		r, err := NewSchemaValidation(cmp, c.SchemaValidate, recorder)
		if err != nil {
			return nil, err
		}
		rs = append(rs, r)
	}

	return NewPipeline(rs...), nil
}

// Names lists the rules in the order they run.
func (p *Pipeline) Names() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name()
	}
	return names
}

// Process runs every rule over rec in priority order.
func (p *Pipeline) Process(rec *ldif.Record) error {
	for _, r := range p.rules {
		if err := r.Apply(rec); err != nil {
			return fmt.Errorf("rule %s: %w", r.Name(), err)
		}
	}
	return nil
}
