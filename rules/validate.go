package rules

import (
	"fmt"
	"regexp"

	"github.com/maxpert/ldifconv/ldif"
)

const msgValidation = "schema validation failed"

// SchemaValidation drops attribute values that do not fully match the
// pattern configured for their name.
type SchemaValidation struct {
	cmp      Comparison
	patterns map[string]*regexp.Regexp
	recorder Recorder
}

func NewSchemaValidation(cmp Comparison, patterns map[string]string, recorder Recorder) (*SchemaValidation, error) {
	r := &SchemaValidation{cmp: cmp, patterns: make(map[string]*regexp.Regexp, len(patterns)), recorder: recorder}
	for name, p := range patterns {
		re, err := regexp.Compile(`^(?:` + p + `)$`)
		if err != nil {
			return nil, fmt.Errorf("schema_validate.%s: invalid pattern: %w", name, err)
		}
		r.patterns[cmp.Fold(name)] = re
	}
	return r, nil
}

func (r *SchemaValidation) Name() string  { return "SchemaValidation" }
func (r *SchemaValidation) Priority() int { return PrioritySchemaValidation }

func (r *SchemaValidation) Apply(rec *ldif.Record) error {
	n := rec.FilterLines(func(l ldif.Line) bool {
		if l.Kind != ldif.KindAttribute {
			return false
		}
		re, ok := r.patterns[r.cmp.Fold(l.Name)]
		if !ok || re.MatchString(l.Value) {
			return false
		}
		r.recorder.ValidationError(l.Name)
		return true
	}, msgValidation)

	if n > 0 {
		r.recorder.LinesDropped(r.Name(), n)
	}
	return nil
}
