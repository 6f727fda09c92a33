package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/maxpert/ldifconv/cfg"
	"github.com/maxpert/ldifconv/ldif"
)

// groupRef matches \1 and \g<name> style group references.
var groupRef = regexp.MustCompile(`\\(?:(\d+)|g<(\w+)>)`)

// expandTemplate turns a replacement written with \1 or \g<name> group
// references into regexp's ${1} / ${name} syntax. A '$' is kept literal.
func expandTemplate(replace string) string {
	replace = strings.ReplaceAll(replace, "$", "$$")
	return groupRef.ReplaceAllString(replace, "$${$1$2}")
}

type rewrite struct {
	find    *regexp.Regexp
	replace string
}

// ValueRewrite applies find/replace rules to plain attribute values.
type ValueRewrite struct {
	cmp      Comparison
	rewrites map[string]rewrite
}

func NewValueRewrite(cmp Comparison, rules map[string]cfg.RegexRule) (*ValueRewrite, error) {
	r := &ValueRewrite{cmp: cmp, rewrites: make(map[string]rewrite, len(rules))}
	for name, rule := range rules {
		find, err := regexp.Compile(rule.Find)
		if err != nil {
			return nil, fmt.Errorf("schema_regex.%s: invalid find pattern: %w", name, err)
		}
		r.rewrites[cmp.Fold(name)] = rewrite{find: find, replace: expandTemplate(rule.Replace)}
	}
	return r, nil
}

func (r *ValueRewrite) Name() string  { return "ValueRewrite" }
func (r *ValueRewrite) Priority() int { return PriorityValueRewrite }

func (r *ValueRewrite) Apply(rec *ldif.Record) error {
	rec.MapLines(func(l ldif.Line) (ldif.Line, bool) {
		if l.Kind != ldif.KindAttribute {
			return l, true
		}

		rw, ok := r.rewrites[r.cmp.Fold(l.Name)]
		if !ok || !rw.find.MatchString(l.Value) {
			return l, true
		}

		value := rw.find.ReplaceAllString(l.Value, rw.replace)
		rec.Logf(" Schema regex applied to '%s'", l.Name)
		rec.Logf("   old value: '%s'", l.Value)
		rec.Logf("   new value: '%s'", value)
		l.Value = value
		return l, true
	}, "")
	return nil
}
