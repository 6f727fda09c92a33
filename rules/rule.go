package rules

import (
	"strings"

	"github.com/maxpert/ldifconv/ldif"
)

// Rule transforms the lines of one record. Rules run in ascending Priority.
type Rule interface {
	Name() string
	Priority() int
	Apply(rec *ldif.Record) error
}

type RuleSet []Rule

func (rs RuleSet) Len() int           { return len(rs) }
func (rs RuleSet) Less(i, j int) bool { return rs[i].Priority() < rs[j].Priority() }
func (rs RuleSet) Swap(i, j int)      { rs[i], rs[j] = rs[j], rs[i] }

// Recorder receives rule outcomes for run statistics.
type Recorder interface {
	LinesDropped(rule string, n int)
	ValidationError(attr string)
}

type nopRecorder struct{}

func (nopRecorder) LinesDropped(string, int) {}
func (nopRecorder) ValidationError(string)   {}

// Priorities fix the order in which rule kinds see a record.
const (
	PriorityObjectClassRemoval = 10
	PriorityAttributeRemoval   = 20
	PriorityKeyRemoval         = 30
	PriorityValueRewrite       = 40
	PriorityRename             = 50
	PriorityKeySuffixRename    = 60
	PrioritySchemaValidation   = 70
)

// Comparison is the single string comparison policy used by every rule.
type Comparison struct {
	CaseInsensitive bool
}

func (c Comparison) Fold(s string) string {
	if c.CaseInsensitive {
		return strings.ToLower(s)
	}
	return s
}

func (c Comparison) Equal(a, b string) bool {
	return c.Fold(a) == c.Fold(b)
}

// NameSet is a set of attribute names compared under a Comparison.
type NameSet struct {
	cmp   Comparison
	names map[string]struct{}
}

func NewNameSet(cmp Comparison, names []string) NameSet {
	s := NameSet{cmp: cmp, names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		s.names[cmp.Fold(n)] = struct{}{}
	}
	return s
}

func (s NameSet) Len() int { return len(s.names) }

// Matches reports whether l is an attribute line named in the set.
func (s NameSet) Matches(l ldif.Line) bool {
	if !l.HasName() {
		return false
	}
	_, ok := s.names[s.cmp.Fold(l.Name)]
	return ok
}

// Mapping renames attributes under a Comparison.
type Mapping struct {
	cmp Comparison
	to  map[string]string
}

func NewMapping(cmp Comparison, m map[string]string) Mapping {
	mp := Mapping{cmp: cmp, to: make(map[string]string, len(m))}
	for from, to := range m {
		mp.to[cmp.Fold(from)] = to
	}
	return mp
}

// Lookup returns the new name for name, if any.
func (m Mapping) Lookup(name string) (string, bool) {
	to, ok := m.to[m.cmp.Fold(name)]
	return to, ok
}
