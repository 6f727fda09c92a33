package rules

import (
	"sort"

	"github.com/maxpert/ldifconv/ldif"
)

const (
	msgObjectClass     = "objectClass filtered out"
	msgObjectClassAttr = "object class atribute filtered out"
	msgGlobalAttr      = "global atribute filtered out"
	msgKeyAttr         = "dn atribute filtered out"
)

type classScope struct {
	class string
	attrs NameSet
}

// ObjectClassRemoval strips an object class and the attributes that belong
// to it from every record carrying that class.
type ObjectClassRemoval struct {
	cmp      Comparison
	scopes   []classScope
	recorder Recorder
}

func NewObjectClassRemoval(cmp Comparison, classes map[string][]string, recorder Recorder) *ObjectClassRemoval {
	r := &ObjectClassRemoval{cmp: cmp, recorder: recorder}
	for class, attrs := range classes {
		r.scopes = append(r.scopes, classScope{class: class, attrs: NewNameSet(cmp, attrs)})
	}
	sort.Slice(r.scopes, func(i, j int) bool { return r.scopes[i].class < r.scopes[j].class })
	return r
}

func (r *ObjectClassRemoval) Name() string  { return "ObjectClassRemoval" }
func (r *ObjectClassRemoval) Priority() int { return PriorityObjectClassRemoval }

func (r *ObjectClassRemoval) Apply(rec *ldif.Record) error {
	for _, scope := range r.scopes {
		class := scope.class
		n := rec.FilterLines(func(l ldif.Line) bool {
			return l.Kind == ldif.KindAttribute &&
				r.cmp.Equal(l.Name, "objectClass") &&
				r.cmp.Equal(l.Value, class)
		}, msgObjectClass)
		if n == 0 {
			continue
		}

		n += rec.FilterLines(scope.attrs.Matches, msgObjectClassAttr)
		r.recorder.LinesDropped(r.Name(), n)
	}
	return nil
}

// AttributeRemoval strips the listed attributes from every record.
type AttributeRemoval struct {
	names    NameSet
	recorder Recorder
}

func NewAttributeRemoval(cmp Comparison, names []string, recorder Recorder) *AttributeRemoval {
	return &AttributeRemoval{names: NewNameSet(cmp, names), recorder: recorder}
}

func (r *AttributeRemoval) Name() string  { return "AttributeRemoval" }
func (r *AttributeRemoval) Priority() int { return PriorityAttributeRemoval }

func (r *AttributeRemoval) Apply(rec *ldif.Record) error {
	if n := rec.FilterLines(r.names.Matches, msgGlobalAttr); n > 0 {
		r.recorder.LinesDropped(r.Name(), n)
	}
	return nil
}

// KeyAttributeRemoval strips attributes from the one record whose key
// equals a configured dn.
type KeyAttributeRemoval struct {
	cmp      Comparison
	byKey    map[string]NameSet
	recorder Recorder
}

// NewKeyAttributeRemoval normalizes the configured dns the same way record
// keys are normalized.
func NewKeyAttributeRemoval(cmp Comparison, byKey map[string][]string, recorder Recorder) *KeyAttributeRemoval {
	r := &KeyAttributeRemoval{cmp: cmp, byKey: make(map[string]NameSet, len(byKey)), recorder: recorder}
	for key, attrs := range byKey {
		r.byKey[cmp.Fold(ldif.NormalizeKey(key))] = NewNameSet(cmp, attrs)
	}
	return r
}

func (r *KeyAttributeRemoval) Name() string  { return "KeyAttributeRemoval" }
func (r *KeyAttributeRemoval) Priority() int { return PriorityKeyRemoval }

func (r *KeyAttributeRemoval) Apply(rec *ldif.Record) error {
	names, ok := r.byKey[r.cmp.Fold(rec.Key)]
	if !ok {
		return nil
	}
	if n := rec.FilterLines(names.Matches, msgKeyAttr); n > 0 {
		r.recorder.LinesDropped(r.Name(), n)
	}
	return nil
}
