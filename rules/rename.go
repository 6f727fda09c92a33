package rules

import (
	"sort"
	"strings"

	"github.com/maxpert/ldifconv/ldif"
)

func renameLines(rec *ldif.Record, m Mapping) {
	rec.MapLines(func(l ldif.Line) (ldif.Line, bool) {
		if !l.HasName() {
			return l, true
		}
		if to, ok := m.Lookup(l.Name); ok && to != l.Name {
			rec.Logf(" Renamed atribute '%s' -> '%s'", l.Name, to)
			l.Name = to
		}
		return l, true
	}, "")
}

// Rename renames attributes in every record, keeping their position.
type Rename struct {
	mapping Mapping
}

func NewRename(cmp Comparison, m map[string]string) *Rename {
	return &Rename{mapping: NewMapping(cmp, m)}
}

func (r *Rename) Name() string  { return "Rename" }
func (r *Rename) Priority() int { return PriorityRename }

func (r *Rename) Apply(rec *ldif.Record) error {
	renameLines(rec, r.mapping)
	return nil
}

type suffixScope struct {
	suffix  string
	mapping Mapping
}

// KeySuffixRename renames attributes in records whose key ends with a
// configured dn suffix. Suffixes match case-insensitively and every
// matching suffix is applied in sorted order.
type KeySuffixRename struct {
	scopes []suffixScope
}

func NewKeySuffixRename(cmp Comparison, bySuffix map[string]map[string]string) *KeySuffixRename {
	r := &KeySuffixRename{}
	for suffix, m := range bySuffix {
		r.scopes = append(r.scopes, suffixScope{
			suffix:  strings.ToLower(ldif.NormalizeKey(suffix)),
			mapping: NewMapping(cmp, m),
		})
	}
	sort.Slice(r.scopes, func(i, j int) bool { return r.scopes[i].suffix < r.scopes[j].suffix })
	return r
}

func (r *KeySuffixRename) Name() string  { return "KeySuffixRename" }
func (r *KeySuffixRename) Priority() int { return PriorityKeySuffixRename }

func (r *KeySuffixRename) Apply(rec *ldif.Record) error {
	key := strings.ToLower(rec.Key)
	for _, scope := range r.scopes {
		if strings.HasSuffix(key, scope.suffix) {
			renameLines(rec, scope.mapping)
		}
	}
	return nil
}
