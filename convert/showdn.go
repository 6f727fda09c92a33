package convert

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/maxpert/ldifconv/ldif"
)

// Finder prints the records whose dn is in a requested list.
type Finder struct {
	wanted map[string]struct{}
	globs  []glob.Glob
}

// NewFinder normalizes dns like record keys. With useGlob every entry is a
// glob pattern in which '*' stays within one RDN and '**' spans several.
func NewFinder(dns []string, useGlob bool) (*Finder, error) {
	f := &Finder{wanted: make(map[string]struct{}, len(dns))}
	for _, dn := range dns {
		dn = ldif.NormalizeKey(dn)
		if dn == "" {
			continue
		}

		if !useGlob {
			f.wanted[dn] = struct{}{}
			continue
		}

		g, err := glob.Compile(dn, ',')
		if err != nil {
			return nil, fmt.Errorf("invalid dn pattern %q: %w", dn, err)
		}
		f.globs = append(f.globs, g)
	}
	return f, nil
}

func (f *Finder) match(key string) bool {
	if f.globs == nil {
		if _, ok := f.wanted[key]; ok {
			delete(f.wanted, key)
			return true
		}
		return false
	}

	for _, g := range f.globs {
		if g.Match(key) {
			return true
		}
	}
	return false
}

// done reports whether every exact dn was found. Glob scans read everything.
func (f *Finder) done() bool {
	return f.globs == nil && len(f.wanted) == 0
}

// Find copies matching records from r to w unchanged, each followed by a
// blank line, and returns how many it copied.
func (f *Finder) Find(r io.Reader, w io.Writer) (int, error) {
	if f.done() {
		return 0, nil
	}

	reader := ldif.NewReader(r)
	found := 0
	for {
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return found, nil
		}
		if err != nil {
			return found, err
		}

		if !f.match(ldif.ExtractKey(chunk)) {
			continue
		}
		if _, err := io.WriteString(w, strings.TrimRight(chunk, "\n")+"\n\n"); err != nil {
			return found, err
		}
		found++

		if f.done() {
			return found, nil
		}
	}
}

// Missing lists the exact dns that were not found, sorted.
func (f *Finder) Missing() []string {
	out := make([]string, 0, len(f.wanted))
	for dn := range f.wanted {
		out = append(out, dn)
	}
	sort.Strings(out)
	return out
}
