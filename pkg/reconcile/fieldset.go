// Package reconcile merges, diffs and redacts canonical trees.
package reconcile

import (
	"sort"
	"strconv"
	"strings"
)

// FieldSet is a set of field names or dotted paths.
type FieldSet map[string]struct{}

func NewFieldSet(names ...string) FieldSet {
	s := make(FieldSet, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			s[n] = struct{}{}
		}
	}
	return s
}

func (s FieldSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Union returns a new set holding the names of both sets.
func (s FieldSet) Union(other FieldSet) FieldSet {
	out := make(FieldSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Names returns the names sorted.
func (s FieldSet) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// matches reports whether the field key at path is selected, either by its
// bare name or by its full dotted path.
func (s FieldSet) matches(key, path string) bool {
	if len(s) == 0 {
		return false
	}
	return s.Has(key) || s.Has(path)
}

// coversPath reports whether any segment of a dotted path is in the set.
func (s FieldSet) coversPath(path string) bool {
	if len(s) == 0 || path == "" {
		return false
	}
	if s.Has(path) {
		return true
	}
	prefix := ""
	for _, seg := range strings.Split(path, ".") {
		if prefix == "" {
			prefix = seg
		} else {
			prefix += "." + seg
		}
		if s.Has(seg) || s.Has(prefix) {
			return true
		}
	}
	return false
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func indexPath(parent string, i int) string {
	return joinPath(parent, strconv.Itoa(i))
}
