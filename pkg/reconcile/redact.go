package reconcile

import (
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// Redact returns a copy of n without any Map key selected by names, at any
// depth and inside lists. A name selects a key by its bare name or by its
// full dotted path from the root (manager.ssn, positions.0.title). Names
// that never occur are ignored.
func Redact(n canonical.Node, names FieldSet) canonical.Node {
	return redactAt(n, names, "")
}

func redactAt(n canonical.Node, names FieldSet, path string) canonical.Node {
	if len(names) == 0 {
		return n
	}
	switch x := n.(type) {
	case canonical.Map:
		b := canonical.NewMapBuilder(x.Len())
		x.Range(func(key string, v canonical.Node) bool {
			child := joinPath(path, key)
			if !names.matches(key, child) {
				b.Set(key, redactAt(v, names, child))
			}
			return true
		})
		return b.Build()
	case canonical.List:
		items := x.Items()
		for i, item := range items {
			items[i] = redactAt(item, names, indexPath(path, i))
		}
		return canonical.NewList(items...)
	default:
		return n
	}
}

// RedactChanges drops every change whose path runs through a redacted
// field and redacts the old and new values of the rest.
func RedactChanges(changes []models.FieldChange, names FieldSet) []models.FieldChange {
	if changes == nil {
		return nil
	}
	out := make([]models.FieldChange, 0, len(changes))
	for _, c := range changes {
		if names.coversPath(c.Path) {
			continue
		}
		out = append(out, models.FieldChange{
			Path: c.Path,
			Old:  redactOptional(c.Old, names, c.Path),
			New:  redactOptional(c.New, names, c.Path),
		})
	}
	return out
}

// redactOptional redacts a change value rooted at path, keeping absent
// values absent.
func redactOptional(n canonical.Node, names FieldSet, path string) canonical.Node {
	if n == nil {
		return nil
	}
	return redactAt(n, names, path)
}
