package reconcile

import (
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// Diff returns the field-level changes between before and after.
//
// Maps are walked key by key and lists index by index, so only the deepest
// differing paths are reported. A node whose kind changed, or any differing
// scalar, is reported whole at its own path. Changes follow the key order of
// after; keys only in after come next, then keys only in before.
//
// Entries in skip match a field name at any depth or a full dotted path,
// and exclude that subtree from the comparison.
func Diff(before, after canonical.Node, skip ...string) []models.FieldChange {
	d := &differ{skip: NewFieldSet(skip...)}
	d.walk("", before, after)
	return d.changes
}

// DiffSet is Diff with a prepared skip set.
func DiffSet(before, after canonical.Node, skip FieldSet) []models.FieldChange {
	d := &differ{skip: skip}
	d.walk("", before, after)
	return d.changes
}

type differ struct {
	skip    FieldSet
	changes []models.FieldChange
}

func (d *differ) walk(path string, before, after canonical.Node) {
	if canonical.Equal(before, after) {
		return
	}

	bm, beforeIsMap := before.(canonical.Map)
	am, afterIsMap := after.(canonical.Map)
	if beforeIsMap && afterIsMap {
		d.walkMap(path, bm, am)
		return
	}

	bl, beforeIsList := before.(canonical.List)
	al, afterIsList := after.(canonical.List)
	if beforeIsList && afterIsList {
		d.walkList(path, bl, al)
		return
	}

	d.add(path, before, after)
}

func (d *differ) walkMap(path string, before, after canonical.Map) {
	after.Range(func(key string, av canonical.Node) bool {
		child := joinPath(path, key)
		if d.skip.matches(key, child) {
			return true
		}
		if bv, ok := before.Get(key); ok {
			d.walk(child, bv, av)
		}
		return true
	})

	after.Range(func(key string, av canonical.Node) bool {
		child := joinPath(path, key)
		if !before.Has(key) && !d.skip.matches(key, child) {
			d.add(child, nil, av)
		}
		return true
	})

	before.Range(func(key string, bv canonical.Node) bool {
		child := joinPath(path, key)
		if !after.Has(key) && !d.skip.matches(key, child) {
			d.add(child, bv, nil)
		}
		return true
	})
}

func (d *differ) walkList(path string, before, after canonical.List) {
	shared := min(before.Len(), after.Len())
	for i := 0; i < shared; i++ {
		d.walk(indexPath(path, i), before.At(i), after.At(i))
	}
	for i := shared; i < after.Len(); i++ {
		d.add(indexPath(path, i), nil, after.At(i))
	}
	for i := shared; i < before.Len(); i++ {
		d.add(indexPath(path, i), before.At(i), nil)
	}
}

func (d *differ) add(path string, before, after canonical.Node) {
	d.changes = append(d.changes, models.FieldChange{Path: path, Old: before, New: after})
}
