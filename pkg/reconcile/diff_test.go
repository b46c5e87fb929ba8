package reconcile

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

func paths(changes []models.FieldChange) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}

func TestDiff_ScalarChange(t *testing.T) {
	changes := Diff(obj("amount", 100), obj("amount", 150))

	require.Len(t, changes, 1)
	assert.Equal(t, "amount", changes[0].Path)
	assert.True(t, canonical.Equal(canonical.Int(100), changes[0].Old))
	assert.True(t, canonical.Equal(canonical.Int(150), changes[0].New))
}

func TestDiff_SameTreeIsEmpty(t *testing.T) {
	x := obj("a", 1, "b", obj("c", list(1, obj("d", "e"))), "f", nil)
	assert.Empty(t, Diff(x, x))
	assert.Empty(t, Diff(x, obj("a", 1, "b", obj("c", list(1, obj("d", "e"))), "f", nil)))

	withNaN := obj("rate", math.NaN(), "history", list(1.5, math.NaN()))
	assert.Empty(t, Diff(withNaN, withNaN))
}

func TestDiff_LargeIntVersusFloat(t *testing.T) {
	changes := Diff(obj("n", int64(1<<53+1)), obj("n", float64(1<<53)))
	assert.Equal(t, []string{"n"}, paths(changes))

	assert.Empty(t, Diff(obj("n", int64(1<<53)), obj("n", float64(1<<53))))
}

func TestDiff_Ordering(t *testing.T) {
	before := obj("a", 1, "gone", "x", "b", 2, "also-gone", "y")
	after := obj("b", 3, "new", true, "a", 0)

	assert.Equal(t, []string{"b", "a", "new", "gone", "also-gone"}, paths(Diff(before, after)))
}

func TestDiff_AddedAndRemovedKeys(t *testing.T) {
	changes := Diff(obj("old", 1), obj("new", 2))
	require.Len(t, changes, 2)

	assert.Equal(t, "new", changes[0].Path)
	assert.Nil(t, changes[0].Old)
	assert.True(t, canonical.Equal(canonical.Int(2), changes[0].New))

	assert.Equal(t, "old", changes[1].Path)
	assert.True(t, canonical.Equal(canonical.Int(1), changes[1].Old))
	assert.Nil(t, changes[1].New)
}

func TestDiff_NestedAndListPaths(t *testing.T) {
	before := obj("salary", obj("amount", 100, "currency", "EUR"),
		"positions", list(obj("title", "Dev"), obj("title", "Lead")))
	after := obj("salary", obj("amount", 120, "currency", "EUR"),
		"positions", list(obj("title", "Dev"), obj("title", "Head"), obj("title", "CTO")))

	assert.Equal(t, []string{"salary.amount", "positions.1.title", "positions.2"}, paths(Diff(before, after)))
}

func TestDiff_KindChangeReportedWhole(t *testing.T) {
	changes := Diff(obj("manager", nil), obj("manager", obj("name", "Bob")))
	require.Len(t, changes, 1)
	assert.Equal(t, "manager", changes[0].Path)
	assert.Equal(t, canonical.KindMap, changes[0].New.Kind())
}

func TestDiff_Skip(t *testing.T) {
	before := obj("updatedAt", 1, "name", "A", "meta", obj("updatedAt", 1, "version", 1))
	after := obj("updatedAt", 2, "name", "B", "meta", obj("updatedAt", 2, "version", 2))

	t.Run("by name at any depth", func(t *testing.T) {
		assert.Equal(t, []string{"name", "meta.version"}, paths(Diff(before, after, "updatedAt")))
	})

	t.Run("by dotted path", func(t *testing.T) {
		assert.Equal(t, []string{"updatedAt", "name", "meta.version"}, paths(Diff(before, after, "meta.updatedAt")))
	})

	t.Run("whole subtree", func(t *testing.T) {
		assert.Equal(t, []string{"updatedAt", "name"}, paths(Diff(before, after, "meta")))
	})

	t.Run("skipped added key", func(t *testing.T) {
		assert.Empty(t, Diff(obj(), obj("updatedAt", 5), "updatedAt"))
	})
}

func TestDiff_Symmetry(t *testing.T) {
	cases := []struct{ before, after canonical.Node }{
		{obj("a", 1), obj("a", 2)},
		{obj("a", 1, "b", 2), obj("c", 3, "a", 1)},
		{obj("l", list(1, 2, 3)), obj("l", list(1))},
		{obj("m", obj("x", nil)), obj("m", list())},
		{canonical.Null(), obj("a", 1)},
	}

	for _, tc := range cases {
		forward := Diff(tc.before, tc.after)
		backward := Diff(tc.after, tc.before)

		byPath := map[string]models.FieldChange{}
		for _, c := range backward {
			byPath[c.Path] = c
		}

		fp, bp := paths(forward), paths(backward)
		sort.Strings(fp)
		sort.Strings(bp)
		assert.Equal(t, fp, bp)

		for _, c := range forward {
			rev, ok := byPath[c.Path]
			require.True(t, ok)
			assert.True(t, canonical.Equal(c.Old, rev.New), "path %s", c.Path)
			assert.True(t, canonical.Equal(c.New, rev.Old), "path %s", c.Path)
		}
	}
}

func TestDiffValues(t *testing.T) {
	changes := DiffValues(map[string]any{"amount": 100}, map[string]any{"amount": 150})
	assert.Equal(t, []string{"amount"}, paths(changes))
}
