package reconcile

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
)

// ShapeMismatchError reports two trees that disagree on the kind of node at
// a path, e.g. a Map in the original where the update holds a List.
type ShapeMismatchError struct {
	Path     string
	Original canonical.Kind
	Updated  canonical.Kind
}

func (e *ShapeMismatchError) Error() string {
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	return fmt.Sprintf("shape mismatch at %s: original is %s, update is %s", path, e.Original, e.Updated)
}

func (e *ShapeMismatchError) Is(target error) bool {
	return target == apperrors.ErrShapeMismatch
}

// Merge overlays updated onto original and returns the result.
//
// A value in updated wins when it carries data. Absent keys, nulls, encoder
// sentinels, empty lists and empty maps keep the original value, which also
// means an update can never clear a field to null. Maps merge per key; lists
// are replaced whole. Neither input is modified.
func Merge(original, updated canonical.Node) (canonical.Node, error) {
	return mergeAt("", original, updated)
}

func mergeAt(path string, original, updated canonical.Node) (canonical.Node, error) {
	if isUnset(updated) {
		if original == nil && updated != nil {
			return updated, nil
		}
		return original, nil
	}
	if isPlaceholder(original) {
		return updated, nil
	}

	switch o := original.(type) {
	case canonical.Map:
		u, ok := updated.(canonical.Map)
		if !ok {
			return nil, mismatch(path, original, updated)
		}
		return mergeMaps(path, o, u)
	case canonical.List:
		if _, ok := updated.(canonical.List); !ok {
			return nil, mismatch(path, original, updated)
		}
		return updated, nil
	default:
		if _, ok := updated.(canonical.Scalar); !ok {
			return nil, mismatch(path, original, updated)
		}
		return updated, nil
	}
}

func mergeMaps(path string, original, updated canonical.Map) (canonical.Node, error) {
	b := canonical.NewMapBuilder(original.Len() + updated.Len())

	var err error
	original.Range(func(key string, ov canonical.Node) bool {
		uv, _ := updated.Get(key)
		var merged canonical.Node
		merged, err = mergeAt(joinPath(path, key), ov, uv)
		if err != nil {
			return false
		}
		b.Set(key, merged)
		return true
	})
	if err != nil {
		return nil, err
	}

	updated.Range(func(key string, uv canonical.Node) bool {
		if !original.Has(key) {
			b.Set(key, uv)
		}
		return true
	})
	return b.Build(), nil
}

// isUnset reports whether an update value carries no data.
func isUnset(n canonical.Node) bool {
	switch x := n.(type) {
	case nil:
		return true
	case canonical.Scalar:
		return x.IsNull() || x.IsSentinel()
	case canonical.List:
		return x.Len() == 0
	case canonical.Map:
		return x.Len() == 0
	}
	return false
}

// isPlaceholder reports whether an original value holds no data of a
// specific shape, so any update may take its place.
func isPlaceholder(n canonical.Node) bool {
	if n == nil {
		return true
	}
	s, ok := n.(canonical.Scalar)
	return ok && (s.IsNull() || s.IsSentinel())
}

func mismatch(path string, original, updated canonical.Node) error {
	return &ShapeMismatchError{Path: path, Original: original.Kind(), Updated: updated.Kind()}
}
