package reconcile

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-audit/pkg/canonical"
	"github.com/ekaya-inc/ekaya-audit/pkg/models"
)

// Entity is satisfied by a pointer to T that converts to and from the
// canonical form.
type Entity[T any] interface {
	*T
	canonical.Canonicalizer
	canonical.Decoder
}

// MergeValues merges two values of the same entity type through their
// canonical form and decodes the result into a new T. T is returned by
// value, so back-references inside the result point at a copy; use
// MergeInto for graphs with back-references.
func MergeValues[T any, PT Entity[T]](original, updated T) (T, error) {
	var out T
	merged, err := Merge(canonical.Encode(PT(&original)), canonical.Encode(PT(&updated)))
	if err != nil {
		return out, err
	}
	if err := PT(&out).FromCanonical(merged); err != nil {
		return out, fmt.Errorf("failed to decode merged value: %w", err)
	}
	return out, nil
}

// MergeInto merges original and updated and decodes the result into dst.
func MergeInto(dst canonical.Decoder, original, updated canonical.Canonicalizer) error {
	merged, err := Merge(canonical.Encode(original), canonical.Encode(updated))
	if err != nil {
		return err
	}
	if err := dst.FromCanonical(merged); err != nil {
		return fmt.Errorf("failed to decode merged value: %w", err)
	}
	return nil
}

// DiffValues encodes both values and diffs them.
func DiffValues(before, after any, skip ...string) []models.FieldChange {
	return Diff(canonical.Encode(before), canonical.Encode(after), skip...)
}

// RedactValue encodes v and redacts names from it.
func RedactValue(v any, names ...string) canonical.Node {
	return Redact(canonical.Encode(v), NewFieldSet(names...))
}
