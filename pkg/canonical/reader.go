package canonical

import (
	"fmt"
	"time"

	"github.com/ekaya-inc/ekaya-audit/pkg/apperrors"
)

// Reader reads typed fields out of a Map for FromCanonical implementations.
// Missing, null and sentinel fields read as zero values. The first type
// mismatch is kept and returned by Err; later reads still return zero values.
type Reader struct {
	m   Map
	err error
}

// Read returns a Reader over n. Null reads as an empty Map.
func Read(n Node) *Reader {
	switch x := n.(type) {
	case Map:
		return &Reader{m: x}
	case Scalar:
		if x.IsNull() || x.IsSentinel() {
			return &Reader{}
		}
	case nil:
		return &Reader{}
	}
	return &Reader{err: fmt.Errorf("%w: expected map, got %s", apperrors.ErrInvalidValue, n.Kind())}
}

// Err returns the first error encountered.
func (r *Reader) Err() error { return r.err }

// Has reports whether key holds data (present, not null, not a sentinel).
func (r *Reader) Has(key string) bool {
	return r.Node(key) != nil
}

// Node returns the raw node under key, or nil when the key holds no data.
func (r *Reader) Node(key string) Node {
	n, ok := r.m.Get(key)
	if !ok {
		return nil
	}
	if s, ok := n.(Scalar); ok && (s.IsNull() || s.IsSentinel()) {
		return nil
	}
	return n
}

func (r *Reader) String(key string) string {
	s, ok := r.scalar(key)
	if !ok {
		return ""
	}
	v, ok := s.AsString()
	if !ok {
		r.fail(key, "string", s)
	}
	return v
}

// StringPtr returns nil when the key holds no data.
func (r *Reader) StringPtr(key string) *string {
	if !r.Has(key) {
		return nil
	}
	v := r.String(key)
	return &v
}

func (r *Reader) Int(key string) int64 {
	s, ok := r.scalar(key)
	if !ok {
		return 0
	}
	v, ok := s.AsInt()
	if !ok {
		r.fail(key, "integer", s)
	}
	return v
}

func (r *Reader) Float(key string) float64 {
	s, ok := r.scalar(key)
	if !ok {
		return 0
	}
	v, ok := s.AsFloat()
	if !ok {
		r.fail(key, "number", s)
	}
	return v
}

func (r *Reader) Bool(key string) bool {
	s, ok := r.scalar(key)
	if !ok {
		return false
	}
	v, ok := s.AsBool()
	if !ok {
		r.fail(key, "bool", s)
	}
	return v
}

func (r *Reader) Time(key string) time.Time {
	s, ok := r.scalar(key)
	if !ok {
		return time.Time{}
	}
	v, ok := s.AsTime()
	if !ok {
		r.fail(key, "timestamp", s)
	}
	return v
}

// List returns the list under key. ok is false when the key holds no data
// or holds something else.
func (r *Reader) List(key string) (List, bool) {
	n := r.Node(key)
	if n == nil {
		return List{}, false
	}
	l, ok := n.(List)
	if !ok {
		r.failKind(key, "list", n.Kind())
	}
	return l, ok
}

func (r *Reader) scalar(key string) (Scalar, bool) {
	n := r.Node(key)
	if n == nil {
		return Scalar{}, false
	}
	s, ok := n.(Scalar)
	if !ok {
		r.failKind(key, "scalar", n.Kind())
	}
	return s, ok
}

func (r *Reader) fail(key, want string, got Scalar) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: %w: expected %s, got %T", key, apperrors.ErrInvalidValue, want, got.value)
	}
}

func (r *Reader) failKind(key, want string, got Kind) {
	if r.err == nil {
		r.err = fmt.Errorf("field %q: %w: expected %s, got %s", key, apperrors.ErrInvalidValue, want, got)
	}
}
