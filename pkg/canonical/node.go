// Package canonical provides the type-erased tree (Scalar, List, Map) that
// merge, diff and redaction operate on, and the encoder that produces it.
package canonical

import (
	"time"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	KindScalar Kind = iota
	KindList
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Node is a canonical tree node. The set of implementations is closed:
// Scalar, List and Map.
type Node interface {
	Kind() Kind
	canonicalNode()
}

// Text of the sentinel scalars.
const (
	CycleText           = "<cycle>"
	UnrepresentableText = "<unrepresentable>"
)

// sentinel is kept distinct from string so that user data reading "<cycle>"
// is never mistaken for a detected cycle.
type sentinel string

const (
	cycleSentinel           sentinel = CycleText
	unrepresentableSentinel sentinel = UnrepresentableText
)

// Scalar is a leaf value. The wrapped value is always one of: nil, string,
// bool, int64, float64, time.Time, or a sentinel.
type Scalar struct {
	value any
}

func (Scalar) Kind() Kind      { return KindScalar }
func (Scalar) canonicalNode() {}

// Null returns the null scalar.
func Null() Scalar { return Scalar{} }

// String returns a string scalar.
func String(s string) Scalar { return Scalar{value: s} }

// Int returns an integer scalar.
func Int(i int64) Scalar { return Scalar{value: i} }

// Float returns a floating point scalar.
func Float(f float64) Scalar { return Scalar{value: f} }

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{value: b} }

// Time returns a timestamp scalar.
func Time(t time.Time) Scalar { return Scalar{value: t} }

// Cycle returns the sentinel emitted in place of a repeated object identity.
func Cycle() Scalar { return Scalar{value: cycleSentinel} }

// Unrepresentable returns the sentinel emitted for values the encoder
// cannot express.
func Unrepresentable() Scalar { return Scalar{value: unrepresentableSentinel} }

// Value returns the wrapped value. Sentinels are returned as their text.
func (s Scalar) Value() any {
	if m, ok := s.value.(sentinel); ok {
		return string(m)
	}
	return s.value
}

func (s Scalar) IsNull() bool { return s.value == nil }

func (s Scalar) IsCycle() bool { return s.value == cycleSentinel }

func (s Scalar) IsUnrepresentable() bool { return s.value == unrepresentableSentinel }

// IsSentinel reports whether the scalar is a placeholder produced by the
// encoder rather than data.
func (s Scalar) IsSentinel() bool {
	_, ok := s.value.(sentinel)
	return ok
}

func (s Scalar) AsString() (string, bool) {
	v, ok := s.value.(string)
	return v, ok
}

func (s Scalar) AsBool() (bool, bool) {
	v, ok := s.value.(bool)
	return v, ok
}

// AsInt returns the value as int64. Floats with no fractional part convert.
func (s Scalar) AsInt() (int64, bool) {
	switch v := s.value.(type) {
	case int64:
		return v, true
	case float64:
		if v == float64(int64(v)) {
			return int64(v), true
		}
	}
	return 0, false
}

// AsFloat returns the value as float64. Integers convert.
func (s Scalar) AsFloat() (float64, bool) {
	switch v := s.value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// AsTime returns the value as a timestamp. RFC 3339 strings are parsed so
// that trees decoded from JSON still yield times.
func (s Scalar) AsTime() (time.Time, bool) {
	switch v := s.value.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// List is an ordered sequence of nodes.
type List struct {
	items []Node
}

func (List) Kind() Kind      { return KindList }
func (List) canonicalNode() {}

// NewList returns a list holding a copy of items.
func NewList(items ...Node) List {
	cp := make([]Node, len(items))
	copy(cp, items)
	return List{items: cp}
}

func (l List) Len() int { return len(l.items) }

func (l List) At(i int) Node { return l.items[i] }

// Items returns a copy of the list's elements.
func (l List) Items() []Node {
	cp := make([]Node, len(l.items))
	copy(cp, l.items)
	return cp
}

// Map is an ordered mapping of field name to node. Key order is the order
// in which fields were first set.
type Map struct {
	keys   []string
	values map[string]Node
}

func (Map) Kind() Kind      { return KindMap }
func (Map) canonicalNode() {}

func (m Map) Len() int { return len(m.keys) }

// Keys returns the keys in insertion order.
func (m Map) Keys() []string {
	cp := make([]string, len(m.keys))
	copy(cp, m.keys)
	return cp
}

func (m Map) Get(key string) (Node, bool) {
	n, ok := m.values[key]
	return n, ok
}

func (m Map) Has(key string) bool {
	_, ok := m.values[key]
	return ok
}

// Range calls fn for each entry in key order until fn returns false.
func (m Map) Range(fn func(key string, value Node) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// MapBuilder assembles a Map. It is not safe for concurrent use; the Map it
// builds is.
type MapBuilder struct {
	enc    *Encoder
	keys   []string
	values map[string]Node
}

// NewMapBuilder returns a builder without an encoder; Field falls back to a
// fresh encoder per value.
func NewMapBuilder(capacity int) *MapBuilder {
	return &MapBuilder{
		keys:   make([]string, 0, capacity),
		values: make(map[string]Node, capacity),
	}
}

// Set stores n under key. Setting an existing key replaces the value and
// keeps its original position. A nil node is stored as Null.
func (b *MapBuilder) Set(key string, n Node) *MapBuilder {
	if n == nil {
		n = Null()
	}
	if _, exists := b.values[key]; !exists {
		b.keys = append(b.keys, key)
	}
	b.values[key] = n
	return b
}

// Field encodes v and stores it under key.
func (b *MapBuilder) Field(key string, v any) *MapBuilder {
	return b.Set(key, b.encoder().Encode(v))
}

// FieldOmitZero is Field, except zero scalars ("", 0, false, zero time) are
// stored as Null so a partially populated value merges as absent.
func (b *MapBuilder) FieldOmitZero(key string, v any) *MapBuilder {
	n := b.encoder().Encode(v)
	if s, ok := n.(Scalar); ok && isZeroScalar(s) {
		n = Null()
	}
	return b.Set(key, n)
}

// Build returns the Map. The builder must not be used afterwards.
func (b *MapBuilder) Build() Map {
	return Map{keys: b.keys, values: b.values}
}

func (b *MapBuilder) encoder() *Encoder {
	if b.enc == nil {
		b.enc = NewEncoder()
	}
	return b.enc
}

func isZeroScalar(s Scalar) bool {
	switch v := s.value.(type) {
	case string:
		return v == ""
	case int64:
		return v == 0
	case float64:
		return v == 0
	case bool:
		return !v
	case time.Time:
		return v.IsZero()
	}
	return false
}
