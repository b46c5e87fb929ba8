package canonical

import (
	"encoding"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Canonicalizer is implemented by types that know how to describe
// themselves as a canonical tree. Implementations list their fields in
// declaration order. Pointer receivers must return Null for a nil receiver.
type Canonicalizer interface {
	ToCanonical(e *Encoder) Node
}

// Decoder is the inverse of Canonicalizer.
type Decoder interface {
	FromCanonical(n Node) error
}

// Encoder converts Go values into canonical trees. An Encoder carries the
// identity set of the objects currently being encoded, so it must not be
// shared between goroutines. Use one per top-level Encode.
type Encoder struct {
	visiting map[any]struct{}
}

func NewEncoder() *Encoder {
	return &Encoder{visiting: make(map[any]struct{})}
}

// Encode converts v with a fresh Encoder.
func Encode(v any) Node {
	return NewEncoder().Encode(v)
}

// Encode converts v into a node. It never fails: values it cannot express
// become the unrepresentable sentinel.
func (e *Encoder) Encode(v any) Node {
	switch x := v.(type) {
	case nil:
		return Null()
	case Node:
		return x
	case Canonicalizer:
		n := x.ToCanonical(e)
		if n == nil {
			return Null()
		}
		return n
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(int64(x))
	case int8:
		return Int(int64(x))
	case int16:
		return Int(int64(x))
	case int32:
		return Int(int64(x))
	case int64:
		return Int(x)
	case uint:
		return encodeUint(uint64(x))
	case uint8:
		return Int(int64(x))
	case uint16:
		return Int(int64(x))
	case uint32:
		return Int(int64(x))
	case uint64:
		return encodeUint(x)
	case float32:
		return Float(float64(x))
	case float64:
		return Float(x)
	case time.Time:
		return Time(x)
	case *time.Time:
		if x == nil {
			return Null()
		}
		return Time(*x)
	case *string:
		if x == nil {
			return Null()
		}
		return String(*x)
	case *bool:
		if x == nil {
			return Null()
		}
		return Bool(*x)
	case *int:
		if x == nil {
			return Null()
		}
		return Int(int64(*x))
	case *int64:
		if x == nil {
			return Null()
		}
		return Int(*x)
	case *float64:
		if x == nil {
			return Null()
		}
		return Float(*x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		if f, err := x.Float64(); err == nil {
			return Float(f)
		}
		return Unrepresentable()
	case []byte, json.RawMessage:
		return Unrepresentable()
	case []any:
		return ListOf(e, x)
	case []string:
		return ListOf(e, x)
	case []int:
		return ListOf(e, x)
	case []int64:
		return ListOf(e, x)
	case []float64:
		return ListOf(e, x)
	case map[string]any:
		return MapOf(e, x)
	case map[string]string:
		return MapOf(e, x)
	case encoding.TextMarshaler:
		text, err := x.MarshalText()
		if err != nil {
			return Unrepresentable()
		}
		return String(string(text))
	case fmt.Stringer:
		return String(x.String())
	default:
		return Unrepresentable()
	}
}

// Object builds a Map for the object identified by id, normally the
// object's pointer. If id is already being encoded further up the current
// path, the cycle sentinel is returned instead and build is not called.
// A nil id disables tracking.
func (e *Encoder) Object(id any, build func(b *MapBuilder)) Node {
	if id != nil {
		tracked, repeat := e.enter(id)
		if repeat {
			return Cycle()
		}
		if tracked {
			defer delete(e.visiting, id)
		}
	}
	b := &MapBuilder{enc: e, values: make(map[string]Node)}
	build(b)
	return b.Build()
}

// enter marks id as visiting. Identities that cannot be map keys are left
// untracked.
func (e *Encoder) enter(id any) (tracked, repeat bool) {
	defer func() {
		if recover() != nil {
			tracked, repeat = false, false
		}
	}()
	if _, ok := e.visiting[id]; ok {
		return false, true
	}
	e.visiting[id] = struct{}{}
	return true, false
}

// ListOf encodes a slice element by element. A nil slice is Null; an empty
// non-nil slice is an empty List.
func ListOf[T any](e *Encoder, items []T) Node {
	if items == nil {
		return Null()
	}
	nodes := make([]Node, len(items))
	for i, item := range items {
		nodes[i] = e.Encode(item)
	}
	return List{items: nodes}
}

// MapOf encodes a Go map. Go maps have no declaration order, so keys are
// sorted.
func MapOf[V any](e *Encoder, m map[string]V) Node {
	if m == nil {
		return Null()
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b := &MapBuilder{enc: e, keys: make([]string, 0, len(keys)), values: make(map[string]Node, len(keys))}
	for _, k := range keys {
		b.Set(k, e.Encode(m[k]))
	}
	return b.Build()
}

func encodeUint(u uint64) Node {
	if u > math.MaxInt64 {
		return Float(float64(u))
	}
	return Int(int64(u))
}
