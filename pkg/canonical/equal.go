package canonical

import (
	"math"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Equal reports deep structural equality. A nil Node (absent) only equals
// another nil Node; it is not equal to Null.
//
// Strings compare after NFC normalization, numbers compare by value across
// int64 and float64, NaN equals NaN, times compare as instants, and Maps
// compare by key set regardless of key order.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch x := a.(type) {
	case Scalar:
		y, ok := b.(Scalar)
		return ok && scalarEqual(x, y)
	case List:
		y, ok := b.(List)
		if !ok || len(x.items) != len(y.items) {
			return false
		}
		for i := range x.items {
			if !Equal(x.items[i], y.items[i]) {
				return false
			}
		}
		return true
	case Map:
		y, ok := b.(Map)
		if !ok || len(x.keys) != len(y.keys) {
			return false
		}
		for k, xv := range x.values {
			yv, ok := y.values[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	}
	return false
}

func scalarEqual(x, y Scalar) bool {
	switch xv := x.value.(type) {
	case nil:
		return y.value == nil
	case string:
		yv, ok := y.value.(string)
		return ok && (xv == yv || norm.NFC.String(xv) == norm.NFC.String(yv))
	case bool:
		yv, ok := y.value.(bool)
		return ok && xv == yv
	case int64:
		if yv, ok := y.value.(int64); ok {
			return xv == yv
		}
		yf, ok := y.value.(float64)
		return ok && intEqualsFloat(xv, yf)
	case float64:
		switch yv := y.value.(type) {
		case float64:
			return xv == yv || (math.IsNaN(xv) && math.IsNaN(yv))
		case int64:
			return intEqualsFloat(yv, xv)
		}
		return false
	case time.Time:
		yv, ok := y.value.(time.Time)
		return ok && xv.Equal(yv)
	case sentinel:
		yv, ok := y.value.(sentinel)
		return ok && xv == yv
	}
	return false
}

// intEqualsFloat reports whether f holds exactly the integer i.
func intEqualsFloat(i int64, f float64) bool {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return false
	}
	return int64(f) == i
}
