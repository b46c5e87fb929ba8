package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

func (s Scalar) MarshalJSON() ([]byte, error) {
	switch v := s.value.(type) {
	case nil:
		return []byte("null"), nil
	case string:
		return marshalString(v)
	case sentinel:
		return marshalString(string(v))
	case time.Time:
		return marshalString(v.Format(time.RFC3339Nano))
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return marshalString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		return json.Marshal(v)
	default:
		return json.Marshal(v)
	}
}

func (l List) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range l.items {
		if i > 0 {
			buf.WriteByte(',')
		}
		data, err := marshalNode(item)
		if err != nil {
			return nil, err
		}
		buf.Write(data)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// MarshalJSON writes keys in insertion order.
func (m Map) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalString(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		data, err := marshalNode(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal field %q: %w", k, err)
		}
		buf.Write(data)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalString leaves <, > and & unescaped so sentinels stay readable.
func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func marshalNode(n Node) ([]byte, error) {
	if n == nil {
		return []byte("null"), nil
	}
	if m, ok := n.(json.Marshaler); ok {
		return m.MarshalJSON()
	}
	return json.Marshal(n)
}

// FromJSON decodes a JSON document into a tree, keeping object keys in
// document order. Integral numbers become int64, others float64.
func FromJSON(data []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := decodeValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return n, nil
}

func decodeValue(dec *json.Decoder) (Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			b := NewMapBuilder(0)
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				b.Set(key, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return b.Build(), nil
		case '[':
			items := []Node{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return List{items: items}, nil
		}
		return nil, fmt.Errorf("unexpected delimiter %v", t)
	case string:
		return String(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", t, err)
		}
		return Float(f), nil
	case bool:
		return Bool(t), nil
	case nil:
		return Null(), nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}
