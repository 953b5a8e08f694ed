package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ScalarKind identifies the concrete type held by a Scalar.
type ScalarKind int

const (
	KindString ScalarKind = iota
	KindNumber
	KindBool
)

// Scalar is a single attribute or condition value: a string, a number,
// or a boolean.
type Scalar struct {
	kind ScalarKind
	str  string
	num  float64
	flag bool
}

// StringValue returns a string Scalar.
func StringValue(s string) Scalar {
	return Scalar{kind: KindString, str: s}
}

// NumberValue returns a numeric Scalar.
func NumberValue(n float64) Scalar {
	return Scalar{kind: KindNumber, num: n}
}

// BoolValue returns a boolean Scalar.
func BoolValue(b bool) Scalar {
	return Scalar{kind: KindBool, flag: b}
}

// ScalarOf converts a decoded JSON value into a Scalar.
func ScalarOf(v any) (Scalar, error) {
	switch t := v.(type) {
	case Scalar:
		return t, nil
	case string:
		return StringValue(t), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case float32:
		return NumberValue(float64(t)), nil
	case int:
		return NumberValue(float64(t)), nil
	case int64:
		return NumberValue(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Scalar{}, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
		}
		return NumberValue(f), nil
	}
	return Scalar{}, fmt.Errorf("%w: got %T", ErrInvalidScalar, v)
}

// Kind returns the concrete type of the value.
func (s Scalar) Kind() ScalarKind {
	return s.kind
}

// String returns the canonical text form of the value.
func (s Scalar) String() string {
	switch s.kind {
	case KindNumber:
		return strconv.FormatFloat(s.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(s.flag)
	}
	return s.str
}

// Float coerces the value to a number. Numeric strings parse, booleans
// map to 1 and 0.
func (s Scalar) Float() (float64, bool) {
	switch s.kind {
	case KindNumber:
		return s.num, true
	case KindBool:
		if s.flag {
			return 1, true
		}
		return 0, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s.str), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Equal compares two values. Values of the same kind compare directly,
// strings without regard to case. Mixed kinds compare numerically when
// both coerce to numbers and by canonical text otherwise.
func (s Scalar) Equal(other Scalar) bool {
	if s.kind == other.kind {
		switch s.kind {
		case KindNumber:
			return s.num == other.num
		case KindBool:
			return s.flag == other.flag
		default:
			return strings.EqualFold(strings.TrimSpace(s.str), strings.TrimSpace(other.str))
		}
	}

	a, aok := s.Float()
	b, bok := other.Float()
	if aok && bok {
		return a == b
	}
	return strings.EqualFold(s.String(), other.String())
}

// Interface returns the value as a plain Go value suitable for encoding.
func (s Scalar) Interface() any {
	switch s.kind {
	case KindNumber:
		return s.num
	case KindBool:
		return s.flag
	}
	return s.str
}

func (s Scalar) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Interface())
}

func (s *Scalar) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}

	parsed, err := ScalarOf(v)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// AttributeMap is the flat set of extracted attribute values for one
// process description.
type AttributeMap map[string]Scalar

// Get returns the value for name and whether it is present.
func (m AttributeMap) Get(name string) (Scalar, bool) {
	if m == nil {
		return Scalar{}, false
	}
	v, ok := m[name]
	return v, ok
}

// Keys returns the attribute names in sorted order.
func (m AttributeMap) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clone returns a copy of the map.
func (m AttributeMap) Clone() AttributeMap {
	if m == nil {
		return nil
	}
	out := make(AttributeMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UnmarshalJSON decodes an arbitrary JSON object, keeping scalar members
// and dropping nulls, arrays, and nested objects. Upstream extraction is
// frequently partial, so unusable members are not an error.
func (m *AttributeMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	out := make(AttributeMap, len(raw))
	for k, v := range raw {
		if s, err := ScalarOf(v); err == nil {
			out[k] = s
		}
	}
	*m = out
	return nil
}
