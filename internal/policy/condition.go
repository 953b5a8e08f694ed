package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// Operator is a condition comparison operator.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpIn           Operator = "in"
	OpNotIn        Operator = "not_in"
)

var operators = []Operator{
	OpEqual, OpNotEqual,
	OpGreater, OpLess, OpGreaterEqual, OpLessEqual,
	OpIn, OpNotIn,
}

// Valid reports whether o is a supported operator.
func (o Operator) Valid() bool {
	return slices.Contains(operators, o)
}

// operand is the operator-family specific right-hand side of a condition.
// Each family carries exactly the value shape it needs, so a membership
// test against a scalar or a numeric comparison against text cannot be
// built.
type operand interface {
	match(v Scalar) bool
	values() []Scalar
	encode() any
}

type equality struct {
	value  Scalar
	negate bool
}

func (e equality) match(v Scalar) bool {
	return v.Equal(e.value) != e.negate
}

func (e equality) values() []Scalar { return []Scalar{e.value} }
func (e equality) encode() any      { return e.value }

type comparison struct {
	op    Operator
	bound float64
}

func (c comparison) match(v Scalar) bool {
	n, ok := v.Float()
	if !ok {
		return false
	}
	switch c.op {
	case OpGreater:
		return n > c.bound
	case OpLess:
		return n < c.bound
	case OpGreaterEqual:
		return n >= c.bound
	case OpLessEqual:
		return n <= c.bound
	}
	return false
}

func (c comparison) values() []Scalar { return []Scalar{NumberValue(c.bound)} }
func (c comparison) encode() any      { return c.bound }

type membership struct {
	set    []Scalar
	negate bool
}

func (m membership) match(v Scalar) bool {
	found := slices.ContainsFunc(m.set, v.Equal)
	return found != m.negate
}

func (m membership) values() []Scalar { return slices.Clone(m.set) }
func (m membership) encode() any      { return m.set }

// Condition tests a single attribute. Conditions are built with the
// constructors below or decoded from JSON; the zero Condition never
// matches.
type Condition struct {
	Attribute string
	Operator  Operator
	operand   operand
}

// Equals builds an "==" condition.
func Equals(attribute string, value Scalar) Condition {
	return Condition{Attribute: attribute, Operator: OpEqual, operand: equality{value: value}}
}

// NotEquals builds a "!=" condition.
func NotEquals(attribute string, value Scalar) Condition {
	return Condition{Attribute: attribute, Operator: OpNotEqual, operand: equality{value: value, negate: true}}
}

// Compare builds one of the numeric comparison conditions.
func Compare(attribute string, op Operator, bound float64) (Condition, error) {
	switch op {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return Condition{Attribute: attribute, Operator: op, operand: comparison{op: op, bound: bound}}, nil
	}
	return Condition{}, fmt.Errorf("%w: %q is not a comparison operator", ErrInvalidCondition, op)
}

// In builds an "in" condition over the given set.
func In(attribute string, set ...Scalar) Condition {
	return Condition{Attribute: attribute, Operator: OpIn, operand: membership{set: slices.Clone(set)}}
}

// NotIn builds a "not_in" condition over the given set.
func NotIn(attribute string, set ...Scalar) Condition {
	return Condition{Attribute: attribute, Operator: OpNotIn, operand: membership{set: slices.Clone(set), negate: true}}
}

// NewCondition builds a condition from loosely typed input, as decoded
// from JSON. It rejects value shapes that do not fit the operator.
func NewCondition(attribute string, op Operator, value any) (Condition, error) {
	if attribute == "" {
		return Condition{}, fmt.Errorf("%w: attribute required", ErrInvalidCondition)
	}

	switch op {
	case OpEqual, OpNotEqual:
		s, err := ScalarOf(value)
		if err != nil {
			return Condition{}, fmt.Errorf("%w: %s %s: %w", ErrInvalidCondition, attribute, op, err)
		}
		if op == OpEqual {
			return Equals(attribute, s), nil
		}
		return NotEquals(attribute, s), nil

	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		s, err := ScalarOf(value)
		if err != nil {
			return Condition{}, fmt.Errorf("%w: %s %s: %w", ErrInvalidCondition, attribute, op, err)
		}
		n, ok := s.Float()
		if !ok {
			return Condition{}, fmt.Errorf("%w: %s %s requires a numeric value, got %q", ErrInvalidCondition, attribute, op, s.String())
		}
		return Compare(attribute, op, n)

	case OpIn, OpNotIn:
		set, err := scalarSet(value)
		if err != nil {
			return Condition{}, fmt.Errorf("%w: %s %s: %w", ErrInvalidCondition, attribute, op, err)
		}
		if op == OpIn {
			return In(attribute, set...), nil
		}
		return NotIn(attribute, set...), nil
	}

	return Condition{}, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, op)
}

func scalarSet(value any) ([]Scalar, error) {
	var items []any
	switch t := value.(type) {
	case []any:
		items = t
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []Scalar:
		return slices.Clone(t), nil
	default:
		return nil, fmt.Errorf("set operators require an array value, got %T", value)
	}

	set := make([]Scalar, 0, len(items))
	for _, item := range items {
		s, err := ScalarOf(item)
		if err != nil {
			return nil, err
		}
		set = append(set, s)
	}
	return set, nil
}

// Matches evaluates the condition against attrs. A missing attribute or
// an unbuilt condition evaluates to false.
func (c Condition) Matches(attrs AttributeMap) bool {
	if c.operand == nil {
		return false
	}
	v, ok := attrs.Get(c.Attribute)
	if !ok {
		return false
	}
	return c.operand.match(v)
}

// Valid reports whether the condition carries an operand.
func (c Condition) Valid() bool {
	return c.operand != nil
}

// Values returns the scalar operands of the condition.
func (c Condition) Values() []Scalar {
	if c.operand == nil {
		return nil
	}
	return c.operand.values()
}

// Equal reports whether two conditions test the same thing.
func (c Condition) Equal(other Condition) bool {
	if c.Attribute != other.Attribute || c.Operator != other.Operator {
		return false
	}
	a, b := c.Values(), other.Values()
	return slices.EqualFunc(a, b, func(x, y Scalar) bool {
		return x.Kind() == y.Kind() && x.Equal(y)
	})
}

type conditionJSON struct {
	Attribute string   `json:"attribute"`
	Operator  Operator `json:"operator"`
	Value     any      `json:"value"`
}

func (c Condition) MarshalJSON() ([]byte, error) {
	var value any
	if c.operand != nil {
		value = c.operand.encode()
	}
	return json.Marshal(conditionJSON{
		Attribute: c.Attribute,
		Operator:  c.Operator,
		Value:     value,
	})
}

func (c *Condition) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw conditionJSON
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	built, err := NewCondition(raw.Attribute, raw.Operator, raw.Value)
	if err != nil {
		return err
	}
	*c = built
	return nil
}
