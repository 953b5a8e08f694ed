// Package policy defines the decision policy model: categories, typed
// attributes, prioritized condition/action rules, and the versioned
// Policy document that groups them.
package policy

import (
	"slices"
	"time"
)

// AttributeType is the value type of an attribute.
type AttributeType string

const (
	AttributeCategorical AttributeType = "categorical"
	AttributeNumeric     AttributeType = "numeric"
	AttributeBoolean     AttributeType = "boolean"
)

// DefaultWeight is used for scoring when a policy does not declare an
// attribute.
const DefaultWeight = 1.0

// Attribute is a named, typed input dimension used by rules and scoring.
type Attribute struct {
	Name           string        `json:"name" validate:"required"`
	Type           AttributeType `json:"type" validate:"required,oneof=categorical numeric boolean"`
	PossibleValues []string      `json:"possible_values,omitempty"`
	Weight         float64       `json:"weight" validate:"gte=0,lte=1"`
	Description    string        `json:"description,omitempty"`
}

// Allows reports whether v is an accepted value for the attribute.
// Only categorical attributes restrict values.
func (a Attribute) Allows(v Scalar) bool {
	switch a.Type {
	case AttributeCategorical:
		return slices.ContainsFunc(a.PossibleValues, func(p string) bool {
			return StringValue(p).Equal(v)
		})
	case AttributeNumeric:
		_, ok := v.Float()
		return ok
	case AttributeBoolean:
		return v.Kind() == KindBool || v.Equal(StringValue("true")) || v.Equal(StringValue("false"))
	}
	return false
}

// Rule is a prioritized condition/action mapping. Conditions are
// AND-combined; higher priority rules are evaluated first.
type Rule struct {
	RuleID      string      `json:"rule_id" validate:"required"`
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description,omitempty"`
	Conditions  []Condition `json:"conditions"`
	Action      RuleAction  `json:"action"`
	Priority    int         `json:"priority" validate:"gte=0,lte=100"`
	Active      bool        `json:"active"`
}

// Matches reports whether every condition holds for attrs. A rule with
// no conditions never matches.
func (r Rule) Matches(attrs AttributeMap) bool {
	if len(r.Conditions) == 0 {
		return false
	}
	for _, c := range r.Conditions {
		if !c.Matches(attrs) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	out.Conditions = slices.Clone(r.Conditions)
	return out
}

// Policy is one immutable version of the decision matrix. Versions
// published by the learning loop carry the id of the suggestion they
// applied in SourceSuggestion.
type Policy struct {
	Version          string      `json:"version" validate:"required,policyversion"`
	CreatedAt        time.Time   `json:"created_at"`
	CreatedBy        string      `json:"created_by" validate:"required"`
	Description      string      `json:"description,omitempty"`
	SourceSuggestion string      `json:"source_suggestion,omitempty"`
	Attributes       []Attribute `json:"attributes" validate:"dive"`
	Rules            []Rule      `json:"rules" validate:"dive"`
	Active           bool        `json:"active"`
}

// Attribute returns the attribute named name.
func (p *Policy) Attribute(name string) (Attribute, bool) {
	i := slices.IndexFunc(p.Attributes, func(a Attribute) bool {
		return a.Name == name
	})
	if i < 0 {
		return Attribute{}, false
	}
	return p.Attributes[i], true
}

// Rule returns the rule with the given id.
func (p *Policy) Rule(id string) (Rule, bool) {
	i := slices.IndexFunc(p.Rules, func(r Rule) bool {
		return r.RuleID == id
	})
	if i < 0 {
		return Rule{}, false
	}
	return p.Rules[i], true
}

// Weight returns the scoring weight for an attribute, DefaultWeight when
// the policy does not declare it.
func (p *Policy) Weight(name string) float64 {
	if a, ok := p.Attribute(name); ok {
		return a.Weight
	}
	return DefaultWeight
}

// Clone returns a deep copy of the policy.
func (p *Policy) Clone() *Policy {
	out := *p
	out.Attributes = make([]Attribute, len(p.Attributes))
	for i, a := range p.Attributes {
		a.PossibleValues = slices.Clone(a.PossibleValues)
		out.Attributes[i] = a
	}
	out.Rules = make([]Rule, len(p.Rules))
	for i, r := range p.Rules {
		out.Rules[i] = r.Clone()
	}
	return &out
}

// Classification is a category judgment with confidence and explanation.
type Classification struct {
	Category            Category `json:"category"`
	Confidence          float64  `json:"confidence"`
	Rationale           string   `json:"rationale"`
	CategoryProgression string   `json:"category_progression,omitempty"`
	FutureOpportunities []string `json:"future_opportunities,omitempty"`
}

// Clone returns a copy that shares no slices with c.
func (c Classification) Clone() Classification {
	c.FutureOpportunities = slices.Clone(c.FutureOpportunities)
	return c
}

// ClampConfidence bounds v to [0,1].
func ClampConfidence(v float64) float64 {
	return min(max(v, 0), 1)
}
