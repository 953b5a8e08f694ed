package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ReviewConfidence is the confidence a flag_review action forces.
const ReviewConfidence = 0.3

// ActionType is the kind of effect a rule has on a classification.
type ActionType string

const (
	ActionOverride         ActionType = "override"
	ActionAdjustConfidence ActionType = "adjust_confidence"
	ActionFlagReview       ActionType = "flag_review"
)

// Valid reports whether t is a known action type.
func (t ActionType) Valid() bool {
	switch t {
	case ActionOverride, ActionAdjustConfidence, ActionFlagReview:
		return true
	}
	return false
}

// RuleAction is the effect applied when all of a rule's conditions hold.
type RuleAction struct {
	Type                 ActionType `json:"type" validate:"required,oneof=override adjust_confidence flag_review"`
	TargetCategory       Category   `json:"target_category,omitempty"`
	ConfidenceAdjustment float64    `json:"confidence_adjustment,omitempty" validate:"gte=-1,lte=1"`
	Rationale            string     `json:"rationale,omitempty"`

	// candidates holds the raw values when target_category was decoded
	// from an array.
	candidates []string
}

// Override builds an override action.
func Override(target Category, rationale string) RuleAction {
	return RuleAction{Type: ActionOverride, TargetCategory: target, Rationale: rationale}
}

// AdjustConfidence builds an adjust_confidence action.
func AdjustConfidence(delta float64, rationale string) RuleAction {
	return RuleAction{Type: ActionAdjustConfidence, ConfidenceAdjustment: delta, Rationale: rationale}
}

// FlagReview builds a flag_review action.
func FlagReview(rationale string) RuleAction {
	return RuleAction{Type: ActionFlagReview, Rationale: rationale}
}

// Coerced reports whether the target was decoded from an array and
// returns the raw candidates.
func (a RuleAction) Coerced() ([]string, bool) {
	return slices.Clone(a.candidates), len(a.candidates) > 0
}

// Normalize returns the action with an array-decoded target resolved to
// its first element and a known target category canonicalized. The
// returned action no longer reports Coerced.
func (a RuleAction) Normalize() RuleAction {
	out := a
	out.candidates = nil
	if c, err := ParseCategory(string(out.TargetCategory)); err == nil {
		out.TargetCategory = c
	}
	return out
}

// Apply returns c with the action's effect. Override requires a valid
// target; callers normalize and check the target first.
func (a RuleAction) Apply(c Classification) Classification {
	switch a.Type {
	case ActionOverride:
		c.Category = a.TargetCategory
	case ActionAdjustConfidence:
		c.Confidence = ClampConfidence(c.Confidence + a.ConfidenceAdjustment)
	case ActionFlagReview:
		c.Confidence = ReviewConfidence
	}
	return c
}

type ruleActionJSON struct {
	Type                 ActionType      `json:"type"`
	TargetCategory       json.RawMessage `json:"target_category,omitempty"`
	ConfidenceAdjustment json.Number     `json:"confidence_adjustment,omitempty"`
	Rationale            string          `json:"rationale,omitempty"`
}

func (a *RuleAction) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw ruleActionJSON
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidAction, err)
	}

	out := RuleAction{
		Type:      ActionType(strings.TrimSpace(raw.Type.String())),
		Rationale: raw.Rationale,
	}

	if raw.ConfidenceAdjustment != "" {
		f, err := raw.ConfidenceAdjustment.Float64()
		if err != nil {
			return fmt.Errorf("%w: confidence_adjustment: %w", ErrInvalidAction, err)
		}
		out.ConfidenceAdjustment = f
	}

	target, candidates, err := decodeTarget(raw.TargetCategory)
	if err != nil {
		return err
	}
	out.TargetCategory = target
	out.candidates = candidates

	*a = out
	return nil
}

func (t ActionType) String() string { return string(t) }

// decodeTarget accepts a category string or an array of strings. The
// array form takes its first element.
func decodeTarget(raw json.RawMessage) (Category, []string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", nil, nil
	}

	if trimmed[0] == '[' {
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", nil, fmt.Errorf("%w: target_category: %w", ErrInvalidAction, err)
		}
		candidates := make([]string, 0, len(items))
		for _, item := range items {
			candidates = append(candidates, fmt.Sprint(item))
		}
		if len(candidates) == 0 {
			return "", []string{}, nil
		}
		return Category(strings.TrimSpace(candidates[0])), candidates, nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return "", nil, fmt.Errorf("%w: target_category: %w", ErrInvalidAction, err)
	}
	return Category(strings.TrimSpace(s)), nil, nil
}
