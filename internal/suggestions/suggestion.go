// Package suggestions turns untrusted candidate policy changes into
// sanitized suggestions, persists them through their review lifecycle,
// and merges approved suggestions into new policy versions.
package suggestions

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/internal/sampling"
)

// Type is the kind of policy change a suggestion proposes.
type Type string

const (
	TypeNewRule      Type = "new_rule"
	TypeModifyRule   Type = "modify_rule"
	TypeAdjustWeight Type = "adjust_weight"

	// TypeNewAttribute is recognized only so it can be rejected.
	TypeNewAttribute Type = "new_attribute"
)

// Valid reports whether t is a type that can be applied.
func (t Type) Valid() bool {
	switch t {
	case TypeNewRule, TypeModifyRule, TypeAdjustWeight:
		return true
	}
	return false
}

// Status is a suggestion's position in the review lifecycle:
// pending → approved → applied, or pending → rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusApplied  Status = "applied"
)

// Change is the concrete edit a suggestion proposes. Rule is set for
// new_rule and modify_rule; Attribute and NewWeight for adjust_weight.
type Change struct {
	Rule      *policy.Rule `json:"rule,omitempty"`
	Attribute string       `json:"attribute,omitempty"`
	NewWeight *float64     `json:"new_weight,omitempty"`
}

// Suggestion is a proposed policy change awaiting or past review.
type Suggestion struct {
	ID              uuid.UUID        `json:"suggestion_id"`
	AnalysisID      uuid.UUID        `json:"analysis_id"`
	Type            Type             `json:"type"`
	Status          Status           `json:"status"`
	Rationale       string           `json:"rationale"`
	ImpactEstimate  string           `json:"impact_estimate"`
	SuggestedChange Change           `json:"suggested_change"`
	Validation      *sampling.Result `json:"validation,omitempty"`
	ReviewedBy      *string          `json:"reviewed_by,omitempty"`
	ReviewNote      *string          `json:"review_note,omitempty"`
	AppliedVersion  *string          `json:"applied_version,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// ReviewCommand carries the reviewer for approve and reject transitions.
type ReviewCommand struct {
	Actor  string `json:"actor"`
	Reason string `json:"reason,omitempty"`
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusApplied, StatusRejected},
}

// CanTransition reports whether a suggestion in status s may move to to.
// Applied and rejected are terminal.
func (s Status) CanTransition(to Status) bool {
	return slices.Contains(transitions[s], to)
}
