// Package decisions classifies process descriptions, applies the latest
// decision policy, and records human feedback on the outcome.
package decisions

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/evaluator"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policy"
)

// SourceProvided marks attributes supplied by the caller.
const SourceProvided = "provided"

// Decision is a served classification with its evaluation trace and
// any human feedback. Category and Confidence mirror Classification.
type Decision struct {
	ID                     uuid.UUID                 `json:"id"`
	Text                   string                    `json:"text"`
	Category               policy.Category           `json:"category"`
	Confidence             float64                   `json:"confidence"`
	OriginalClassification policy.Classification     `json:"original_classification"`
	Classification         policy.Classification     `json:"classification"`
	Attributes             policy.AttributeMap       `json:"attributes"`
	AttributeSource        string                    `json:"attribute_source"`
	PolicyVersion          string                    `json:"policy_version"`
	TriggeredRules         []evaluator.TriggeredRule `json:"triggered_rules"`
	Overridden             bool                      `json:"overridden"`
	HumanConfirmed         *bool                     `json:"human_confirmed,omitempty"`
	CorrectedCategory      *policy.Category          `json:"corrected_category,omitempty"`
	ReviewedBy             *string                   `json:"reviewed_by,omitempty"`
	FeedbackNote           *string                   `json:"feedback_note,omitempty"`
	ReviewedAt             *time.Time                `json:"reviewed_at,omitempty"`
	CreatedAt              time.Time                 `json:"created_at"`
}

// Record projects the decision into the shape consumed by feedback
// analysis and counterfactual validation.
func (d Decision) Record() feedback.Record {
	return feedback.Record{
		ID:                     d.ID,
		Text:                   d.Text,
		OriginalClassification: d.OriginalClassification,
		Classification:         d.Classification,
		Attributes:             d.Attributes,
		PolicyVersion:          d.PolicyVersion,
		HumanConfirmed:         d.HumanConfirmed,
		CorrectedCategory:      d.CorrectedCategory,
		CreatedAt:              d.CreatedAt,
	}
}

// ClassifyCommand requests a decision for a process description.
// A supplied Classification or Attributes skips the model for that step.
type ClassifyCommand struct {
	Text           string                 `json:"text"`
	Classification *policy.Classification `json:"classification,omitempty"`
	Attributes     policy.AttributeMap    `json:"attributes,omitempty"`
}

func (c ClassifyCommand) validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// ConfirmCommand records that a reviewer agrees with the served category.
type ConfirmCommand struct {
	ReviewedBy string `json:"reviewed_by"`
	Note       string `json:"note,omitempty"`
}

// CorrectCommand records the category a reviewer says is right.
type CorrectCommand struct {
	Category   policy.Category `json:"category"`
	ReviewedBy string          `json:"reviewed_by"`
	Note       string          `json:"note,omitempty"`
}
