// Package feedback aggregates human feedback on past decisions into
// agreement statistics, confusion pairs, and advisory pattern text.
package feedback

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/policy"
)

// Record is a past decision together with any human feedback on it.
// Classification is the category served to the caller; the original
// classification is the model output before policy evaluation.
type Record struct {
	ID                     uuid.UUID             `json:"id"`
	Text                   string                `json:"text"`
	OriginalClassification policy.Classification `json:"original_classification"`
	Classification         policy.Classification `json:"classification"`
	Attributes             policy.AttributeMap   `json:"attributes"`
	PolicyVersion          string                `json:"policy_version"`
	HumanConfirmed         *bool                 `json:"human_confirmed,omitempty"`
	CorrectedCategory      *policy.Category      `json:"corrected_category,omitempty"`
	CreatedAt              time.Time             `json:"created_at"`
}

// HasFeedback reports whether a human confirmed or corrected the decision.
func (r Record) HasFeedback() bool {
	return r.HumanConfirmed != nil || r.CorrectedCategory != nil
}

// TrueCategory returns the human-established category: the correction
// when present, otherwise the served category when it was confirmed.
func (r Record) TrueCategory() (policy.Category, bool) {
	if r.CorrectedCategory != nil && r.CorrectedCategory.Valid() {
		return *r.CorrectedCategory, true
	}
	if r.HumanConfirmed != nil && *r.HumanConfirmed {
		return r.Classification.Category, true
	}
	return "", false
}

// Agreed reports whether the served category matches the true category.
// A rejection without a correction counts as disagreement.
func (r Record) Agreed() bool {
	c, ok := r.TrueCategory()
	return ok && c == r.Classification.Category
}
