package feedback

import (
	"cmp"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/policy"
)

const (
	// MaxExamples caps the record ids kept per misclassification pair.
	MaxExamples = 5
	// LowConfidence is the confidence below which a disagreement is
	// reported as low confidence.
	LowConfidence = 0.7
)

// DateRange bounds the records an analysis covers. Zero bounds are open.
// From is inclusive, To is exclusive.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// Contains reports whether t falls inside the range.
func (d DateRange) Contains(t time.Time) bool {
	if !d.From.IsZero() && t.Before(d.From) {
		return false
	}
	if !d.To.IsZero() && !t.Before(d.To) {
		return false
	}
	return true
}

// Misclassification counts decisions served as From that humans placed in To.
type Misclassification struct {
	From     policy.Category `json:"from"`
	To       policy.Category `json:"to"`
	Count    int             `json:"count"`
	Examples []uuid.UUID     `json:"examples"`
}

// Analysis is the aggregate view of feedback over a date range.
type Analysis struct {
	ID                       uuid.UUID                   `json:"analysis_id"`
	TriggeredBy              string                      `json:"triggered_by"`
	DataRange                DateRange                   `json:"data_range"`
	TotalRecords             int                         `json:"total_records"`
	FeedbackCount            int                         `json:"feedback_count"`
	ConfirmedCount           int                         `json:"confirmed_count"`
	OverallAgreementRate     float64                     `json:"overall_agreement_rate"`
	CategoryAgreementRates   map[policy.Category]float64 `json:"category_agreement_rates"`
	CategoryObservations     map[policy.Category]int     `json:"category_observations"`
	CommonMisclassifications []Misclassification         `json:"common_misclassifications"`
	IdentifiedPatterns       []string                    `json:"identified_patterns"`
	CreatedAt                time.Time                   `json:"created_at"`
}

// BelowThreshold returns, in ordinal order, the categories with at least
// one observation whose agreement rate is below threshold.
func (a *Analysis) BelowThreshold(threshold float64) []policy.Category {
	out := make([]policy.Category, 0)
	for _, c := range policy.Categories() {
		if a.CategoryObservations[c] == 0 {
			continue
		}
		if a.CategoryAgreementRates[c] < threshold {
			out = append(out, c)
		}
	}
	return out
}

type pairKey struct {
	from, to policy.Category
}

// Analyze aggregates records inside window. Records without feedback
// are counted in TotalRecords but excluded from every rate. The caller
// assigns ID and CreatedAt.
func Analyze(records []Record, window DateRange, triggeredBy string) Analysis {
	a := Analysis{
		TriggeredBy:              triggeredBy,
		DataRange:                window,
		CategoryAgreementRates:   make(map[policy.Category]float64, len(policy.Categories())),
		CategoryObservations:     make(map[policy.Category]int, len(policy.Categories())),
		CommonMisclassifications: []Misclassification{},
		IdentifiedPatterns:       []string{},
	}

	confirmedBy := make(map[policy.Category]int)
	pairs := make(map[pairKey]*Misclassification)
	var order []pairKey
	over, under, lowConfidence := 0, 0, 0

	for _, r := range records {
		if !window.Contains(r.CreatedAt) {
			continue
		}
		a.TotalRecords++
		if !r.HasFeedback() {
			continue
		}

		served := r.Classification.Category
		a.FeedbackCount++
		a.CategoryObservations[served]++

		if r.Agreed() {
			a.ConfirmedCount++
			confirmedBy[served]++
			continue
		}

		if r.Classification.Confidence < LowConfidence {
			lowConfidence++
		}

		truth, ok := r.TrueCategory()
		if !ok {
			continue
		}

		key := pairKey{from: served, to: truth}
		m, seen := pairs[key]
		if !seen {
			m = &Misclassification{From: served, To: truth, Examples: []uuid.UUID{}}
			pairs[key] = m
			order = append(order, key)
		}
		m.Count++
		if len(m.Examples) < MaxExamples {
			m.Examples = append(m.Examples, r.ID)
		}

		switch from, to := served.Ordinal(), truth.Ordinal(); {
		case from < 0 || to < 0:
		case from > to:
			over++
		case from < to:
			under++
		}
	}

	if a.FeedbackCount > 0 {
		a.OverallAgreementRate = float64(a.ConfirmedCount) / float64(a.FeedbackCount)
	}

	for _, c := range policy.Categories() {
		a.CategoryAgreementRates[c] = 0
		if n := a.CategoryObservations[c]; n > 0 {
			a.CategoryAgreementRates[c] = float64(confirmedBy[c]) / float64(n)
		} else {
			a.CategoryObservations[c] = 0
		}
	}

	for _, key := range order {
		a.CommonMisclassifications = append(a.CommonMisclassifications, *pairs[key])
	}
	slices.SortStableFunc(a.CommonMisclassifications, func(x, y Misclassification) int {
		return cmp.Or(
			cmp.Compare(y.Count, x.Count),
			cmp.Compare(x.From.Ordinal(), y.From.Ordinal()),
			cmp.Compare(x.To.Ordinal(), y.To.Ordinal()),
		)
	})

	a.IdentifiedPatterns = patterns(a, over, under, lowConfidence)
	return a
}

func patterns(a Analysis, over, under, lowConfidence int) []string {
	out := []string{}

	if a.FeedbackCount == 0 {
		return append(out, "No human feedback recorded in this period.")
	}

	if len(a.CommonMisclassifications) > 0 {
		top := a.CommonMisclassifications[0]
		out = append(out, fmt.Sprintf(
			"Most common misclassification: %s classified where humans chose %s (%d cases).",
			top.From, top.To, top.Count,
		))
	}

	if over > 0 {
		out = append(out, fmt.Sprintf(
			"Over-classification: %d decisions were placed in a more automation-intensive category than humans chose.",
			over,
		))
	}
	if under > 0 {
		out = append(out, fmt.Sprintf(
			"Under-classification: %d decisions were placed in a less automation-intensive category than humans chose.",
			under,
		))
	}

	if lowConfidence > 0 {
		out = append(out, fmt.Sprintf(
			"%d disagreements had confidence below %.2f.",
			lowConfidence, LowConfidence,
		))
	}

	return out
}
