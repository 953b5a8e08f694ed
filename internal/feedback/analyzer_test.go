package feedback_test

import (
	"math"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policy"
)

func ptr[T any](v T) *T { return &v }

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func record(served policy.Category, conf float64, confirmed *bool, corrected *policy.Category) feedback.Record {
	return feedback.Record{
		ID:                uuid.New(),
		Classification:    policy.Classification{Category: served, Confidence: conf},
		HumanConfirmed:    confirmed,
		CorrectedCategory: corrected,
		CreatedAt:         base,
	}
}

func TestRecordTrueCategory(t *testing.T) {
	tests := []struct {
		name     string
		r        feedback.Record
		want     policy.Category
		wantOK   bool
		agreed   bool
		feedback bool
	}{
		{"confirmed", record(policy.CategoryRPA, 0.9, ptr(true), nil), policy.CategoryRPA, true, true, true},
		{"corrected", record(policy.CategoryRPA, 0.9, ptr(false), ptr(policy.CategoryAIAgent)), policy.CategoryAIAgent, true, false, true},
		{"correction without flag", record(policy.CategoryRPA, 0.9, nil, ptr(policy.CategoryDigitise)), policy.CategoryDigitise, true, false, true},
		{"rejected without correction", record(policy.CategoryRPA, 0.9, ptr(false), nil), "", false, false, true},
		{"no feedback", record(policy.CategoryRPA, 0.9, nil, nil), "", false, false, false},
		{"correction equals served", record(policy.CategoryRPA, 0.9, ptr(false), ptr(policy.CategoryRPA)), policy.CategoryRPA, true, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.r.TrueCategory()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("TrueCategory = %q, %v; want %q, %v", got, ok, tt.want, tt.wantOK)
			}
			if tt.r.Agreed() != tt.agreed {
				t.Errorf("Agreed = %v, want %v", tt.r.Agreed(), tt.agreed)
			}
			if tt.r.HasFeedback() != tt.feedback {
				t.Errorf("HasFeedback = %v, want %v", tt.r.HasFeedback(), tt.feedback)
			}
		})
	}
}

func TestAnalyzeRates(t *testing.T) {
	records := []feedback.Record{
		record(policy.CategoryRPA, 0.9, ptr(true), nil),
		record(policy.CategoryRPA, 0.9, ptr(true), nil),
		record(policy.CategoryRPA, 0.6, ptr(false), ptr(policy.CategoryAIAgent)),
		record(policy.CategoryRPA, 0.9, ptr(false), ptr(policy.CategoryAIAgent)),
		record(policy.CategoryDigitise, 0.8, ptr(true), nil),
		record(policy.CategoryAgenticAI, 0.5, ptr(false), ptr(policy.CategorySimplify)),
		record(policy.CategorySimplify, 0.9, nil, nil),
		record(policy.CategorySimplify, 0.9, nil, nil),
	}

	a := feedback.Analyze(records, feedback.DateRange{}, "test")

	if a.TotalRecords != 8 || a.FeedbackCount != 6 || a.ConfirmedCount != 3 {
		t.Fatalf("counts = %d/%d/%d, want 8/6/3", a.TotalRecords, a.FeedbackCount, a.ConfirmedCount)
	}
	if math.Abs(a.OverallAgreementRate-0.5) > 1e-9 {
		t.Errorf("overall = %v, want 0.5", a.OverallAgreementRate)
	}

	rates := map[policy.Category]float64{
		policy.CategoryRPA:       0.5,
		policy.CategoryDigitise:  1,
		policy.CategoryAgenticAI: 0,
		policy.CategorySimplify:  0,
		policy.CategoryEliminate: 0,
	}
	for c, want := range rates {
		if got := a.CategoryAgreementRates[c]; math.Abs(got-want) > 1e-9 {
			t.Errorf("rate[%s] = %v, want %v", c, got, want)
		}
	}

	if a.CategoryObservations[policy.CategorySimplify] != 0 {
		t.Errorf("Simplify observations = %d, want 0 (no feedback)", a.CategoryObservations[policy.CategorySimplify])
	}

	below := a.BelowThreshold(0.8)
	want := []policy.Category{policy.CategoryRPA, policy.CategoryAgenticAI}
	if !slices.Equal(below, want) {
		t.Errorf("BelowThreshold = %v, want %v", below, want)
	}
}

func TestAnalyzeMisclassifications(t *testing.T) {
	var records []feedback.Record
	for range 7 {
		records = append(records, record(policy.CategoryRPA, 0.9, ptr(false), ptr(policy.CategoryAIAgent)))
	}
	records = append(records,
		record(policy.CategoryAgenticAI, 0.9, ptr(false), ptr(policy.CategoryDigitise)),
		record(policy.CategoryAgenticAI, 0.9, ptr(false), ptr(policy.CategoryDigitise)),
		record(policy.CategoryEliminate, 0.9, ptr(false), ptr(policy.CategorySimplify)),
		record(policy.CategoryEliminate, 0.9, ptr(false), ptr(policy.CategorySimplify)),
	)

	a := feedback.Analyze(records, feedback.DateRange{}, "test")

	if len(a.CommonMisclassifications) != 3 {
		t.Fatalf("pairs = %d, want 3", len(a.CommonMisclassifications))
	}

	top := a.CommonMisclassifications[0]
	if top.From != policy.CategoryRPA || top.To != policy.CategoryAIAgent || top.Count != 7 {
		t.Errorf("top = %+v", top)
	}
	if len(top.Examples) != feedback.MaxExamples {
		t.Errorf("examples = %d, want %d", len(top.Examples), feedback.MaxExamples)
	}

	if a.CommonMisclassifications[1].From != policy.CategoryEliminate {
		t.Errorf("tie not broken by from ordinal: %+v", a.CommonMisclassifications[1])
	}

	joined := strings.Join(a.IdentifiedPatterns, "\n")
	for _, want := range []string{
		"RPA classified where humans chose AI Agent (7 cases)",
		"Over-classification: 2",
		"Under-classification: 9",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("patterns missing %q:\n%s", want, joined)
		}
	}
}

func TestAnalyzeLowConfidencePattern(t *testing.T) {
	records := []feedback.Record{
		record(policy.CategoryRPA, 0.4, ptr(false), nil),
		record(policy.CategoryRPA, 0.65, ptr(false), ptr(policy.CategoryDigitise)),
		record(policy.CategoryRPA, 0.95, ptr(false), ptr(policy.CategoryDigitise)),
	}

	a := feedback.Analyze(records, feedback.DateRange{}, "test")

	joined := strings.Join(a.IdentifiedPatterns, "\n")
	if !strings.Contains(joined, "2 disagreements had confidence below 0.70") {
		t.Errorf("patterns = %s", joined)
	}
	if a.CommonMisclassifications[0].Count != 2 {
		t.Errorf("rejection without correction should not form a pair: %+v", a.CommonMisclassifications)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := feedback.Analyze(nil, feedback.DateRange{}, "test")

	if a.OverallAgreementRate != 0 {
		t.Errorf("overall = %v, want 0", a.OverallAgreementRate)
	}
	if len(a.BelowThreshold(0.99)) != 0 {
		t.Error("empty analysis reported categories below threshold")
	}
	if len(a.IdentifiedPatterns) != 1 {
		t.Errorf("patterns = %v", a.IdentifiedPatterns)
	}
}

func TestAnalyzeDateRange(t *testing.T) {
	early := record(policy.CategoryRPA, 0.9, ptr(true), nil)
	early.CreatedAt = base.Add(-48 * time.Hour)
	inside := record(policy.CategoryRPA, 0.9, ptr(false), ptr(policy.CategoryDigitise))
	atEnd := record(policy.CategoryRPA, 0.9, ptr(true), nil)
	atEnd.CreatedAt = base.Add(24 * time.Hour)

	window := feedback.DateRange{From: base.Add(-time.Hour), To: base.Add(24 * time.Hour)}
	a := feedback.Analyze([]feedback.Record{early, inside, atEnd}, window, "test")

	if a.TotalRecords != 1 {
		t.Fatalf("total = %d, want 1", a.TotalRecords)
	}
	if a.OverallAgreementRate != 0 {
		t.Errorf("overall = %v, want 0", a.OverallAgreementRate)
	}
}
