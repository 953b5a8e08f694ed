package suggestions_test

import (
	"errors"
	"testing"
	"time"

	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/internal/suggestions"
)

var appliedAt = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func TestApplyNewRule(t *testing.T) {
	latest := bootstrap()
	s := validSuggestion()

	next, err := suggestions.Apply(s, latest, "reviewer", appliedAt)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if next.Version != "1.1" {
		t.Errorf("version = %q, want 1.1", next.Version)
	}
	if next.CreatedBy != "reviewer" || !next.CreatedAt.Equal(appliedAt) {
		t.Errorf("provenance = %s at %s", next.CreatedBy, next.CreatedAt)
	}
	if next.SourceSuggestion != s.ID.String() {
		t.Errorf("source_suggestion = %q, want %s", next.SourceSuggestion, s.ID)
	}
	if len(next.Rules) != len(latest.Rules)+1 {
		t.Fatalf("rules = %d, want %d", len(next.Rules), len(latest.Rules)+1)
	}
	if next.Rules[len(next.Rules)-1].RuleID != "daily-rpa" {
		t.Errorf("appended rule = %q", next.Rules[len(next.Rules)-1].RuleID)
	}
	if latest.Version != policy.BootstrapVersion || len(latest.Rules) != 6 {
		t.Error("Apply modified the latest policy")
	}
}

func TestApplyModifyRule(t *testing.T) {
	latest := bootstrap()
	s := validSuggestion()
	s.Type = suggestions.TypeModifyRule
	s.SuggestedChange.Rule.RuleID = "high-pain-boost"

	next, err := suggestions.Apply(s, latest, "reviewer", appliedAt)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	r, ok := next.Rule("high-pain-boost")
	if !ok {
		t.Fatal("modified rule missing")
	}
	if r.Action.Type != policy.ActionOverride || r.Priority != 55 {
		t.Errorf("rule not replaced: %+v", r)
	}
	if len(next.Rules) != len(latest.Rules) {
		t.Errorf("rules = %d, want %d", len(next.Rules), len(latest.Rules))
	}

	old, _ := latest.Rule("high-pain-boost")
	if old.Action.Type != policy.ActionAdjustConfidence {
		t.Error("Apply modified the latest policy's rule")
	}
}

func TestApplyAdjustWeight(t *testing.T) {
	latest := bootstrap()
	s := validSuggestion()
	s.Type = suggestions.TypeAdjustWeight
	s.SuggestedChange = suggestions.Change{Attribute: policy.AttrRisk, NewWeight: ptr(0.25)}

	next, err := suggestions.Apply(s, latest, "reviewer", appliedAt)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if w := next.Weight(policy.AttrRisk); w != 0.25 {
		t.Errorf("weight = %v, want 0.25", w)
	}
	if w := latest.Weight(policy.AttrRisk); w == 0.25 {
		t.Error("Apply modified the latest policy's attribute")
	}
}

func TestApplyBumpsMinorFromPatch(t *testing.T) {
	latest := bootstrap()
	latest.Version = "1.4.2"

	next, err := suggestions.Apply(validSuggestion(), latest, "reviewer", appliedAt)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if next.Version != "1.5" {
		t.Errorf("version = %q, want 1.5", next.Version)
	}
}

func TestApplyFailures(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*suggestions.Suggestion)
		want      error
		rule      string
		attribute string
	}{
		{
			name: "modify missing rule",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeModifyRule
				s.SuggestedChange.Rule.RuleID = "retired"
			},
			want: suggestions.ErrRuleNotFound,
			rule: "retired",
		},
		{
			name: "adjust missing attribute",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeAdjustWeight
				s.SuggestedChange = suggestions.Change{Attribute: "headcount", NewWeight: ptr(0.5)}
			},
			want:      suggestions.ErrAttributeNotFound,
			attribute: "headcount",
		},
		{
			name: "new rule collides",
			mutate: func(s *suggestions.Suggestion) {
				s.SuggestedChange.Rule.RuleID = "high-risk-review"
			},
			want: suggestions.ErrRuleExists,
			rule: "high-risk-review",
		},
		{
			name: "result fails validation",
			mutate: func(s *suggestions.Suggestion) {
				s.SuggestedChange.Rule.Conditions = []policy.Condition{policy.Equals("headcount", policy.NumberValue(2))}
			},
			want: policy.ErrInvalidPolicy,
			rule: "daily-rpa",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSuggestion()
			tt.mutate(&s)

			_, err := suggestions.Apply(s, bootstrap(), "reviewer", appliedAt)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}

			var applyErr *suggestions.ApplyError
			if !errors.As(err, &applyErr) {
				t.Fatalf("err is %T, want *ApplyError", err)
			}
			if applyErr.SuggestionID != s.ID || applyErr.Version != policy.BootstrapVersion {
				t.Errorf("context = %+v", applyErr)
			}
			if applyErr.RuleID != tt.rule || applyErr.Attribute != tt.attribute {
				t.Errorf("rule/attribute = %q/%q, want %q/%q", applyErr.RuleID, applyErr.Attribute, tt.rule, tt.attribute)
			}
		})
	}
}
