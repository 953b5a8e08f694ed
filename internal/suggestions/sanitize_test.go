package suggestions_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/internal/suggestions"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func bootstrap() *policy.Policy {
	return policy.Bootstrap("test", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
}

func validRule() *policy.Rule {
	return &policy.Rule{
		RuleID:     "daily-rpa",
		Name:       "Daily structured work",
		Conditions: []policy.Condition{policy.Equals(policy.AttrFrequency, policy.StringValue("daily"))},
		Action:     policy.Override(policy.CategoryRPA, "daily work suits RPA"),
		Priority:   55,
		Active:     true,
	}
}

func validSuggestion() suggestions.Suggestion {
	return suggestions.Suggestion{
		ID:              uuid.New(),
		AnalysisID:      uuid.New(),
		Type:            suggestions.TypeNewRule,
		Status:          suggestions.StatusPending,
		Rationale:       "RPA is under-selected for daily work",
		SuggestedChange: suggestions.Change{Rule: validRule()},
	}
}

func ptr[T any](v T) *T { return &v }

func TestSanitizeValidUnchanged(t *testing.T) {
	p := bootstrap()

	weight := validSuggestion()
	weight.Type = suggestions.TypeAdjustWeight
	weight.SuggestedChange = suggestions.Change{Attribute: policy.AttrRisk, NewWeight: ptr(0.6)}

	modify := validSuggestion()
	modify.Type = suggestions.TypeModifyRule
	modify.SuggestedChange.Rule.RuleID = "high-pain-boost"

	for name, s := range map[string]suggestions.Suggestion{
		"new rule":      validSuggestion(),
		"adjust weight": weight,
		"modify rule":   modify,
	} {
		t.Run(name, func(t *testing.T) {
			got, notes, err := suggestions.Sanitize(s, p)
			if err != nil {
				t.Fatalf("Sanitize: %v", err)
			}
			if len(notes) != 0 {
				t.Errorf("notes = %v, want none", notes)
			}
			if !reflect.DeepEqual(got, s) {
				t.Errorf("Sanitize changed a valid suggestion:\n got %+v\nwant %+v", got, s)
			}
		})
	}
}

func TestSanitizeArrayTarget(t *testing.T) {
	data := `{
		"type": "new_rule",
		"status": "pending",
		"suggested_change": {
			"rule": {
				"rule_id": "daily-rpa",
				"name": "Daily",
				"conditions": [{"attribute": "frequency", "operator": "==", "value": "daily"}],
				"action": {"type": "override", "target_category": ["RPA", "Digitise"]},
				"priority": 50,
				"active": true
			}
		}
	}`

	var s suggestions.Suggestion
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	got, notes, err := suggestions.Sanitize(s, bootstrap())
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	if got.SuggestedChange.Rule.Action.TargetCategory != policy.CategoryRPA {
		t.Errorf("target = %q, want RPA", got.SuggestedChange.Rule.Action.TargetCategory)
	}
	if _, coerced := got.SuggestedChange.Rule.Action.Coerced(); coerced {
		t.Error("sanitized action still reports coercion")
	}
	if len(notes) != 1 {
		t.Errorf("notes = %v, want one coercion note", notes)
	}

	again, notes, err := suggestions.Sanitize(got, bootstrap())
	if err != nil || len(notes) != 0 || !reflect.DeepEqual(again, got) {
		t.Errorf("second pass not idempotent: notes=%v err=%v", notes, err)
	}
}

func TestSanitizeCorrections(t *testing.T) {
	p := bootstrap()

	tests := []struct {
		name   string
		mutate func(*suggestions.Suggestion)
		check  func(*testing.T, suggestions.Suggestion)
	}{
		{
			name: "invalid target downgraded",
			mutate: func(s *suggestions.Suggestion) {
				s.SuggestedChange.Rule.Action = policy.Override("Blockchain", "hype")
			},
			check: func(t *testing.T, s suggestions.Suggestion) {
				a := s.SuggestedChange.Rule.Action
				if a.Type != policy.ActionAdjustConfidence || a.ConfidenceAdjustment != suggestions.DowngradeAdjustment {
					t.Errorf("action = %+v, want adjust_confidence +0.1", a)
				}
				if !strings.Contains(a.Rationale, "hype") || !strings.Contains(a.Rationale, "Blockchain") {
					t.Errorf("rationale = %q", a.Rationale)
				}
			},
		},
		{
			name:   "priority above range",
			mutate: func(s *suggestions.Suggestion) { s.SuggestedChange.Rule.Priority = 150 },
			check: func(t *testing.T, s suggestions.Suggestion) {
				if s.SuggestedChange.Rule.Priority != 100 {
					t.Errorf("priority = %d, want 100", s.SuggestedChange.Rule.Priority)
				}
			},
		},
		{
			name:   "priority below range",
			mutate: func(s *suggestions.Suggestion) { s.SuggestedChange.Rule.Priority = -4 },
			check: func(t *testing.T, s suggestions.Suggestion) {
				if s.SuggestedChange.Rule.Priority != 0 {
					t.Errorf("priority = %d, want 0", s.SuggestedChange.Rule.Priority)
				}
			},
		},
		{
			name: "weight above range",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeAdjustWeight
				s.SuggestedChange = suggestions.Change{Attribute: policy.AttrRisk, NewWeight: ptr(1.5)}
			},
			check: func(t *testing.T, s suggestions.Suggestion) {
				if *s.SuggestedChange.NewWeight != 1 {
					t.Errorf("weight = %v, want 1", *s.SuggestedChange.NewWeight)
				}
			},
		},
		{
			name: "weight below range",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeAdjustWeight
				s.SuggestedChange = suggestions.Change{Attribute: policy.AttrRisk, NewWeight: ptr(-0.2)}
			},
			check: func(t *testing.T, s suggestions.Suggestion) {
				if *s.SuggestedChange.NewWeight != 0 {
					t.Errorf("weight = %v, want 0", *s.SuggestedChange.NewWeight)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSuggestion()
			tt.mutate(&s)

			got, notes, err := suggestions.Sanitize(s, p)
			if err != nil {
				t.Fatalf("Sanitize: %v", err)
			}
			if len(notes) == 0 {
				t.Error("correction produced no note")
			}
			tt.check(t, got)

			again, notes, err := suggestions.Sanitize(got, p)
			if err != nil || len(notes) != 0 || !reflect.DeepEqual(again, got) {
				t.Errorf("second pass not idempotent: notes=%v err=%v", notes, err)
			}
		})
	}
}

func TestSanitizeRejections(t *testing.T) {
	p := bootstrap()

	tests := []struct {
		name   string
		mutate func(*suggestions.Suggestion)
		want   error
	}{
		{
			name:   "new attribute",
			mutate: func(s *suggestions.Suggestion) { s.Type = suggestions.TypeNewAttribute },
			want:   suggestions.ErrNewAttribute,
		},
		{
			name:   "unknown type",
			mutate: func(s *suggestions.Suggestion) { s.Type = "delete_everything" },
			want:   suggestions.ErrUnknownType,
		},
		{
			name: "unknown attribute in condition",
			mutate: func(s *suggestions.Suggestion) {
				s.SuggestedChange.Rule.Conditions = []policy.Condition{policy.Equals("headcount", policy.NumberValue(3))}
			},
			want: suggestions.ErrInvalidReference,
		},
		{
			name: "categorical value outside possible values",
			mutate: func(s *suggestions.Suggestion) {
				s.SuggestedChange.Rule.Conditions = []policy.Condition{policy.Equals(policy.AttrFrequency, policy.StringValue("fortnightly"))}
			},
			want: suggestions.ErrInvalidReference,
		},
		{
			name:   "no conditions",
			mutate: func(s *suggestions.Suggestion) { s.SuggestedChange.Rule.Conditions = nil },
			want:   suggestions.ErrMalformed,
		},
		{
			name: "modify unknown rule",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeModifyRule
				s.SuggestedChange.Rule.RuleID = "no-such-rule"
			},
			want: suggestions.ErrInvalidReference,
		},
		{
			name:   "new rule id collides",
			mutate: func(s *suggestions.Suggestion) { s.SuggestedChange.Rule.RuleID = "high-risk-review" },
			want:   suggestions.ErrInvalidReference,
		},
		{
			name: "adjust unknown attribute",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeAdjustWeight
				s.SuggestedChange = suggestions.Change{Attribute: "headcount", NewWeight: ptr(0.5)}
			},
			want: suggestions.ErrInvalidReference,
		},
		{
			name: "adjust without weight",
			mutate: func(s *suggestions.Suggestion) {
				s.Type = suggestions.TypeAdjustWeight
				s.SuggestedChange = suggestions.Change{Attribute: policy.AttrRisk}
			},
			want: suggestions.ErrMalformed,
		},
		{
			name:   "rule change without rule",
			mutate: func(s *suggestions.Suggestion) { s.SuggestedChange.Rule = nil },
			want:   suggestions.ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSuggestion()
			tt.mutate(&s)

			if _, _, err := suggestions.Sanitize(s, p); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

const modelOutput = `{"suggestions": [
	{
		"type": "new_rule",
		"rationale": "Daily work is being under-automated",
		"impact_estimate": "high",
		"suggested_change": {
			"rule": {
				"rule_id": "daily-rpa",
				"name": "Daily RPA",
				"conditions": [{"attribute": "frequency", "operator": "==", "value": "daily"}],
				"action": {"type": "override", "target_category": ["RPA", "Digitise"]},
				"priority": "150"
			}
		}
	},
	{
		"type": "new_attribute",
		"rationale": "Track headcount",
		"suggested_change": {"attribute": "headcount"}
	},
	{
		"type": "adjust_weight",
		"rationale": "Risk is over-weighted",
		"impact_estimate": 12,
		"suggested_change": {"attribute": "risk", "new_weight": "1.7"}
	},
	{
		"type": "modify_rule",
		"rationale": "Stale rule",
		"suggested_change": {
			"rule_id": "retired-rule",
			"conditions": [{"attribute": "frequency", "operator": "==", "value": "daily"}],
			"action": {"type": "flag_review"}
		}
	},
	{
		"type": "new_rule",
		"rationale": "Bad set",
		"suggested_change": {
			"rule_id": "bad-set",
			"conditions": [{"attribute": "frequency", "operator": "in", "value": "daily"}],
			"action": {"type": "flag_review"}
		}
	},
	{
		"type": "modify_rule",
		"rationale": "Boost pain more",
		"suggested_change": {
			"rule_id": "high-pain-boost",
			"conditions": [{"attribute": "pain_points", "operator": "==", "value": "high"}],
			"action": {"type": "adjust_confidence", "confidence_adjustment": 0.1},
			"priority": 25
		}
	},
	"not an object"
]}`

func TestSynthesize(t *testing.T) {
	p := bootstrap()

	raw, err := suggestions.DecodeRaw([]byte(modelOutput), discard)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}
	if len(raw) != 6 {
		t.Fatalf("decoded %d candidates, want 6", len(raw))
	}

	analysis := feedback.Analysis{ID: uuid.New()}
	out := suggestions.Synthesize(analysis, p, raw, discard)

	if len(out) != 3 {
		t.Fatalf("accepted %d suggestions, want 3: %+v", len(out), out)
	}

	seen := make(map[uuid.UUID]bool)
	for _, s := range out {
		if s.Type == suggestions.TypeNewAttribute {
			t.Error("new_attribute suggestion accepted")
		}
		if s.Status != suggestions.StatusPending {
			t.Errorf("status = %q, want pending", s.Status)
		}
		if s.AnalysisID != analysis.ID {
			t.Error("analysis id not assigned")
		}
		if s.ID == uuid.Nil || seen[s.ID] {
			t.Error("suggestion id missing or reused")
		}
		seen[s.ID] = true
	}

	rule := out[0].SuggestedChange.Rule
	if rule.Action.TargetCategory != policy.CategoryRPA || rule.Priority != 100 || !rule.Active {
		t.Errorf("new rule = %+v", rule)
	}
	if !strings.Contains(out[0].Rationale, "Corrections:") {
		t.Errorf("rationale = %q, want recorded corrections", out[0].Rationale)
	}
	if !strings.Contains(out[0].Rationale, "priority 150 clamped to 100") {
		t.Errorf("rationale = %q, want priority correction", out[0].Rationale)
	}
	if out[0].ImpactEstimate != "high" {
		t.Errorf("impact = %q", out[0].ImpactEstimate)
	}

	if out[1].Type != suggestions.TypeAdjustWeight || *out[1].SuggestedChange.NewWeight != 1 {
		t.Errorf("weight suggestion = %+v", out[1].SuggestedChange)
	}
	if out[1].ImpactEstimate != "12" {
		t.Errorf("impact = %q, want 12", out[1].ImpactEstimate)
	}

	modified := out[2].SuggestedChange.Rule
	if out[2].Type != suggestions.TypeModifyRule || modified.RuleID != "high-pain-boost" || modified.Name == "" {
		t.Errorf("modify suggestion = %+v", modified)
	}
}

func TestSynthesizeRenamesCollidingRuleID(t *testing.T) {
	raw, err := suggestions.DecodeRaw([]byte(`[{
		"type": "new_rule",
		"suggested_change": {
			"rule_id": "high-risk-review",
			"name": "Another risk rule",
			"conditions": [{"attribute": "risk", "operator": "==", "value": "medium"}],
			"action": {"type": "flag_review"}
		}
	}]`), discard)
	if err != nil {
		t.Fatalf("DecodeRaw: %v", err)
	}

	out := suggestions.Synthesize(feedback.Analysis{ID: uuid.New()}, bootstrap(), raw, discard)
	if len(out) != 1 {
		t.Fatalf("accepted %d, want 1", len(out))
	}
	if id := out[0].SuggestedChange.Rule.RuleID; id == "high-risk-review" || !strings.HasPrefix(id, "learned-") {
		t.Errorf("rule id = %q, want a fresh learned- id", id)
	}
}

func TestDecodeRawRejectsGarbage(t *testing.T) {
	if _, err := suggestions.DecodeRaw([]byte("I could not think of anything"), discard); !errors.Is(err, suggestions.ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}
