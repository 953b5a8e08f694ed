package suggestions

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policy"
)

const (
	// DefaultPriority is assigned to candidate rules that omit a priority.
	DefaultPriority = 50
	// DowngradeAdjustment replaces an override whose target is not a
	// valid category.
	DowngradeAdjustment = 0.1
)

// Synthesize converts raw model candidates into pending suggestions for
// analysis a against policy p. Candidates that cannot be made valid are
// filtered and logged; corrections are logged and recorded in the
// suggestion's rationale.
func Synthesize(a feedback.Analysis, p *policy.Policy, raw []RawSuggestion, logger *slog.Logger) []Suggestion {
	logger = logger.With("module", "suggestions", "analysis_id", a.ID)

	out := make([]Suggestion, 0, len(raw))
	for i, r := range raw {
		s, notes, err := r.suggestion(p)
		if err == nil {
			var sanitized []string
			s, sanitized, err = Sanitize(s, p)
			notes = append(notes, sanitized...)
		}
		if err != nil {
			logger.Warn("candidate filtered", "index", i, "type", r.Type, "error", err)
			continue
		}

		for _, n := range notes {
			logger.Warn("candidate corrected", "index", i, "type", s.Type, "note", n)
		}
		if len(notes) > 0 {
			s.Rationale = strings.TrimSpace(s.Rationale + "\n\nCorrections: " + strings.Join(notes, "; "))
		}

		s.ID = uuid.New()
		s.AnalysisID = a.ID
		s.Status = StatusPending
		out = append(out, s)
	}

	logger.Info("candidates synthesized", "received", len(raw), "accepted", len(out))
	return out
}

// suggestion decodes the untrusted candidate into a typed suggestion.
// Rule ids for new rules are made unique against p.
func (r RawSuggestion) suggestion(p *policy.Policy) (Suggestion, []string, error) {
	s := Suggestion{
		Type:           Type(strings.ToLower(strings.TrimSpace(r.Type))),
		Rationale:      strings.TrimSpace(r.Rationale),
		ImpactEstimate: text(r.ImpactEstimate),
	}
	var notes []string

	switch s.Type {
	case TypeNewAttribute:
		return s, nil, ErrNewAttribute

	case TypeNewRule, TypeModifyRule:
		rule, err := r.SuggestedChange.rule().build()
		if err != nil {
			return s, nil, err
		}

		if s.Type == TypeNewRule {
			if _, exists := p.Rule(rule.RuleID); exists || rule.RuleID == "" {
				id := "learned-" + uuid.NewString()[:8]
				notes = append(notes, fmt.Sprintf("rule id %q replaced with %q", rule.RuleID, id))
				rule.RuleID = id
			}
		}
		if s.Type == TypeModifyRule && rule.Name == "" {
			if existing, ok := p.Rule(rule.RuleID); ok {
				rule.Name = existing.Name
			}
		}
		s.SuggestedChange.Rule = &rule

	case TypeAdjustWeight:
		s.SuggestedChange.Attribute = strings.TrimSpace(r.SuggestedChange.Attribute)
		if w, ok := number(r.SuggestedChange.NewWeight); ok {
			s.SuggestedChange.NewWeight = &w
		}

	default:
		return s, nil, fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}

	return s, notes, nil
}

// Sanitize enforces the structural invariants on s against p. It returns
// the corrected suggestion with a note per correction, or an error when
// the suggestion must be filtered. Sanitizing a valid suggestion returns
// it unchanged with no notes.
func Sanitize(s Suggestion, p *policy.Policy) (Suggestion, []string, error) {
	out := s
	out.Type = Type(strings.ToLower(strings.TrimSpace(string(s.Type))))

	switch out.Type {
	case TypeNewAttribute:
		return s, nil, ErrNewAttribute

	case TypeNewRule, TypeModifyRule:
		if s.SuggestedChange.Rule == nil {
			return s, nil, fmt.Errorf("%w: %s without a rule", ErrMalformed, out.Type)
		}
		rule, notes, err := sanitizeRule(*s.SuggestedChange.Rule, p)
		if err != nil {
			return s, nil, err
		}

		_, exists := p.Rule(rule.RuleID)
		if out.Type == TypeNewRule && exists {
			return s, nil, fmt.Errorf("%w: rule %s already exists", ErrInvalidReference, rule.RuleID)
		}
		if out.Type == TypeModifyRule && !exists {
			return s, nil, fmt.Errorf("%w: rule %s does not exist", ErrInvalidReference, rule.RuleID)
		}

		out.SuggestedChange = Change{Rule: &rule}
		return out, notes, nil

	case TypeAdjustWeight:
		name := s.SuggestedChange.Attribute
		if _, ok := p.Attribute(name); !ok {
			return s, nil, fmt.Errorf("%w: attribute %q does not exist", ErrInvalidReference, name)
		}
		if s.SuggestedChange.NewWeight == nil || math.IsNaN(*s.SuggestedChange.NewWeight) {
			return s, nil, fmt.Errorf("%w: adjust_weight without new_weight", ErrMalformed)
		}

		var notes []string
		w := *s.SuggestedChange.NewWeight
		clamped := min(max(w, 0), 1)
		if clamped != w {
			notes = append(notes, fmt.Sprintf("new_weight %g clamped to %g", w, clamped))
		}

		out.SuggestedChange = Change{Attribute: name, NewWeight: &clamped}
		return out, notes, nil
	}

	return s, nil, fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
}

func sanitizeRule(r policy.Rule, p *policy.Policy) (policy.Rule, []string, error) {
	rule := r.Clone()
	var notes []string

	if rule.RuleID == "" {
		return rule, nil, fmt.Errorf("%w: rule without rule_id", ErrMalformed)
	}
	if rule.Name == "" {
		rule.Name = rule.RuleID
		notes = append(notes, "rule name defaulted to rule id")
	}

	if candidates, ok := rule.Action.Coerced(); ok {
		notes = append(notes, fmt.Sprintf("target_category %q coerced to %q", candidates, rule.Action.TargetCategory))
	}
	rule.Action = rule.Action.Normalize()

	if !rule.Action.Type.Valid() {
		return rule, nil, fmt.Errorf("%w: unknown action type %q", ErrMalformed, rule.Action.Type)
	}

	if rule.Action.Type == policy.ActionOverride && !rule.Action.TargetCategory.Valid() {
		reason := fmt.Sprintf("override downgraded to adjust_confidence %+.1f: %q is not a valid category",
			DowngradeAdjustment, rule.Action.TargetCategory)
		notes = append(notes, reason)
		rule.Action = policy.AdjustConfidence(DowngradeAdjustment, joinRationale(rule.Action.Rationale, reason))
	}

	if rule.Action.Type == policy.ActionAdjustConfidence {
		adj := rule.Action.ConfidenceAdjustment
		if clamped := min(max(adj, -1), 1); clamped != adj {
			notes = append(notes, fmt.Sprintf("confidence_adjustment %g clamped to %g", adj, clamped))
			rule.Action.ConfidenceAdjustment = clamped
		}
	}

	if clamped := clampPriority(rule.Priority); clamped != rule.Priority {
		notes = append(notes, fmt.Sprintf("priority %d clamped to %d", rule.Priority, clamped))
		rule.Priority = clamped
	}

	if len(rule.Conditions) == 0 {
		return rule, nil, fmt.Errorf("%w: rule %s has no conditions", ErrMalformed, rule.RuleID)
	}
	for _, c := range rule.Conditions {
		if err := p.ValidateCondition(c); err != nil {
			return rule, nil, fmt.Errorf("%w: rule %s: %w", ErrInvalidReference, rule.RuleID, err)
		}
	}

	return rule, notes, nil
}

func clampPriority(p int) int {
	return min(max(p, 0), 100)
}

func joinRationale(existing, note string) string {
	if existing == "" {
		return note
	}
	return existing + " (" + note + ")"
}
