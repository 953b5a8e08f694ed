// Package evaluator applies a decision policy to a classification.
// Evaluation is a pure function of its inputs: rules are matched in
// priority order, their actions are applied to a running classification,
// and a weighted attribute score may adjust the category when rules fired
// without overriding it.
package evaluator

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/JaimeStill/lodestar/internal/policy"
)

// ScoreMargin is the amount by which the top weighted score must exceed
// the current category's score before the fallback changes the category.
const ScoreMargin = 0.2

// scoreTolerance absorbs float rounding in weighted sums so a margin
// of exactly ScoreMargin never changes the category.
const scoreTolerance = 1e-9

// TriggeredRule records a rule that matched and the action applied.
type TriggeredRule struct {
	RuleID string            `json:"rule_id"`
	Name   string            `json:"name"`
	Action policy.RuleAction `json:"action"`
}

// Result is the full evaluation trace.
type Result struct {
	PolicyVersion          string                      `json:"policy_version"`
	OriginalClassification policy.Classification       `json:"original_classification"`
	ExtractedAttributes    policy.AttributeMap         `json:"extracted_attributes"`
	TriggeredRules         []TriggeredRule             `json:"triggered_rules"`
	FinalClassification    policy.Classification       `json:"final_classification"`
	Overridden             bool                        `json:"overridden"`
	WeightedScores         map[policy.Category]float64 `json:"weighted_scores,omitempty"`
}

// Evaluator evaluates classifications against policies. It holds no
// mutable state and is safe for concurrent use.
type Evaluator struct {
	scores ScoreTable
	logger *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithScoreTable replaces the weighted fallback table.
func WithScoreTable(t ScoreTable) Option {
	return func(e *Evaluator) { e.scores = t }
}

// WithLogger sets the logger used for data-shape warnings.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l.With("module", "evaluator") }
}

// New creates an Evaluator using DefaultScoreTable unless overridden.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		scores: DefaultScoreTable(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate applies p to c given the extracted attrs.
func (e *Evaluator) Evaluate(p *policy.Policy, c policy.Classification, attrs policy.AttributeMap) Result {
	result := Result{
		PolicyVersion:          p.Version,
		OriginalClassification: c.Clone(),
		ExtractedAttributes:    attrs.Clone(),
		TriggeredRules:         []TriggeredRule{},
	}
	if result.ExtractedAttributes == nil {
		result.ExtractedAttributes = policy.AttributeMap{}
	}

	current := c.Clone()

	for _, rule := range activeRules(p) {
		if !rule.Matches(attrs) {
			continue
		}

		action, ok := e.sanitize(p.Version, rule)
		if !ok {
			continue
		}

		result.TriggeredRules = append(result.TriggeredRules, TriggeredRule{
			RuleID: rule.RuleID,
			Name:   rule.Name,
			Action: action,
		})
		current = action.Apply(current)

		if action.Type == policy.ActionOverride {
			result.Overridden = true
			break
		}
	}

	if len(result.TriggeredRules) > 0 && !result.Overridden {
		scores := e.scores.Score(p, attrs)
		normalize(scores)
		result.WeightedScores = scores

		top := topCategory(scores)
		if top != current.Category && scores[top]-scores[current.Category] > ScoreMargin+scoreTolerance {
			current.Rationale = appendRationale(current.Rationale, fmt.Sprintf(
				"Weighted attribute scoring favours %s (%.2f) over %s (%.2f).",
				top, scores[top], current.Category, scores[current.Category],
			))
			current.Category = top
			result.Overridden = true
		}
	}

	result.FinalClassification = current
	return result
}

// sanitize normalizes a matched rule's action. Array-valued targets are
// coerced to their first element; an unusable action skips the rule.
func (e *Evaluator) sanitize(version string, rule policy.Rule) (policy.RuleAction, bool) {
	if candidates, coerced := rule.Action.Coerced(); coerced {
		e.logger.Warn("rule target category was an array; using first element",
			"policy_version", version,
			"rule_id", rule.RuleID,
			"candidates", candidates,
		)
	}

	action := rule.Action.Normalize()

	if !action.Type.Valid() {
		e.logger.Warn("rule has unknown action type; skipping",
			"policy_version", version,
			"rule_id", rule.RuleID,
			"type", action.Type,
		)
		return action, false
	}

	if action.Type == policy.ActionOverride && !action.TargetCategory.Valid() {
		e.logger.Warn("override rule has invalid target category; skipping",
			"policy_version", version,
			"rule_id", rule.RuleID,
			"target_category", action.TargetCategory,
		)
		return action, false
	}

	return action, true
}

// activeRules returns active rules ordered by descending priority.
// Equal priorities keep declaration order.
func activeRules(p *policy.Policy) []policy.Rule {
	rules := make([]policy.Rule, 0, len(p.Rules))
	for _, r := range p.Rules {
		if r.Active {
			rules = append(rules, r)
		}
	}
	slices.SortStableFunc(rules, func(a, b policy.Rule) int {
		return b.Priority - a.Priority
	})
	return rules
}

// normalize scales scores so the maximum is 1. Non-positive maxima are
// left unscaled.
func normalize(scores map[policy.Category]float64) {
	maxScore := 0.0
	first := true
	for _, c := range policy.Categories() {
		if first || scores[c] > maxScore {
			maxScore = scores[c]
			first = false
		}
	}
	if maxScore <= 0 {
		return
	}
	for _, c := range policy.Categories() {
		scores[c] /= maxScore
	}
}

// topCategory returns the highest scoring category; ties resolve to the
// lower ordinal.
func topCategory(scores map[policy.Category]float64) policy.Category {
	cats := policy.Categories()
	top := cats[0]
	for _, c := range cats[1:] {
		if scores[c] > scores[top] {
			top = c
		}
	}
	return top
}

func appendRationale(existing, addition string) string {
	if existing == "" {
		return addition
	}
	return existing + " " + addition
}
