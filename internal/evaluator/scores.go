package evaluator

import (
	"strings"

	"github.com/JaimeStill/lodestar/internal/policy"
)

// Deltas maps categories to a score contribution.
type Deltas map[policy.Category]float64

// AttributeScores holds the per-value deltas of one scoring attribute.
type AttributeScores struct {
	Attribute string
	Values    map[string]Deltas
}

// ScoreTable drives the weighted fallback. Attributes contribute in
// slice order; each delta is scaled by the attribute's policy weight.
type ScoreTable []AttributeScores

// DefaultScoreTable returns the hand-tuned fallback deltas.
func DefaultScoreTable() ScoreTable {
	return ScoreTable{
		{
			Attribute: policy.AttrBusinessValue,
			Values: map[string]Deltas{
				"high": {
					policy.CategoryDigitise:  0.1,
					policy.CategoryRPA:       0.3,
					policy.CategoryAIAgent:   0.2,
					policy.CategoryAgenticAI: 0.2,
				},
				"medium": {
					policy.CategoryDigitise: 0.1,
					policy.CategoryRPA:      0.1,
					policy.CategoryAIAgent:  0.1,
				},
				"low": {
					policy.CategoryEliminate: 0.3,
					policy.CategorySimplify:  0.2,
				},
			},
		},
		{
			Attribute: policy.AttrComplexity,
			Values: map[string]Deltas{
				"low": {
					policy.CategorySimplify: 0.1,
					policy.CategoryDigitise: 0.2,
					policy.CategoryRPA:      0.3,
				},
				"medium": {
					policy.CategoryDigitise: 0.1,
					policy.CategoryAIAgent:  0.2,
				},
				"high": {
					policy.CategorySimplify:  0.1,
					policy.CategoryAIAgent:   0.2,
					policy.CategoryAgenticAI: 0.3,
				},
			},
		},
		{
			Attribute: policy.AttrFrequency,
			Values: map[string]Deltas{
				"hourly": {
					policy.CategoryRPA:     0.3,
					policy.CategoryAIAgent: 0.1,
				},
				"daily": {
					policy.CategoryRPA:     0.3,
					policy.CategoryAIAgent: 0.1,
				},
				"weekly": {
					policy.CategoryDigitise: 0.1,
					policy.CategoryRPA:      0.1,
				},
				"monthly": {
					policy.CategoryEliminate: 0.2,
					policy.CategorySimplify:  0.2,
				},
				"rare": {
					policy.CategoryEliminate: 0.2,
					policy.CategorySimplify:  0.2,
				},
			},
		},
		{
			Attribute: policy.AttrRisk,
			Values: map[string]Deltas{
				"high": {
					policy.CategorySimplify:  0.1,
					policy.CategoryRPA:       -0.2,
					policy.CategoryAIAgent:   -0.3,
					policy.CategoryAgenticAI: -0.4,
				},
				"low": {
					policy.CategoryAIAgent:   0.1,
					policy.CategoryAgenticAI: 0.1,
				},
			},
		},
	}
}

// Score computes raw per-category scores for attrs under p's weights.
// Every category is present in the result.
func (t ScoreTable) Score(p *policy.Policy, attrs policy.AttributeMap) map[policy.Category]float64 {
	scores := make(map[policy.Category]float64, len(policy.Categories()))
	for _, c := range policy.Categories() {
		scores[c] = 0
	}

	for _, entry := range t {
		v, ok := attrs.Get(entry.Attribute)
		if !ok {
			continue
		}
		deltas, ok := entry.Values[strings.ToLower(strings.TrimSpace(v.String()))]
		if !ok {
			continue
		}

		weight := policy.DefaultWeight
		if p != nil {
			weight = p.Weight(entry.Attribute)
		}

		for _, c := range policy.Categories() {
			if d, ok := deltas[c]; ok {
				scores[c] += d * weight
			}
		}
	}

	return scores
}
