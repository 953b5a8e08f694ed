package suggestions

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/JaimeStill/lodestar/internal/policy"
)

// RawSuggestion is a candidate change as returned by the model. Every
// field is untrusted; numbers may arrive as strings and the action's
// target category may arrive as an array.
type RawSuggestion struct {
	Type            string          `json:"type"`
	Rationale       string          `json:"rationale"`
	ImpactEstimate  json.RawMessage `json:"impact_estimate"`
	SuggestedChange RawChange       `json:"suggested_change"`
}

// RawChange is the untrusted body of a candidate change. Rule fields may
// be nested under "rule" or given at the top level.
type RawChange struct {
	Rule *RawRule `json:"rule"`
	RawRule

	Attribute string          `json:"attribute"`
	NewWeight json.RawMessage `json:"new_weight"`
}

// RawRule is an untrusted rule definition.
type RawRule struct {
	RuleID      string          `json:"rule_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Conditions  []RawCondition  `json:"conditions"`
	Action      json.RawMessage `json:"action"`
	Priority    json.RawMessage `json:"priority"`
	Active      *bool           `json:"active"`
}

// RawCondition is an untrusted condition; Value is whatever JSON arrived.
type RawCondition struct {
	Attribute string `json:"attribute"`
	Operator  string `json:"operator"`
	Value     any    `json:"value"`
}

// DecodeRaw decodes model output into raw suggestions. It accepts a bare
// array or an object with a "suggestions" array. Elements that do not
// decode are dropped with a warning; the call fails only when the
// envelope itself is unusable.
func DecodeRaw(data []byte, logger *slog.Logger) ([]RawSuggestion, error) {
	data = bytes.TrimSpace(data)

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		var envelope struct {
			Suggestions []json.RawMessage `json:"suggestions"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		items = envelope.Suggestions
	}

	out := make([]RawSuggestion, 0, len(items))
	for i, item := range items {
		var raw RawSuggestion
		if err := json.Unmarshal(item, &raw); err != nil {
			logger.Warn("dropping undecodable candidate", "index", i, "error", err)
			continue
		}
		out = append(out, raw)
	}
	return out, nil
}

// rule returns the rule definition, preferring the nested form.
func (c RawChange) rule() RawRule {
	if c.Rule != nil {
		return *c.Rule
	}
	return c.RawRule
}

// build converts a raw rule into a policy rule. Conditions that cannot be
// represented fail the whole rule.
func (r RawRule) build() (policy.Rule, error) {
	rule := policy.Rule{
		RuleID:      strings.TrimSpace(r.RuleID),
		Name:        strings.TrimSpace(r.Name),
		Description: r.Description,
		Active:      r.Active == nil || *r.Active,
	}

	if len(r.Conditions) == 0 {
		return rule, fmt.Errorf("%w: rule has no conditions", ErrMalformed)
	}
	for _, rc := range r.Conditions {
		c, err := policy.NewCondition(
			strings.TrimSpace(rc.Attribute),
			policy.Operator(strings.TrimSpace(rc.Operator)),
			rc.Value,
		)
		if err != nil {
			return rule, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rule.Conditions = append(rule.Conditions, c)
	}

	if len(bytes.TrimSpace(r.Action)) == 0 {
		return rule, fmt.Errorf("%w: rule has no action", ErrMalformed)
	}
	if err := json.Unmarshal(r.Action, &rule.Action); err != nil {
		return rule, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if len(r.Priority) > 0 {
		p, ok := number(r.Priority)
		if !ok {
			return rule, fmt.Errorf("%w: priority %s is not a number", ErrMalformed, r.Priority)
		}
		rule.Priority = rawPriority(p)
	} else {
		rule.Priority = DefaultPriority
	}

	return rule, nil
}

// rawPriority rounds p without applying the priority range, which
// Sanitize enforces and records.
func rawPriority(p float64) int {
	if math.IsNaN(p) {
		return DefaultPriority
	}
	return int(math.Round(min(max(p, math.MinInt32), math.MaxInt32)))
}

// number reads a JSON number or a numeric string.
func number(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// text renders a JSON value as plain text: strings unquoted, anything
// else verbatim.
func text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
