package suggestions

import (
	"fmt"
	"slices"
	"time"

	"github.com/JaimeStill/lodestar/internal/policy"
)

// Apply merges s into a copy of latest and returns it as the next minor
// version. latest is not modified and the suggestion's status is not
// consulted. A modify_rule for a missing rule or an adjust_weight for a
// missing attribute fails with an *ApplyError.
func Apply(s Suggestion, latest *policy.Policy, actor string, now time.Time) (*policy.Policy, error) {
	fail := func(err error) error {
		e := &ApplyError{SuggestionID: s.ID, Version: latest.Version, Err: err}
		if s.SuggestedChange.Rule != nil {
			e.RuleID = s.SuggestedChange.Rule.RuleID
		}
		e.Attribute = s.SuggestedChange.Attribute
		return e
	}

	version, err := policy.NextMinor(latest.Version)
	if err != nil {
		return nil, fail(err)
	}

	next := latest.Clone()
	next.Version = version
	next.CreatedAt = now.UTC()
	next.CreatedBy = actor
	next.Description = fmt.Sprintf("%s suggestion %s applied to %s", s.Type, s.ID, latest.Version)
	next.SourceSuggestion = s.ID.String()

	switch s.Type {
	case TypeNewRule:
		if s.SuggestedChange.Rule == nil {
			return nil, fail(ErrMalformed)
		}
		if _, exists := next.Rule(s.SuggestedChange.Rule.RuleID); exists {
			return nil, fail(ErrRuleExists)
		}
		next.Rules = append(next.Rules, s.SuggestedChange.Rule.Clone())

	case TypeModifyRule:
		if s.SuggestedChange.Rule == nil {
			return nil, fail(ErrMalformed)
		}
		i := slices.IndexFunc(next.Rules, func(r policy.Rule) bool {
			return r.RuleID == s.SuggestedChange.Rule.RuleID
		})
		if i < 0 {
			return nil, fail(ErrRuleNotFound)
		}
		next.Rules[i] = s.SuggestedChange.Rule.Clone()

	case TypeAdjustWeight:
		if s.SuggestedChange.NewWeight == nil {
			return nil, fail(ErrMalformed)
		}
		i := slices.IndexFunc(next.Attributes, func(a policy.Attribute) bool {
			return a.Name == s.SuggestedChange.Attribute
		})
		if i < 0 {
			return nil, fail(ErrAttributeNotFound)
		}
		next.Attributes[i].Weight = *s.SuggestedChange.NewWeight

	default:
		return nil, fail(fmt.Errorf("%w: %q", ErrUnknownType, s.Type))
	}

	if err := next.Validate(); err != nil {
		return nil, fail(err)
	}
	return next, nil
}
