package api

import (
	"context"
	"fmt"

	"github.com/JaimeStill/lodestar/internal/advisor"
	"github.com/JaimeStill/lodestar/internal/decisions"
	"github.com/JaimeStill/lodestar/internal/evaluator"
	"github.com/JaimeStill/lodestar/internal/learning"
	"github.com/JaimeStill/lodestar/internal/policies"
	"github.com/JaimeStill/lodestar/internal/prompts"
	"github.com/JaimeStill/lodestar/internal/sampling"
	"github.com/JaimeStill/lodestar/internal/suggestions"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Policies    policies.System
	Prompts     prompts.System
	Decisions   decisions.System
	Suggestions suggestions.System
	Learning    learning.System
	Advisor     *advisor.Advisor

	systemActor string
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	db := runtime.Database.Connection()
	eval := evaluator.New(evaluator.WithLogger(runtime.Logger))

	policiesSystem := policies.New(
		runtime.Documents,
		eval,
		runtime.Metrics,
		runtime.Logger,
	)

	promptsSystem := prompts.New(runtime.Documents, runtime.Logger)

	adv := advisor.New(
		&runtime.Advisor,
		promptsSystem,
		policiesSystem,
		runtime.Metrics,
		runtime.Logger,
	)

	decisionsSystem := decisions.New(
		db,
		adv,
		policiesSystem,
		runtime.Metrics,
		runtime.Logger,
		runtime.Pagination,
	)

	suggestionsSystem := suggestions.New(db, runtime.Logger, runtime.Pagination)

	sampler := sampling.New(
		eval,
		sampling.WithExtractor(adv),
		sampling.WithLogger(runtime.Logger),
	)

	learningSystem := learning.New(
		learning.Deps{
			Analyses:    learning.NewAnalysisStore(db, runtime.Logger, runtime.Pagination),
			Suggestions: suggestionsSystem,
			Policies:    policiesSystem,
			Feedback:    decisionsSystem,
			Suggester:   adv,
			Sampler:     sampler,
			Metrics:     runtime.Metrics,
		},
		&runtime.Learning,
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Policies:    policiesSystem,
		Prompts:     promptsSystem,
		Decisions:   decisionsSystem,
		Suggestions: suggestionsSystem,
		Learning:    learningSystem,
		Advisor:     adv,
		systemActor: runtime.Learning.SystemActor,
	}
}

// Bootstrap writes the initial policy when the store holds none.
func (d *Domain) Bootstrap(ctx context.Context) error {
	if _, err := d.Policies.Bootstrap(ctx, d.systemActor); err != nil {
		return fmt.Errorf("bootstrap policy: %w", err)
	}
	return nil
}
