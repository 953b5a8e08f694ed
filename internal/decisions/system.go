package decisions

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/evaluator"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policies"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/pkg/pagination"
)

// System defines the public contract for decision operations.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Decision], error)

	Find(ctx context.Context, id uuid.UUID) (*Decision, error)
	Classify(ctx context.Context, cmd ClassifyCommand) (*Decision, error)
	Confirm(ctx context.Context, id uuid.UUID, cmd ConfirmCommand) (*Decision, error)
	Correct(ctx context.Context, id uuid.UUID, cmd CorrectCommand) (*Decision, error)

	// Feedback returns the decisions created within window, oldest first.
	Feedback(ctx context.Context, window feedback.DateRange) ([]feedback.Record, error)
}

// Advisor produces model classifications and attribute maps.
type Advisor interface {
	Classify(ctx context.Context, text string) (policy.Classification, error)
	ExtractWithFallback(ctx context.Context, text string) (policy.AttributeMap, string)
}

// Evaluator applies the decision policy to a classification.
type Evaluator interface {
	Evaluate(ctx context.Context, cmd policies.EvaluateCommand) (*evaluator.Result, error)
}
