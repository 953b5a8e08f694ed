package decisions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/advisor"
	"github.com/JaimeStill/lodestar/internal/evaluator"
	"github.com/JaimeStill/lodestar/internal/extraction"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/metrics"
	"github.com/JaimeStill/lodestar/internal/policies"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/pkg/pagination"
	"github.com/JaimeStill/lodestar/pkg/query"
	"github.com/JaimeStill/lodestar/pkg/repository"
)

type repo struct {
	db         *sql.DB
	advisor    Advisor
	evaluator  Evaluator
	metrics    *metrics.Metrics
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a decision repository implementing System. A nil advisor
// limits Classify to caller-supplied classifications and heuristic
// attribute extraction.
func New(
	db *sql.DB,
	adv Advisor,
	eval Evaluator,
	m *metrics.Metrics,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		advisor:    adv,
		evaluator:  eval,
		metrics:    m,
		logger:     logger.With("system", "decisions"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Decision], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Text", "Category")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count decisions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Decision, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	d, err := repository.QueryOne(ctx, r.db, q, args, scanDecision)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &d, nil
}

func (r *repo) Classify(ctx context.Context, cmd ClassifyCommand) (*Decision, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	original, err := r.classify(ctx, cmd)
	if err != nil {
		return nil, err
	}

	attrs, source := r.attributes(ctx, cmd)

	result, err := r.evaluator.Evaluate(ctx, policies.EvaluateCommand{
		Classification: original,
		Attributes:     attrs,
	})
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	rules := result.TriggeredRules
	if rules == nil {
		rules = []evaluator.TriggeredRule{}
	}

	encoded, err := marshalAll(result.OriginalClassification, result.FinalClassification, result.ExtractedAttributes, rules)
	if err != nil {
		return nil, err
	}

	insertQ := `
		INSERT INTO decisions(
			id, text, category, confidence, original_classification,
			classification, attributes, attribute_source, policy_version,
			triggered_rules, overridden
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)` + returning

	args := []any{
		uuid.New(),
		cmd.Text,
		result.FinalClassification.Category,
		result.FinalClassification.Confidence,
		encoded[0],
		encoded[1],
		encoded[2],
		source,
		result.PolicyVersion,
		encoded[3],
		result.Overridden,
	}

	d, err := repository.QueryOne(ctx, r.db, insertQ, args, scanDecision)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("decision recorded",
		"id", d.ID,
		"category", d.Category,
		"policy_version", d.PolicyVersion,
		"overridden", d.Overridden,
		"attribute_source", source,
	)
	return &d, nil
}

func (r *repo) Confirm(ctx context.Context, id uuid.UUID, cmd ConfirmCommand) (*Decision, error) {
	if strings.TrimSpace(cmd.ReviewedBy) == "" {
		return nil, ErrReviewerRequired
	}

	updateQ := `
		UPDATE decisions
		SET human_confirmed = true,
			corrected_category = NULL,
			reviewed_by = $1,
			feedback_note = NULLIF($2, ''),
			reviewed_at = NOW()
		WHERE id = $3` + returning

	d, err := repository.QueryOne(ctx, r.db, updateQ, []any{cmd.ReviewedBy, cmd.Note, id}, scanDecision)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.metrics.ObserveFeedback("confirmed")
	r.logger.Info("decision confirmed", "id", id, "reviewed_by", cmd.ReviewedBy)
	return &d, nil
}

func (r *repo) Correct(ctx context.Context, id uuid.UUID, cmd CorrectCommand) (*Decision, error) {
	if strings.TrimSpace(cmd.ReviewedBy) == "" {
		return nil, ErrReviewerRequired
	}
	if !cmd.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", policy.ErrInvalidCategory, cmd.Category)
	}

	updateQ := `
		UPDATE decisions
		SET human_confirmed = false,
			corrected_category = $1,
			reviewed_by = $2,
			feedback_note = NULLIF($3, ''),
			reviewed_at = NOW()
		WHERE id = $4` + returning

	d, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Decision, error) {
		var served policy.Category
		err := tx.QueryRowContext(ctx,
			"SELECT category FROM decisions WHERE id = $1 FOR UPDATE",
			id,
		).Scan(&served)
		if err != nil {
			return Decision{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		if served == cmd.Category {
			return Decision{}, fmt.Errorf("%w: %s", ErrSameCategory, served)
		}

		args := []any{cmd.Category, cmd.ReviewedBy, cmd.Note, id}
		return repository.QueryOne(ctx, tx, updateQ, args, scanDecision)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.metrics.ObserveFeedback("corrected")
	r.logger.Info("decision corrected",
		"id", id,
		"served", d.Category,
		"corrected", cmd.Category,
		"reviewed_by", cmd.ReviewedBy,
	)
	return &d, nil
}

func (r *repo) Feedback(ctx context.Context, window feedback.DateRange) ([]feedback.Record, error) {
	qb := query.NewBuilder(projection, query.SortField{Field: "CreatedAt"})

	if !window.From.IsZero() {
		qb.WhereAtLeast("CreatedAt", window.From)
	}
	if !window.To.IsZero() {
		qb.WhereBefore("CreatedAt", window.To)
	}

	q, args := qb.Build()
	items, err := repository.QueryMany(ctx, r.db, q, args, scanDecision)
	if err != nil {
		return nil, fmt.Errorf("query feedback records: %w", err)
	}

	records := make([]feedback.Record, len(items))
	for i, d := range items {
		records[i] = d.Record()
	}
	return records, nil
}

func (r *repo) classify(ctx context.Context, cmd ClassifyCommand) (policy.Classification, error) {
	if cmd.Classification != nil {
		return cmd.Classification.Clone(), nil
	}
	if r.advisor == nil {
		return policy.Classification{}, fmt.Errorf("%w: no advisor configured", ErrClassificationFailed)
	}

	c, err := r.advisor.Classify(ctx, cmd.Text)
	if err != nil {
		return policy.Classification{}, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}
	return c, nil
}

func (r *repo) attributes(ctx context.Context, cmd ClassifyCommand) (policy.AttributeMap, string) {
	if len(cmd.Attributes) > 0 {
		return cmd.Attributes, SourceProvided
	}
	if r.advisor == nil {
		return extraction.Extract(cmd.Text), advisor.SourceHeuristic
	}
	return r.advisor.ExtractWithFallback(ctx, cmd.Text)
}

func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal decision column: %w", err)
		}
		out[i] = raw
	}
	return out, nil
}
