package suggestions

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/sampling"
	"github.com/JaimeStill/lodestar/pkg/pagination"
	"github.com/JaimeStill/lodestar/pkg/query"
	"github.com/JaimeStill/lodestar/pkg/repository"
)

// System defines the persistence contract for suggestions.
type System interface {
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Suggestion], error)

	Find(ctx context.Context, id uuid.UUID) (*Suggestion, error)
	Create(ctx context.Context, items []Suggestion) ([]Suggestion, error)
	SetValidation(ctx context.Context, id uuid.UUID, result sampling.Result) (*Suggestion, error)

	// Transition moves a suggestion to status to, failing with
	// ErrInvalidStatus when its current status does not allow it.
	// appliedVersion is recorded when non-empty.
	Transition(
		ctx context.Context,
		id uuid.UUID,
		to Status,
		cmd ReviewCommand,
		appliedVersion string,
	) (*Suggestion, error)
}

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a suggestion repository implementing System.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "suggestions"),
		pagination: pagination,
	}
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Suggestion], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Rationale", "ImpactEstimate")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count suggestions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanSuggestion)
	if err != nil {
		return nil, fmt.Errorf("query suggestions: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Suggestion, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, r.db, q, args, scanSuggestion)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (r *repo) Create(ctx context.Context, items []Suggestion) ([]Suggestion, error) {
	insertQ := `
		INSERT INTO suggestions(
			id, analysis_id, type, status, rationale, impact_estimate, suggested_change
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)` + returning

	created, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Suggestion, error) {
		out := make([]Suggestion, 0, len(items))
		for _, s := range items {
			change, err := json.Marshal(s.SuggestedChange)
			if err != nil {
				return nil, fmt.Errorf("marshal suggested_change: %w", err)
			}

			args := []any{s.ID, s.AnalysisID, s.Type, s.Status, s.Rationale, s.ImpactEstimate, change}
			sg, err := repository.QueryOne(ctx, tx, insertQ, args, scanSuggestion)
			if err != nil {
				return nil, fmt.Errorf("insert suggestion %s: %w", s.ID, err)
			}
			out = append(out, sg)
		}
		return out, nil
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("suggestions created", "count", len(created))
	return created, nil
}

func (r *repo) SetValidation(ctx context.Context, id uuid.UUID, result sampling.Result) (*Suggestion, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal validation: %w", err)
	}

	updateQ := `
		UPDATE suggestions
		SET validation = $1, updated_at = NOW()
		WHERE id = $2` + returning

	s, err := repository.QueryOne(ctx, r.db, updateQ, []any{raw, id}, scanSuggestion)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("suggestion validated",
		"id", id,
		"improvement_rate_percent", result.ImprovementRatePercent,
	)
	return &s, nil
}

func (r *repo) Transition(
	ctx context.Context,
	id uuid.UUID,
	to Status,
	cmd ReviewCommand,
	appliedVersion string,
) (*Suggestion, error) {
	updateQ := `
		UPDATE suggestions
		SET status = $1,
			reviewed_by = COALESCE(NULLIF($2, ''), reviewed_by),
			review_note = COALESCE(NULLIF($3, ''), review_note),
			applied_version = COALESCE(NULLIF($4, ''), applied_version),
			updated_at = NOW()
		WHERE id = $5` + returning

	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Suggestion, error) {
		var from Status
		err := tx.QueryRowContext(ctx,
			"SELECT status FROM suggestions WHERE id = $1 FOR UPDATE",
			id,
		).Scan(&from)
		if err != nil {
			return Suggestion{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
		}

		if !from.CanTransition(to) {
			return Suggestion{}, fmt.Errorf("%w: %s to %s", ErrInvalidStatus, from, to)
		}

		args := []any{to, cmd.Actor, cmd.Reason, appliedVersion, id}
		return repository.QueryOne(ctx, tx, updateQ, args, scanSuggestion)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("suggestion status changed",
		"id", id,
		"status", s.Status,
		"actor", cmd.Actor,
	)
	return &s, nil
}
