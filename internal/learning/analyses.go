package learning

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/pkg/pagination"
	"github.com/JaimeStill/lodestar/pkg/query"
	"github.com/JaimeStill/lodestar/pkg/repository"
)

// AnalysisStore persists feedback analyses.
type AnalysisStore interface {
	List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[feedback.Analysis], error)
	Find(ctx context.Context, id uuid.UUID) (*feedback.Analysis, error)
	Create(ctx context.Context, a feedback.Analysis) (*feedback.Analysis, error)
}

var analysisProjection = query.
	NewProjectionMap("public", "learning_analyses", "a").
	Project("id", "ID").
	Project("triggered_by", "TriggeredBy").
	Project("data_from", "DataFrom").
	Project("data_to", "DataTo").
	Project("total_records", "TotalRecords").
	Project("feedback_count", "FeedbackCount").
	Project("overall_agreement_rate", "OverallAgreementRate").
	Project("analysis", "Analysis").
	Project("created_at", "CreatedAt")

const analysisReturning = `
	RETURNING id, triggered_by, data_from, data_to, total_records,
			  feedback_count, overall_agreement_rate, analysis, created_at`

var analysisSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

type analysisRepo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// NewAnalysisStore creates a Postgres-backed AnalysisStore over the
// learning_analyses table.
func NewAnalysisStore(db *sql.DB, logger *slog.Logger, pagination pagination.Config) AnalysisStore {
	return &analysisRepo{
		db:         db,
		logger:     logger.With("system", "learning_analyses"),
		pagination: pagination,
	}
}

func (r *analysisRepo) List(
	ctx context.Context,
	page pagination.PageRequest,
) (*pagination.PageResult[feedback.Analysis], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(analysisProjection, analysisSort).
		WhereSearch(page.Search, "TriggeredBy")

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanAnalysis)
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *analysisRepo) Find(ctx context.Context, id uuid.UUID) (*feedback.Analysis, error) {
	q, args := query.NewBuilder(analysisProjection).BuildSingle("ID", id)

	a, err := repository.QueryOne(ctx, r.db, q, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrAnalysisNotFound, ErrAnalysisExists)
	}
	return &a, nil
}

func (r *analysisRepo) Create(ctx context.Context, a feedback.Analysis) (*feedback.Analysis, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}

	insertQ := `
		INSERT INTO learning_analyses(
			id, triggered_by, data_from, data_to, total_records,
			feedback_count, overall_agreement_rate, analysis
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)` + analysisReturning

	args := []any{
		a.ID,
		a.TriggeredBy,
		nullTime(a.DataRange.From),
		nullTime(a.DataRange.To),
		a.TotalRecords,
		a.FeedbackCount,
		a.OverallAgreementRate,
		raw,
	}

	created, err := repository.QueryOne(ctx, r.db, insertQ, args, scanAnalysis)
	if err != nil {
		return nil, repository.MapError(err, ErrAnalysisNotFound, ErrAnalysisExists)
	}

	r.logger.Info("analysis stored",
		"id", created.ID,
		"triggered_by", created.TriggeredBy,
		"feedback_count", created.FeedbackCount,
	)
	return &created, nil
}

// scanAnalysis decodes the stored document and lets the row's columns
// win for the fields they duplicate.
func scanAnalysis(s repository.Scanner) (feedback.Analysis, error) {
	var (
		a        feedback.Analysis
		id       uuid.UUID
		by       string
		from, to *time.Time
		total    int
		count    int
		rate     float64
		raw      []byte
		created  time.Time
	)

	if err := s.Scan(&id, &by, &from, &to, &total, &count, &rate, &raw, &created); err != nil {
		return a, err
	}

	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a); err != nil {
			return a, fmt.Errorf("unmarshal analysis: %w", err)
		}
	}

	a.ID = id
	a.TriggeredBy = by
	a.DataRange = feedback.DateRange{}
	if from != nil {
		a.DataRange.From = *from
	}
	if to != nil {
		a.DataRange.To = *to
	}
	a.TotalRecords = total
	a.FeedbackCount = count
	a.OverallAgreementRate = rate
	a.CreatedAt = created
	return a, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
