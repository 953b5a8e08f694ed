// Package learning runs the feedback loop: it analyzes human feedback on
// past decisions, asks for policy change suggestions, validates them
// against history, and publishes approved changes as new policy versions.
package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/config"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/metrics"
	"github.com/JaimeStill/lodestar/internal/policies"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/internal/sampling"
	"github.com/JaimeStill/lodestar/internal/suggestions"
	"github.com/JaimeStill/lodestar/pkg/pagination"
)

// publishAttempts bounds retries when a concurrent writer takes the next
// policy version first.
const publishAttempts = 3

// FeedbackSource supplies decisions with their human feedback.
type FeedbackSource interface {
	Feedback(ctx context.Context, window feedback.DateRange) ([]feedback.Record, error)
}

// Suggester proposes untrusted policy changes for an analysis.
type Suggester interface {
	SuggestCandidates(ctx context.Context, analysis feedback.Analysis, p *policy.Policy) ([]suggestions.RawSuggestion, error)
}

// AnalysisCommand requests a feedback analysis. A nil To means now and a
// nil From means the configured lookback before To.
type AnalysisCommand struct {
	From        *time.Time `json:"from,omitempty"`
	To          *time.Time `json:"to,omitempty"`
	TriggeredBy string     `json:"triggered_by,omitempty"`
}

// ValidateCommand requests counterfactual validation of a candidate
// policy. A zero SampleFraction uses the configured fraction.
type ValidateCommand struct {
	Policy         policy.Policy `json:"policy"`
	SampleFraction float64       `json:"sample_fraction,omitempty"`
}

// ThresholdReport is the outcome of a threshold check. Analysis is set
// only when a category fell below the threshold and an analysis was
// stored.
type ThresholdReport struct {
	Threshold            float64            `json:"threshold"`
	FeedbackCount        int                `json:"feedback_count"`
	OverallAgreementRate float64            `json:"overall_agreement_rate"`
	BelowThreshold       []policy.Category  `json:"below_threshold"`
	Analysis             *feedback.Analysis `json:"analysis,omitempty"`
}

// System defines the public contract for learning loop operations.
type System interface {
	Handler() *Handler

	Analyses(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[feedback.Analysis], error)
	FindAnalysis(ctx context.Context, id uuid.UUID) (*feedback.Analysis, error)
	RunAnalysis(ctx context.Context, cmd AnalysisCommand) (*feedback.Analysis, error)

	// ProposeSuggestions asks the suggester for changes addressing the
	// analysis and stores the ones that survive sanitization as pending.
	ProposeSuggestions(ctx context.Context, analysisID uuid.UUID) ([]suggestions.Suggestion, error)

	Suggestions(
		ctx context.Context,
		page pagination.PageRequest,
		filters suggestions.Filters,
	) (*pagination.PageResult[suggestions.Suggestion], error)
	FindSuggestion(ctx context.Context, id uuid.UUID) (*suggestions.Suggestion, error)

	ValidateCandidate(ctx context.Context, cmd ValidateCommand) (*sampling.Result, error)
	ValidateSuggestion(ctx context.Context, id uuid.UUID) (*suggestions.Suggestion, error)

	// ApproveSuggestion approves a pending suggestion, publishes the policy
	// it produces, and marks it applied. A suggestion left approved by a
	// failed publish can be approved again.
	ApproveSuggestion(ctx context.Context, id uuid.UUID, cmd suggestions.ReviewCommand) (*suggestions.Suggestion, error)
	RejectSuggestion(ctx context.Context, id uuid.UUID, cmd suggestions.ReviewCommand) (*suggestions.Suggestion, error)

	// CheckThresholds analyzes the lookback window and stores the analysis
	// when any category's agreement rate is below the threshold.
	CheckThresholds(ctx context.Context) (*ThresholdReport, error)
}

// Deps are the collaborators of the learning loop. Suggester may be nil,
// in which case ProposeSuggestions fails with ErrNoSuggester.
type Deps struct {
	Analyses    AnalysisStore
	Suggestions suggestions.System
	Policies    policies.System
	Feedback    FeedbackSource
	Suggester   Suggester
	Sampler     *sampling.Sampler
	Metrics     *metrics.Metrics
}

type service struct {
	deps       Deps
	cfg        config.LearningConfig
	logger     *slog.Logger
	pagination pagination.Config
	now        func() time.Time
}

// New creates the learning loop implementing System.
func New(deps Deps, cfg *config.LearningConfig, logger *slog.Logger, pagination pagination.Config) System {
	return &service{
		deps:       deps,
		cfg:        *cfg,
		logger:     logger.With("system", "learning"),
		pagination: pagination,
		now:        time.Now,
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger, s.pagination)
}

func (s *service) Analyses(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[feedback.Analysis], error) {
	return s.deps.Analyses.List(ctx, page)
}

func (s *service) FindAnalysis(ctx context.Context, id uuid.UUID) (*feedback.Analysis, error) {
	return s.deps.Analyses.Find(ctx, id)
}

func (s *service) RunAnalysis(ctx context.Context, cmd AnalysisCommand) (*feedback.Analysis, error) {
	window, err := s.window(cmd.From, cmd.To)
	if err != nil {
		return nil, err
	}

	by := strings.TrimSpace(cmd.TriggeredBy)
	if by == "" {
		by = s.cfg.SystemActor
	}

	a, err := s.analyze(ctx, window, by)
	if err != nil {
		return nil, err
	}
	return s.deps.Analyses.Create(ctx, a)
}

func (s *service) ProposeSuggestions(ctx context.Context, analysisID uuid.UUID) ([]suggestions.Suggestion, error) {
	if s.deps.Suggester == nil {
		return nil, ErrNoSuggester
	}

	a, err := s.deps.Analyses.Find(ctx, analysisID)
	if err != nil {
		return nil, err
	}

	latest, err := s.deps.Policies.Latest(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := s.deps.Suggester.SuggestCandidates(ctx, *a, latest)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSuggestFailed, err)
	}

	items := suggestions.Synthesize(*a, latest, raw, s.logger)
	if len(items) == 0 {
		s.logger.InfoContext(ctx, "no suggestions survived sanitization", "analysis_id", a.ID)
		return []suggestions.Suggestion{}, nil
	}

	created, err := s.deps.Suggestions.Create(ctx, items)
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.ObserveSuggestions(string(suggestions.StatusPending), len(created))
	return created, nil
}

func (s *service) Suggestions(
	ctx context.Context,
	page pagination.PageRequest,
	filters suggestions.Filters,
) (*pagination.PageResult[suggestions.Suggestion], error) {
	return s.deps.Suggestions.List(ctx, page, filters)
}

func (s *service) FindSuggestion(ctx context.Context, id uuid.UUID) (*suggestions.Suggestion, error) {
	return s.deps.Suggestions.Find(ctx, id)
}

func (s *service) ValidateCandidate(ctx context.Context, cmd ValidateCommand) (*sampling.Result, error) {
	candidate := cmd.Policy
	if err := candidate.Validate(); err != nil {
		return nil, err
	}
	return s.validate(ctx, &candidate, cmd.SampleFraction)
}

func (s *service) ValidateSuggestion(ctx context.Context, id uuid.UUID) (*suggestions.Suggestion, error) {
	sg, err := s.deps.Suggestions.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if sg.Status != suggestions.StatusPending && sg.Status != suggestions.StatusApproved {
		return nil, fmt.Errorf("%w: cannot validate a %s suggestion", suggestions.ErrInvalidStatus, sg.Status)
	}

	latest, err := s.deps.Policies.Latest(ctx)
	if err != nil {
		return nil, err
	}

	candidate, err := suggestions.Apply(*sg, latest, s.cfg.SystemActor, s.now())
	if err != nil {
		return nil, err
	}

	result, err := s.validate(ctx, candidate, 0)
	if err != nil {
		return nil, err
	}

	return s.deps.Suggestions.SetValidation(ctx, id, *result)
}

func (s *service) ApproveSuggestion(ctx context.Context, id uuid.UUID, cmd suggestions.ReviewCommand) (*suggestions.Suggestion, error) {
	if strings.TrimSpace(cmd.Actor) == "" {
		return nil, ErrActorRequired
	}

	sg, err := s.deps.Suggestions.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	switch sg.Status {
	case suggestions.StatusPending:
		sg, err = s.deps.Suggestions.Transition(ctx, id, suggestions.StatusApproved, cmd, "")
		if err != nil {
			return nil, err
		}
		s.deps.Metrics.ObserveSuggestions(string(suggestions.StatusApproved), 1)
	case suggestions.StatusApproved:
		s.logger.InfoContext(ctx, "resuming publish of approved suggestion", "id", id)
		prior, err := s.published(ctx, *sg)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			s.logger.InfoContext(ctx, "suggestion already published",
				"id", id, "policy_version", prior.Version)
			return s.applied(ctx, id, cmd, prior.Version)
		}
	default:
		return nil, fmt.Errorf("%w: cannot approve a %s suggestion", suggestions.ErrInvalidStatus, sg.Status)
	}

	next, err := s.publish(ctx, *sg, cmd.Actor)
	if err != nil {
		s.logger.WarnContext(ctx, "suggestion approved but not applied", "id", id, "error", err)
		return nil, err
	}

	return s.applied(ctx, id, cmd, next.Version)
}

func (s *service) applied(ctx context.Context, id uuid.UUID, cmd suggestions.ReviewCommand, version string) (*suggestions.Suggestion, error) {
	sg, err := s.deps.Suggestions.Transition(ctx, id, suggestions.StatusApplied, cmd, version)
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.ObserveSuggestions(string(suggestions.StatusApplied), 1)
	s.logger.InfoContext(ctx, "suggestion applied",
		"id", id,
		"policy_version", version,
		"actor", cmd.Actor,
	)
	return sg, nil
}

func (s *service) RejectSuggestion(ctx context.Context, id uuid.UUID, cmd suggestions.ReviewCommand) (*suggestions.Suggestion, error) {
	if strings.TrimSpace(cmd.Actor) == "" {
		return nil, ErrActorRequired
	}

	sg, err := s.deps.Suggestions.Transition(ctx, id, suggestions.StatusRejected, cmd, "")
	if err != nil {
		return nil, err
	}

	s.deps.Metrics.ObserveSuggestions(string(suggestions.StatusRejected), 1)
	return sg, nil
}

func (s *service) CheckThresholds(ctx context.Context) (*ThresholdReport, error) {
	window, err := s.window(nil, nil)
	if err != nil {
		return nil, err
	}

	a, err := s.analyze(ctx, window, s.cfg.SystemActor)
	if err != nil {
		return nil, err
	}

	report := &ThresholdReport{
		Threshold:            s.cfg.AgreementThreshold,
		FeedbackCount:        a.FeedbackCount,
		OverallAgreementRate: a.OverallAgreementRate,
		BelowThreshold:       a.BelowThreshold(s.cfg.AgreementThreshold),
	}

	if len(report.BelowThreshold) == 0 {
		return report, nil
	}

	stored, err := s.deps.Analyses.Create(ctx, a)
	if err != nil {
		return nil, err
	}
	report.Analysis = stored

	s.logger.WarnContext(ctx, "agreement below threshold",
		"categories", report.BelowThreshold,
		"threshold", s.cfg.AgreementThreshold,
		"analysis_id", stored.ID,
	)
	return report, nil
}

func (s *service) window(from, to *time.Time) (feedback.DateRange, error) {
	end := s.now()
	if to != nil {
		end = *to
	}
	start := end.Add(-s.cfg.LookbackDuration())
	if from != nil {
		start = *from
	}
	if !start.Before(end) {
		return feedback.DateRange{}, fmt.Errorf("%w: %s to %s", ErrInvalidWindow, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return feedback.DateRange{From: start, To: end}, nil
}

func (s *service) analyze(ctx context.Context, window feedback.DateRange, triggeredBy string) (feedback.Analysis, error) {
	records, err := s.deps.Feedback.Feedback(ctx, window)
	if err != nil {
		return feedback.Analysis{}, fmt.Errorf("load feedback: %w", err)
	}

	a := feedback.Analyze(records, window, triggeredBy)
	a.ID = uuid.New()
	a.CreatedAt = s.now()

	s.logger.InfoContext(ctx, "feedback analyzed",
		"records", a.TotalRecords,
		"feedback", a.FeedbackCount,
		"agreement", a.OverallAgreementRate,
	)
	return a, nil
}

func (s *service) validate(ctx context.Context, candidate *policy.Policy, fraction float64) (*sampling.Result, error) {
	window, err := s.window(nil, nil)
	if err != nil {
		return nil, err
	}

	records, err := s.deps.Feedback.Feedback(ctx, window)
	if err != nil {
		return nil, fmt.Errorf("load feedback: %w", err)
	}

	if fraction <= 0 {
		fraction = s.cfg.SampleFraction
	}

	result, err := s.deps.Sampler.Validate(ctx, candidate, records, sampling.Options{
		SampleFraction: fraction,
		SampleCap:      s.cfg.SampleCap,
		Timeout:        s.cfg.ValidationTimeoutDuration(),
		Workers:        s.cfg.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("validate policy %s: %w", candidate.Version, err)
	}

	s.deps.Metrics.ObserveValidation(result.ImprovementRatePercent)
	return &result, nil
}

// publish merges sg into the latest policy and saves the result,
// rebasing onto a newer latest when another writer took the version.
// A latest version already published from sg is returned as is.
func (s *service) publish(ctx context.Context, sg suggestions.Suggestion, actor string) (*policy.Policy, error) {
	source := sg.ID.String()

	var err error
	for range publishAttempts {
		var latest *policy.Policy
		latest, err = s.deps.Policies.Latest(ctx)
		if err != nil {
			return nil, err
		}
		if latest.SourceSuggestion == source {
			return latest, nil
		}

		var next *policy.Policy
		next, err = suggestions.Apply(sg, latest, actor, s.now())
		if err != nil {
			return nil, err
		}

		err = s.deps.Policies.Save(ctx, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, policies.ErrVersionExists) {
			return nil, err
		}
	}
	return nil, err
}

// published finds the policy version written from sg, newest first.
// It returns nil when sg was never published.
func (s *service) published(ctx context.Context, sg suggestions.Suggestion) (*policy.Policy, error) {
	versions, err := s.deps.Policies.Versions(ctx)
	if err != nil {
		return nil, err
	}

	source := sg.ID.String()
	for _, v := range versions {
		p, err := s.deps.Policies.Find(ctx, v)
		if err != nil {
			return nil, err
		}
		if p.SourceSuggestion == source {
			return p, nil
		}
	}
	return nil, nil
}
