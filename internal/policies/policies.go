// Package policies persists decision policy versions in the document
// store and evaluates classifications against them.
package policies

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/lodestar/internal/evaluator"
	"github.com/JaimeStill/lodestar/internal/metrics"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/pkg/docstore"
)

// Document address of the decision policy.
const (
	Collection = "policies"
	DocumentID = "decision-matrix"
)

// EvaluateCommand requests an evaluation of a classification against a
// policy version. An empty Version selects the latest.
type EvaluateCommand struct {
	Version        string                `json:"version,omitempty"`
	Classification policy.Classification `json:"classification"`
	Attributes     policy.AttributeMap   `json:"attributes"`
}

// System defines the public contract for policy store operations.
type System interface {
	Handler() *Handler

	// Save writes p as a new immutable version after validating it.
	Save(ctx context.Context, p *policy.Policy) error
	Find(ctx context.Context, version string) (*policy.Policy, error)
	Latest(ctx context.Context) (*policy.Policy, error)
	// Versions lists written versions, highest first.
	Versions(ctx context.Context) ([]string, error)
	Evaluate(ctx context.Context, cmd EvaluateCommand) (*evaluator.Result, error)

	// Bootstrap writes the initial policy when no version exists and
	// returns the latest policy.
	Bootstrap(ctx context.Context, createdBy string) (*policy.Policy, error)
}

type repo struct {
	store     *docstore.Store
	evaluator *evaluator.Evaluator
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a policy store implementing System.
func New(
	store *docstore.Store,
	eval *evaluator.Evaluator,
	m *metrics.Metrics,
	logger *slog.Logger,
) System {
	return &repo{
		store:     store,
		evaluator: eval,
		metrics:   m,
		logger:    logger.With("system", "policies"),
		now:       time.Now,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Save(ctx context.Context, p *policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal policy %s: %w", p.Version, err)
	}

	if err := r.store.Put(ctx, Collection, DocumentID, p.Version, data); err != nil {
		if errors.Is(err, docstore.ErrVersionExists) {
			return fmt.Errorf("%w: %s", ErrVersionExists, p.Version)
		}
		return fmt.Errorf("save policy %s: %w", p.Version, err)
	}

	r.metrics.ObservePolicyVersion()
	r.logger.Info("policy version saved",
		"version", p.Version,
		"created_by", p.CreatedBy,
		"rules", len(p.Rules),
	)
	return nil
}

func (r *repo) Find(ctx context.Context, version string) (*policy.Policy, error) {
	if !policy.ValidVersion(version) {
		return nil, fmt.Errorf("%w: %q", policy.ErrInvalidVersion, version)
	}

	data, err := r.store.Get(ctx, Collection, DocumentID, version)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, version)
		}
		return nil, fmt.Errorf("find policy %s: %w", version, err)
	}
	return decode(data)
}

func (r *repo) Latest(ctx context.Context) (*policy.Policy, error) {
	_, data, err := r.store.Latest(ctx, Collection, DocumentID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, ErrNoPolicy
		}
		return nil, fmt.Errorf("latest policy: %w", err)
	}
	return decode(data)
}

func (r *repo) Versions(ctx context.Context) ([]string, error) {
	versions, err := r.store.Versions(ctx, Collection, DocumentID)
	if err != nil {
		return nil, fmt.Errorf("list policy versions: %w", err)
	}
	return versions, nil
}

func (r *repo) Evaluate(ctx context.Context, cmd EvaluateCommand) (*evaluator.Result, error) {
	if !cmd.Classification.Category.Valid() {
		return nil, fmt.Errorf("%w: %q", policy.ErrInvalidCategory, cmd.Classification.Category)
	}

	var (
		p   *policy.Policy
		err error
	)
	if cmd.Version == "" {
		p, err = r.Latest(ctx)
	} else {
		p, err = r.Find(ctx, cmd.Version)
	}
	if err != nil {
		return nil, err
	}

	c := cmd.Classification
	c.Confidence = policy.ClampConfidence(c.Confidence)

	result := r.evaluator.Evaluate(p, c, cmd.Attributes)
	r.metrics.ObserveEvaluation(result)
	return &result, nil
}

func (r *repo) Bootstrap(ctx context.Context, createdBy string) (*policy.Policy, error) {
	latest, err := r.Latest(ctx)
	if err == nil {
		return latest, nil
	}
	if !errors.Is(err, ErrNoPolicy) {
		return nil, err
	}

	p := policy.Bootstrap(createdBy, r.now())
	if err := r.Save(ctx, p); err != nil {
		// A concurrent bootstrap may have written the same version.
		if errors.Is(err, ErrVersionExists) {
			return r.Latest(ctx)
		}
		return nil, err
	}

	r.logger.Info("bootstrap policy written", "version", p.Version)
	return p, nil
}

func decode(data []byte) (*policy.Policy, error) {
	var p policy.Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	return &p, nil
}
