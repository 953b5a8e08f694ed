// Package sampling validates a candidate policy by re-evaluating a random
// sample of historical decisions under it and counting how many outcomes
// improved or worsened against the human-established category.
package sampling

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/lodestar/internal/evaluator"
	"github.com/JaimeStill/lodestar/internal/extraction"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/policy"
)

const (
	MinFraction    = 0.10
	MinSampleSize  = 10
	DefaultCap     = 1000
	DefaultWorkers = 4
	DefaultTimeout = 30 * time.Second
)

// Extractor derives attributes for a record that has none stored.
type Extractor interface {
	ExtractAttributes(ctx context.Context, text string) (policy.AttributeMap, error)
}

// Classifier produces a fresh base classification for a record.
type Classifier interface {
	Classify(ctx context.Context, text string) (policy.Classification, error)
}

// Options bounds a validation run. Zero values take the defaults.
type Options struct {
	SampleFraction float64       `json:"sample_fraction"`
	SampleCap      int           `json:"sample_cap"`
	Timeout        time.Duration `json:"timeout"`
	Workers        int           `json:"workers"`

	// Rand drives sample selection. A nil Rand uses a randomly seeded source.
	Rand *rand.Rand `json:"-"`
}

func (o Options) normalize() Options {
	o.SampleFraction = max(o.SampleFraction, MinFraction)
	if o.SampleFraction > 1 {
		o.SampleFraction = 1
	}
	if o.SampleCap <= 0 {
		o.SampleCap = DefaultCap
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return o
}

// Result is the outcome of a validation run. Excluded samples failed
// extraction or classification and are not part of the rate.
type Result struct {
	PolicyVersion          string  `json:"policy_version"`
	EligibleRecords        int     `json:"eligible_records"`
	SampleSize             int     `json:"sample_size"`
	Evaluated              int     `json:"evaluated"`
	Improved               int     `json:"improved"`
	Unchanged              int     `json:"unchanged"`
	Worsened               int     `json:"worsened"`
	Excluded               int     `json:"excluded"`
	ImprovementRatePercent float64 `json:"improvement_rate_percent"`
}

type outcome int

const (
	excluded outcome = iota
	improved
	unchanged
	worsened
)

// Sampler runs counterfactual validations. It is safe for concurrent use.
type Sampler struct {
	eval       *evaluator.Evaluator
	extractor  Extractor
	classifier Classifier
	logger     *slog.Logger
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithExtractor sets the extractor used for records without stored
// attributes. Without one, the heuristic extractor is used.
func WithExtractor(e Extractor) Option {
	return func(s *Sampler) { s.extractor = e }
}

// WithClassifier re-classifies each sampled record instead of reusing
// its stored original classification.
func WithClassifier(c Classifier) Option {
	return func(s *Sampler) { s.classifier = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) { s.logger = l.With("module", "sampling") }
}

// New creates a Sampler that evaluates with eval.
func New(eval *evaluator.Evaluator, opts ...Option) *Sampler {
	s := &Sampler{
		eval:   eval,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SampleSize returns max(MinSampleSize, ceil(fraction·n)) bounded by
// limit and n.
func SampleSize(n int, fraction float64, limit int) int {
	if n <= 0 {
		return 0
	}
	size := max(MinSampleSize, int(math.Ceil(fraction*float64(n)-1e-9)))
	return min(size, limit, n)
}

// Sample returns k items chosen uniformly without replacement using a
// partial Fisher-Yates shuffle. items is not modified.
func Sample[T any](r *rand.Rand, items []T, k int) []T {
	pool := make([]T, len(items))
	copy(pool, items)
	k = min(max(k, 0), len(pool))
	for i := range k {
		j := i + r.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// Validate re-evaluates a sample of records under candidate. Only records
// with a human-established category are eligible. A collaborator failure
// or timeout excludes that sample; cancelling ctx aborts the run and no
// result is returned.
func (s *Sampler) Validate(
	ctx context.Context,
	candidate *policy.Policy,
	records []feedback.Record,
	opts Options,
) (Result, error) {
	opts = opts.normalize()

	eligible := make([]feedback.Record, 0, len(records))
	for _, r := range records {
		if _, ok := r.TrueCategory(); ok {
			eligible = append(eligible, r)
		}
	}

	size := SampleSize(len(eligible), opts.SampleFraction, opts.SampleCap)
	sample := Sample(opts.Rand, eligible, size)

	outcomes := make([]outcome, len(sample))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for i, rec := range sample {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = s.compare(gctx, candidate, rec, opts.Timeout)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("validate policy %s: %w", candidate.Version, err)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("validate policy %s: %w", candidate.Version, err)
	}

	result := Result{
		PolicyVersion:   candidate.Version,
		EligibleRecords: len(eligible),
		SampleSize:      len(sample),
	}
	for _, o := range outcomes {
		switch o {
		case improved:
			result.Improved++
		case unchanged:
			result.Unchanged++
		case worsened:
			result.Worsened++
		default:
			result.Excluded++
		}
	}

	result.Evaluated = result.Improved + result.Unchanged + result.Worsened
	if result.Evaluated > 0 {
		result.ImprovementRatePercent = float64(result.Improved-result.Worsened) / float64(result.Evaluated) * 100
	}

	s.logger.InfoContext(ctx, "candidate validated",
		"version", result.PolicyVersion,
		"sample_size", result.SampleSize,
		"improved", result.Improved,
		"worsened", result.Worsened,
		"excluded", result.Excluded,
	)
	return result, nil
}

func (s *Sampler) compare(ctx context.Context, candidate *policy.Policy, rec feedback.Record, timeout time.Duration) outcome {
	truth, _ := rec.TrueCategory()

	attrs, err := s.attributes(ctx, rec, timeout)
	if err != nil {
		s.logger.WarnContext(ctx, "sample excluded: extraction failed", "record", rec.ID, "error", err)
		return excluded
	}

	base, err := s.baseline(ctx, rec, timeout)
	if err != nil {
		s.logger.WarnContext(ctx, "sample excluded: classification failed", "record", rec.ID, "error", err)
		return excluded
	}

	result := s.eval.Evaluate(candidate, base, attrs)

	wasCorrect := rec.Classification.Category == truth
	isCorrect := result.FinalClassification.Category == truth

	switch {
	case !wasCorrect && isCorrect:
		return improved
	case wasCorrect && !isCorrect:
		return worsened
	}
	return unchanged
}

func (s *Sampler) attributes(ctx context.Context, rec feedback.Record, timeout time.Duration) (policy.AttributeMap, error) {
	if len(rec.Attributes) > 0 {
		return rec.Attributes, nil
	}
	if s.extractor == nil {
		return extraction.Extract(rec.Text), nil
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.extractor.ExtractAttributes(callCtx, rec.Text)
}

func (s *Sampler) baseline(ctx context.Context, rec feedback.Record, timeout time.Duration) (policy.Classification, error) {
	if s.classifier == nil {
		if rec.OriginalClassification.Category.Valid() {
			return rec.OriginalClassification, nil
		}
		return rec.Classification, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.classifier.Classify(callCtx, rec.Text)
}
