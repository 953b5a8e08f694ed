// Package advisor calls an OpenAI compatible chat model to classify
// process descriptions, extract attributes, and propose policy changes.
// Every response is parsed defensively; suggestion candidates are
// returned raw for the suggestions package to sanitize.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/JaimeStill/lodestar/internal/config"
	"github.com/JaimeStill/lodestar/internal/extraction"
	"github.com/JaimeStill/lodestar/internal/feedback"
	"github.com/JaimeStill/lodestar/internal/metrics"
	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/internal/prompts"
	"github.com/JaimeStill/lodestar/internal/suggestions"
	"github.com/JaimeStill/lodestar/pkg/formatting"
)

// Operation labels used for metrics and logs.
const (
	OpClassify = "classify"
	OpExtract  = "extract"
	OpSuggest  = "suggest"
)

// Attribute sources reported by ExtractWithFallback.
const (
	SourceModel     = "model"
	SourceHeuristic = "heuristic"
)

// PolicySource resolves the policy whose attribute vocabulary guides
// extraction.
type PolicySource interface {
	Latest(ctx context.Context) (*policy.Policy, error)
}

// Advisor wraps a chat completion client with prompt composition, rate
// limiting, and a per-call timeout.
type Advisor struct {
	client   *openai.Client
	model    string
	prompts  prompts.System
	policies PolicySource
	limiter  *rate.Limiter
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates an Advisor from cfg.
func New(
	cfg *config.AdvisorConfig,
	ps prompts.System,
	policies PolicySource,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Advisor {
	var clientConfig openai.ClientConfig
	switch cfg.Provider {
	case config.ProviderAzure:
		clientConfig = openai.DefaultAzureConfig(cfg.Token, cfg.BaseURL)
		clientConfig.APIVersion = cfg.APIVersion
	default:
		clientConfig = openai.DefaultConfig(cfg.Token)
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Advisor{
		client:   openai.NewClientWithConfig(clientConfig),
		model:    cfg.Model,
		prompts:  ps,
		policies: policies,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		timeout:  cfg.TimeoutDuration(),
		metrics:  m,
		logger:   logger.With("system", "advisor", "model", cfg.Model),
	}
}

type classifyResponse struct {
	Category            string   `json:"category"`
	Confidence          float64  `json:"confidence"`
	Rationale           string   `json:"rationale"`
	CategoryProgression string   `json:"category_progression"`
	FutureOpportunities []string `json:"future_opportunities"`
}

// Classify asks the model for a category judgment on text.
func (a *Advisor) Classify(ctx context.Context, text string) (policy.Classification, error) {
	content, err := a.complete(ctx, OpClassify, prompts.StageClassify, nil, text)
	if err != nil {
		return policy.Classification{}, err
	}

	resp, err := formatting.Parse[classifyResponse](content)
	if err != nil {
		return policy.Classification{}, fmt.Errorf("%s: %w: %w", OpClassify, ErrInvalidResponse, err)
	}

	category, err := policy.ParseCategory(resp.Category)
	if err != nil {
		return policy.Classification{}, fmt.Errorf("%s: %w: %w", OpClassify, ErrInvalidResponse, err)
	}

	return policy.Classification{
		Category:            category,
		Confidence:          policy.ClampConfidence(resp.Confidence),
		Rationale:           resp.Rationale,
		CategoryProgression: resp.CategoryProgression,
		FutureOpportunities: resp.FutureOpportunities,
	}, nil
}

// ExtractAttributes asks the model for the attributes of text. Keys and
// categorical values outside the latest policy's vocabulary are dropped.
func (a *Advisor) ExtractAttributes(ctx context.Context, text string) (policy.AttributeMap, error) {
	p, err := a.policies.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: resolve policy: %w", OpExtract, err)
	}

	content, err := a.complete(ctx, OpExtract, prompts.StageExtract, map[string]any{
		"attributes": p.Attributes,
	}, text)
	if err != nil {
		return nil, err
	}

	raw, err := formatting.Parse[policy.AttributeMap](content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", OpExtract, ErrInvalidResponse, err)
	}

	attrs := make(policy.AttributeMap, len(raw))
	for name, v := range raw {
		attr, ok := p.Attribute(name)
		if !ok || !attr.Allows(v) {
			a.logger.WarnContext(ctx, "dropping extracted attribute",
				"attribute", name,
				"value", v.String(),
			)
			continue
		}
		attrs[name] = v
	}
	return attrs, nil
}

// ExtractWithFallback extracts attributes with the model and falls back
// to the heuristic extractor when the call fails or yields nothing. The
// second result names the source that produced the attributes.
func (a *Advisor) ExtractWithFallback(ctx context.Context, text string) (policy.AttributeMap, string) {
	attrs, err := a.ExtractAttributes(ctx, text)
	if err == nil && len(attrs) > 0 {
		return attrs, SourceModel
	}
	if err != nil {
		a.logger.WarnContext(ctx, "model extraction failed, using heuristic extractor", "error", err)
	}
	return extraction.Extract(text), SourceHeuristic
}

type suggestContext struct {
	Analysis feedback.Analysis `json:"analysis"`
	Policy   *policy.Policy    `json:"policy"`
}

// SuggestCandidates asks the model for policy changes addressing the
// disagreements in analysis. The result is untrusted and must pass
// through suggestions.Synthesize.
func (a *Advisor) SuggestCandidates(
	ctx context.Context,
	analysis feedback.Analysis,
	p *policy.Policy,
) ([]suggestions.RawSuggestion, error) {
	content, err := a.complete(ctx, OpSuggest, prompts.StageSuggest, suggestContext{
		Analysis: analysis,
		Policy:   p,
	}, "Propose policy changes for this analysis.")
	if err != nil {
		return nil, err
	}

	body, err := formatting.Parse[json.RawMessage](content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", OpSuggest, ErrInvalidResponse, err)
	}

	raw, err := suggestions.DecodeRaw(body, a.logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", OpSuggest, err)
	}

	a.logger.InfoContext(ctx, "suggestion candidates received",
		"analysis_id", analysis.ID,
		"candidates", len(raw),
	)
	return raw, nil
}

func (a *Advisor) complete(
	ctx context.Context,
	op string,
	stage prompts.Stage,
	promptContext any,
	user string,
) (string, error) {
	system, err := ComposePrompt(ctx, a.prompts, stage, promptContext)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, ErrRateLimitTimeout, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err == nil && len(resp.Choices) == 0 {
		err = ErrNoResponse
	}
	a.metrics.ObserveAdvisorCall(op, err, time.Since(start))

	if err != nil {
		a.logger.WarnContext(ctx, "model call failed", "operation", op, "error", err)
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return resp.Choices[0].Message.Content, nil
}
