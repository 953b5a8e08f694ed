package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvAdvisorProvider   = "LODESTAR_ADVISOR_PROVIDER"
	EnvAdvisorBaseURL    = "LODESTAR_ADVISOR_BASE_URL"
	EnvAdvisorToken      = "LODESTAR_ADVISOR_TOKEN"
	EnvAdvisorModel      = "LODESTAR_ADVISOR_MODEL"
	EnvAdvisorAPIVersion = "LODESTAR_ADVISOR_API_VERSION"
	EnvAdvisorTimeout    = "LODESTAR_ADVISOR_TIMEOUT"
	EnvAdvisorRateLimit  = "LODESTAR_ADVISOR_RATE_LIMIT"
	EnvAdvisorBurst      = "LODESTAR_ADVISOR_BURST"
)

// Advisor providers.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// AdvisorConfig holds the model endpoint used for classification,
// attribute extraction, and suggestion generation. Any OpenAI compatible
// endpoint (including Ollama) works with the openai provider and a
// BaseURL override.
type AdvisorConfig struct {
	Provider   string  `toml:"provider"`
	BaseURL    string  `toml:"base_url"`
	Token      string  `toml:"token"`
	Model      string  `toml:"model"`
	APIVersion string  `toml:"api_version"`
	Timeout    string  `toml:"timeout"`
	RateLimit  float64 `toml:"rate_limit"`
	Burst      int     `toml:"burst"`
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *AdvisorConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AdvisorConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AdvisorConfig) Merge(overlay *AdvisorConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.RateLimit != 0 {
		c.RateLimit = overlay.RateLimit
	}
	if overlay.Burst != 0 {
		c.Burst = overlay.Burst
	}
}

func (c *AdvisorConfig) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.BaseURL == "" && c.Provider == ProviderOpenAI {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.APIVersion == "" && c.Provider == ProviderAzure {
		c.APIVersion = "2024-10-21"
	}
	if c.Timeout == "" {
		c.Timeout = "30s"
	}
	if c.RateLimit == 0 {
		c.RateLimit = 5
	}
	if c.Burst == 0 {
		c.Burst = 5
	}
}

func (c *AdvisorConfig) loadEnv() {
	if v := os.Getenv(EnvAdvisorProvider); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvAdvisorBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAdvisorToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvAdvisorModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvAdvisorAPIVersion); v != "" {
		c.APIVersion = v
	}
	if v := os.Getenv(EnvAdvisorTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvAdvisorRateLimit); v != "" {
		if rate, err := strconv.ParseFloat(v, 64); err == nil {
			c.RateLimit = rate
		}
	}
	if v := os.Getenv(EnvAdvisorBurst); v != "" {
		if burst, err := strconv.Atoi(v); err == nil {
			c.Burst = burst
		}
	}
}

func (c *AdvisorConfig) validate() error {
	switch c.Provider {
	case ProviderOpenAI, ProviderAzure:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url required")
	}
	if c.Model == "" {
		return fmt.Errorf("model required")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive: %v", c.RateLimit)
	}
	if c.Burst < 1 {
		return fmt.Errorf("burst must be positive: %d", c.Burst)
	}
	return nil
}
