package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvLearningAgreementThreshold = "LODESTAR_LEARNING_AGREEMENT_THRESHOLD"
	EnvLearningSampleFraction     = "LODESTAR_LEARNING_SAMPLE_FRACTION"
	EnvLearningSampleCap          = "LODESTAR_LEARNING_SAMPLE_CAP"
	EnvLearningValidationTimeout  = "LODESTAR_LEARNING_VALIDATION_TIMEOUT"
	EnvLearningWorkers            = "LODESTAR_LEARNING_WORKERS"
	EnvLearningLookback           = "LODESTAR_LEARNING_LOOKBACK"
	EnvLearningSystemActor        = "LODESTAR_LEARNING_SYSTEM_ACTOR"
)

// LearningConfig holds the feedback analysis and validation parameters.
type LearningConfig struct {
	AgreementThreshold float64 `toml:"agreement_threshold"`
	SampleFraction     float64 `toml:"sample_fraction"`
	SampleCap          int     `toml:"sample_cap"`
	ValidationTimeout  string  `toml:"validation_timeout"`
	Workers            int     `toml:"workers"`
	Lookback           string  `toml:"lookback"`
	SystemActor        string  `toml:"system_actor"`
}

// ValidationTimeoutDuration returns ValidationTimeout as a time.Duration.
func (c *LearningConfig) ValidationTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ValidationTimeout)
	return d
}

// LookbackDuration returns Lookback as a time.Duration.
func (c *LearningConfig) LookbackDuration() time.Duration {
	d, _ := time.ParseDuration(c.Lookback)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LearningConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *LearningConfig) Merge(overlay *LearningConfig) {
	if overlay.AgreementThreshold != 0 {
		c.AgreementThreshold = overlay.AgreementThreshold
	}
	if overlay.SampleFraction != 0 {
		c.SampleFraction = overlay.SampleFraction
	}
	if overlay.SampleCap != 0 {
		c.SampleCap = overlay.SampleCap
	}
	if overlay.ValidationTimeout != "" {
		c.ValidationTimeout = overlay.ValidationTimeout
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.Lookback != "" {
		c.Lookback = overlay.Lookback
	}
	if overlay.SystemActor != "" {
		c.SystemActor = overlay.SystemActor
	}
}

func (c *LearningConfig) loadDefaults() {
	if c.AgreementThreshold == 0 {
		c.AgreementThreshold = 0.8
	}
	if c.SampleFraction == 0 {
		c.SampleFraction = 0.1
	}
	if c.SampleCap == 0 {
		c.SampleCap = 1000
	}
	if c.ValidationTimeout == "" {
		c.ValidationTimeout = "30s"
	}
	if c.Workers == 0 {
		c.Workers = 4
	}
	if c.Lookback == "" {
		c.Lookback = "720h"
	}
	if c.SystemActor == "" {
		c.SystemActor = "system"
	}
}

func (c *LearningConfig) loadEnv() {
	if v := os.Getenv(EnvLearningAgreementThreshold); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.AgreementThreshold = f
		}
	}
	if v := os.Getenv(EnvLearningSampleFraction); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.SampleFraction = f
		}
	}
	if v := os.Getenv(EnvLearningSampleCap); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SampleCap = n
		}
	}
	if v := os.Getenv(EnvLearningValidationTimeout); v != "" {
		c.ValidationTimeout = v
	}
	if v := os.Getenv(EnvLearningWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvLearningLookback); v != "" {
		c.Lookback = v
	}
	if v := os.Getenv(EnvLearningSystemActor); v != "" {
		c.SystemActor = v
	}
}

func (c *LearningConfig) validate() error {
	if c.AgreementThreshold <= 0 || c.AgreementThreshold > 1 {
		return fmt.Errorf("agreement_threshold must be in (0, 1]: %v", c.AgreementThreshold)
	}
	if c.SampleFraction <= 0 || c.SampleFraction > 1 {
		return fmt.Errorf("sample_fraction must be in (0, 1]: %v", c.SampleFraction)
	}
	if c.SampleCap < 1 {
		return fmt.Errorf("sample_cap must be positive: %d", c.SampleCap)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive: %d", c.Workers)
	}
	if _, err := time.ParseDuration(c.ValidationTimeout); err != nil {
		return fmt.Errorf("invalid validation_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Lookback); err != nil {
		return fmt.Errorf("invalid lookback: %w", err)
	}
	return nil
}
