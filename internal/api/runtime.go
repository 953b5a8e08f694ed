package api

import (
	"github.com/JaimeStill/lodestar/internal/config"
	"github.com/JaimeStill/lodestar/internal/infrastructure"
	"github.com/JaimeStill/lodestar/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Advisor    config.AdvisorConfig
	Learning   config.LearningConfig
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Documents: infra.Documents,
			Metrics:   infra.Metrics,
		},
		Pagination: cfg.API.Pagination,
		Advisor:    cfg.Advisor,
		Learning:   cfg.Learning,
	}
}
