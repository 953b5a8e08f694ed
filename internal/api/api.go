// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/lodestar/internal/config"
	"github.com/JaimeStill/lodestar/internal/infrastructure"
	"github.com/JaimeStill/lodestar/pkg/middleware"
	"github.com/JaimeStill/lodestar/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// The policy bootstrap runs as a startup hook so the first request always
// finds a policy to evaluate against.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, cfg); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.MaxBody(cfg.API.MaxBodySizeBytes()))

	runtime.Lifecycle.OnStartup(func() {
		if err := domain.Bootstrap(runtime.Lifecycle.Context()); err != nil {
			runtime.Logger.Error("policy bootstrap failed", "error", err)
		}
	})

	return m, nil
}
