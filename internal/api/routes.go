package api

import (
	"net/http"

	"github.com/JaimeStill/lodestar/internal/config"
	"github.com/JaimeStill/lodestar/pkg/openapi"
	"github.com/JaimeStill/lodestar/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
) error {
	groups := []routes.Group{
		domain.Policies.Handler().Routes(),
		domain.Prompts.Handler().Routes(),
		domain.Decisions.Handler().Routes(),
		domain.Learning.Handler().Routes(),
	}
	routes.Register(mux, groups...)

	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.AddGroups("", groups...)

	specBytes, err := openapi.MarshalJSON(spec)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(specBytes))

	return nil
}
