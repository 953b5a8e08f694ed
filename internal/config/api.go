package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/lodestar/pkg/formatting"
	"github.com/JaimeStill/lodestar/pkg/middleware"
	"github.com/JaimeStill/lodestar/pkg/openapi"
	"github.com/JaimeStill/lodestar/pkg/pagination"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "LODESTAR_CORS_ENABLED",
	Origins:          "LODESTAR_CORS_ORIGINS",
	AllowedMethods:   "LODESTAR_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "LODESTAR_CORS_ALLOWED_HEADERS",
	AllowCredentials: "LODESTAR_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "LODESTAR_CORS_MAX_AGE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "LODESTAR_OPENAPI_TITLE",
	Description: "LODESTAR_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "LODESTAR_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "LODESTAR_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, OpenAPI, and pagination settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	OpenAPI     openapi.Config        `toml:"openapi"`
	Pagination  pagination.Config     `toml:"pagination"`
}

// MaxBodySizeBytes returns MaxBodySize in bytes.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil {
		return 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.OpenAPI.Merge(&overlay.OpenAPI)
	c.Pagination.Merge(&overlay.Pagination)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("LODESTAR_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv("LODESTAR_API_MAX_BODY_SIZE"); v != "" {
		c.MaxBodySize = v
	}
}
