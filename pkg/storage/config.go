package storage

import (
	"fmt"
	"os"
	"strconv"
)

// Backends supported by New.
const (
	BackendFilesystem = "filesystem"
	BackendAzure      = "azure"
)

// MaxListCap bounds the page size used when enumerating keys.
const MaxListCap int32 = 5000

// Config selects and parameterizes a storage backend.
// The azure backend authenticates with ConnectionString when set and
// falls back to the default Azure credential chain against AccountURL.
type Config struct {
	Backend          string `toml:"backend"`
	Path             string `toml:"path"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
	MaxListSize      int32  `toml:"max_list_size"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend          string
	Path             string
	ContainerName    string
	ConnectionString string
	AccountURL       string
	MaxListSize      string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.Path != "" {
		c.Path = overlay.Path
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.AccountURL != "" {
		c.AccountURL = overlay.AccountURL
	}
	if overlay.MaxListSize != 0 {
		c.MaxListSize = overlay.MaxListSize
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFilesystem
	}
	if c.Path == "" {
		c.Path = "data"
	}
	if c.ContainerName == "" {
		c.ContainerName = "policies"
	}
	if c.MaxListSize == 0 {
		c.MaxListSize = 500
	}
	if c.MaxListSize > MaxListCap {
		c.MaxListSize = MaxListCap
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.Path != "" {
		if v := os.Getenv(env.Path); v != "" {
			c.Path = v
		}
	}
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.AccountURL != "" {
		if v := os.Getenv(env.AccountURL); v != "" {
			c.AccountURL = v
		}
	}
	if env.MaxListSize != "" {
		if v := os.Getenv(env.MaxListSize); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.MaxListSize = min(int32(n), MaxListCap)
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Backend {
	case BackendFilesystem:
		if c.Path == "" {
			return fmt.Errorf("path required")
		}
	case BackendAzure:
		if c.ContainerName == "" {
			return fmt.Errorf("container_name required")
		}
		if c.ConnectionString == "" && c.AccountURL == "" {
			return fmt.Errorf("connection_string or account_url required")
		}
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
	return nil
}
