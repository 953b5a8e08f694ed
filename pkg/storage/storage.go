// Package storage provides keyed object storage with filesystem and Azure
// Blob Storage implementations.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/JaimeStill/lodestar/pkg/lifecycle"
)

// System manages object storage operations and lifecycle coordination.
// Keys are slash separated paths.
type System interface {
	// Start registers a startup hook that prepares the backing store.
	Start(lc *lifecycle.Coordinator) error
	// Create writes data at key only if no object exists there.
	// Returns ErrExists otherwise. Readers never observe partial content.
	Create(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Put writes data at key, replacing any existing object atomically.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	// Download returns a stream for the object at key. The caller must close the reader.
	// Returns ErrNotFound if the object does not exist.
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Returns ErrNotFound if the object does not exist.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object exists at key.
	Exists(ctx context.Context, key string) (bool, error)
	// List returns the keys beginning with prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// New creates the storage system selected by cfg.Backend.
// Clients are constructed eagerly; no I/O happens until Start or the
// first operation.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	switch cfg.Backend {
	case BackendFilesystem, "":
		return newFilesystem(cfg, logger)
	case BackendAzure:
		return newAzure(cfg, logger)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return ErrInvalidKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	if path.Clean(key) != key {
		return ErrInvalidKey
	}
	return nil
}
