package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/lodestar/pkg/lifecycle"
)

const tempPrefix = ".tmp-"

type filesystem struct {
	root   string
	logger *slog.Logger
}

func newFilesystem(cfg *Config, logger *slog.Logger) (System, error) {
	root, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}
	return &filesystem{
		root:   root,
		logger: logger.With("system", "storage", "backend", BackendFilesystem),
	}, nil
}

func (f *filesystem) Start(lc *lifecycle.Coordinator) error {
	f.logger.Info("starting storage system")

	lc.OnStartup(func() {
		if err := os.MkdirAll(f.root, 0o755); err != nil {
			f.logger.Error("storage directory initialization failed", "error", err)
			return
		}
		f.logger.Info("storage directory ready", "path", f.root)
	})

	return nil
}

func (f *filesystem) Create(ctx context.Context, key string, reader io.Reader, _ string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	tmp, err := f.writeTemp(ctx, key, reader)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, f.path(key)); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create %s: %w", key, ErrExists)
		}
		return fmt.Errorf("create %s: %w", key, err)
	}
	return nil
}

func (f *filesystem) Put(ctx context.Context, key string, reader io.Reader, _ string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	tmp, err := f.writeTemp(ctx, key, reader)
	if err != nil {
		return err
	}

	if err := os.Rename(tmp, f.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (f *filesystem) Download(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	file, err := os.Open(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	return file, nil
}

func (f *filesystem) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	if err := os.Remove(f.path(key)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (f *filesystem) Exists(_ context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	info, err := os.Stat(f.path(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", key, err)
	}
	return !info.IsDir(), nil
}

func (f *filesystem) List(ctx context.Context, prefix string) ([]string, error) {
	dir := prefix
	if !strings.HasSuffix(dir, "/") {
		dir = path.Dir(dir)
	}
	start := filepath.Join(f.root, filepath.FromSlash(dir))

	keys := make([]string, 0)
	err := filepath.WalkDir(start, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}

		rel, err := filepath.Rel(f.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	slices.Sort(keys)
	return keys, nil
}

func (f *filesystem) path(key string) string {
	return filepath.Join(f.root, filepath.FromSlash(key))
}

// writeTemp materializes reader into a temp file beside the final path
// so promotion is a same-directory link or rename.
func (f *filesystem) writeTemp(ctx context.Context, key string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := filepath.Dir(f.path(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("prepare %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(dir, tempPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("prepare %s: %w", key, err)
	}

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", key, err)
	}
	return tmp.Name(), nil
}
