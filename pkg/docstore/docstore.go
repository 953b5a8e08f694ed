// Package docstore persists versioned, append-only JSON documents on a
// storage backend. Documents are addressed by (collection, id, version);
// a version, once written, is never replaced. A per-document latest
// pointer is promoted when a higher version is written and repaired when
// it falls behind the written versions.
package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/JaimeStill/lodestar/pkg/storage"
)

const (
	contentType = "application/json"
	versionsDir = "versions"
	latestName  = "latest.json"
	docExt      = ".json"
)

// Store reads and writes versioned documents.
type Store struct {
	storage storage.System
	locks   *keyedLock
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a Store over the given storage system.
func New(sys storage.System, logger *slog.Logger) *Store {
	return &Store{
		storage: sys,
		locks:   newKeyedLock(),
		logger:  logger.With("system", "docstore"),
		now:     time.Now,
	}
}

type pointer struct {
	Version   string    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Put writes version of document id in collection. It fails with
// ErrVersionExists if the version, or one that compares equal to it,
// was already written. Writes to the same document are serialized; the
// latest pointer moves only forward and is repaired when a prior write
// stored the version without promoting it.
func (s *Store) Put(ctx context.Context, collection, id, version string, data []byte) error {
	if version == "" {
		return fmt.Errorf("%w: version required", ErrInvalidAddress)
	}
	if err := validateAddress(collection, id, version); err != nil {
		return err
	}

	unlock, err := s.locks.Lock(ctx, docKey(collection, id))
	if err != nil {
		return fmt.Errorf("lock %s/%s: %w", collection, id, err)
	}
	defer unlock()

	existing, err := s.Versions(ctx, collection, id)
	if err != nil {
		return err
	}
	if i := slices.IndexFunc(existing, func(v string) bool {
		return CompareVersions(v, version) == 0
	}); i >= 0 {
		return s.exists(ctx, collection, id, existing[i])
	}

	key := versionKey(collection, id, version)
	if err := s.storage.Create(ctx, key, bytes.NewReader(data), contentType); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return s.exists(ctx, collection, id, version)
		}
		return fmt.Errorf("write %s: %w", key, err)
	}

	promoted, err := s.promote(ctx, collection, id, version)
	if err != nil {
		return err
	}

	s.logger.Info("document version written",
		"collection", collection,
		"id", id,
		"version", version,
		"latest", promoted,
	)
	return nil
}

// exists reports ErrVersionExists for version after making sure the
// latest pointer is not behind it. Callers hold the document lock.
func (s *Store) exists(ctx context.Context, collection, id, version string) error {
	s.repair(ctx, collection, id, version)
	return fmt.Errorf("%s/%s@%s: %w", collection, id, version, ErrVersionExists)
}

// Get returns the content of a specific version.
func (s *Store) Get(ctx context.Context, collection, id, version string) ([]byte, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version required", ErrInvalidAddress)
	}
	if err := validateAddress(collection, id, version); err != nil {
		return nil, err
	}
	return s.read(ctx, versionKey(collection, id, version))
}

// Latest returns the highest written version of a document and its
// content. A latest pointer behind the highest version is repaired.
func (s *Store) Latest(ctx context.Context, collection, id string) (string, []byte, error) {
	if err := validateAddress(collection, id, ""); err != nil {
		return "", nil, err
	}

	versions, err := s.Versions(ctx, collection, id)
	if err != nil {
		return "", nil, err
	}
	if len(versions) == 0 {
		return "", nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	latest := versions[0]

	data, err := s.Get(ctx, collection, id, latest)
	if err != nil {
		return "", nil, err
	}

	if p, err := s.readPointer(ctx, collection, id); err != nil || CompareVersions(p.Version, latest) < 0 {
		if unlock, err := s.locks.Lock(ctx, docKey(collection, id)); err == nil {
			s.repair(ctx, collection, id, latest)
			unlock()
		}
	}

	return latest, data, nil
}

// repair promotes the latest pointer to version. Failures are logged;
// Latest does not depend on the pointer. Callers hold the document lock.
func (s *Store) repair(ctx context.Context, collection, id, version string) {
	promoted, err := s.promote(ctx, collection, id, version)
	if err != nil {
		s.logger.Warn("latest pointer repair failed",
			"collection", collection, "id", id, "version", version, "error", err)
		return
	}
	if promoted {
		s.logger.Warn("latest pointer repaired",
			"collection", collection, "id", id, "version", version)
	}
}

// Versions lists the versions of a document, highest first.
func (s *Store) Versions(ctx context.Context, collection, id string) ([]string, error) {
	if err := validateAddress(collection, id, ""); err != nil {
		return nil, err
	}

	prefix := path.Join(collection, id, versionsDir) + "/"
	keys, err := s.storage.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", collection, id, err)
	}

	versions := make([]string, 0, len(keys))
	for _, k := range keys {
		name := strings.TrimPrefix(k, prefix)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, docExt) {
			continue
		}
		versions = append(versions, strings.TrimSuffix(name, docExt))
	}

	slices.SortFunc(versions, func(a, b string) int {
		return CompareVersions(b, a)
	})
	return versions, nil
}

// promote advances the latest pointer to version when it is higher than
// the current pointer. Callers hold the document lock.
func (s *Store) promote(ctx context.Context, collection, id, version string) (bool, error) {
	current, err := s.readPointer(ctx, collection, id)
	switch {
	case errors.Is(err, ErrNotFound):
	case err != nil:
		return false, err
	case CompareVersions(version, current.Version) <= 0:
		return false, nil
	}

	data, err := json.Marshal(pointer{Version: version, UpdatedAt: s.now().UTC()})
	if err != nil {
		return false, fmt.Errorf("marshal pointer: %w", err)
	}

	key := path.Join(collection, id, latestName)
	if err := s.storage.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return false, fmt.Errorf("promote %s/%s@%s: %w", collection, id, version, err)
	}
	return true, nil
}

func (s *Store) readPointer(ctx context.Context, collection, id string) (pointer, error) {
	var p pointer
	data, err := s.read(ctx, path.Join(collection, id, latestName))
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode pointer %s/%s: %w", collection, id, err)
	}
	return p, nil
}

func (s *Store) read(ctx context.Context, key string) ([]byte, error) {
	r, err := s.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// CompareVersions orders dotted numeric versions component-wise.
// Versions that do not parse order below those that do and compare
// lexically among themselves.
func CompareVersions(a, b string) int {
	va, aerr := semver.NewVersion(a)
	vb, berr := semver.NewVersion(b)
	switch {
	case aerr != nil && berr != nil:
		return strings.Compare(a, b)
	case aerr != nil:
		return -1
	case berr != nil:
		return 1
	}
	return va.Compare(vb)
}

func docKey(collection, id string) string {
	return collection + "/" + id
}

func versionKey(collection, id, version string) string {
	return path.Join(collection, id, versionsDir, version+docExt)
}

func validateAddress(collection, id, version string) error {
	for _, part := range []string{collection, id} {
		if part == "" || strings.ContainsAny(part, "/\\") || part == "." || part == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, part)
		}
	}
	if version != "" && (strings.ContainsAny(version, "/\\") || strings.Contains(version, "..")) {
		return fmt.Errorf("%w: version %q", ErrInvalidAddress, version)
	}
	return nil
}
