package storage_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"testing"

	"github.com/JaimeStill/lodestar/pkg/storage"
)

const azuriteConnString = "DefaultEndpointsProtocol=http;AccountName=lodestarstore;AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;BlobEndpoint=http://127.0.0.1:10000/lodestarstore;"

func newFilesystem(t *testing.T) storage.System {
	t.Helper()
	sys, err := storage.New(&storage.Config{
		Backend: storage.BackendFilesystem,
		Path:    t.TempDir(),
	}, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return sys
}

func read(t *testing.T, sys storage.System, key string) string {
	t.Helper()
	r, err := sys.Download(context.Background(), key)
	if err != nil {
		t.Fatalf("Download(%s) error = %v", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read %s: %v", key, err)
	}
	return string(data)
}

func TestNewAzureReturnsSystem(t *testing.T) {
	cfg := &storage.Config{
		Backend:          storage.BackendAzure,
		ContainerName:    "policies",
		ConnectionString: azuriteConnString,
	}

	sys, err := storage.New(cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys == nil {
		t.Fatal("New() returned nil system")
	}
}

func TestNewAzureInvalidConnectionString(t *testing.T) {
	cfg := &storage.Config{
		Backend:          storage.BackendAzure,
		ContainerName:    "policies",
		ConnectionString: "not-a-connection-string",
	}

	if _, err := storage.New(cfg, slog.Default()); err == nil {
		t.Fatal("expected error for invalid connection string, got nil")
	}
}

func TestNewUnknownBackend(t *testing.T) {
	if _, err := storage.New(&storage.Config{Backend: "tape"}, slog.Default()); err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ErrNotFound maps to 404", storage.ErrNotFound, http.StatusNotFound},
		{"ErrExists maps to 409", storage.ErrExists, http.StatusConflict},
		{"ErrEmptyKey maps to 400", storage.ErrEmptyKey, http.StatusBadRequest},
		{"ErrInvalidKey maps to 400", storage.ErrInvalidKey, http.StatusBadRequest},
		{"wrapped ErrNotFound maps to 404", fmt.Errorf("operation failed: %w", storage.ErrNotFound), http.StatusNotFound},
		{"unknown error maps to 500", fmt.Errorf("unexpected failure"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storage.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKeyValidation(t *testing.T) {
	sys := newFilesystem(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		key     string
		wantErr error
	}{
		{"empty key", "", storage.ErrEmptyKey},
		{"path traversal", "policies/../secrets/key", storage.ErrInvalidKey},
		{"leading dot dot", "../escape", storage.ErrInvalidKey},
		{"absolute", "/etc/passwd", storage.ErrInvalidKey},
		{"empty segment", "policies//x", storage.ErrInvalidKey},
		{"backslash", `policies\x`, storage.ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sys.Create(ctx, tt.key, bytes.NewReader(nil), "text/plain")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := sys.Download(ctx, tt.key); !errors.Is(err, tt.wantErr) {
				t.Errorf("Download() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFilesystemCreateIfAbsent(t *testing.T) {
	sys := newFilesystem(t)
	ctx := context.Background()

	if err := sys.Create(ctx, "policies/a.json", bytes.NewReader([]byte("first")), "application/json"); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	err := sys.Create(ctx, "policies/a.json", bytes.NewReader([]byte("second")), "application/json")
	if !errors.Is(err, storage.ErrExists) {
		t.Fatalf("second Create error = %v, want ErrExists", err)
	}

	if got := read(t, sys, "policies/a.json"); got != "first" {
		t.Errorf("content = %q, want first", got)
	}
}

func TestFilesystemPutReplaces(t *testing.T) {
	sys := newFilesystem(t)
	ctx := context.Background()

	for _, body := range []string{"one", "two"} {
		if err := sys.Put(ctx, "latest.json", bytes.NewReader([]byte(body)), "application/json"); err != nil {
			t.Fatalf("Put error = %v", err)
		}
	}

	if got := read(t, sys, "latest.json"); got != "two" {
		t.Errorf("content = %q, want two", got)
	}
}

func TestFilesystemExistsDelete(t *testing.T) {
	sys := newFilesystem(t)
	ctx := context.Background()

	ok, err := sys.Exists(ctx, "x/y.json")
	if err != nil || ok {
		t.Fatalf("Exists before create = %v, %v", ok, err)
	}

	if err := sys.Create(ctx, "x/y.json", bytes.NewReader([]byte("{}")), "application/json"); err != nil {
		t.Fatalf("Create error = %v", err)
	}

	ok, err = sys.Exists(ctx, "x/y.json")
	if err != nil || !ok {
		t.Fatalf("Exists after create = %v, %v", ok, err)
	}

	if err := sys.Delete(ctx, "x/y.json"); err != nil {
		t.Fatalf("Delete error = %v", err)
	}
	if err := sys.Delete(ctx, "x/y.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if _, err := sys.Download(ctx, "x/y.json"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Download error = %v, want ErrNotFound", err)
	}
}

func TestFilesystemList(t *testing.T) {
	sys := newFilesystem(t)
	ctx := context.Background()

	keys := []string{
		"policies/matrix/versions/1.0.json",
		"policies/matrix/versions/1.1.json",
		"policies/matrix/latest.json",
		"prompts/classify/versions/1.0.json",
	}
	for _, k := range keys {
		if err := sys.Create(ctx, k, bytes.NewReader([]byte("{}")), "application/json"); err != nil {
			t.Fatalf("Create %s error = %v", k, err)
		}
	}

	got, err := sys.List(ctx, "policies/matrix/versions/")
	if err != nil {
		t.Fatalf("List error = %v", err)
	}
	want := []string{
		"policies/matrix/versions/1.0.json",
		"policies/matrix/versions/1.1.json",
	}
	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}

	empty, err := sys.List(ctx, "missing/")
	if err != nil {
		t.Fatalf("List missing error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("List missing = %v, want empty", empty)
	}
}
