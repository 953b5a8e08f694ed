package storage_test

import (
	"strings"
	"testing"

	"github.com/JaimeStill/lodestar/pkg/storage"
)

func TestFinalizeDefaults(t *testing.T) {
	cfg := storage.Config{}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Backend != storage.BackendFilesystem {
		t.Errorf("backend: got %s, want filesystem", cfg.Backend)
	}
	if cfg.Path != "data" {
		t.Errorf("path: got %s, want data", cfg.Path)
	}
	if cfg.ContainerName != "policies" {
		t.Errorf("container_name: got %s, want policies", cfg.ContainerName)
	}
}

func TestFinalizeEnvOverrides(t *testing.T) {
	t.Setenv("TEST_BACKEND", "azure")
	t.Setenv("TEST_CONTAINER", "matrices")
	t.Setenv("TEST_CONN", "override-connection")
	t.Setenv("TEST_MAX_LIST", "9999")

	env := &storage.Env{
		Backend:          "TEST_BACKEND",
		ContainerName:    "TEST_CONTAINER",
		ConnectionString: "TEST_CONN",
		MaxListSize:      "TEST_MAX_LIST",
	}

	cfg := storage.Config{}
	if err := cfg.Finalize(env); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.Backend != storage.BackendAzure {
		t.Errorf("backend: got %s, want azure", cfg.Backend)
	}
	if cfg.ContainerName != "matrices" {
		t.Errorf("container_name: got %s, want matrices", cfg.ContainerName)
	}
	if cfg.ConnectionString != "override-connection" {
		t.Errorf("connection_string: got %s, want override-connection", cfg.ConnectionString)
	}
	if cfg.MaxListSize != storage.MaxListCap {
		t.Errorf("max_list_size: got %d, want %d", cfg.MaxListSize, storage.MaxListCap)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     storage.Config
		wantErr string
	}{
		{
			name:    "azure without credentials",
			cfg:     storage.Config{Backend: storage.BackendAzure},
			wantErr: "connection_string or account_url required",
		},
		{
			name:    "azure with account url",
			cfg:     storage.Config{Backend: storage.BackendAzure, AccountURL: "https://acct.blob.core.windows.net"},
			wantErr: "",
		},
		{
			name:    "unknown backend",
			cfg:     storage.Config{Backend: "tape"},
			wantErr: "unknown backend",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := storage.Config{Backend: "filesystem", Path: "data", ContainerName: "policies"}
	overlay := storage.Config{Backend: "azure", ConnectionString: "conn"}

	base.Merge(&overlay)

	if base.Backend != "azure" {
		t.Errorf("backend: got %s, want azure", base.Backend)
	}
	if base.Path != "data" {
		t.Errorf("path: got %s, want data", base.Path)
	}
	if base.ConnectionString != "conn" {
		t.Errorf("connection_string: got %s, want conn", base.ConnectionString)
	}
}
