package prompts_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/JaimeStill/lodestar/internal/prompts"
	"github.com/JaimeStill/lodestar/pkg/docstore"
	"github.com/JaimeStill/lodestar/pkg/storage"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func newStore(t *testing.T) prompts.System {
	t.Helper()
	sys, err := storage.New(&storage.Config{Backend: storage.BackendFilesystem, Path: t.TempDir()}, discard)
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	return prompts.New(docstore.New(sys, discard), discard)
}

func TestParseStage(t *testing.T) {
	tests := []struct {
		input   string
		want    prompts.Stage
		wantErr bool
	}{
		{"classify", prompts.StageClassify, false},
		{"extract", prompts.StageExtract, false},
		{"suggest", prompts.StageSuggest, false},
		{"enhance", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := prompts.ParseStage(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEveryStageHasDefaults(t *testing.T) {
	for _, stage := range prompts.Stages() {
		if text, err := prompts.DefaultInstructions(stage); err != nil || text == "" {
			t.Errorf("%s instructions: %q, %v", stage, text, err)
		}
		if text, err := prompts.Spec(stage); err != nil || !strings.Contains(text, "valid JSON") {
			t.Errorf("%s spec: %v", stage, err)
		}
	}
}

func TestFindFallsBackToDefault(t *testing.T) {
	sys := newStore(t)

	p, err := sys.Find(context.Background(), prompts.StageClassify)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}

	want, _ := prompts.DefaultInstructions(prompts.StageClassify)
	if !p.Default || p.Version != "" || p.Instructions != want {
		t.Errorf("prompt = %+v", p)
	}
}

func TestCreateVersions(t *testing.T) {
	sys := newStore(t)
	ctx := context.Background()

	first, err := sys.Create(ctx, prompts.StageSuggest, prompts.CreateCommand{Instructions: "one", CreatedBy: "tuner"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.Version != prompts.FirstVersion {
		t.Errorf("first version = %s", first.Version)
	}

	second, err := sys.Create(ctx, prompts.StageSuggest, prompts.CreateCommand{Instructions: "two", CreatedBy: "tuner"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if second.Version != "1.1" {
		t.Errorf("second version = %s, want 1.1", second.Version)
	}

	text, err := sys.Instructions(ctx, prompts.StageSuggest)
	if err != nil || text != "two" {
		t.Errorf("Instructions = %q, %v", text, err)
	}

	old, err := sys.FindVersion(ctx, prompts.StageSuggest, "1.0")
	if err != nil || old.Instructions != "one" {
		t.Errorf("FindVersion = %+v, %v", old, err)
	}

	versions, _ := sys.Versions(ctx, prompts.StageSuggest)
	if len(versions) != 2 || versions[0] != "1.1" {
		t.Errorf("versions = %v", versions)
	}

	other, _ := sys.Find(ctx, prompts.StageClassify)
	if !other.Default {
		t.Error("writing one stage affected another")
	}
}

func TestStages(t *testing.T) {
	sys := newStore(t)
	ctx := context.Background()

	if _, err := sys.Create(ctx, prompts.StageExtract, prompts.CreateCommand{Instructions: "x"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	infos, err := sys.Stages(ctx)
	if err != nil {
		t.Fatalf("Stages: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("stages = %d, want 3", len(infos))
	}
	for _, info := range infos {
		switch info.Stage {
		case prompts.StageExtract:
			if info.CurrentVersion != "1.0" || info.Versions != 1 {
				t.Errorf("extract = %+v", info)
			}
		default:
			if info.CurrentVersion != "" || info.Versions != 0 {
				t.Errorf("%s = %+v", info.Stage, info)
			}
		}
	}
}

func TestCreateErrors(t *testing.T) {
	sys := newStore(t)
	ctx := context.Background()

	if _, err := sys.Create(ctx, prompts.StageClassify, prompts.CreateCommand{Instructions: "  "}); !errors.Is(err, prompts.ErrEmptyInstructions) {
		t.Errorf("blank err = %v", err)
	}
	if _, err := sys.Create(ctx, "enhance", prompts.CreateCommand{Instructions: "x"}); !errors.Is(err, prompts.ErrInvalidStage) {
		t.Errorf("stage err = %v", err)
	}
	if _, err := sys.FindVersion(ctx, prompts.StageClassify, "2.0"); !errors.Is(err, prompts.ErrNotFound) {
		t.Errorf("missing err = %v", err)
	}
	if _, err := sys.FindVersion(ctx, prompts.StageClassify, "x"); !errors.Is(err, prompts.ErrInvalidVersion) {
		t.Errorf("malformed err = %v", err)
	}
}
