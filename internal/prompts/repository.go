package prompts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/lodestar/internal/policy"
	"github.com/JaimeStill/lodestar/pkg/docstore"
)

// Collection is the document store collection holding prompt versions.
// Each stage is a document within it.
const Collection = "prompts"

// FirstVersion is assigned to the first written version of a stage.
const FirstVersion = "1.0"

const createAttempts = 3

type repo struct {
	store  *docstore.Store
	logger *slog.Logger
	now    func() time.Time
}

// New creates a prompt store implementing the System interface.
func New(store *docstore.Store, logger *slog.Logger) System {
	return &repo{
		store:  store,
		logger: logger.With("system", "prompts"),
		now:    time.Now,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) Stages(ctx context.Context) ([]StageInfo, error) {
	infos := make([]StageInfo, 0, len(stages))
	for _, s := range stages {
		versions, err := r.Versions(ctx, s)
		if err != nil {
			return nil, err
		}
		info := StageInfo{Stage: s, Versions: len(versions)}
		if len(versions) > 0 {
			info.CurrentVersion = versions[0]
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (r *repo) Find(ctx context.Context, stage Stage) (*Prompt, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}

	_, data, err := r.store.Latest(ctx, Collection, string(stage))
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			text, _ := DefaultInstructions(stage)
			return &Prompt{Stage: stage, Instructions: text, Default: true}, nil
		}
		return nil, fmt.Errorf("find prompt %s: %w", stage, err)
	}
	return decode(data)
}

func (r *repo) FindVersion(ctx context.Context, stage Stage, version string) (*Prompt, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}
	if !policy.ValidVersion(version) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, version)
	}

	data, err := r.store.Get(ctx, Collection, string(stage), version)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s@%s", ErrNotFound, stage, version)
		}
		return nil, fmt.Errorf("find prompt %s@%s: %w", stage, version, err)
	}
	return decode(data)
}

func (r *repo) Versions(ctx context.Context, stage Stage) ([]string, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}

	versions, err := r.store.Versions(ctx, Collection, string(stage))
	if err != nil {
		return nil, fmt.Errorf("list prompt versions %s: %w", stage, err)
	}
	return versions, nil
}

func (r *repo) Create(ctx context.Context, stage Stage, cmd CreateCommand) (*Prompt, error) {
	if _, err := ParseStage(string(stage)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.Instructions) == "" {
		return nil, ErrEmptyInstructions
	}

	// A concurrent writer may claim the computed version; recompute and retry.
	var err error
	for range createAttempts {
		var p *Prompt
		p, err = r.create(ctx, stage, cmd)
		if err == nil {
			r.logger.Info("prompt version created",
				"stage", stage,
				"version", p.Version,
				"created_by", p.CreatedBy,
			)
			return p, nil
		}
		if !errors.Is(err, ErrVersionExists) {
			return nil, err
		}
	}
	return nil, err
}

func (r *repo) create(ctx context.Context, stage Stage, cmd CreateCommand) (*Prompt, error) {
	versions, err := r.Versions(ctx, stage)
	if err != nil {
		return nil, err
	}

	version := FirstVersion
	if len(versions) > 0 {
		version, err = policy.NextMinor(versions[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidVersion, err)
		}
	}

	p := Prompt{
		Stage:        stage,
		Version:      version,
		Instructions: cmd.Instructions,
		Description:  cmd.Description,
		CreatedBy:    cmd.CreatedBy,
		CreatedAt:    r.now().UTC(),
	}

	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal prompt: %w", err)
	}

	if err := r.store.Put(ctx, Collection, string(stage), version, data); err != nil {
		if errors.Is(err, docstore.ErrVersionExists) {
			return nil, fmt.Errorf("%w: %s@%s", ErrVersionExists, stage, version)
		}
		return nil, fmt.Errorf("write prompt %s@%s: %w", stage, version, err)
	}
	return &p, nil
}

func (r *repo) Instructions(ctx context.Context, stage Stage) (string, error) {
	p, err := r.Find(ctx, stage)
	if err != nil {
		return "", err
	}
	return p.Instructions, nil
}

func (r *repo) Spec(_ context.Context, stage Stage) (string, error) {
	return Spec(stage)
}

func decode(data []byte) (*Prompt, error) {
	var p Prompt
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}
	return &p, nil
}
