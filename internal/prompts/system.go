package prompts

import "context"

// System defines the public contract for prompt domain operations.
type System interface {
	Handler() *Handler

	Stages(ctx context.Context) ([]StageInfo, error)

	// Find returns the current instructions for stage: the highest
	// written version, or the built-in default.
	Find(ctx context.Context, stage Stage) (*Prompt, error)
	FindVersion(ctx context.Context, stage Stage, version string) (*Prompt, error)
	Versions(ctx context.Context, stage Stage) ([]string, error)

	// Create writes the next minor version of stage's instructions.
	Create(ctx context.Context, stage Stage, cmd CreateCommand) (*Prompt, error)

	Instructions(ctx context.Context, stage Stage) (string, error)
	Spec(ctx context.Context, stage Stage) (string, error)
}
