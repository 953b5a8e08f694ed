package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaimeStill/lodestar/internal/prompts"
)

// ComposePrompt builds a system prompt by combining the stage's current
// instructions, its immutable output specification, and optional JSON
// context. When context is nil the prompt contains only instructions and
// spec.
func ComposePrompt(
	ctx context.Context,
	ps prompts.System,
	stage prompts.Stage,
	promptContext any,
) (string, error) {
	instructions, err := ps.Instructions(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load instructions for %s: %w", stage, err)
	}

	spec, err := ps.Spec(ctx, stage)
	if err != nil {
		return "", fmt.Errorf("load spec for %s: %w", stage, err)
	}

	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\n")
	sb.WriteString(spec)

	if promptContext != nil {
		data, err := json.MarshalIndent(promptContext, "", "  ")
		if err != nil {
			return "", fmt.Errorf("serialize %s context: %w", stage, err)
		}

		sb.WriteString("\n\nContext:\n\n")
		sb.Write(data)
	}

	return sb.String(), nil
}
