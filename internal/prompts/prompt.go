// Package prompts manages versioned model instructions per stage.
// Instructions are stored as append-only documents; output
// specifications are fixed in code.
package prompts

import "time"

// Prompt is one version of a stage's instructions. Default is set when
// no version has been written and the built-in instructions apply.
type Prompt struct {
	Stage        Stage     `json:"stage"`
	Version      string    `json:"version,omitempty"`
	Instructions string    `json:"instructions"`
	Description  string    `json:"description,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
	Default      bool      `json:"default,omitempty"`
}

// CreateCommand carries the data needed to write a new version.
type CreateCommand struct {
	Instructions string `json:"instructions"`
	Description  string `json:"description"`
	CreatedBy    string `json:"created_by"`
}

// StageInfo summarizes a stage for listing.
type StageInfo struct {
	Stage          Stage  `json:"stage"`
	CurrentVersion string `json:"current_version,omitempty"`
	Versions       int    `json:"versions"`
}
