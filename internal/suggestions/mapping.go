package suggestions

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"

	"github.com/JaimeStill/lodestar/internal/sampling"
	"github.com/JaimeStill/lodestar/pkg/query"
	"github.com/JaimeStill/lodestar/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "suggestions", "s").
	Project("id", "ID").
	Project("analysis_id", "AnalysisID").
	Project("type", "Type").
	Project("status", "Status").
	Project("rationale", "Rationale").
	Project("impact_estimate", "ImpactEstimate").
	Project("suggested_change", "SuggestedChange").
	Project("validation", "Validation").
	Project("reviewed_by", "ReviewedBy").
	Project("review_note", "ReviewNote").
	Project("applied_version", "AppliedVersion").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

const returning = `
	RETURNING id, analysis_id, type, status, rationale, impact_estimate,
			  suggested_change, validation, reviewed_by, review_note,
			  applied_version, created_at, updated_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for suggestion queries.
type Filters struct {
	AnalysisID *uuid.UUID `json:"analysis_id,omitempty"`
	Status     *string    `json:"status,omitempty"`
	Type       *string    `json:"type,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("AnalysisID", f.AnalysisID).
		WhereEquals("Status", f.Status).
		WhereEquals("Type", f.Type)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if a := values.Get("analysis_id"); a != "" {
		if id, err := uuid.Parse(a); err == nil {
			f.AnalysisID = &id
		}
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if t := values.Get("type"); t != "" {
		f.Type = &t
	}

	return f
}

func scanSuggestion(s repository.Scanner) (Suggestion, error) {
	var sg Suggestion
	var changeRaw, validationRaw []byte

	err := s.Scan(
		&sg.ID,
		&sg.AnalysisID,
		&sg.Type,
		&sg.Status,
		&sg.Rationale,
		&sg.ImpactEstimate,
		&changeRaw,
		&validationRaw,
		&sg.ReviewedBy,
		&sg.ReviewNote,
		&sg.AppliedVersion,
		&sg.CreatedAt,
		&sg.UpdatedAt,
	)
	if err != nil {
		return sg, err
	}

	if len(changeRaw) > 0 {
		if err := json.Unmarshal(changeRaw, &sg.SuggestedChange); err != nil {
			return sg, fmt.Errorf("unmarshal suggested_change: %w", err)
		}
	}

	if len(validationRaw) > 0 {
		var v sampling.Result
		if err := json.Unmarshal(validationRaw, &v); err != nil {
			return sg, fmt.Errorf("unmarshal validation: %w", err)
		}
		sg.Validation = &v
	}

	return sg, nil
}
