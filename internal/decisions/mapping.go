package decisions

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/JaimeStill/lodestar/pkg/query"
	"github.com/JaimeStill/lodestar/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "decisions", "d").
	Project("id", "ID").
	Project("text", "Text").
	Project("category", "Category").
	Project("confidence", "Confidence").
	Project("original_classification", "OriginalClassification").
	Project("classification", "Classification").
	Project("attributes", "Attributes").
	Project("attribute_source", "AttributeSource").
	Project("policy_version", "PolicyVersion").
	Project("triggered_rules", "TriggeredRules").
	Project("overridden", "Overridden").
	Project("human_confirmed", "HumanConfirmed").
	Project("corrected_category", "CorrectedCategory").
	Project("reviewed_by", "ReviewedBy").
	Project("feedback_note", "FeedbackNote").
	Project("reviewed_at", "ReviewedAt").
	Project("created_at", "CreatedAt")

const returning = `
	RETURNING id, text, category, confidence, original_classification,
			  classification, attributes, attribute_source, policy_version,
			  triggered_rules, overridden, human_confirmed, corrected_category,
			  reviewed_by, feedback_note, reviewed_at, created_at`

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for decision queries.
type Filters struct {
	Category       *string    `json:"category,omitempty"`
	PolicyVersion  *string    `json:"policy_version,omitempty"`
	Overridden     *bool      `json:"overridden,omitempty"`
	HumanConfirmed *bool      `json:"human_confirmed,omitempty"`
	Reviewed       bool       `json:"reviewed,omitempty"`
	From           *time.Time `json:"from,omitempty"`
	To             *time.Time `json:"to,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Category", f.Category).
		WhereEquals("PolicyVersion", f.PolicyVersion).
		WhereEquals("Overridden", f.Overridden).
		WhereEquals("HumanConfirmed", f.HumanConfirmed).
		WhereNotNull("ReviewedAt", f.Reviewed).
		WhereAtLeast("CreatedAt", f.From).
		WhereBefore("CreatedAt", f.To)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if c := values.Get("category"); c != "" {
		f.Category = &c
	}

	if v := values.Get("policy_version"); v != "" {
		f.PolicyVersion = &v
	}

	if o := values.Get("overridden"); o != "" {
		if b, err := strconv.ParseBool(o); err == nil {
			f.Overridden = &b
		}
	}

	if h := values.Get("human_confirmed"); h != "" {
		if b, err := strconv.ParseBool(h); err == nil {
			f.HumanConfirmed = &b
		}
	}

	if r := values.Get("reviewed"); r != "" {
		f.Reviewed, _ = strconv.ParseBool(r)
	}

	if from := values.Get("from"); from != "" {
		if t, err := time.Parse(time.RFC3339, from); err == nil {
			f.From = &t
		}
	}

	if to := values.Get("to"); to != "" {
		if t, err := time.Parse(time.RFC3339, to); err == nil {
			f.To = &t
		}
	}

	return f
}

func scanDecision(s repository.Scanner) (Decision, error) {
	var d Decision
	var originalRaw, classificationRaw, attributesRaw, rulesRaw []byte

	err := s.Scan(
		&d.ID,
		&d.Text,
		&d.Category,
		&d.Confidence,
		&originalRaw,
		&classificationRaw,
		&attributesRaw,
		&d.AttributeSource,
		&d.PolicyVersion,
		&rulesRaw,
		&d.Overridden,
		&d.HumanConfirmed,
		&d.CorrectedCategory,
		&d.ReviewedBy,
		&d.FeedbackNote,
		&d.ReviewedAt,
		&d.CreatedAt,
	)
	if err != nil {
		return d, err
	}

	decode := []struct {
		column string
		raw    []byte
		dest   any
	}{
		{"original_classification", originalRaw, &d.OriginalClassification},
		{"classification", classificationRaw, &d.Classification},
		{"attributes", attributesRaw, &d.Attributes},
		{"triggered_rules", rulesRaw, &d.TriggeredRules},
	}
	for _, c := range decode {
		if len(c.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(c.raw, c.dest); err != nil {
			return d, fmt.Errorf("unmarshal %s: %w", c.column, err)
		}
	}

	return d, nil
}
