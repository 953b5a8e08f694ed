package policy

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// Category is one of the six process transformation categories.
// The declaration order is the ordinal order, from least to most
// automation-intensive.
type Category string

const (
	CategoryEliminate Category = "Eliminate"
	CategorySimplify  Category = "Simplify"
	CategoryDigitise  Category = "Digitise"
	CategoryRPA       Category = "RPA"
	CategoryAIAgent   Category = "AI Agent"
	CategoryAgenticAI Category = "Agentic AI"
)

var categories = []Category{
	CategoryEliminate,
	CategorySimplify,
	CategoryDigitise,
	CategoryRPA,
	CategoryAIAgent,
	CategoryAgenticAI,
}

// Categories returns the valid categories in ordinal order.
func Categories() []Category {
	return slices.Clone(categories)
}

// Valid reports whether c is one of the six categories.
func (c Category) Valid() bool {
	return slices.Contains(categories, c)
}

// Ordinal returns the position of c in the category ordering, or -1.
func (c Category) Ordinal() int {
	return slices.Index(categories, c)
}

// ParseCategory resolves s to a category. Matching ignores case and
// surrounding whitespace so that model output such as "rpa" resolves.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// UnmarshalJSON normalizes known categories and keeps unknown values
// verbatim; Valid reports whether the decoded value is usable.
func (c *Category) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if parsed, err := ParseCategory(raw); err == nil {
		*c = parsed
		return nil
	}
	*c = Category(raw)
	return nil
}
