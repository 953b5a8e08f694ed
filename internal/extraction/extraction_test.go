package extraction_test

import (
	"testing"
	"time"

	"github.com/JaimeStill/lodestar/internal/extraction"
	"github.com/JaimeStill/lodestar/internal/policy"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{
			name: "daily spreadsheet rekeying",
			text: "Every day our team copies invoice totals from a spreadsheet into the ERP. It is simple and repetitive, but errors and delays are common. Hundreds of invoices per day.",
			want: map[string]string{
				policy.AttrFrequency:     "daily",
				policy.AttrScale:         "large",
				policy.AttrComplexity:    "low",
				policy.AttrPainPoints:    "high",
				policy.AttrBusinessValue: "high",
			},
		},
		{
			name: "paper annual form",
			text: "Once a year staff fill in a paper form by hand and post it to head office.",
			want: map[string]string{
				policy.AttrFrequency:    "rare",
				policy.AttrCurrentState: "paper",
			},
		},
		{
			name: "regulated judgment work",
			text: "Analysts review patient complaints weekly and use expert judgement to decide on compliance actions.",
			want: map[string]string{
				policy.AttrFrequency:  "weekly",
				policy.AttrComplexity: "high",
				policy.AttrRisk:       "high",
			},
		},
		{
			name: "mixed data sources",
			text: "We pull figures from the database and read customer emails to reconcile them.",
			want: map[string]string{
				policy.AttrDataSources: "mixed",
			},
		},
		{
			name: "no indicators",
			text: "Something happens.",
			want: map[string]string{
				policy.AttrFrequency:   "weekly",
				policy.AttrScale:       "medium",
				policy.AttrComplexity:  "medium",
				policy.AttrDataSources: "mixed",
				policy.AttrRisk:        "low",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := extraction.Extract(tt.text)
			for name, want := range tt.want {
				got, ok := attrs.Get(name)
				if !ok {
					t.Errorf("%s missing", name)
					continue
				}
				if got.String() != want {
					t.Errorf("%s = %q, want %q", name, got.String(), want)
				}
			}
		})
	}
}

func TestExtractSatisfiesBootstrapVocabulary(t *testing.T) {
	p := policy.Bootstrap("test", time.Now())
	texts := []string{
		"",
		"Hourly monitoring of the CRM with complex exceptions and frequent complaints.",
		"A handful of people print letters and fax them monthly.",
	}

	for _, text := range texts {
		attrs := extraction.Extract(text)
		for _, name := range attrs.Keys() {
			a, ok := p.Attribute(name)
			if !ok {
				t.Errorf("extracted attribute %q not declared in bootstrap policy", name)
				continue
			}
			v, _ := attrs.Get(name)
			if !a.Allows(v) {
				t.Errorf("%s = %q not in possible values %v", name, v.String(), a.PossibleValues)
			}
		}
		if len(attrs) != len(p.Attributes) {
			t.Errorf("extracted %d attributes, want %d", len(attrs), len(p.Attributes))
		}
	}
}
