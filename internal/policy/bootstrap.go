package policy

import "time"

// BootstrapVersion is the version of the generated initial policy.
const BootstrapVersion = "1.0"

// Attribute names shared by the bootstrap policy, the heuristic
// extractor, and the weighted scoring table.
const (
	AttrFrequency     = "frequency"
	AttrScale         = "scale"
	AttrCurrentState  = "current_state"
	AttrComplexity    = "complexity"
	AttrPainPoints    = "pain_points"
	AttrDataSources   = "data_sources"
	AttrBusinessValue = "business_value"
	AttrRisk          = "risk"
)

var levels = []string{"low", "medium", "high"}

// Bootstrap returns the initial policy version.
func Bootstrap(createdBy string, now time.Time) *Policy {
	return &Policy{
		Version:     BootstrapVersion,
		CreatedAt:   now.UTC(),
		CreatedBy:   createdBy,
		Description: "Initial decision matrix",
		Active:      true,
		Attributes: []Attribute{
			{
				Name:           AttrFrequency,
				Type:           AttributeCategorical,
				PossibleValues: []string{"hourly", "daily", "weekly", "monthly", "rare"},
				Weight:         0.7,
				Description:    "How often the process runs",
			},
			{
				Name:           AttrScale,
				Type:           AttributeCategorical,
				PossibleValues: []string{"small", "medium", "large"},
				Weight:         0.5,
				Description:    "Volume of work or number of people involved",
			},
			{
				Name:           AttrCurrentState,
				Type:           AttributeCategorical,
				PossibleValues: []string{"paper", "manual", "partially_digital", "digital", "automated"},
				Weight:         0.5,
				Description:    "Degree of digitisation today",
			},
			{
				Name:           AttrComplexity,
				Type:           AttributeCategorical,
				PossibleValues: levels,
				Weight:         0.8,
				Description:    "Amount of judgment and branching involved",
			},
			{
				Name:           AttrPainPoints,
				Type:           AttributeCategorical,
				PossibleValues: levels,
				Weight:         0.5,
				Description:    "Severity of reported problems",
			},
			{
				Name:           AttrDataSources,
				Type:           AttributeCategorical,
				PossibleValues: []string{"structured", "semi_structured", "unstructured", "mixed"},
				Weight:         0.5,
				Description:    "Shape of the data the process consumes",
			},
			{
				Name:           AttrBusinessValue,
				Type:           AttributeCategorical,
				PossibleValues: levels,
				Weight:         0.9,
				Description:    "Value delivered by the process",
			},
			{
				Name:           AttrRisk,
				Type:           AttributeCategorical,
				PossibleValues: levels,
				Weight:         0.8,
				Description:    "Regulatory, financial, or safety exposure",
			},
		},
		Rules: []Rule{
			{
				RuleID:      "high-risk-review",
				Name:        "High risk requires review",
				Description: "High risk processes are routed to manual review",
				Conditions:  []Condition{Equals(AttrRisk, StringValue("high"))},
				Action:      FlagReview("High risk process; confirm with a human reviewer"),
				Priority:    80,
				Active:      true,
			},
			{
				RuleID:      "low-value-rare-eliminate",
				Name:        "Low value rare process",
				Description: "Rarely executed low value processes are candidates for removal",
				Conditions: []Condition{
					Equals(AttrBusinessValue, StringValue("low")),
					In(AttrFrequency, StringValue("monthly"), StringValue("rare")),
				},
				Action:   Override(CategoryEliminate, "Low business value and rarely executed"),
				Priority: 70,
				Active:   true,
			},
			{
				RuleID:      "repetitive-structured-rpa",
				Name:        "Repetitive structured work",
				Description: "Frequent, simple work over structured data suits RPA",
				Conditions: []Condition{
					In(AttrFrequency, StringValue("hourly"), StringValue("daily")),
					Equals(AttrComplexity, StringValue("low")),
					Equals(AttrDataSources, StringValue("structured")),
				},
				Action:   Override(CategoryRPA, "High frequency, low complexity, structured data"),
				Priority: 60,
				Active:   true,
			},
			{
				RuleID:      "paper-digitise",
				Name:        "Paper based process",
				Description: "Paper processes are digitised before further automation",
				Conditions:  []Condition{Equals(AttrCurrentState, StringValue("paper"))},
				Action:      Override(CategoryDigitise, "Process is paper based"),
				Priority:    50,
				Active:      true,
			},
			{
				RuleID:      "unstructured-complex-boost",
				Name:        "Complex unstructured work",
				Description: "Judgment over unstructured data raises confidence in agent categories",
				Conditions: []Condition{
					Equals(AttrComplexity, StringValue("high")),
					In(AttrDataSources, StringValue("unstructured"), StringValue("mixed")),
				},
				Action:   AdjustConfidence(0.1, "High complexity over unstructured data"),
				Priority: 40,
				Active:   true,
			},
			{
				RuleID:      "high-pain-boost",
				Name:        "High pain points",
				Description: "Strong reported pain increases confidence that change is warranted",
				Conditions:  []Condition{Equals(AttrPainPoints, StringValue("high"))},
				Action:      AdjustConfidence(0.05, "Severe pain points reported"),
				Priority:    20,
				Active:      true,
			},
		},
	}
}
