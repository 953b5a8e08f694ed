// Package extraction derives process attributes from free text using
// keyword scoring. It is the local fallback when model-based extraction
// is unavailable and has no side effects.
package extraction

import (
	"regexp"
	"strings"

	"github.com/JaimeStill/lodestar/internal/policy"
)

type indicator struct {
	value    string
	patterns []*regexp.Regexp
}

type dimension struct {
	attribute  string
	indicators []indicator
	fallback   string
}

func words(terms ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		out[i] = regexp.MustCompile(`(?i)\b` + t + `\b`)
	}
	return out
}

var dimensions = []dimension{
	{
		attribute: policy.AttrFrequency,
		indicators: []indicator{
			{"hourly", words(`hourly`, `every hour`, `per hour`, `real[- ]?time`, `continuous(ly)?`, `constantly`)},
			{"daily", words(`daily`, `every day`, `each day`, `per day`, `every morning`, `every evening`, `nightly`)},
			{"weekly", words(`weekly`, `every week`, `each week`, `per week`, `fortnightly`, `bi-?weekly`)},
			{"monthly", words(`monthly`, `every month`, `each month`, `month[- ]end`, `quarterly`)},
			{"rare", words(`annual(ly)?`, `yearly`, `once a year`, `rarely`, `occasional(ly)?`, `ad[- ]hoc`)},
		},
		fallback: "weekly",
	},
	{
		attribute: policy.AttrScale,
		indicators: []indicator{
			{"large", words(`thousands`, `hundreds`, `enterprise`, `company[- ]wide`, `global`, `all departments`, `high volume`)},
			{"medium", words(`dozens`, `several teams`, `department`, `multiple teams`, `moderate volume`)},
			{"small", words(`a few`, `small team`, `one person`, `single person`, `handful`, `low volume`)},
		},
		fallback: "medium",
	},
	{
		attribute: policy.AttrCurrentState,
		indicators: []indicator{
			{"paper", words(`paper`, `printed`, `print out`, `handwritten`, `fax(ed)?`, `physical forms?`, `sign(ed)? by hand`)},
			{"manual", words(`manual(ly)?`, `by hand`, `copy and paste`, `re-?key(ing)?`, `spreadsheets?`, `excel`, `email(ed|s)?`)},
			{"partially_digital", words(`partially`, `some systems`, `semi-?automated`, `mix of`, `half`)},
			{"automated", words(`already automated`, `fully automated`, `scheduled job`, `batch job`, `script(s|ed)?`)},
			{"digital", words(`online`, `digital`, `portal`, `web form`, `crm`, `erp`, `database`)},
		},
		fallback: "manual",
	},
	{
		attribute: policy.AttrComplexity,
		indicators: []indicator{
			{"high", words(`judg(e)?ment`, `complex`, `negotiat(e|ion)`, `exceptions?`, `case[- ]by[- ]case`, `decid(e|es|ing)`, `interpret(ation)?`, `expert`)},
			{"medium", words(`some rules`, `several steps`, `approval`, `review`, `check(s|ing)?`, `verify`)},
			{"low", words(`simple`, `straightforward`, `repetitive`, `rule[- ]based`, `copy`, `same steps`, `routine`)},
		},
		fallback: "medium",
	},
	{
		attribute: policy.AttrPainPoints,
		indicators: []indicator{
			{"high", words(`errors?`, `mistakes?`, `delays?`, `backlog`, `frustrat(ed|ing|ion)`, `painful`, `bottleneck`, `complaints?`, `overtime`)},
			{"medium", words(`slow`, `tedious`, `time[- ]consuming`, `inefficient`, `cumbersome`)},
			{"low", words(`works well`, `no issues`, `smooth(ly)?`, `fine`)},
		},
		fallback: "medium",
	},
	{
		attribute: policy.AttrDataSources,
		indicators: []indicator{
			{"structured", words(`database`, `spreadsheets?`, `csv`, `tables?`, `forms?`, `fields`, `erp`, `crm`)},
			{"unstructured", words(`emails?`, `free text`, `letters?`, `documents?`, `pdfs?`, `scans?`, `images?`, `calls?`, `conversations?`)},
			{"semi_structured", words(`invoices?`, `json`, `xml`, `templates?`, `reports?`)},
		},
		fallback: "mixed",
	},
}

// Extract derives an attribute map from text. Categorical values are
// drawn from the bootstrap vocabularies so the result satisfies the
// initial policy's possible values.
func Extract(text string) policy.AttributeMap {
	attrs := make(policy.AttributeMap, len(dimensions)+2)

	for _, d := range dimensions {
		attrs[d.attribute] = policy.StringValue(d.detect(text))
	}

	attrs[policy.AttrBusinessValue] = policy.StringValue(businessValue(attrs))
	attrs[policy.AttrRisk] = policy.StringValue(risk(text, attrs))
	return attrs
}

// detect returns the indicator with the most pattern hits. Ties keep
// the earlier indicator; no hits yields the fallback.
func (d dimension) detect(text string) string {
	best, bestHits := d.fallback, 0
	for _, ind := range d.indicators {
		hits := 0
		for _, p := range ind.patterns {
			hits += len(p.FindAllStringIndex(text, -1))
		}
		if hits > bestHits {
			best, bestHits = ind.value, hits
		}
	}

	if d.attribute == policy.AttrDataSources && best != "mixed" {
		if structured, unstructured := d.hits(text, "structured"), d.hits(text, "unstructured"); structured > 0 && unstructured > 0 {
			return "mixed"
		}
	}
	return best
}

func (d dimension) hits(text, value string) int {
	for _, ind := range d.indicators {
		if ind.value != value {
			continue
		}
		n := 0
		for _, p := range ind.patterns {
			n += len(p.FindAllStringIndex(text, -1))
		}
		return n
	}
	return 0
}

var riskPatterns = words(
	`complian(ce|t)`, `regulat(ed|ory|ion)`, `audit`, `legal`, `safety`, `medical`, `patient`,
	`financial`, `payments?`, `fraud`, `personal data`, `gdpr`, `hipaa`, `sensitive`,
)

func risk(text string, attrs policy.AttributeMap) string {
	hits := 0
	for _, p := range riskPatterns {
		hits += len(p.FindAllStringIndex(text, -1))
	}

	switch {
	case hits >= 2:
		return "high"
	case hits == 1:
		return "medium"
	}
	if value(attrs, policy.AttrComplexity) == "high" {
		return "medium"
	}
	return "low"
}

// businessValue combines frequency, scale, and pain into a coarse level.
func businessValue(attrs policy.AttributeMap) string {
	score := 0
	switch value(attrs, policy.AttrFrequency) {
	case "hourly", "daily":
		score += 2
	case "weekly":
		score++
	}
	switch value(attrs, policy.AttrScale) {
	case "large":
		score += 2
	case "medium":
		score++
	}
	switch value(attrs, policy.AttrPainPoints) {
	case "high":
		score += 2
	case "medium":
		score++
	}

	switch {
	case score >= 5:
		return "high"
	case score >= 3:
		return "medium"
	}
	return "low"
}

func value(attrs policy.AttributeMap, name string) string {
	v, _ := attrs.Get(name)
	return strings.ToLower(v.String())
}
