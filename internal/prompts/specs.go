package prompts

const classifySpec = `Respond with a JSON object matching this exact structure:

{
  "category": "<Eliminate|Simplify|Digitise|RPA|AI Agent|Agentic AI>",
  "confidence": 0.0,
  "rationale": "<explanation>",
  "category_progression": "<explanation>",
  "future_opportunities": ["<opportunity>"]
}

Field constraints:
- category: Exactly one of the six category names.
- confidence: Number between 0 and 1.
- rationale: Brief explanation referencing evidence in the description.
- category_progression: How the process could move to a more automated
  category later, or an empty string.
- future_opportunities: Zero or more short follow-up ideas.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Never return more than one category`

const extractSpec = `Respond with a JSON object whose keys are attribute names and whose
values are one of that attribute's allowed values:

{
  "<attribute>": "<value>"
}

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Use only attribute names and values listed in the context
- Omit attributes without supporting evidence`

const suggestSpec = `Respond with a JSON object matching this exact structure:

{
  "suggestions": [
    {
      "type": "<new_rule|modify_rule|adjust_weight>",
      "rationale": "<explanation>",
      "impact_estimate": "<expected effect>",
      "suggested_change": {
        "rule": {
          "rule_id": "<id>",
          "name": "<name>",
          "description": "<description>",
          "conditions": [
            {"attribute": "<attribute>", "operator": "<==|!=|>|<|>=|<=|in|not_in>", "value": "<value>"}
          ],
          "action": {
            "type": "<override|adjust_confidence|flag_review>",
            "target_category": "<category>",
            "confidence_adjustment": 0.0,
            "rationale": "<explanation>"
          },
          "priority": 50,
          "active": true
        },
        "attribute": "<attribute>",
        "new_weight": 0.5
      }
    }
  ]
}

Field constraints:
- type: new_rule adds a rule, modify_rule replaces the rule with the same
  rule_id, adjust_weight changes one attribute weight.
- suggested_change.rule: Required for new_rule and modify_rule.
- suggested_change.attribute and new_weight: Required for adjust_weight.
  new_weight is between 0 and 1.
- conditions: All conditions must hold for the rule to match. Values of
  in and not_in are arrays.
- target_category: Required for override actions; exactly one category.
- priority: Integer between 0 and 100; higher runs first.

Behavioral constraints:
- Always respond with valid JSON, no markdown fencing
- Reference only attributes, values, and rule ids present in the policy
- Return an empty suggestions array when no change is warranted`

var specs = map[Stage]string{
	StageClassify: classifySpec,
	StageExtract:  extractSpec,
	StageSuggest:  suggestSpec,
}

// Spec returns the hardcoded output specification for a stage.
// Specifications define the expected output format and behavioral
// constraints and are not versioned.
// Returns ErrInvalidStage if the stage is not recognized.
func Spec(stage Stage) (string, error) {
	text, ok := specs[stage]
	if !ok {
		return "", ErrInvalidStage
	}
	return text, nil
}
