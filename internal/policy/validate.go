package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var structValidator = sync.OnceValues(func() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("policyversion", validatePolicyVersion); err != nil {
		return nil, fmt.Errorf("failed to register policyversion validator: %w", err)
	}
	return v, nil
})

func validatePolicyVersion(fl validator.FieldLevel) bool {
	return ValidVersion(fl.Field().String())
}

// Validate checks the policy's structure and its cross-references: every
// condition of an active rule names a declared attribute, categorical
// condition values are among that attribute's possible values, and
// override targets are valid categories. All violations are reported.
func (p *Policy) Validate() error {
	v, err := structValidator()
	if err != nil {
		return err
	}

	var errs []error
	if err := v.Struct(p); err != nil {
		errs = append(errs, err)
	}

	seenAttrs := make(map[string]bool, len(p.Attributes))
	for _, a := range p.Attributes {
		if seenAttrs[a.Name] {
			errs = append(errs, fmt.Errorf("attribute %q declared more than once", a.Name))
		}
		seenAttrs[a.Name] = true

		switch {
		case a.Type == AttributeCategorical && len(a.PossibleValues) == 0:
			errs = append(errs, fmt.Errorf("categorical attribute %q has no possible values", a.Name))
		case a.Type != AttributeCategorical && len(a.PossibleValues) > 0:
			errs = append(errs, fmt.Errorf("%s attribute %q declares possible values", a.Type, a.Name))
		}
	}

	seenRules := make(map[string]bool, len(p.Rules))
	for _, r := range p.Rules {
		if seenRules[r.RuleID] {
			errs = append(errs, fmt.Errorf("rule id %q used more than once", r.RuleID))
		}
		seenRules[r.RuleID] = true

		if !r.Active {
			continue
		}
		if err := p.ValidateRule(r); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %s: %w", ErrInvalidPolicy, p.Version, errors.Join(errs...))
	}
	return nil
}

// ValidateRule checks a single rule against the policy's attributes,
// regardless of whether the rule is active.
func (p *Policy) ValidateRule(r Rule) error {
	var errs []error

	if len(r.Conditions) == 0 {
		errs = append(errs, fmt.Errorf("rule %s: no conditions", r.RuleID))
	}

	for _, c := range r.Conditions {
		if err := p.ValidateCondition(c); err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", r.RuleID, err))
		}
	}

	if !r.Action.Type.Valid() {
		errs = append(errs, fmt.Errorf("rule %s: %w: unknown type %q", r.RuleID, ErrInvalidAction, r.Action.Type))
	}
	if r.Action.Type == ActionOverride && !r.Action.TargetCategory.Valid() {
		errs = append(errs, fmt.Errorf("rule %s: %w: %q", r.RuleID, ErrInvalidCategory, r.Action.TargetCategory))
	}

	return errors.Join(errs...)
}

// ValidateCondition checks that c names a declared attribute and, for
// categorical attributes, that each of its values is allowed.
func (p *Policy) ValidateCondition(c Condition) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s has no operand", ErrInvalidCondition, c.Attribute)
	}

	a, ok := p.Attribute(c.Attribute)
	if !ok {
		return fmt.Errorf("%w: unknown attribute %q", ErrInvalidCondition, c.Attribute)
	}

	if a.Type != AttributeCategorical {
		return nil
	}

	switch c.Operator {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		return fmt.Errorf("%w: %s is categorical and cannot use %s", ErrInvalidCondition, a.Name, c.Operator)
	}

	for _, v := range c.Values() {
		if !a.Allows(v) {
			return fmt.Errorf("%w: %q is not a possible value of %s", ErrInvalidCondition, v.String(), a.Name)
		}
	}
	return nil
}
