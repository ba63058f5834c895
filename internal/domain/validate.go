package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRule is wrapped by every rule validation failure.
var ErrInvalidRule = errors.New("rule: invalid")

// ValidationError lists every problem found in a rule spec.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid rule: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRule }

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateRuleSpec checks a rule spec before it is stored. Action params are
// validated against their typed struct, so malformed actions are rejected at
// authoring time rather than failing when the rule fires.
func ValidateRuleSpec(s RuleSpec) error {
	var problems []string
	v := validatorInstance()

	if err := v.Struct(s); err != nil {
		problems = append(problems, describe("rule", err)...)
	}

	if !s.Trigger.Type.Valid() {
		problems = append(problems, fmt.Sprintf("trigger: unknown trigger type %q", s.Trigger.Type))
	}
	problems = append(problems, checkCondition("trigger", s.Trigger)...)

	for i, c := range s.Conditions {
		problems = append(problems, checkCondition(fmt.Sprintf("conditions[%d]", i), c)...)
	}

	for i, a := range s.Actions {
		where := fmt.Sprintf("actions[%d]", i)
		if !a.Type.Valid() {
			problems = append(problems, fmt.Sprintf("%s: unknown action type %q", where, a.Type))
			continue
		}
		if a.Params == nil {
			problems = append(problems, fmt.Sprintf("%s: params are required", where))
			continue
		}
		if a.Params.ActionType() != a.Type {
			problems = append(problems, fmt.Sprintf("%s: params for %q given to %q action", where, a.Params.ActionType(), a.Type))
			continue
		}
		if err := v.Struct(a.Params); err != nil {
			problems = append(problems, describe(where, err)...)
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

func checkCondition(where string, c TriggerCondition) []string {
	if c.IsTypeOnly() {
		return nil
	}
	var problems []string
	if c.Field == "" {
		problems = append(problems, where+": field is required when an operator or value is set")
	}
	if !c.Operator.Valid() {
		problems = append(problems, fmt.Sprintf("%s: unknown operator %q", where, c.Operator))
	}
	return problems
}

func describe(where string, err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{where + ": " + err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		if fe.Param() != "" {
			out = append(out, fmt.Sprintf("%s.%s: failed %s=%s", where, field, fe.Tag(), fe.Param()))
		} else {
			out = append(out, fmt.Sprintf("%s.%s: failed %s", where, field, fe.Tag()))
		}
	}
	return out
}
