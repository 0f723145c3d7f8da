package rules

import (
	"fmt"
	"strings"
)

const maxNameLength = 200

// ValidateRule checks a rule against the condition and action catalogs.
// It is enforced at save time (create, update, import) so that execution
// only ever has to tolerate, not reject, malformed data. exprs may be nil,
// in which case expression condition sources are not compile-checked.
func ValidateRule(r *Rule, exprs *exprEvaluator) error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name cannot be empty")
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("rule name length %d exceeds maximum of %d", len(r.Name), maxNameLength)
	}

	if r.LogicOperator != LogicAnd && r.LogicOperator != LogicOr {
		return fmt.Errorf("invalid logic operator %q (must be AND or OR)", r.LogicOperator)
	}

	for i, cond := range r.Conditions {
		if err := validateCondition(cond, exprs); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}

	for i, action := range r.Actions {
		if err := validateAction(action); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}

	return nil
}

func validateCondition(cond Condition, exprs *exprEvaluator) error {
	def, ok := LookupConditionType(cond.Type)
	if !ok {
		return fmt.Errorf("unknown condition type %q", cond.Type)
	}

	if !operatorSupported(def, cond.Operator) {
		return fmt.Errorf("operator %q is not supported by condition type %q", cond.Operator, cond.Type)
	}

	// exists/not_exists ignore the value entirely.
	if cond.Operator == OpExists || cond.Operator == OpNotExists {
		return nil
	}

	switch def.ValueType {
	case ValueString:
		s, ok := cond.Value.(string)
		if !ok {
			return fmt.Errorf("condition type %q requires a string value", cond.Type)
		}
		if cond.Type == CondExpression {
			if s == "" {
				return fmt.Errorf("expression cannot be empty")
			}
			if exprs != nil {
				if err := exprs.compile(s); err != nil {
					return fmt.Errorf("invalid expression: %w", err)
				}
			}
		}
	case ValueNumber:
		if _, ok := toFloat(cond.Value); !ok {
			return fmt.Errorf("condition type %q requires a numeric value", cond.Type)
		}
	case ValueBoolean:
		if _, ok := toBool(cond.Value); !ok {
			return fmt.Errorf("condition type %q requires a boolean value", cond.Type)
		}
	}

	return nil
}

func validateAction(action Action) error {
	def, ok := LookupActionType(action.Type)
	if !ok {
		return fmt.Errorf("unknown action type %q", action.Type)
	}

	declared := make(map[string]ParamDef, len(def.Parameters))
	for _, param := range def.Parameters {
		declared[param.Name] = param
	}

	for name := range action.Parameters {
		if _, ok := declared[name]; !ok {
			return fmt.Errorf("action type %q does not accept parameter %q", action.Type, name)
		}
	}

	for _, param := range def.Parameters {
		value, present := action.Parameters[param.Name]
		if !present || value == nil {
			if param.Required {
				return fmt.Errorf("action type %q is missing required parameter %q", action.Type, param.Name)
			}
			continue
		}

		switch param.Kind {
		case ParamString, ParamTextarea:
			s, ok := value.(string)
			if !ok {
				return fmt.Errorf("parameter %q of action %q must be a string", param.Name, action.Type)
			}
			if param.Required && strings.TrimSpace(s) == "" {
				return fmt.Errorf("parameter %q of action %q cannot be empty", param.Name, action.Type)
			}
		case ParamNumber:
			if _, ok := toFloat(value); !ok {
				return fmt.Errorf("parameter %q of action %q must be a number", param.Name, action.Type)
			}
		case ParamBoolean:
			if _, ok := toBool(value); !ok {
				return fmt.Errorf("parameter %q of action %q must be a boolean", param.Name, action.Type)
			}
		}
	}

	return nil
}
