package rules

import (
	"regexp"
	"strconv"
	"strings"
)

// fieldValue resolves the context field a condition type tests. The second
// return reports whether the field is present and non-empty, which is what
// exists/not_exists check.
func fieldValue(t ConditionType, ec *EvalContext) (any, bool) {
	switch t {
	case CondSenderEmail:
		return ec.SenderInfo.Email, ec.SenderInfo.Email != ""
	case CondSenderName:
		return ec.SenderInfo.Name, ec.SenderInfo.Name != ""
	case CondSubject:
		return ec.Email.Subject, ec.Email.Subject != ""
	case CondBody:
		return ec.Email.Body, ec.Email.Body != ""
	case CondSnippet:
		return ec.Email.Snippet, ec.Email.Snippet != ""
	case CondSenderScore:
		return ec.SenderScore, true
	case CondHasLinks:
		return len(ec.ExtractedLinks) > 0, len(ec.ExtractedLinks) > 0
	case CondLinkCount:
		return float64(len(ec.ExtractedLinks)), len(ec.ExtractedLinks) > 0
	default:
		return nil, false
	}
}

// alwaysDefined marks condition types whose value is meaningful even when
// the field reads as absent: has_links false and a zero link count are real
// values, not missing data. exists/not_exists still mean "has at least one
// link" for these.
func alwaysDefined(t ConditionType) bool {
	return t == CondHasLinks || t == CondLinkCount
}

// evalCondition evaluates a single condition against the context. It never
// panics: unknown types, unsupported operators, invalid regex patterns and
// non-numeric comparisons all degrade to a non-match (or, for not_exists on
// an absent field, a match).
func (e *Engine) evalCondition(cond Condition, ec *EvalContext) bool {
	if cond.Type == CondExpression {
		return e.evalExpression(cond, ec)
	}

	def, ok := LookupConditionType(cond.Type)
	if !ok {
		return false
	}

	value, present := fieldValue(cond.Type, ec)

	op := cond.Operator
	if !operatorSupported(def, op) {
		// Tolerate inconsistent stored data: string fields fall back to a
		// substring test, everything else is a non-match.
		if def.ValueType != ValueString {
			return false
		}
		op = OpContains
	}

	switch op {
	case OpExists:
		return present
	case OpNotExists:
		return !present
	}

	if !present && !alwaysDefined(cond.Type) {
		return false
	}

	switch def.ValueType {
	case ValueString:
		field, ok := value.(string)
		if !ok {
			return false
		}
		return evalStringOperator(op, field, stringify(cond.Value), cond.CaseSensitive)
	case ValueNumber:
		field, ok := toFloat(value)
		if !ok {
			return false
		}
		want, ok := toFloat(cond.Value)
		if !ok {
			return false
		}
		return evalNumberOperator(op, field, want)
	case ValueBoolean:
		field, ok := value.(bool)
		if !ok {
			return false
		}
		want, ok := toBool(cond.Value)
		if !ok {
			return false
		}
		return op == OpEquals && field == want
	}

	return false
}

func evalStringOperator(op Operator, field, want string, caseSensitive bool) bool {
	if !caseSensitive && op != OpRegexMatch {
		field = strings.ToLower(field)
		want = strings.ToLower(want)
	}

	switch op {
	case OpEquals:
		return field == want
	case OpContains:
		return strings.Contains(field, want)
	case OpStartsWith:
		return strings.HasPrefix(field, want)
	case OpEndsWith:
		return strings.HasSuffix(field, want)
	case OpRegexMatch:
		pattern := want
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			// Invalid user pattern is a non-fatal evaluation failure.
			return false
		}
		return re.MatchString(field)
	default:
		return false
	}
}

func evalNumberOperator(op Operator, field, want float64) bool {
	switch op {
	case OpEquals:
		return field == want
	case OpGreater:
		return field > want
	case OpLess:
		return field < want
	default:
		return false
	}
}

// matchRule folds the rule's conditions with its logic operator. A rule with
// zero conditions never matches; AND short-circuits on the first false, OR on
// the first true.
func (e *Engine) matchRule(rule *Rule, ec *EvalContext) bool {
	if len(rule.Conditions) == 0 {
		return false
	}

	switch rule.LogicOperator {
	case LogicOr:
		for _, cond := range rule.Conditions {
			if e.evalCondition(cond, ec) {
				return true
			}
		}
		return false
	default:
		// AND is the default for any unrecognized operator value.
		for _, cond := range rule.Conditions {
			if !e.evalCondition(cond, ec) {
				return false
			}
		}
		return true
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toBool(v any) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(val))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}
