package rules

import (
	"regexp"
	"strconv"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// Resolve expands ${dotted.path} tokens in template against the evaluation
// context. Paths are rooted at email, senderInfo, senderScore,
// extractedLinks and variables. An unresolvable path substitutes the empty
// string so malformed templates degrade instead of failing the action.
func Resolve(template string, ec *EvalContext) string {
	if !strings.Contains(template, "${") {
		return template
	}

	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		path := strings.TrimSpace(token[2 : len(token)-1])
		if path == "" {
			return ""
		}
		value, ok := lookupPath(path, ec)
		if !ok {
			return ""
		}
		return formatTokenValue(value)
	})
}

func lookupPath(path string, ec *EvalContext) (any, bool) {
	parts := strings.Split(path, ".")

	var current any
	switch parts[0] {
	case "email":
		current = emailFacts(ec.Email)
	case "senderInfo":
		current = map[string]any{"email": ec.SenderInfo.Email, "name": ec.SenderInfo.Name}
	case "senderScore":
		current = ec.SenderScore
	case "extractedLinks":
		current = ec.ExtractedLinks
	case "variables":
		current = ec.Variables
	default:
		return nil, false
	}

	for _, part := range parts[1:] {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, false
			}
			current = next
		case []string:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}

	return current, true
}

func formatTokenValue(v any) string {
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
	case []string:
		return strings.Join(val, ", ")
	default:
		return ""
	}
}
