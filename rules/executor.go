package rules

import (
	"fmt"
	"net/url"
	"strings"
)

var knownFlags = map[string]bool{
	"flagged":   true,
	"unflagged": true,
	"important": true,
	"spam":      true,
	"archive":   true,
}

// executeAction dispatches one action to its handler and always returns a
// result, including for unknown types and failed host calls. The second
// return carries a navigation directive when the action is goto_next_email
// or goto_previous_email.
func (e *Engine) executeAction(action Action, ec *EvalContext, hooks Hooks) (ActionResult, NavDirective) {
	ok := func() (ActionResult, NavDirective) {
		return ActionResult{Type: action.Type, Success: true}, NavNone
	}
	fail := func(format string, args ...any) (ActionResult, NavDirective) {
		return ActionResult{Type: action.Type, Success: false, Error: fmt.Sprintf(format, args...)}, NavNone
	}

	result, nav := func() (ActionResult, NavDirective) {
		switch action.Type {
		case ActionJavaScript:
			code, present := stringParam(action.Parameters, "code")
			if !present {
				return fail("missing required parameter: code")
			}
			if res := runScript(code, ec, hooks, e.scriptTimeout); !res.OK {
				return fail("%s", res.Error)
			}
			return ok()

		case ActionOpenURL:
			raw, present := stringParam(action.Parameters, "url")
			if !present {
				return fail("missing required parameter: url")
			}
			target := Resolve(raw, ec)
			parsed, err := url.ParseRequestURI(target)
			if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
				return fail("invalid URL: %q", target)
			}
			if err := hooks.OpenURL(target); err != nil {
				return fail("open URL failed: %v", err)
			}
			return ok()

		case ActionSaveVariable:
			name, present := stringParam(action.Parameters, "name")
			if !present {
				return fail("missing required parameter: name")
			}
			raw := action.Parameters["value"]
			if s, isString := raw.(string); isString {
				ec.Variables[name] = Resolve(s, ec)
			} else {
				ec.Variables[name] = raw
			}
			return ok()

		case ActionLogMessage:
			// Best-effort: a missing message just logs an empty line.
			message, _ := stringParam(action.Parameters, "message")
			hooks.Log(Resolve(message, ec))
			return ok()

		case ActionAddScore:
			amount, present := floatParam(action.Parameters, "amount")
			if !present {
				return fail("parameter amount must be a number")
			}
			if err := hooks.AdjustScore(ec.SenderInfo.Email, amount); err != nil {
				return fail("score adjustment failed: %v", err)
			}
			// Later conditions in the same pass see the shifted score.
			ec.SenderScore += amount
			return ok()

		case ActionMarkEmail:
			flag, present := stringParam(action.Parameters, "flag")
			if !present {
				return fail("missing required parameter: flag")
			}
			flag = strings.ToLower(strings.TrimSpace(flag))
			if !knownFlags[flag] {
				return fail("unknown flag: %q", flag)
			}
			if err := hooks.MarkEmail(ec.Email.ID, flag); err != nil {
				return fail("mark email failed: %v", err)
			}
			return ok()

		case ActionNotify:
			title, present := stringParam(action.Parameters, "title")
			if !present {
				return fail("missing required parameter: title")
			}
			body, _ := stringParam(action.Parameters, "body")
			if err := hooks.Notify(Resolve(title, ec), Resolve(body, ec)); err != nil {
				return fail("notification failed: %v", err)
			}
			return ok()

		case ActionDeleteEmail:
			if err := hooks.DeleteEmail(ec.Email.ID); err != nil {
				return fail("delete failed: %v", err)
			}
			return ok()

		case ActionMarkAsRead:
			if err := hooks.MarkAsRead(ec.Email.ID); err != nil {
				return fail("mark as read failed: %v", err)
			}
			ec.Email.Read = true
			return ok()

		case ActionRequestSummary:
			if err := hooks.RequestSummary(ec.Email.ID); err != nil {
				return fail("summary request failed: %v", err)
			}
			return ok()

		case ActionGotoNext:
			res, _ := ok()
			return res, NavNext

		case ActionGotoPrevious:
			res, _ := ok()
			return res, NavPrevious

		default:
			return fail("unknown action type: %q", action.Type)
		}
	}()

	actionResults.WithLabelValues(string(action.Type), statusLabel(result.Success)).Inc()
	return result, nav
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

func stringParam(params map[string]any, name string) (string, bool) {
	v, ok := params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func floatParam(params map[string]any, name string) (float64, bool) {
	v, ok := params[name]
	if !ok {
		return 0, false
	}
	return toFloat(v)
}
