package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/mailtriage/mailtriage/internal/logger"
)

// DefaultScriptTimeout bounds a single javascript_code execution. The
// sandbox is interrupted hard once the budget is spent, so a rule-authored
// infinite loop cannot stall the pass.
const DefaultScriptTimeout = 250 * time.Millisecond

// ScriptResult is the outcome of one sandboxed script execution.
type ScriptResult struct {
	OK    bool
	Error string
}

// runScript executes untrusted rule-authored JavaScript in a fresh goja
// runtime. The script sees exactly the injected capability set: the email
// facts, senderInfo, extractedLinks, senderScore, the pass's mutable
// variables map, a console proxy (log/error only) and a window proxy
// exposing only open(url). Writes to variables land in ec.Variables and are
// visible to later actions and rules of the same pass. No other globals,
// timers, network or storage are reachable.
func runScript(code string, ec *EvalContext, hooks Hooks, timeout time.Duration) (result ScriptResult) {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}

	defer func() {
		if r := recover(); r != nil {
			result = ScriptResult{Error: fmt.Sprintf("script panic: %v", r)}
			scriptFailures.Inc()
		}
	}()

	vm := goja.New()

	vm.Set("email", emailFacts(ec.Email))
	vm.Set("senderInfo", map[string]any{
		"email": ec.SenderInfo.Email,
		"name":  ec.SenderInfo.Name,
	})
	vm.Set("extractedLinks", ec.ExtractedLinks)
	vm.Set("senderScore", ec.SenderScore)
	// The live map: assignments inside the script mutate ec.Variables.
	vm.Set("variables", ec.Variables)

	vm.Set("console", map[string]any{
		"log": func(args ...any) {
			hooks.Log("[script] " + joinScriptArgs(args))
		},
		"error": func(args ...any) {
			hooks.Log("[script:error] " + joinScriptArgs(args))
		},
	})

	vm.Set("window", map[string]any{
		"open": func(url string) {
			if err := hooks.OpenURL(url); err != nil {
				logger.Warn("script window.open failed", "url", url, "error", err)
			}
		},
	})

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt("script execution timed out")
	})
	defer timer.Stop()

	if _, err := vm.RunString(code); err != nil {
		scriptFailures.Inc()
		if _, interrupted := err.(*goja.InterruptedError); interrupted {
			scriptTimeouts.Inc()
			return ScriptResult{Error: fmt.Sprintf("script timed out after %s", timeout)}
		}
		return ScriptResult{Error: err.Error()}
	}

	return ScriptResult{OK: true}
}

func joinScriptArgs(args []any) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = fmt.Sprint(arg)
	}
	return strings.Join(parts, " ")
}
