package rules

import (
	"strings"
	"testing"
	"time"
)

func TestRunScriptMutatesVariables(t *testing.T) {
	ec := testContext()
	ec.Variables["counter"] = int64(1)

	code := `
		variables.counter = variables.counter + 1;
		variables.senderDomain = senderInfo.email.split("@")[1];
	`
	result := runScript(code, ec, &testHooks{}, DefaultScriptTimeout)
	if !result.OK {
		t.Fatalf("script failed: %s", result.Error)
	}

	if got := ec.Variables["senderDomain"]; got != "example.com" {
		t.Errorf("variables.senderDomain = %v, want example.com", got)
	}
	if got, ok := toFloat(ec.Variables["counter"]); !ok || got != 2 {
		t.Errorf("variables.counter = %v, want 2", ec.Variables["counter"])
	}
}

func TestRunScriptReadsContext(t *testing.T) {
	ec := testContext()

	code := `
		variables.summary = email.subject + " from " + senderInfo.name;
		variables.linkCount = extractedLinks.length;
		variables.score = senderScore;
	`
	result := runScript(code, ec, &testHooks{}, DefaultScriptTimeout)
	if !result.OK {
		t.Fatalf("script failed: %s", result.Error)
	}

	if got := ec.Variables["summary"]; got != "Weekly Newsletter from Alice" {
		t.Errorf("variables.summary = %v", got)
	}
	if got, ok := toFloat(ec.Variables["linkCount"]); !ok || got != 1 {
		t.Errorf("variables.linkCount = %v, want 1", ec.Variables["linkCount"])
	}
	if got, ok := toFloat(ec.Variables["score"]); !ok || got != 2.5 {
		t.Errorf("variables.score = %v, want 2.5", ec.Variables["score"])
	}
}

func TestRunScriptConsole(t *testing.T) {
	ec := testContext()
	hooks := &testHooks{}

	code := `
		console.log("checking", email.subject);
		console.error("something odd");
	`
	result := runScript(code, ec, hooks, DefaultScriptTimeout)
	if !result.OK {
		t.Fatalf("script failed: %s", result.Error)
	}

	if len(hooks.logs) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %v", len(hooks.logs), hooks.logs)
	}
	if !strings.HasPrefix(hooks.logs[0], "[script] ") || !strings.Contains(hooks.logs[0], "Weekly Newsletter") {
		t.Errorf("console.log line = %q", hooks.logs[0])
	}
	if !strings.HasPrefix(hooks.logs[1], "[script:error] ") {
		t.Errorf("console.error line = %q", hooks.logs[1])
	}
}

func TestRunScriptWindowOpen(t *testing.T) {
	ec := testContext()
	hooks := &testHooks{}

	result := runScript(`window.open(extractedLinks[0]);`, ec, hooks, DefaultScriptTimeout)
	if !result.OK {
		t.Fatalf("script failed: %s", result.Error)
	}
	if len(hooks.openedURLs) != 1 || hooks.openedURLs[0] != "https://example.com/offers" {
		t.Errorf("window.open should call the host hook, got %v", hooks.openedURLs)
	}
}

func TestRunScriptSyntaxError(t *testing.T) {
	ec := testContext()

	result := runScript(`this is not javascript`, ec, &testHooks{}, DefaultScriptTimeout)
	if result.OK {
		t.Fatal("syntax error should fail the script")
	}
	if result.Error == "" {
		t.Error("failure should carry an error message")
	}
}

func TestRunScriptThrownError(t *testing.T) {
	ec := testContext()

	result := runScript(`throw new Error("boom");`, ec, &testHooks{}, DefaultScriptTimeout)
	if result.OK {
		t.Fatal("thrown error should fail the script")
	}
	if !strings.Contains(result.Error, "boom") {
		t.Errorf("error should carry the thrown message, got %q", result.Error)
	}
}

func TestRunScriptTimeout(t *testing.T) {
	ec := testContext()

	start := time.Now()
	result := runScript(`while (true) {}`, ec, &testHooks{}, 50*time.Millisecond)
	elapsed := time.Since(start)

	if result.OK {
		t.Fatal("infinite loop should be interrupted")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("timeout should be reported, got %q", result.Error)
	}
	if elapsed > 5*time.Second {
		t.Errorf("interrupt took too long: %v", elapsed)
	}
}

func TestRunScriptNoAmbientGlobals(t *testing.T) {
	ec := testContext()

	testCases := []struct {
		name string
		code string
	}{
		{"fetch", `fetch("https://evil.example");`},
		{"require", `require("fs");`},
		{"setTimeout", `setTimeout(function(){}, 1);`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result := runScript(tc.code, ec, &testHooks{}, DefaultScriptTimeout)
			if result.OK {
				t.Errorf("sandbox should not expose %s", tc.name)
			}
		})
	}
}
