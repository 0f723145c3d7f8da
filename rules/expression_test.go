package rules

import "testing"

func TestEvalExpressionCondition(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()
	ec.Variables["category"] = "newsletter"

	testCases := []struct {
		name   string
		source string
		want   bool
	}{
		{"literal true", `true`, true},
		{"literal false", `false`, false},
		{"email field", `email.subject == "Weekly Newsletter"`, true},
		{"sender score", `senderScore > 2.0`, true},
		{"link list", `size(extractedLinks) == 1`, true},
		{"variable lookup", `variables.category == "newsletter"`, true},
		{"variable miss", `variables.category == "invoice"`, false},
		{"boolean logic", `senderScore > 2.0 && email.subject.contains("Newsletter")`, true},
		{"non-boolean result", `senderScore + 1.0`, false},
		{"runtime error degrades", `variables.missing == "x"`, false},
		{"compile error degrades", `email.subject ==`, false},
	}

	for i, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cond := Condition{
				ID:       "cond-" + string(rune('a'+i)),
				Type:     CondExpression,
				Operator: OpEquals,
				Value:    tc.source,
			}
			if got := engine.evalCondition(cond, ec); got != tc.want {
				t.Errorf("expression %q = %v, want %v", tc.source, got, tc.want)
			}
		})
	}
}

func TestExpressionProgramCaching(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()

	cond := Condition{ID: "cached", Type: CondExpression, Operator: OpEquals, Value: `senderScore > 1.0`}
	if !engine.evalCondition(cond, ec) {
		t.Fatal("first evaluation should match")
	}

	// Same ID, new source: the cached program must not be reused.
	cond.Value = `senderScore > 100.0`
	if engine.evalCondition(cond, ec) {
		t.Error("changed source should be recompiled, not served from cache")
	}
}

func TestExpressionBadSourceCached(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()

	cond := Condition{ID: "bad", Type: CondExpression, Operator: OpEquals, Value: `((`}
	if engine.evalCondition(cond, ec) {
		t.Fatal("unparseable expression should not match")
	}
	// Second evaluation exercises the bad-source cache path.
	if engine.evalCondition(cond, ec) {
		t.Fatal("cached bad expression should still not match")
	}
}

func TestExpressionSeesScriptVariables(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()

	script := Action{
		Type:       ActionJavaScript,
		Parameters: map[string]any{"code": `variables.priority = "high";`},
	}
	if result, _ := engine.executeAction(script, ec, &testHooks{}); !result.Success {
		t.Fatalf("script failed: %s", result.Error)
	}

	cond := Condition{ID: "sees-script", Type: CondExpression, Operator: OpEquals, Value: `variables.priority == "high"`}
	if !engine.evalCondition(cond, ec) {
		t.Error("expression should see variables written by an earlier script")
	}
}
