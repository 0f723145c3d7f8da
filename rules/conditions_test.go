package rules

import "testing"

func TestEvalStringConditions(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()

	testCases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"sender_email equals", Condition{Type: CondSenderEmail, Operator: OpEquals, Value: "alice@example.com"}, true},
		{"sender_email equals ignores case by default", Condition{Type: CondSenderEmail, Operator: OpEquals, Value: "ALICE@Example.COM"}, true},
		{"sender_email equals case sensitive", Condition{Type: CondSenderEmail, Operator: OpEquals, Value: "ALICE@example.com", CaseSensitive: true}, false},
		{"sender_name contains", Condition{Type: CondSenderName, Operator: OpContains, Value: "lic"}, true},
		{"subject starts_with", Condition{Type: CondSubject, Operator: OpStartsWith, Value: "weekly"}, true},
		{"subject ends_with", Condition{Type: CondSubject, Operator: OpEndsWith, Value: "newsletter"}, true},
		{"subject ends_with miss", Condition{Type: CondSubject, Operator: OpEndsWith, Value: "digest"}, false},
		{"body regex_match", Condition{Type: CondBody, Operator: OpRegexMatch, Value: `https?://\S+`}, true},
		{"body regex_match case insensitive", Condition{Type: CondBody, Operator: OpRegexMatch, Value: `CHECK OUT`}, true},
		{"body regex_match case sensitive", Condition{Type: CondBody, Operator: OpRegexMatch, Value: `CHECK OUT`, CaseSensitive: true}, false},
		{"invalid regex never matches", Condition{Type: CondBody, Operator: OpRegexMatch, Value: `([unclosed`}, false},
		{"snippet exists", Condition{Type: CondSnippet, Operator: OpExists}, true},
		{"sender_name not_exists on present field", Condition{Type: CondSenderName, Operator: OpNotExists}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.evalCondition(tc.cond, ec); got != tc.want {
				t.Errorf("evalCondition(%+v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvalNumericConditions(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext() // senderScore 2.5, one extracted link

	testCases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"sender_score greater_than", Condition{Type: CondSenderScore, Operator: OpGreater, Value: 2.0}, true},
		{"sender_score less_than", Condition{Type: CondSenderScore, Operator: OpLess, Value: 2.0}, false},
		{"sender_score equals", Condition{Type: CondSenderScore, Operator: OpEquals, Value: 2.5}, true},
		{"sender_score string value coerces", Condition{Type: CondSenderScore, Operator: OpGreater, Value: "1"}, true},
		{"sender_score non-numeric value", Condition{Type: CondSenderScore, Operator: OpGreater, Value: "lots"}, false},
		{"link_count equals", Condition{Type: CondLinkCount, Operator: OpEquals, Value: 1.0}, true},
		{"link_count greater_than", Condition{Type: CondLinkCount, Operator: OpGreater, Value: 0.0}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.evalCondition(tc.cond, ec); got != tc.want {
				t.Errorf("evalCondition(%+v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvalHasLinks(t *testing.T) {
	engine := newTestEngine(t)

	withLinks := testContext()
	noLinks := testContext()
	noLinks.ExtractedLinks = nil

	cond := Condition{Type: CondHasLinks, Operator: OpEquals, Value: true}
	if !engine.evalCondition(cond, withLinks) {
		t.Error("has_links should be true when links were extracted")
	}
	if engine.evalCondition(cond, noLinks) {
		t.Error("has_links should be false without links")
	}

	notExists := Condition{Type: CondHasLinks, Operator: OpNotExists}
	if !engine.evalCondition(notExists, noLinks) {
		t.Error("has_links not_exists should match when no links were extracted")
	}
}

func TestEvalLinkConditionsWithoutLinks(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()
	ec.ExtractedLinks = nil

	testCases := []struct {
		name string
		cond Condition
		want bool
	}{
		{"has_links equals false", Condition{Type: CondHasLinks, Operator: OpEquals, Value: false}, true},
		{"has_links equals true", Condition{Type: CondHasLinks, Operator: OpEquals, Value: true}, false},
		{"link_count equals 0", Condition{Type: CondLinkCount, Operator: OpEquals, Value: 0.0}, true},
		{"link_count less_than 1", Condition{Type: CondLinkCount, Operator: OpLess, Value: 1.0}, true},
		{"link_count greater_than 0", Condition{Type: CondLinkCount, Operator: OpGreater, Value: 0.0}, false},
		{"has_links exists", Condition{Type: CondHasLinks, Operator: OpExists}, false},
		{"link_count not_exists", Condition{Type: CondLinkCount, Operator: OpNotExists}, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.evalCondition(tc.cond, ec); got != tc.want {
				t.Errorf("evalCondition(%+v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestEvalConditionDegradesSafely(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()

	t.Run("unknown condition type", func(t *testing.T) {
		cond := Condition{Type: "moon_phase", Operator: OpEquals, Value: "full"}
		if engine.evalCondition(cond, ec) {
			t.Error("unknown condition type should evaluate to false")
		}
	})

	t.Run("unsupported operator on string field falls back to contains", func(t *testing.T) {
		cond := Condition{Type: CondSubject, Operator: OpGreater, Value: "newsletter"}
		if !engine.evalCondition(cond, ec) {
			t.Error("string field with unsupported operator should fall back to substring match")
		}
	})

	t.Run("unsupported operator on numeric field", func(t *testing.T) {
		cond := Condition{Type: CondSenderScore, Operator: OpStartsWith, Value: "2"}
		if engine.evalCondition(cond, ec) {
			t.Error("numeric field with string operator should evaluate to false")
		}
	})
}

func TestEvalConditionAbsentField(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()
	ec.SenderInfo.Name = ""

	if engine.evalCondition(Condition{Type: CondSenderName, Operator: OpContains, Value: "alice"}, ec) {
		t.Error("comparison against an absent field should be false")
	}
	if !engine.evalCondition(Condition{Type: CondSenderName, Operator: OpNotExists}, ec) {
		t.Error("not_exists should match an absent field")
	}
	if engine.evalCondition(Condition{Type: CondSenderName, Operator: OpExists}, ec) {
		t.Error("exists should not match an absent field")
	}
}

func TestMatchRuleLogic(t *testing.T) {
	engine := newTestEngine(t)
	ec := testContext()

	match := Condition{Type: CondSubject, Operator: OpContains, Value: "newsletter"}
	miss := Condition{Type: CondSubject, Operator: OpContains, Value: "invoice"}

	testCases := []struct {
		name       string
		conditions []Condition
		logic      LogicOperator
		want       bool
	}{
		{"AND all match", []Condition{match, match}, LogicAnd, true},
		{"AND one misses", []Condition{match, miss}, LogicAnd, false},
		{"OR one matches", []Condition{miss, match}, LogicOr, true},
		{"OR none match", []Condition{miss, miss}, LogicOr, false},
		{"empty conditions never match", nil, LogicAnd, false},
		{"empty conditions never match with OR", nil, LogicOr, false},
		{"unknown logic treated as AND", []Condition{match, miss}, "XOR", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rule := &Rule{Conditions: tc.conditions, LogicOperator: tc.logic}
			if got := engine.matchRule(rule, ec); got != tc.want {
				t.Errorf("matchRule() = %v, want %v", got, tc.want)
			}
		})
	}
}
