package rules

import "testing"

func TestResolve(t *testing.T) {
	ec := testContext()
	ec.Variables["category"] = "newsletters"
	ec.Variables["count"] = 3.0
	ec.Variables["nested"] = map[string]any{"inner": "deep"}

	testCases := []struct {
		name     string
		template string
		want     string
	}{
		{"no tokens", "plain text", "plain text"},
		{"email subject", "re: ${email.subject}", "re: Weekly Newsletter"},
		{"sender email", "${senderInfo.email}", "alice@example.com"},
		{"sender name", "${senderInfo.name}", "Alice"},
		{"sender score", "score=${senderScore}", "score=2.5"},
		{"variable", "filed under ${variables.category}", "filed under newsletters"},
		{"numeric variable", "${variables.count} items", "3 items"},
		{"nested variable", "${variables.nested.inner}", "deep"},
		{"link by index", "${extractedLinks.0}", "https://example.com/offers"},
		{"whole link list", "${extractedLinks}", "https://example.com/offers"},
		{"multiple tokens", "${senderInfo.name}: ${email.subject}", "Alice: Weekly Newsletter"},
		{"unknown root", "${moon.phase}", ""},
		{"unknown variable", "x${variables.missing}y", "xy"},
		{"out of range index", "${extractedLinks.9}", ""},
		{"empty token", "a${}b", "ab"},
		{"whitespace in path", "${ email.subject }", "Weekly Newsletter"},
		{"non-indexable path", "${senderScore.digits}", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Resolve(tc.template, ec); got != tc.want {
				t.Errorf("Resolve(%q) = %q, want %q", tc.template, got, tc.want)
			}
		})
	}
}

func TestResolveBooleanAndReadFlag(t *testing.T) {
	ec := testContext()
	ec.Email.Read = true

	if got := Resolve("read=${email.read}", ec); got != "read=true" {
		t.Errorf("boolean fields should format as true/false, got %q", got)
	}
}
