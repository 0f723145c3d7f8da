package rules

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

var (
	// Links inside href attributes and bare URLs in plain text.
	hrefPattern = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)
	urlPattern  = regexp.MustCompile(`https?://[^\s<>"']+`)
)

// BuildContext assembles the evaluation context for one email: sender info
// derived from the From header, links extracted from the body, a text
// rendering of HTML bodies for matching, and the sender's current score.
// The variables map is seeded empty and lives for exactly one pass.
func BuildContext(email Email, senderScore float64) *EvalContext {
	if email.RawBody == "" {
		email.RawBody = email.Body
	}
	if looksLikeHTML(email.Body) {
		email.Body = html2text.HTML2Text(email.Body)
	}

	return &EvalContext{
		Email:          email,
		SenderInfo:     ParseSender(email.From),
		ExtractedLinks: ExtractLinks(email.RawBody),
		SenderScore:    senderScore,
		Variables:      make(map[string]any),
	}
}

// ParseSender splits a From header like `Alice <alice@example.com>` into
// address and display name. A bare address yields an empty name; anything
// unparseable is kept verbatim as the address.
func ParseSender(from string) SenderInfo {
	from = strings.TrimSpace(from)
	if from == "" {
		return SenderInfo{}
	}

	addr, err := mail.ParseAddress(from)
	if err != nil {
		return SenderInfo{Email: from}
	}
	return SenderInfo{Email: addr.Address, Name: addr.Name}
}

// ExtractLinks pulls links out of an email body: href targets first, then
// bare URLs in the text. Duplicates are dropped, order of first appearance
// is kept.
func ExtractLinks(body string) []string {
	var links []string
	seen := make(map[string]bool)

	add := func(link string) {
		link = strings.TrimRight(link, ".,;)")
		if link == "" || seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	}

	for _, match := range hrefPattern.FindAllStringSubmatch(body, -1) {
		if strings.HasPrefix(strings.ToLower(match[1]), "http") {
			add(match[1])
		}
	}
	for _, match := range urlPattern.FindAllString(body, -1) {
		add(match)
	}

	return links
}

func looksLikeHTML(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "<html") ||
		strings.Contains(lower, "<body") ||
		strings.Contains(lower, "<div") ||
		strings.Contains(lower, "<p>") ||
		strings.Contains(lower, "<br")
}
