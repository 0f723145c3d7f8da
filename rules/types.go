package rules

import "time"

// LogicOperator combines a rule's conditions into a single match decision.
type LogicOperator string

const (
	LogicAnd LogicOperator = "AND"
	LogicOr  LogicOperator = "OR"
)

// Operator is a single comparison applied by a condition.
type Operator string

const (
	OpEquals     Operator = "equals"
	OpContains   Operator = "contains"
	OpStartsWith Operator = "starts_with"
	OpEndsWith   Operator = "ends_with"
	OpRegexMatch Operator = "regex_match"
	OpGreater    Operator = "greater_than"
	OpLess       Operator = "less_than"
	OpExists     Operator = "exists"
	OpNotExists  Operator = "not_exists"
)

// ConditionType names the email/context field a condition tests.
type ConditionType string

const (
	CondSenderEmail ConditionType = "sender_email"
	CondSenderName  ConditionType = "sender_name"
	CondSubject     ConditionType = "subject"
	CondBody        ConditionType = "body"
	CondSnippet     ConditionType = "snippet"
	CondSenderScore ConditionType = "sender_score"
	CondHasLinks    ConditionType = "has_links"
	CondLinkCount   ConditionType = "link_count"
	CondExpression  ConditionType = "expression"
)

// ActionType names a side-effecting or control-flow step of a rule.
type ActionType string

const (
	ActionJavaScript     ActionType = "javascript_code"
	ActionOpenURL        ActionType = "open_url"
	ActionSaveVariable   ActionType = "save_variable"
	ActionLogMessage     ActionType = "log_message"
	ActionAddScore       ActionType = "add_score"
	ActionMarkEmail      ActionType = "mark_email"
	ActionNotify         ActionType = "notify"
	ActionDeleteEmail    ActionType = "delete_email"
	ActionMarkAsRead     ActionType = "mark_as_read"
	ActionRequestSummary ActionType = "request_summary"
	ActionGotoNext       ActionType = "goto_next_email"
	ActionGotoPrevious   ActionType = "goto_previous_email"
)

// Rule is a named condition→action automation unit.
type Rule struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Enabled        bool          `json:"enabled"`
	Conditions     []Condition   `json:"conditions"`
	LogicOperator  LogicOperator `json:"logicOperator"`
	Actions        []Action      `json:"actions"`
	CreatedAt      time.Time     `json:"createdAt"`
	LastModified   time.Time     `json:"lastModified"`
	ExecutionCount int64         `json:"executionCount"`
	LastExecuted   *time.Time    `json:"lastExecuted,omitempty"`
}

// Condition is a single predicate over an email/context field.
// Value is a string, float64, or bool depending on the condition type;
// it is ignored for the exists/not_exists operators.
type Condition struct {
	ID            string        `json:"id"`
	Type          ConditionType `json:"type"`
	Operator      Operator      `json:"operator"`
	Value         any           `json:"value,omitempty"`
	CaseSensitive bool          `json:"caseSensitive,omitempty"`
}

// Action is one step of a rule's ordered action list. Parameters are
// validated against the action catalog's schema at save time and decoded
// through typed accessors at execution time.
type Action struct {
	ID          string         `json:"id"`
	Type        ActionType     `json:"type"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Description string         `json:"description,omitempty"`
}

// Email is the message under evaluation. Body holds the text rendering
// used for matching; RawBody preserves the original payload.
type Email struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	Body    string `json:"body"`
	RawBody string `json:"rawBody,omitempty"`
	Snippet string `json:"snippet"`
	Read    bool   `json:"read"`
	Flagged bool   `json:"flagged"`
}

// SenderInfo is the address/display-name pair derived from Email.From.
type SenderInfo struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// EvalContext is the bundle one processing pass evaluates against.
// Variables is shared and mutated across the whole pass: a save_variable
// action (or sandboxed script) in one rule is visible to substitution and
// conditions of later rules in the same pass.
type EvalContext struct {
	Email          Email
	SenderInfo     SenderInfo
	ExtractedLinks []string
	SenderScore    float64
	Variables      map[string]any
}

// NavDirective signals the host traversal UI to advance or retreat.
type NavDirective string

const (
	NavNone     NavDirective = ""
	NavNext     NavDirective = "next"
	NavPrevious NavDirective = "previous"
)

// ActionResult records the outcome of one executed action. Exactly one is
// produced per action, including failures.
type ActionResult struct {
	Type    ActionType `json:"type"`
	Success bool       `json:"success"`
	Error   string     `json:"error,omitempty"`
}

// RuleResult records one rule's evaluation and execution within a pass.
type RuleResult struct {
	RuleID          string         `json:"ruleId"`
	RuleName        string         `json:"ruleName"`
	Matched         bool           `json:"matched"`
	ExecutionTimeMs float64        `json:"executionTimeMs"`
	ActionResults   []ActionResult `json:"actionResults"`
}

// PassResult is the engine's output for one email.
type PassResult struct {
	TotalRulesChecked int          `json:"totalRulesChecked"`
	TotalRulesFired   int          `json:"totalRulesFired"`
	Results           []RuleResult `json:"results"`
	Navigation        NavDirective `json:"navigation,omitempty"`
}

// DebugLogEntry is the structured record of one pass. The engine always
// computes it; whether it is persisted is the host's decision.
type DebugLogEntry struct {
	ID                string       `json:"id"`
	Timestamp         time.Time    `json:"timestamp"`
	EmailID           string       `json:"emailId"`
	EmailSubject      string       `json:"emailSubject"`
	EmailFrom         string       `json:"emailFrom"`
	TotalRulesChecked int          `json:"totalRulesChecked"`
	TotalRulesFired   int          `json:"totalRulesFired"`
	Results           []RuleResult `json:"results"`
}

// Hooks is the engine's boundary to host side effects. Every method maps to
// one side-effecting action type; implementations report failure through the
// returned error. The engine owns no email store, score store, or
// notification state itself.
type Hooks interface {
	// OpenURL asks the host to open a (token-resolved) URL.
	OpenURL(url string) error

	// AdjustScore asks the host to shift the sender's reputation score.
	AdjustScore(senderEmail string, amount float64) error

	// MarkEmail asks the host to apply a flag to the email.
	MarkEmail(emailID, flag string) error

	// Notify asks the host to show a notification.
	Notify(title, body string) error

	// DeleteEmail asks the host to move the email to trash.
	DeleteEmail(emailID string) error

	// MarkAsRead asks the host to mark the email read.
	MarkAsRead(emailID string) error

	// RequestSummary asks the host to generate or defer-save a summary,
	// per the host's configured mode.
	RequestSummary(emailID string) error

	// Log receives best-effort log_message output and script console output.
	Log(message string)
}
