package rules

// ValueType is the kind of value a condition type compares against.
type ValueType string

const (
	ValueString  ValueType = "string"
	ValueNumber  ValueType = "number"
	ValueBoolean ValueType = "boolean"
)

// ParamKind is the kind of a single action parameter.
type ParamKind string

const (
	ParamString   ParamKind = "string"
	ParamNumber   ParamKind = "number"
	ParamBoolean  ParamKind = "boolean"
	ParamTextarea ParamKind = "textarea"
)

// ConditionTypeDef describes one registered condition type: the field it
// tests, its value kind, and the operators it supports.
type ConditionTypeDef struct {
	Type               ConditionType `json:"type"`
	Label              string        `json:"label"`
	Description        string        `json:"description"`
	ValueType          ValueType     `json:"valueType"`
	SupportedOperators []Operator    `json:"supportedOperators"`
}

// ParamDef describes one parameter of an action type.
type ParamDef struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Kind        ParamKind `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Description string    `json:"description,omitempty"`
}

// ActionTypeDef describes one registered action type and its parameters.
type ActionTypeDef struct {
	Type        ActionType `json:"type"`
	Label       string     `json:"label"`
	Description string     `json:"description"`
	Parameters  []ParamDef `json:"parameters"`
}

var stringOperators = []Operator{
	OpEquals, OpContains, OpStartsWith, OpEndsWith, OpRegexMatch,
	OpExists, OpNotExists,
}

var numberOperators = []Operator{
	OpEquals, OpGreater, OpLess, OpExists, OpNotExists,
}

var conditionTypeDefs = []ConditionTypeDef{
	{
		Type:               CondSenderEmail,
		Label:              "Sender address",
		Description:        "The sender's email address",
		ValueType:          ValueString,
		SupportedOperators: stringOperators,
	},
	{
		Type:               CondSenderName,
		Label:              "Sender name",
		Description:        "The sender's display name",
		ValueType:          ValueString,
		SupportedOperators: stringOperators,
	},
	{
		Type:               CondSubject,
		Label:              "Subject",
		Description:        "The email subject line",
		ValueType:          ValueString,
		SupportedOperators: stringOperators,
	},
	{
		Type:               CondBody,
		Label:              "Body",
		Description:        "The email body text",
		ValueType:          ValueString,
		SupportedOperators: stringOperators,
	},
	{
		Type:               CondSnippet,
		Label:              "Snippet",
		Description:        "The short preview text of the email",
		ValueType:          ValueString,
		SupportedOperators: stringOperators,
	},
	{
		Type:               CondSenderScore,
		Label:              "Sender score",
		Description:        "The sender's current reputation score",
		ValueType:          ValueNumber,
		SupportedOperators: numberOperators,
	},
	{
		Type:               CondHasLinks,
		Label:              "Has links",
		Description:        "Whether the email body contains any links",
		ValueType:          ValueBoolean,
		SupportedOperators: []Operator{OpEquals, OpExists, OpNotExists},
	},
	{
		Type:               CondLinkCount,
		Label:              "Link count",
		Description:        "Number of links found in the email body",
		ValueType:          ValueNumber,
		SupportedOperators: numberOperators,
	},
	{
		Type:               CondExpression,
		Label:              "Expression",
		Description:        "CEL expression over email, senderInfo, senderScore, extractedLinks and variables",
		ValueType:          ValueString,
		SupportedOperators: []Operator{OpEquals},
	},
}

var actionTypeDefs = []ActionTypeDef{
	{
		Type:        ActionJavaScript,
		Label:       "Run script",
		Description: "Execute JavaScript in an isolated sandbox",
		Parameters: []ParamDef{
			{Name: "code", Label: "Code", Kind: ParamTextarea, Required: true,
				Placeholder: "variables.x = 1;",
				Description: "Script body; may read email, senderInfo, extractedLinks, senderScore and read/write variables"},
		},
	},
	{
		Type:        ActionOpenURL,
		Label:       "Open URL",
		Description: "Open a URL in a new tab",
		Parameters: []ParamDef{
			{Name: "url", Label: "URL", Kind: ParamString, Required: true,
				Placeholder: "https://example.com/${senderInfo.email}"},
		},
	},
	{
		Type:        ActionSaveVariable,
		Label:       "Save variable",
		Description: "Store a value for later actions and rules in this pass",
		Parameters: []ParamDef{
			{Name: "name", Label: "Name", Kind: ParamString, Required: true},
			{Name: "value", Label: "Value", Kind: ParamString, Required: true,
				Description: "Tokens like ${email.subject} are resolved before saving"},
		},
	},
	{
		Type:        ActionLogMessage,
		Label:       "Log message",
		Description: "Write a message to the debug log",
		Parameters: []ParamDef{
			{Name: "message", Label: "Message", Kind: ParamTextarea, Required: true},
		},
	},
	{
		Type:        ActionAddScore,
		Label:       "Adjust sender score",
		Description: "Add to (or subtract from) the sender's score",
		Parameters: []ParamDef{
			{Name: "amount", Label: "Amount", Kind: ParamNumber, Required: true,
				Placeholder: "-5"},
		},
	},
	{
		Type:        ActionMarkEmail,
		Label:       "Mark email",
		Description: "Apply a flag to the email",
		Parameters: []ParamDef{
			{Name: "flag", Label: "Flag", Kind: ParamString, Required: true,
				Description: "One of: flagged, unflagged, important, spam, archive"},
		},
	},
	{
		Type:        ActionNotify,
		Label:       "Notify",
		Description: "Show a browser notification",
		Parameters: []ParamDef{
			{Name: "title", Label: "Title", Kind: ParamString, Required: true},
			{Name: "body", Label: "Body", Kind: ParamTextarea, Required: false},
		},
	},
	{
		Type:        ActionDeleteEmail,
		Label:       "Delete email",
		Description: "Move the email to trash",
	},
	{
		Type:        ActionMarkAsRead,
		Label:       "Mark as read",
		Description: "Mark the email read",
	},
	{
		Type:        ActionRequestSummary,
		Label:       "Request summary",
		Description: "Generate or queue an AI summary for the email",
	},
	{
		Type:        ActionGotoNext,
		Label:       "Go to next email",
		Description: "Stop processing and advance to the next email",
	},
	{
		Type:        ActionGotoPrevious,
		Label:       "Go to previous email",
		Description: "Stop processing and go back to the previous email",
	},
}

// ConditionTypes returns the full condition catalog. The returned slice is a
// copy; the catalog itself is static.
func ConditionTypes() []ConditionTypeDef {
	out := make([]ConditionTypeDef, len(conditionTypeDefs))
	copy(out, conditionTypeDefs)
	return out
}

// ActionTypes returns the full action catalog as a copy.
func ActionTypes() []ActionTypeDef {
	out := make([]ActionTypeDef, len(actionTypeDefs))
	copy(out, actionTypeDefs)
	return out
}

// LookupConditionType returns the catalog entry for t, if registered.
func LookupConditionType(t ConditionType) (ConditionTypeDef, bool) {
	for _, def := range conditionTypeDefs {
		if def.Type == t {
			return def, true
		}
	}
	return ConditionTypeDef{}, false
}

// LookupActionType returns the catalog entry for t, if registered.
func LookupActionType(t ActionType) (ActionTypeDef, bool) {
	for _, def := range actionTypeDefs {
		if def.Type == t {
			return def, true
		}
	}
	return ActionTypeDef{}, false
}

func operatorSupported(def ConditionTypeDef, op Operator) bool {
	for _, supported := range def.SupportedOperators {
		if supported == op {
			return true
		}
	}
	return false
}
