package main

import (
	"github.com/mailtriage/mailtriage/accounts"
	"github.com/mailtriage/mailtriage/rules"
)

// API request and response models.

// CreateAccountRequest is the body for creating a mailbox account.
type CreateAccountRequest struct {
	Name         string             `json:"name"`
	EmailAddress string             `json:"emailAddress"`
	Settings     *accounts.Settings `json:"settings,omitempty"`
}

// UpdateSettingsRequest is the body for updating account settings.
type UpdateSettingsRequest struct {
	Settings accounts.Settings `json:"settings"`
}

// SaveRuleRequest is the body for creating or updating a rule.
type SaveRuleRequest struct {
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Enabled       bool                `json:"enabled"`
	Conditions    []rules.Condition   `json:"conditions"`
	LogicOperator rules.LogicOperator `json:"logicOperator"`
	Actions       []rules.Action      `json:"actions"`
}

// ProcessRequest is the body for running one rule-processing pass. The
// caller (the dashboard UI) supplies the email; sender score comes from the
// account's score store.
type ProcessRequest struct {
	Email rules.Email `json:"email"`
}

// ProcessResponse returns the pass outcome plus the host effects the caller
// must apply on its side of the boundary.
type ProcessResponse struct {
	Result       *rules.PassResult    `json:"result"`
	Effects      []Effect             `json:"effects"`
	Logs         []string             `json:"logs,omitempty"`
	DebugEntryID string               `json:"debugEntryId,omitempty"`
	DebugEntry   *rules.DebugLogEntry `json:"debugEntry,omitempty"`
}

// ImportRequest is the body for importing a rule backup.
type ImportRequest struct {
	Document      any  `json:"document"`
	RegenerateIDs bool `json:"regenerateIds"`
}
