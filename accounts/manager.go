// Package accounts manages one rule engine per mailbox account. It is the
// multi-mailbox layer of the triage dashboard: each account carries its own
// rule set, sender scores, debug log and engine settings.
package accounts

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailtriage/mailtriage/internal/logger"
	"github.com/mailtriage/mailtriage/rules"
)

// Settings are the per-account engine knobs.
type Settings struct {
	DebugMode          bool `json:"debugMode"`
	DebugRetentionDays int  `json:"debugRetentionDays"`
	ScriptTimeoutMs    int  `json:"scriptTimeoutMs"`
}

// Account is one mailbox under triage.
type Account struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	EmailAddress string    `json:"emailAddress"`
	Settings     Settings  `json:"settings"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StoreProvider supplies account records and account-scoped stores. The
// PostgreSQL provider backs the server; the in-memory provider backs tests.
type StoreProvider interface {
	ListAccounts() ([]*Account, error)
	SaveAccount(account *Account) error
	DeleteAccount(id string) error

	RuleStore(accountID string) rules.RuleStore
	ScoreStore(accountID string) rules.SenderScoreStore
	DebugLogStore(accountID string) rules.DebugLogStore
}

// AccountEngine bundles an account with its engine and stores.
type AccountEngine struct {
	Account  *Account
	Engine   *rules.Engine
	Rules    rules.RuleStore
	Scores   rules.SenderScoreStore
	DebugLog rules.DebugLogStore
}

// Manager owns the engine for every loaded account.
type Manager struct {
	provider StoreProvider
	engines  map[string]*AccountEngine
	mu       sync.RWMutex
}

// NewManager creates a manager over the given provider.
func NewManager(provider StoreProvider) *Manager {
	return &Manager{
		provider: provider,
		engines:  make(map[string]*AccountEngine),
	}
}

// LoadAllAccounts initializes an engine for every stored account.
func (m *Manager) LoadAllAccounts() error {
	accountList, err := m.provider.ListAccounts()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	for _, account := range accountList {
		if err := m.attach(account); err != nil {
			return fmt.Errorf("failed to initialize account %s: %w", account.ID, err)
		}
	}

	return nil
}

// CreateAccount persists a new account and spins up its engine.
func (m *Manager) CreateAccount(name, emailAddress string, settings Settings) (*Account, error) {
	if name == "" {
		return nil, fmt.Errorf("account name cannot be empty")
	}

	now := time.Now()
	account := &Account{
		ID:           uuid.NewString(),
		Name:         name,
		EmailAddress: emailAddress,
		Settings:     settings,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := m.provider.SaveAccount(account); err != nil {
		return nil, err
	}

	if err := m.attach(account); err != nil {
		return nil, err
	}

	return account, nil
}

func (m *Manager) attach(account *Account) error {
	engine, err := rules.NewEngine(
		m.provider.RuleStore(account.ID),
		rules.WithScriptTimeout(time.Duration(account.Settings.ScriptTimeoutMs)*time.Millisecond),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}

	m.mu.Lock()
	m.engines[account.ID] = &AccountEngine{
		Account:  account,
		Engine:   engine,
		Rules:    m.provider.RuleStore(account.ID),
		Scores:   m.provider.ScoreStore(account.ID),
		DebugLog: m.provider.DebugLogStore(account.ID),
	}
	m.mu.Unlock()

	return nil
}

// Get retrieves a loaded account engine.
func (m *Manager) Get(accountID string) (*AccountEngine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ae, exists := m.engines[accountID]
	if !exists {
		return nil, fmt.Errorf("account %s not found", accountID)
	}
	return ae, nil
}

// ListAccounts returns all loaded accounts.
func (m *Manager) ListAccounts() []*Account {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Account, 0, len(m.engines))
	for _, ae := range m.engines {
		out = append(out, ae.Account)
	}
	return out
}

// UpdateSettings persists new settings and atomically swaps in an engine
// built with them, so in-flight passes keep their old configuration.
func (m *Manager) UpdateSettings(accountID string, settings Settings) (*Account, error) {
	m.mu.RLock()
	ae, exists := m.engines[accountID]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("account %s not found", accountID)
	}

	updated := *ae.Account
	updated.Settings = settings
	updated.UpdatedAt = time.Now()

	if err := m.provider.SaveAccount(&updated); err != nil {
		return nil, err
	}

	if err := m.attach(&updated); err != nil {
		return nil, err
	}

	return &updated, nil
}

// DeleteAccount removes the account record and drops its engine.
func (m *Manager) DeleteAccount(accountID string) error {
	m.mu.Lock()
	_, exists := m.engines[accountID]
	if exists {
		delete(m.engines, accountID)
	}
	m.mu.Unlock()

	if !exists {
		return fmt.Errorf("account %s not found", accountID)
	}

	return m.provider.DeleteAccount(accountID)
}

// PurgeDebugLogs enforces each account's retention policy. Returns the
// total number of removed entries.
func (m *Manager) PurgeDebugLogs(now time.Time) int {
	m.mu.RLock()
	engines := make([]*AccountEngine, 0, len(m.engines))
	for _, ae := range m.engines {
		engines = append(engines, ae)
	}
	m.mu.RUnlock()

	total := 0
	for _, ae := range engines {
		days := ae.Account.Settings.DebugRetentionDays
		if days <= 0 {
			continue
		}
		cutoff := now.AddDate(0, 0, -days)
		removed, err := ae.DebugLog.Purge(cutoff)
		if err != nil {
			logger.Error("debug log purge failed",
				"account", ae.Account.ID, "error", err)
			continue
		}
		total += removed
	}
	return total
}
