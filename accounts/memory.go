package accounts

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mailtriage/mailtriage/rules"
)

// MemoryProvider implements StoreProvider entirely in memory. It backs
// tests and database-less development runs.
type MemoryProvider struct {
	accounts map[string]*Account
	rules    map[string]*rules.InMemoryRuleStore
	scores   map[string]*rules.InMemorySenderScoreStore
	debug    map[string]*rules.InMemoryDebugLogStore
	mu       sync.Mutex
}

// NewMemoryProvider creates an empty provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		accounts: make(map[string]*Account),
		rules:    make(map[string]*rules.InMemoryRuleStore),
		scores:   make(map[string]*rules.InMemorySenderScoreStore),
		debug:    make(map[string]*rules.InMemoryDebugLogStore),
	}
}

// ListAccounts returns account records in creation order.
func (p *MemoryProvider) ListAccounts() ([]*Account, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]*Account, 0, len(p.accounts))
	for _, account := range p.accounts {
		out = append(out, account)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// SaveAccount upserts an account record.
func (p *MemoryProvider) SaveAccount(account *Account) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	clone := *account
	p.accounts[account.ID] = &clone
	return nil
}

// DeleteAccount removes an account and its stores.
func (p *MemoryProvider) DeleteAccount(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.accounts[id]; !exists {
		return fmt.Errorf("account %s not found", id)
	}
	delete(p.accounts, id)
	delete(p.rules, id)
	delete(p.scores, id)
	delete(p.debug, id)
	return nil
}

// RuleStore returns the account's rule store, creating it on first use.
func (p *MemoryProvider) RuleStore(accountID string) rules.RuleStore {
	p.mu.Lock()
	defer p.mu.Unlock()

	store, exists := p.rules[accountID]
	if !exists {
		store = rules.NewInMemoryRuleStore()
		p.rules[accountID] = store
	}
	return store
}

// ScoreStore returns the account's score store, creating it on first use.
func (p *MemoryProvider) ScoreStore(accountID string) rules.SenderScoreStore {
	p.mu.Lock()
	defer p.mu.Unlock()

	store, exists := p.scores[accountID]
	if !exists {
		store = rules.NewInMemorySenderScoreStore()
		p.scores[accountID] = store
	}
	return store
}

// DebugLogStore returns the account's debug log store, creating it on
// first use.
func (p *MemoryProvider) DebugLogStore(accountID string) rules.DebugLogStore {
	p.mu.Lock()
	defer p.mu.Unlock()

	store, exists := p.debug[accountID]
	if !exists {
		store = rules.NewInMemoryDebugLogStore()
		p.debug[accountID] = store
	}
	return store
}
