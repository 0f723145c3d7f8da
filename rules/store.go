package rules

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// RuleStore manages rule persistence and retrieval. ListEnabled must return
// rules in creation order; the engine relies on that order being stable
// across passes.
type RuleStore interface {
	// Add a new rule.
	Add(rule *Rule) error

	// Get a rule by ID.
	Get(id string) (*Rule, error)

	// List all rules, enabled or not.
	List() ([]*Rule, error)

	// ListEnabled returns the enabled rules in creation order.
	ListEnabled() ([]*Rule, error)

	// Update an existing rule.
	Update(rule *Rule) error

	// Delete a rule.
	Delete(id string) error

	// RecordFire increments the rule's execution count and stamps
	// lastExecuted. Called once per matched-and-fired rule per pass.
	RecordFire(id string, at time.Time) error
}

// SenderScoreStore tracks per-sender reputation scores.
type SenderScoreStore interface {
	// Get returns the sender's current score; unknown senders score 0.
	Get(senderEmail string) (float64, error)

	// Adjust shifts the sender's score by delta and returns the new value.
	Adjust(senderEmail string, delta float64) (float64, error)
}

// InMemoryRuleStore implements RuleStore with a map. Thread-safe.
type InMemoryRuleStore struct {
	rules map[string]*Rule
	mu    sync.RWMutex
}

// NewInMemoryRuleStore creates an empty in-memory rule store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*Rule),
	}
}

// Add adds a new rule, enforcing unique IDs and stamping timestamps.
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.LastModified = now

	clone := *rule
	s.rules[rule.ID] = &clone
	return nil
}

// Get retrieves a rule by ID.
func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule with ID %s not found", id)
	}
	clone := *rule
	return &clone, nil
}

// List returns all rules in creation order.
func (s *InMemoryRuleStore) List() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(false), nil
}

// ListEnabled returns the enabled rules in creation order.
func (s *InMemoryRuleStore) ListEnabled() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(true), nil
}

func (s *InMemoryRuleStore) sorted(enabledOnly bool) []*Rule {
	out := make([]*Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		if enabledOnly && !rule.Enabled {
			continue
		}
		clone := *rule
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Update replaces an existing rule, preserving CreatedAt and the fire
// counters and refreshing LastModified.
func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule with ID %s not found", rule.ID)
	}

	clone := *rule
	clone.CreatedAt = existing.CreatedAt
	clone.ExecutionCount = existing.ExecutionCount
	clone.LastExecuted = existing.LastExecuted
	clone.LastModified = time.Now()
	s.rules[rule.ID] = &clone
	return nil
}

// Delete removes a rule.
func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("rule with ID %s not found", id)
	}

	delete(s.rules, id)
	return nil
}

// RecordFire increments the execution counter and stamps lastExecuted.
func (s *InMemoryRuleStore) RecordFire(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, exists := s.rules[id]
	if !exists {
		return fmt.Errorf("rule with ID %s not found", id)
	}

	rule.ExecutionCount++
	fired := at
	rule.LastExecuted = &fired
	return nil
}

// InMemorySenderScoreStore implements SenderScoreStore with a map.
type InMemorySenderScoreStore struct {
	scores map[string]float64
	mu     sync.RWMutex
}

// NewInMemorySenderScoreStore creates an empty score store.
func NewInMemorySenderScoreStore() *InMemorySenderScoreStore {
	return &InMemorySenderScoreStore{
		scores: make(map[string]float64),
	}
}

// Get returns the sender's score, zero for unknown senders.
func (s *InMemorySenderScoreStore) Get(senderEmail string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scores[senderEmail], nil
}

// Adjust shifts the sender's score by delta.
func (s *InMemorySenderScoreStore) Adjust(senderEmail string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[senderEmail] += delta
	return s.scores[senderEmail], nil
}
