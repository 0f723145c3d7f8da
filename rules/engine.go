package rules

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mailtriage/mailtriage/internal/logger"
)

// Engine evaluates the enabled rule set against one email at a time.
// A pass is synchronous and single-threaded: actions mutate the pass's
// shared variables map and must observe each other's writes in order.
// The engine itself is safe for concurrent passes over different contexts
// because all mutable pass state lives in the EvalContext.
type Engine struct {
	store         RuleStore
	cache         RulesCache
	exprs         *exprEvaluator
	scriptTimeout time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithScriptTimeout overrides the sandbox execution budget for
// javascript_code actions.
func WithScriptTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.scriptTimeout = d
		}
	}
}

// WithCache replaces the default in-memory enabled-rules cache.
func WithCache(cache RulesCache) Option {
	return func(e *Engine) { e.cache = cache }
}

// NewEngine creates an engine over the given rule store.
func NewEngine(store RuleStore, opts ...Option) (*Engine, error) {
	exprs, err := newExprEvaluator()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:         store,
		cache:         NewInMemoryRulesCache(DefaultCacheConfig()),
		exprs:         exprs,
		scriptTimeout: DefaultScriptTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// AddRule validates a rule and adds it to the store.
func (e *Engine) AddRule(r *Rule) error {
	if _, err := e.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule with ID %s already exists", r.ID)
	}

	if err := ValidateRule(r, e.exprs); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := e.store.Add(r); err != nil {
		return err
	}

	e.cache.Invalidate()
	return nil
}

// UpdateRule validates and updates an existing rule.
func (e *Engine) UpdateRule(r *Rule) error {
	if err := ValidateRule(r, e.exprs); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := e.store.Update(r); err != nil {
		return err
	}

	// Cached expression programs may refer to edited conditions.
	for _, cond := range r.Conditions {
		e.exprs.forget(cond.ID)
	}

	e.cache.Invalidate()
	return nil
}

// DeleteRule removes a rule from the store.
func (e *Engine) DeleteRule(ruleID string) error {
	rule, err := e.store.Get(ruleID)
	if err != nil {
		return err
	}

	if err := e.store.Delete(ruleID); err != nil {
		return err
	}

	for _, cond := range rule.Conditions {
		e.exprs.forget(cond.ID)
	}

	e.cache.Invalidate()
	return nil
}

// enabledRules returns the enabled rule set in stable (creation) order,
// cache-first.
func (e *Engine) enabledRules() ([]*Rule, error) {
	if rules := e.cache.Get(); rules != nil {
		return rules, nil
	}

	rules, err := e.store.ListEnabled()
	if err != nil {
		return nil, err
	}
	e.cache.Set(rules)
	return rules, nil
}

// ProcessEmail runs one pass: every enabled rule is evaluated in order
// against ec, matching rules execute their actions, and a navigation
// directive from goto_next_email/goto_previous_email stops evaluation
// before the next rule (the current rule's remaining actions still run).
// One malformed rule never halts the pass; its failures are recorded in
// the per-rule results. The debug log entry is always computed so the host
// can decide cheaply whether to persist it.
func (e *Engine) ProcessEmail(ec *EvalContext, hooks Hooks) (*PassResult, *DebugLogEntry, error) {
	ruleSet, err := e.enabledRules()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load enabled rules: %w", err)
	}

	if ec.Variables == nil {
		ec.Variables = make(map[string]any)
	}

	passStart := time.Now()
	result := &PassResult{Results: make([]RuleResult, 0, len(ruleSet))}

	for _, rule := range ruleSet {
		ruleStart := time.Now()
		ruleResult := RuleResult{
			RuleID:        rule.ID,
			RuleName:      rule.Name,
			ActionResults: []ActionResult{},
		}

		var directive NavDirective

		rulesEvaluated.Inc()
		if e.matchRule(rule, ec) {
			ruleResult.Matched = true

			for _, action := range rule.Actions {
				actionResult, nav := e.executeAction(action, ec, hooks)
				ruleResult.ActionResults = append(ruleResult.ActionResults, actionResult)
				if nav != NavNone {
					directive = nav
				}
			}

			now := time.Now()
			if err := e.store.RecordFire(rule.ID, now); err != nil {
				logger.Error("failed to record rule fire",
					"rule", rule.ID, "error", err)
			}

			result.TotalRulesFired++
			rulesFired.Inc()
		}

		ruleResult.ExecutionTimeMs = float64(time.Since(ruleStart).Microseconds()) / 1000.0
		result.Results = append(result.Results, ruleResult)
		result.TotalRulesChecked++

		if directive != NavNone {
			result.Navigation = directive
			break
		}
	}

	passDuration.Observe(time.Since(passStart).Seconds())
	passesTotal.Inc()

	entry := &DebugLogEntry{
		ID:                uuid.NewString(),
		Timestamp:         passStart,
		EmailID:           ec.Email.ID,
		EmailSubject:      ec.Email.Subject,
		EmailFrom:         ec.Email.From,
		TotalRulesChecked: result.TotalRulesChecked,
		TotalRulesFired:   result.TotalRulesFired,
		Results:           result.Results,
	}

	return result, entry, nil
}
