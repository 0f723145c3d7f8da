package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/mailtriage/mailtriage/internal/logger"
)

// exprCostLimit bounds CEL evaluation cost so a pathological user
// expression cannot stall a pass.
const exprCostLimit = 1_000_000

// exprEvaluator compiles and caches CEL programs for expression conditions.
// Programs are cached per condition ID and recompiled if the source changes.
type exprEvaluator struct {
	env      *cel.Env
	programs map[string]exprProgram
	mu       sync.RWMutex
}

type exprProgram struct {
	source  string
	program cel.Program
	bad     bool // source failed to compile; don't retry every pass
}

func newExprEvaluator() (*exprEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("email", cel.DynType),
		cel.Variable("senderInfo", cel.DynType),
		cel.Variable("senderScore", cel.DoubleType),
		cel.Variable("extractedLinks", cel.ListType(cel.StringType)),
		cel.Variable("variables", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &exprEvaluator{
		env:      env,
		programs: make(map[string]exprProgram),
	}, nil
}

// compile validates an expression without caching it. Used at rule-save time.
func (x *exprEvaluator) compile(source string) error {
	ast, issues := x.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}
	if _, err := x.env.Program(ast, cel.CostLimit(exprCostLimit)); err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}
	return nil
}

func (x *exprEvaluator) lookup(condID, source string) (cel.Program, bool) {
	x.mu.RLock()
	cached, ok := x.programs[condID]
	x.mu.RUnlock()

	if ok && cached.source == source {
		return cached.program, !cached.bad
	}

	ast, issues := x.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		logger.Warn("expression condition failed to compile",
			"condition", condID, "error", issues.Err())
		x.store(condID, exprProgram{source: source, bad: true})
		return nil, false
	}

	prog, err := x.env.Program(ast, cel.CostLimit(exprCostLimit))
	if err != nil {
		logger.Warn("expression condition program creation failed",
			"condition", condID, "error", err)
		x.store(condID, exprProgram{source: source, bad: true})
		return nil, false
	}

	x.store(condID, exprProgram{source: source, program: prog})
	return prog, true
}

func (x *exprEvaluator) store(condID string, p exprProgram) {
	x.mu.Lock()
	x.programs[condID] = p
	x.mu.Unlock()
}

func (x *exprEvaluator) forget(condID string) {
	x.mu.Lock()
	delete(x.programs, condID)
	x.mu.Unlock()
}

// evalExpression evaluates an expression condition. Compile errors, runtime
// errors and non-boolean results all degrade to a non-match.
func (e *Engine) evalExpression(cond Condition, ec *EvalContext) bool {
	source, ok := cond.Value.(string)
	if !ok || source == "" {
		return false
	}

	prog, ok := e.exprs.lookup(cond.ID, source)
	if !ok {
		return false
	}

	out, _, err := prog.Eval(map[string]any{
		"email":          emailFacts(ec.Email),
		"senderInfo":     map[string]any{"email": ec.SenderInfo.Email, "name": ec.SenderInfo.Name},
		"senderScore":    ec.SenderScore,
		"extractedLinks": ec.ExtractedLinks,
		"variables":      ec.Variables,
	})
	if err != nil {
		logger.Debug("expression condition evaluation failed",
			"condition", cond.ID, "error", err)
		return false
	}

	matched, _ := out.Value().(bool)
	return matched
}

func emailFacts(email Email) map[string]any {
	return map[string]any{
		"id":      email.ID,
		"subject": email.Subject,
		"from":    email.From,
		"body":    email.Body,
		"snippet": email.Snippet,
		"read":    email.Read,
		"flagged": email.Flagged,
	}
}
