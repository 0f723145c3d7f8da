package rules

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL, scoped to
// one mailbox account. Conditions and actions are stored as JSONB.
type PostgresRuleStore struct {
	db        *sql.DB
	accountID string
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore for an account.
func NewPostgresRuleStore(db *sql.DB, accountID string) *PostgresRuleStore {
	return &PostgresRuleStore{db: db, accountID: accountID}
}

// Add inserts a new rule.
func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1 AND account_id = $2)
	`, rule.ID, s.accountID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	conditions, actions, err := marshalRuleBody(rule)
	if err != nil {
		return err
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.LastModified = now

	_, err = s.db.Exec(`
		INSERT INTO rules (id, account_id, name, description, enabled,
			logic_operator, conditions, actions, created_at, last_modified,
			execution_count, last_executed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, rule.ID, s.accountID, rule.Name, rule.Description, rule.Enabled,
		string(rule.LogicOperator), conditions, actions,
		rule.CreatedAt, rule.LastModified, rule.ExecutionCount, rule.LastExecuted)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID.
func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, enabled, logic_operator, conditions,
			actions, created_at, last_modified, execution_count, last_executed
		FROM rules
		WHERE id = $1 AND account_id = $2
	`, id, s.accountID)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule with ID %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns all rules for the account in creation order.
func (s *PostgresRuleStore) List() ([]*Rule, error) {
	return s.list(false)
}

// ListEnabled returns the enabled rules in creation order.
func (s *PostgresRuleStore) ListEnabled() ([]*Rule, error) {
	return s.list(true)
}

func (s *PostgresRuleStore) list(enabledOnly bool) ([]*Rule, error) {
	query := `
		SELECT id, name, description, enabled, logic_operator, conditions,
			actions, created_at, last_modified, execution_count, last_executed
		FROM rules
		WHERE account_id = $1`
	if enabledOnly {
		query += ` AND enabled = true`
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.Query(query, s.accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return out, nil
}

// Update modifies an existing rule; fire counters are left to RecordFire.
func (s *PostgresRuleStore) Update(rule *Rule) error {
	conditions, actions, err := marshalRuleBody(rule)
	if err != nil {
		return err
	}

	rule.LastModified = time.Now()

	result, err := s.db.Exec(`
		UPDATE rules
		SET name = $1, description = $2, enabled = $3, logic_operator = $4,
			conditions = $5, actions = $6, last_modified = $7
		WHERE id = $8 AND account_id = $9
	`, rule.Name, rule.Description, rule.Enabled, string(rule.LogicOperator),
		conditions, actions, rule.LastModified, rule.ID, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	return requireRowsAffected(result, rule.ID)
}

// Delete removes a rule.
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rules WHERE id = $1 AND account_id = $2
	`, id, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}
	return requireRowsAffected(result, id)
}

// RecordFire bumps the execution counter atomically in the database.
func (s *PostgresRuleStore) RecordFire(id string, at time.Time) error {
	result, err := s.db.Exec(`
		UPDATE rules
		SET execution_count = execution_count + 1, last_executed = $1
		WHERE id = $2 AND account_id = $3
	`, at, id, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to record rule fire: %w", err)
	}
	return requireRowsAffected(result, id)
}

func requireRowsAffected(result sql.Result, ruleID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule with ID %s not found", ruleID)
	}
	return nil
}

func marshalRuleBody(rule *Rule) (conditions, actions []byte, err error) {
	conditions, err = json.Marshal(rule.Conditions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal conditions: %w", err)
	}
	actions, err = json.Marshal(rule.Actions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal actions: %w", err)
	}
	return conditions, actions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var rule Rule
	var logicOperator string
	var conditions, actions []byte
	var lastExecuted sql.NullTime

	err := row.Scan(&rule.ID, &rule.Name, &rule.Description, &rule.Enabled,
		&logicOperator, &conditions, &actions, &rule.CreatedAt,
		&rule.LastModified, &rule.ExecutionCount, &lastExecuted)
	if err != nil {
		return nil, err
	}

	rule.LogicOperator = LogicOperator(logicOperator)
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("failed to unmarshal actions: %w", err)
	}
	if lastExecuted.Valid {
		fired := lastExecuted.Time
		rule.LastExecuted = &fired
	}

	return &rule, nil
}

// PostgresSenderScoreStore implements SenderScoreStore for one account.
type PostgresSenderScoreStore struct {
	db        *sql.DB
	accountID string
}

// NewPostgresSenderScoreStore creates a PostgreSQL-backed score store.
func NewPostgresSenderScoreStore(db *sql.DB, accountID string) *PostgresSenderScoreStore {
	return &PostgresSenderScoreStore{db: db, accountID: accountID}
}

// Get returns the sender's score, zero if the sender is unknown.
func (s *PostgresSenderScoreStore) Get(senderEmail string) (float64, error) {
	var score float64
	err := s.db.QueryRow(`
		SELECT score FROM sender_scores
		WHERE account_id = $1 AND sender_email = $2
	`, s.accountID, senderEmail).Scan(&score)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get sender score: %w", err)
	}
	return score, nil
}

// Adjust shifts the sender's score by delta via upsert.
func (s *PostgresSenderScoreStore) Adjust(senderEmail string, delta float64) (float64, error) {
	var score float64
	err := s.db.QueryRow(`
		INSERT INTO sender_scores (account_id, sender_email, score, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (account_id, sender_email)
		DO UPDATE SET score = sender_scores.score + $3, updated_at = NOW()
		RETURNING score
	`, s.accountID, senderEmail, delta).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("failed to adjust sender score: %w", err)
	}
	return score, nil
}

// PostgresDebugLogStore implements DebugLogStore for one account.
type PostgresDebugLogStore struct {
	db        *sql.DB
	accountID string
}

// NewPostgresDebugLogStore creates a PostgreSQL-backed debug log store.
func NewPostgresDebugLogStore(db *sql.DB, accountID string) *PostgresDebugLogStore {
	return &PostgresDebugLogStore{db: db, accountID: accountID}
}

// Append stores one pass record; per-rule results are stored as JSONB.
func (s *PostgresDebugLogStore) Append(entry *DebugLogEntry) error {
	results, err := json.Marshal(entry.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO debug_log (id, account_id, timestamp, email_id,
			email_subject, email_from, rules_checked, rules_fired, results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, entry.ID, s.accountID, entry.Timestamp, entry.EmailID,
		entry.EmailSubject, entry.EmailFrom, entry.TotalRulesChecked,
		entry.TotalRulesFired, results)
	if err != nil {
		return fmt.Errorf("failed to insert debug log entry: %w", err)
	}
	return nil
}

// List returns entries newest first, up to limit (0 means no limit).
func (s *PostgresDebugLogStore) List(limit int) ([]*DebugLogEntry, error) {
	query := `
		SELECT id, timestamp, email_id, email_subject, email_from,
			rules_checked, rules_fired, results
		FROM debug_log
		WHERE account_id = $1
		ORDER BY timestamp DESC`
	args := []any{s.accountID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list debug log: %w", err)
	}
	defer rows.Close()

	var out []*DebugLogEntry
	for rows.Next() {
		var entry DebugLogEntry
		var results []byte
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.EmailID,
			&entry.EmailSubject, &entry.EmailFrom, &entry.TotalRulesChecked,
			&entry.TotalRulesFired, &results); err != nil {
			return nil, fmt.Errorf("failed to scan debug log entry: %w", err)
		}
		if err := json.Unmarshal(results, &entry.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
		out = append(out, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating debug log: %w", err)
	}

	return out, nil
}

// Purge removes entries older than the cutoff.
func (s *PostgresDebugLogStore) Purge(olderThan time.Time) (int, error) {
	result, err := s.db.Exec(`
		DELETE FROM debug_log WHERE account_id = $1 AND timestamp < $2
	`, s.accountID, olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to purge debug log: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(removed), nil
}

// Clear removes all entries for the account.
func (s *PostgresDebugLogStore) Clear() error {
	_, err := s.db.Exec(`DELETE FROM debug_log WHERE account_id = $1`, s.accountID)
	if err != nil {
		return fmt.Errorf("failed to clear debug log: %w", err)
	}
	return nil
}
