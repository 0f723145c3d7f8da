package accounts

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/mailtriage/mailtriage/rules"
)

// PostgresProvider implements StoreProvider on a shared database handle.
// Settings are stored as JSONB alongside the account row.
type PostgresProvider struct {
	db *sql.DB
}

// NewPostgresProvider creates a provider over db.
func NewPostgresProvider(db *sql.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// ListAccounts returns all account records in creation order.
func (p *PostgresProvider) ListAccounts() ([]*Account, error) {
	rows, err := p.db.Query(`
		SELECT id, name, email_address, settings, created_at, updated_at
		FROM accounts
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []*Account
	for rows.Next() {
		var account Account
		var settings []byte
		if err := rows.Scan(&account.ID, &account.Name, &account.EmailAddress,
			&settings, &account.CreatedAt, &account.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if err := json.Unmarshal(settings, &account.Settings); err != nil {
			return nil, fmt.Errorf("invalid settings for account %s: %w", account.ID, err)
		}
		out = append(out, &account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return out, nil
}

// SaveAccount upserts an account record.
func (p *PostgresProvider) SaveAccount(account *Account) error {
	settings, err := json.Marshal(account.Settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = p.db.Exec(`
		INSERT INTO accounts (id, name, email_address, settings, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id)
		DO UPDATE SET name = $2, email_address = $3, settings = $4, updated_at = $6
	`, account.ID, account.Name, account.EmailAddress, settings,
		account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// DeleteAccount removes an account and, via cascade, its rules, scores and
// debug log.
func (p *PostgresProvider) DeleteAccount(id string) error {
	result, err := p.db.Exec(`DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// RuleStore returns an account-scoped rule store.
func (p *PostgresProvider) RuleStore(accountID string) rules.RuleStore {
	return rules.NewPostgresRuleStore(p.db, accountID)
}

// ScoreStore returns an account-scoped sender score store.
func (p *PostgresProvider) ScoreStore(accountID string) rules.SenderScoreStore {
	return rules.NewPostgresSenderScoreStore(p.db, accountID)
}

// DebugLogStore returns an account-scoped debug log store.
func (p *PostgresProvider) DebugLogStore(accountID string) rules.DebugLogStore {
	return rules.NewPostgresDebugLogStore(p.db, accountID)
}
