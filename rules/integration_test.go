//go:build integration

package rules

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL testcontainer and runs migrations.
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "password",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	postgres, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	host, err := postgres.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgres.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("postgres://postgres:password@%s:%s/testdb?sslmode=disable", host, port.Port())

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	migrationSQL, err := os.ReadFile("../migrations/000001_initial_schema.up.sql")
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgres.Terminate(ctx)
	}

	return db, cleanup
}

func createTestAccount(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.Exec(`
		INSERT INTO accounts (id, name, email_address, settings)
		VALUES ($1, $2, $3, '{}')
	`, id, "Test account "+id, id+"@example.com")
	if err != nil {
		t.Fatalf("Failed to create test account: %v", err)
	}
}

func TestPostgresRuleStoreCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createTestAccount(t, db, "acct-1")

	store := NewPostgresRuleStore(db, "acct-1")

	rule := &Rule{
		ID:      "r1",
		Name:    "Newsletters",
		Enabled: true,
		Conditions: []Condition{
			{ID: "c1", Type: CondSubject, Operator: OpContains, Value: "newsletter"},
		},
		LogicOperator: LogicAnd,
		Actions: []Action{
			{ID: "a1", Type: ActionMarkEmail, Parameters: map[string]any{"flag": "archive"}},
		},
	}

	if err := store.Add(rule); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := store.Add(rule); err == nil {
		t.Fatal("duplicate Add should fail")
	}

	got, err := store.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Newsletters" || len(got.Conditions) != 1 || len(got.Actions) != 1 {
		t.Errorf("Get returned %+v", got)
	}
	if got.Actions[0].Parameters["flag"] != "archive" {
		t.Errorf("JSONB round trip lost parameters: %+v", got.Actions[0])
	}

	got.Name = "Updated"
	got.Enabled = false
	if err := store.Update(got); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	enabled, err := store.ListEnabled()
	if err != nil {
		t.Fatalf("ListEnabled failed: %v", err)
	}
	if len(enabled) != 0 {
		t.Errorf("disabled rule should not be listed, got %d", len(enabled))
	}

	all, err := store.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 1 || all[0].Name != "Updated" {
		t.Errorf("List returned %+v", all)
	}

	if err := store.Delete("r1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := store.Get("r1"); err == nil {
		t.Fatal("Get should fail after Delete")
	}
}

func TestPostgresRuleStoreRecordFire(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createTestAccount(t, db, "acct-1")

	store := NewPostgresRuleStore(db, "acct-1")
	rule := &Rule{ID: "r1", Name: "Counted", Enabled: true, LogicOperator: LogicAnd}
	if err := store.Add(rule); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := store.RecordFire("r1", time.Now()); err != nil {
			t.Fatalf("RecordFire failed: %v", err)
		}
	}

	got, err := store.Get("r1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.ExecutionCount != 3 {
		t.Errorf("executionCount = %d, want 3", got.ExecutionCount)
	}
	if got.LastExecuted == nil {
		t.Error("lastExecuted should be stamped")
	}

	if err := store.RecordFire("missing", time.Now()); err == nil {
		t.Error("RecordFire should fail for an unknown rule")
	}
}

func TestPostgresRuleStoreTenantIsolation(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createTestAccount(t, db, "acct-1")
	createTestAccount(t, db, "acct-2")

	store1 := NewPostgresRuleStore(db, "acct-1")
	store2 := NewPostgresRuleStore(db, "acct-2")

	if err := store1.Add(&Rule{ID: "r1", Name: "Mine", Enabled: true, LogicOperator: LogicAnd}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if _, err := store2.Get("r1"); err == nil {
		t.Error("accounts must not see each other's rules")
	}
	all, err := store2.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("account 2 should have no rules, got %d", len(all))
	}
}

func TestPostgresSenderScoreStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createTestAccount(t, db, "acct-1")

	store := NewPostgresSenderScoreStore(db, "acct-1")

	score, err := store.Get("alice@example.com")
	if err != nil || score != 0 {
		t.Fatalf("unknown sender should score 0, got %v, %v", score, err)
	}

	newScore, err := store.Adjust("alice@example.com", 2.5)
	if err != nil || newScore != 2.5 {
		t.Fatalf("Adjust = %v, %v; want 2.5", newScore, err)
	}
	newScore, err = store.Adjust("alice@example.com", -4.0)
	if err != nil || newScore != -1.5 {
		t.Fatalf("Adjust = %v, %v; want -1.5", newScore, err)
	}

	score, err = store.Get("alice@example.com")
	if err != nil || score != -1.5 {
		t.Errorf("Get after Adjust = %v, %v; want -1.5", score, err)
	}
}

func TestPostgresDebugLogStore(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()
	createTestAccount(t, db, "acct-1")

	store := NewPostgresDebugLogStore(db, "acct-1")
	base := time.Now().Truncate(time.Microsecond)

	for i := 0; i < 3; i++ {
		entry := &DebugLogEntry{
			ID:                fmt.Sprintf("entry-%d", i),
			Timestamp:         base.Add(time.Duration(i) * time.Minute),
			EmailID:           fmt.Sprintf("email-%d", i),
			EmailSubject:      "Subject",
			TotalRulesChecked: 2,
			TotalRulesFired:   1,
			Results: []RuleResult{
				{RuleID: "r1", RuleName: "Rule", Matched: true, ActionResults: []ActionResult{}},
			},
		}
		if err := store.Append(entry); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	entries, err := store.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "entry-2" {
		t.Errorf("List(2) should return newest first, got %v", entries)
	}
	if len(entries[0].Results) != 1 || entries[0].Results[0].RuleID != "r1" {
		t.Errorf("results JSONB round trip failed: %+v", entries[0].Results)
	}

	removed, err := store.Purge(base.Add(90 * time.Second))
	if err != nil {
		t.Fatalf("Purge failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Purge removed %d, want 2", removed)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	entries, _ = store.List(0)
	if len(entries) != 0 {
		t.Errorf("Clear should empty the log, got %d", len(entries))
	}
}
