package integration_test

import (
	"context"
	"fmt"
	"os"
	"testing"

	"campuscredits/internal/access"
	"campuscredits/internal/account"
	"campuscredits/internal/approval"
	"campuscredits/internal/auth"
	"campuscredits/internal/db"
	"campuscredits/internal/event"
	"campuscredits/internal/keylock"
	"campuscredits/internal/ledger"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB connects to TEST_DSN, migrates it and empties every table.
func setupTestDB(t *testing.T) *sqlx.DB {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	dsn := os.Getenv("TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: TEST_DSN not set")
	}

	conn, err := db.Connect(dsn)
	if err != nil {
		t.Skipf("Skipping integration tests: cannot connect to test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, db.RunMigrations(conn, "../migrations"))
	cleanDatabase(t, conn)
	return conn
}

func cleanDatabase(t *testing.T, conn *sqlx.DB) {
	tables := []string{
		"event_registrations",
		"events",
		"credit_transactions",
		"approvable_entities",
		"accounts",
	}

	for _, table := range tables {
		_, err := conn.Exec(fmt.Sprintf("DELETE FROM %s", table))
		require.NoError(t, err, "Failed to clean table "+table)
	}
}

func createAccount(t *testing.T, conn *sqlx.DB, email string, role access.Role, balance int64) int64 {
	t.Helper()
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)

	var id int64
	err = conn.QueryRow(`
		INSERT INTO accounts (display_name, email, password_hash, role, credit_balance)
		VALUES ($1, $2, $3, $4, 0)
		RETURNING id
	`, email, email, hashed, role).Scan(&id)
	require.NoError(t, err)

	if balance > 0 {
		// Seed through the ledger so the balance matches the log.
		_, err = conn.Exec(`
			WITH seeded AS (
				UPDATE accounts SET credit_balance = $1 WHERE id = $2 RETURNING id
			)
			INSERT INTO credit_transactions (account_id, amount, kind, reason, balance_after, status)
			SELECT id, $1, 'bonus', 'seed', $1, 'completed' FROM seeded
		`, balance, id)
		require.NoError(t, err)
	}
	return id
}

type stack struct {
	accounts account.Service
	ledger   ledger.Service
	events   event.Service
	entities approval.Service
}

func newStack(conn *sqlx.DB) stack {
	tx := db.NewTransactor(conn)
	locks := keylock.New()
	accountRepo := account.NewRepository(conn)
	gate := access.NewGate(accountRepo)

	ledgerService := ledger.NewService(ledger.NewRepository(conn), tx, gate, locks)
	eventService := event.NewService(event.NewRepository(conn), tx, gate, locks, ledgerService)
	return stack{
		accounts: account.NewService(accountRepo, gate, "test-secret", nil),
		ledger:   ledgerService,
		events:   eventService,
		entities: approval.NewService(approval.NewRepository(conn), tx, gate, locks, ledgerService, eventService),
	}
}

func balanceOf(t *testing.T, s stack, id int64) int64 {
	t.Helper()
	b, err := s.ledger.GetBalance(context.Background(), id)
	require.NoError(t, err)
	return b
}
