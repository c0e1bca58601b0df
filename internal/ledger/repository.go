package ledger

import (
	"context"
	"database/sql"
	"errors"

	"campuscredits/internal/apperr"
	"campuscredits/internal/db"

	"github.com/jmoiron/sqlx"
)

const transactionColumns = `id, account_id, amount, kind, reason, related_entity_id, transfer_id, idempotency_key, balance_after, status, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) LockAccount(ctx context.Context, accountID int64) (*AccountState, error) {
	var acc AccountState
	err := db.Conn(ctx, r.db).GetContext(ctx, &acc, `
		SELECT id, credit_balance, active
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.New(apperr.AccountNotFound, "account %d not found", accountID)
		}
		return nil, err
	}
	return &acc, nil
}

func (r *repository) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	var balance int64
	err := db.Conn(ctx, r.db).GetContext(ctx, &balance, `SELECT credit_balance FROM accounts WHERE id = $1`, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, apperr.New(apperr.AccountNotFound, "account %d not found", accountID)
		}
		return 0, err
	}
	return balance, nil
}

func (r *repository) SetBalance(ctx context.Context, accountID int64, balance int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE accounts SET credit_balance = $1 WHERE id = $2`,
		balance, accountID,
	)
	return err
}

func (r *repository) InsertTransaction(ctx context.Context, t *Transaction) error {
	row := db.Conn(ctx, r.db).QueryRowxContext(ctx, `
		INSERT INTO credit_transactions
			(account_id, amount, kind, reason, related_entity_id, transfer_id, idempotency_key, balance_after, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`, t.AccountID, t.Amount, t.Kind, t.Reason, t.RelatedEntityID, t.TransferID, t.IdempotencyKey, t.BalanceAfter, t.Status)

	return row.Scan(&t.ID, &t.CreatedAt)
}

func (r *repository) FindByIdempotencyKey(ctx context.Context, accountID int64, key string) (*Transaction, error) {
	var t Transaction
	err := db.Conn(ctx, r.db).GetContext(ctx, &t, `
		SELECT `+transactionColumns+`
		FROM credit_transactions
		WHERE account_id = $1 AND idempotency_key = $2 AND status = 'completed'
	`, accountID, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &t, nil
}

func (r *repository) ListTransactions(ctx context.Context, accountID int64, cursor Cursor, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 50
	}

	txs := []Transaction{}
	var err error
	if cursor.IsZero() {
		err = db.Conn(ctx, r.db).SelectContext(ctx, &txs, `
			SELECT `+transactionColumns+`
			FROM credit_transactions
			WHERE account_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		`, accountID, limit)
	} else {
		err = db.Conn(ctx, r.db).SelectContext(ctx, &txs, `
			SELECT `+transactionColumns+`
			FROM credit_transactions
			WHERE account_id = $1 AND (created_at, id) < ($2, $3)
			ORDER BY created_at DESC, id DESC
			LIMIT $4
		`, accountID, cursor.BeforeTime, cursor.BeforeID, limit)
	}
	if err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *repository) SumCompleted(ctx context.Context, accountID int64) (int64, error) {
	var sum int64
	err := db.Conn(ctx, r.db).GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM credit_transactions
		WHERE account_id = $1 AND status = 'completed'
	`, accountID)
	return sum, err
}
