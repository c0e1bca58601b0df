package ledger

import "context"

type Repository interface {
	// LockAccount reads the account row FOR UPDATE inside the caller's transaction.
	LockAccount(ctx context.Context, accountID int64) (*AccountState, error)
	GetBalance(ctx context.Context, accountID int64) (int64, error)
	SetBalance(ctx context.Context, accountID int64, balance int64) error
	InsertTransaction(ctx context.Context, t *Transaction) error
	// FindByIdempotencyKey returns nil, nil when no transaction carries key.
	FindByIdempotencyKey(ctx context.Context, accountID int64, key string) (*Transaction, error)
	ListTransactions(ctx context.Context, accountID int64, cursor Cursor, limit int) ([]Transaction, error)
	SumCompleted(ctx context.Context, accountID int64) (int64, error)
}
