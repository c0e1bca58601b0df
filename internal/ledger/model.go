package ledger

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindEarned      Kind = "earned"
	KindSpent       Kind = "spent"
	KindAwarded     Kind = "awarded"
	KindBonus       Kind = "bonus"
	KindTransferIn  Kind = "transfer_in"
	KindTransferOut Kind = "transfer_out"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Transaction is one row of the append-only credit log.
type Transaction struct {
	ID              int64      `db:"id" json:"id"`
	AccountID       int64      `db:"account_id" json:"account_id"`
	Amount          int64      `db:"amount" json:"amount"`
	Kind            Kind       `db:"kind" json:"kind"`
	Reason          string     `db:"reason" json:"reason"`
	RelatedEntityID *int64     `db:"related_entity_id" json:"related_entity_id,omitempty"`
	TransferID      *uuid.UUID `db:"transfer_id" json:"transfer_id,omitempty"`
	IdempotencyKey  *string    `db:"idempotency_key" json:"-"`
	BalanceAfter    int64      `db:"balance_after" json:"balance_after"`
	Status          Status     `db:"status" json:"status"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
}

// AccountState is the locked view of an account the ledger mutates.
type AccountState struct {
	ID      int64 `db:"id"`
	Balance int64 `db:"credit_balance"`
	Active  bool  `db:"active"`
}

type PostRequest struct {
	AccountID       int64  `json:"account_id"`
	Amount          int64  `json:"amount"`
	Kind            Kind   `json:"kind"`
	Reason          string `json:"reason"`
	RelatedEntityID *int64 `json:"related_entity_id,omitempty"`
	// A completed transaction with the same key on the same account is
	// returned instead of posting again.
	IdempotencyKey string `json:"-"`
}

// Cursor marks a position in an account's history. The zero value starts
// from the newest transaction.
type Cursor struct {
	BeforeTime time.Time `json:"before_time"`
	BeforeID   int64     `json:"before_id"`
}

func (c Cursor) IsZero() bool {
	return c.BeforeID == 0 && c.BeforeTime.IsZero()
}

type TransferRequest struct {
	ToAccountID int64  `json:"to_account_id" binding:"required"`
	Amount      int64  `json:"amount"`
	Reason      string `json:"reason" binding:"required,max=200"`
}

type TransferResponse struct {
	Out *Transaction `json:"out"`
	In  *Transaction `json:"in"`
}

type AwardRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	Kind   Kind   `json:"kind" binding:"required,oneof=awarded bonus"`
	Reason string `json:"reason" binding:"required,max=200"`
}

type BalanceResponse struct {
	AccountID int64 `json:"account_id"`
	Balance   int64 `json:"balance"`
}

type HistoryResponse struct {
	Transactions []Transaction `json:"transactions"`
	Next         *Cursor       `json:"next,omitempty"`
}
