package ledger

import (
	"context"
	"fmt"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/db"
	"campuscredits/internal/keylock"
	"campuscredits/internal/logger"
	"campuscredits/internal/metrics"

	"github.com/google/uuid"
)

type Authorizer interface {
	Authorize(ctx context.Context, accountID int64, op access.Operation) error
}

type Service interface {
	GetBalance(ctx context.Context, accountID int64) (int64, error)
	Post(ctx context.Context, req PostRequest) (*Transaction, error)
	Transfer(ctx context.Context, fromID, toID, amount int64, reason string) (*Transaction, *Transaction, error)
	History(accountID int64, pageSize int) *HistoryIterator
	Page(ctx context.Context, accountID int64, cursor Cursor, limit int) ([]Transaction, *Cursor, error)
	Award(ctx context.Context, actorID int64, req PostRequest) (*Transaction, error)
	Verify(ctx context.Context, accountID int64) error
}

type service struct {
	repo  Repository
	tx    db.Transactor
	gate  Authorizer
	locks *keylock.Locker
}

func NewService(repo Repository, tx db.Transactor, gate Authorizer, locks *keylock.Locker) Service {
	return &service{
		repo:  repo,
		tx:    tx,
		gate:  gate,
		locks: locks,
	}
}

func (s *service) GetBalance(ctx context.Context, accountID int64) (int64, error) {
	return s.repo.GetBalance(ctx, accountID)
}

func validatePost(req PostRequest) error {
	if req.Amount == 0 {
		return apperr.New(apperr.InvalidAmount, "amount must not be zero")
	}
	switch req.Kind {
	case KindSpent:
		if req.Amount > 0 {
			return apperr.New(apperr.InvalidAmount, "spent amount must be negative")
		}
	case KindEarned, KindAwarded, KindBonus:
		if req.Amount < 0 {
			return apperr.New(apperr.InvalidAmount, "%s amount must be positive", req.Kind)
		}
	case KindTransferIn, KindTransferOut:
		return apperr.New(apperr.InvalidPayload, "transfer legs are only written by Transfer")
	default:
		return apperr.New(apperr.InvalidPayload, "unknown transaction kind %q", req.Kind)
	}
	return nil
}

func (s *service) Post(ctx context.Context, req PostRequest) (*Transaction, error) {
	if err := validatePost(req); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.Key("account", req.AccountID))
	defer unlock()

	var (
		posted   *Transaction
		replayed bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		acc, err := s.lockActive(ctx, req.AccountID)
		if err != nil {
			return err
		}

		if req.IdempotencyKey != "" {
			existing, err := s.repo.FindByIdempotencyKey(ctx, req.AccountID, req.IdempotencyKey)
			if err != nil {
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
			if existing != nil {
				posted, replayed = existing, true
				return nil
			}
		}

		t := &Transaction{
			AccountID:       req.AccountID,
			Amount:          req.Amount,
			Kind:            req.Kind,
			Reason:          req.Reason,
			RelatedEntityID: req.RelatedEntityID,
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			t.IdempotencyKey = &key
		}
		if err := s.apply(ctx, acc, t); err != nil {
			return err
		}
		posted = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	if replayed {
		logger.Debug("ledger post replayed", "account_id", req.AccountID, "transaction_id", posted.ID)
	} else {
		metrics.RecordLedgerPosting(string(posted.Kind))
	}
	return posted, nil
}

func (s *service) Transfer(ctx context.Context, fromID, toID, amount int64, reason string) (*Transaction, *Transaction, error) {
	if amount <= 0 {
		return nil, nil, apperr.New(apperr.InvalidAmount, "transfer amount must be positive")
	}
	if fromID == toID {
		return nil, nil, apperr.New(apperr.InvalidAmount, "cannot transfer to the same account")
	}
	if err := s.gate.Authorize(ctx, fromID, access.OpTransfer); err != nil {
		return nil, nil, err
	}

	first, second := fromID, toID
	if second < first {
		first, second = second, first
	}
	unlock := s.locks.LockOrdered(keylock.Key("account", first), keylock.Key("account", second))
	defer unlock()

	transferID := uuid.New()
	var out, in *Transaction

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		// Row locks follow the same ascending order as the key locks.
		accFirst, err := s.lockActive(ctx, first)
		if err != nil {
			return err
		}
		accSecond, err := s.lockActive(ctx, second)
		if err != nil {
			return err
		}
		sender, receiver := accFirst, accSecond
		if sender.ID != fromID {
			sender, receiver = accSecond, accFirst
		}

		out = &Transaction{
			AccountID:  fromID,
			Amount:     -amount,
			Kind:       KindTransferOut,
			Reason:     reason,
			TransferID: &transferID,
		}
		if err := s.apply(ctx, sender, out); err != nil {
			return err
		}

		in = &Transaction{
			AccountID:  toID,
			Amount:     amount,
			Kind:       KindTransferIn,
			Reason:     reason,
			TransferID: &transferID,
		}
		return s.apply(ctx, receiver, in)
	})
	if err != nil {
		return nil, nil, err
	}

	metrics.RecordLedgerPosting(string(KindTransferOut))
	metrics.RecordLedgerPosting(string(KindTransferIn))
	return out, in, nil
}

func (s *service) History(accountID int64, pageSize int) *HistoryIterator {
	return newHistoryIterator(s.repo, accountID, pageSize)
}

func (s *service) Page(ctx context.Context, accountID int64, cursor Cursor, limit int) ([]Transaction, *Cursor, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	txs, err := s.repo.ListTransactions(ctx, accountID, cursor, limit)
	if err != nil {
		return nil, nil, err
	}
	if len(txs) < limit {
		return txs, nil, nil
	}
	last := txs[len(txs)-1]
	return txs, &Cursor{BeforeTime: last.CreatedAt, BeforeID: last.ID}, nil
}

func (s *service) Award(ctx context.Context, actorID int64, req PostRequest) (*Transaction, error) {
	if err := s.gate.Authorize(ctx, actorID, access.OpAward); err != nil {
		return nil, err
	}
	if req.Kind != KindAwarded && req.Kind != KindBonus {
		return nil, apperr.New(apperr.InvalidPayload, "awards must be of kind awarded or bonus")
	}
	return s.Post(ctx, req)
}

// Verify checks that the stored balance equals the sum of completed transactions.
func (s *service) Verify(ctx context.Context, accountID int64) error {
	balance, err := s.repo.GetBalance(ctx, accountID)
	if err != nil {
		return err
	}
	sum, err := s.repo.SumCompleted(ctx, accountID)
	if err != nil {
		return err
	}
	if sum != balance {
		return fmt.Errorf("account %d: balance %d does not match ledger sum %d", accountID, balance, sum)
	}
	return nil
}

func (s *service) lockActive(ctx context.Context, accountID int64) (*AccountState, error) {
	acc, err := s.repo.LockAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acc.Active {
		return nil, apperr.New(apperr.AccountNotFound, "account %d is deactivated", accountID)
	}
	return acc, nil
}

// apply updates the balance and appends t in the caller's transaction.
func (s *service) apply(ctx context.Context, acc *AccountState, t *Transaction) error {
	newBalance := acc.Balance + t.Amount
	if newBalance < 0 {
		return apperr.New(apperr.InsufficientFunds, "account %d has %d credits, needs %d", acc.ID, acc.Balance, -t.Amount)
	}

	if err := s.repo.SetBalance(ctx, acc.ID, newBalance); err != nil {
		return fmt.Errorf("update balance: %w", err)
	}

	t.BalanceAfter = newBalance
	t.Status = StatusCompleted
	if err := s.repo.InsertTransaction(ctx, t); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	acc.Balance = newBalance
	return nil
}
