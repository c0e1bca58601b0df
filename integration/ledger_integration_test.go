package integration_test

import (
	"context"
	"sync"
	"testing"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerTransfer_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	alice := createAccount(t, conn, "alice@campus.edu", access.RoleStudent, 100)
	bob := createAccount(t, conn, "bob@campus.edu", access.RoleStudent, 0)

	out, in, err := s.ledger.Transfer(ctx, alice, bob, 40, "lunch")
	require.NoError(t, err)
	require.NotNil(t, out.TransferID)
	assert.Equal(t, *out.TransferID, *in.TransferID)
	assert.Equal(t, int64(60), out.BalanceAfter)
	assert.Equal(t, int64(40), in.BalanceAfter)

	_, _, err = s.ledger.Transfer(ctx, bob, alice, 41, "too much")
	assert.True(t, apperr.IsKind(err, apperr.InsufficientFunds))

	assert.Equal(t, int64(60), balanceOf(t, s, alice))
	assert.Equal(t, int64(40), balanceOf(t, s, bob))
	require.NoError(t, s.ledger.Verify(ctx, alice))
	require.NoError(t, s.ledger.Verify(ctx, bob))
}

func TestLedgerConcurrentSpends_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	carol := createAccount(t, conn, "carol@campus.edu", access.RoleStudent, 100)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ledger.Post(ctx, ledger.PostRequest{
				AccountID: carol,
				Amount:    -15,
				Kind:      ledger.KindSpent,
				Reason:    "coffee",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t, apperr.IsKind(err, apperr.InsufficientFunds), "got %v", err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 6, succeeded)
	assert.Equal(t, int64(10), balanceOf(t, s, carol))
	require.NoError(t, s.ledger.Verify(ctx, carol))
}

func TestLedgerIdempotentPost_Integration(t *testing.T) {
	conn := setupTestDB(t)
	s := newStack(conn)
	ctx := context.Background()

	dave := createAccount(t, conn, "dave@campus.edu", access.RoleStudent, 0)

	req := ledger.PostRequest{AccountID: dave, Amount: 25, Kind: ledger.KindEarned, Reason: "workshop", IdempotencyKey: "attended:1:1"}
	first, err := s.ledger.Post(ctx, req)
	require.NoError(t, err)
	second, err := s.ledger.Post(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(25), balanceOf(t, s, dave))

	txs, next, err := s.ledger.Page(ctx, dave, ledger.Cursor{}, 10)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
	assert.Nil(t, next)
}
