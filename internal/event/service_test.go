package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/db/dbtest"
	"campuscredits/internal/keylock"
	"campuscredits/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type regKey struct{ event, account int64 }

type memRepo struct {
	mu     sync.Mutex
	events map[int64]*Event
	regs   map[regKey]*Registration
}

func newMemRepo() *memRepo {
	return &memRepo{events: map[int64]*Event{}, regs: map[regKey]*Registration{}}
}

func (r *memRepo) Create(_ context.Context, ev *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.CreatedAt = time.Now()
	cp := *ev
	r.events[ev.EntityID] = &cp
	return nil
}

func (r *memRepo) Get(_ context.Context, id int64) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev, ok := r.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, id int64) (*Event, error) {
	return r.Get(ctx, id)
}

func (r *memRepo) ListPublished(_ context.Context) ([]Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		out = append(out, *ev)
	}
	return out, nil
}

func (r *memRepo) AdjustCount(_ context.Context, id int64, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[id].RegisteredCount += delta
	return nil
}

func (r *memRepo) FindRegistration(_ context.Context, eventID, accountID int64) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[regKey{eventID, accountID}]
	if !ok {
		return nil, nil
	}
	cp := *reg
	return &cp, nil
}

func (r *memRepo) AddRegistration(_ context.Context, eventID, accountID int64) (*Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg := &Registration{EventID: eventID, AccountID: accountID, RegisteredAt: time.Now()}
	r.regs[regKey{eventID, accountID}] = reg
	cp := *reg
	return &cp, nil
}

func (r *memRepo) RemoveRegistration(_ context.Context, eventID, accountID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regs, regKey{eventID, accountID})
	return nil
}

func (r *memRepo) SetAttended(_ context.Context, eventID, accountID int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[regKey{eventID, accountID}].AttendedAt = &at
	return nil
}

func (r *memRepo) RegisteredEventIDs(_ context.Context, accountID int64) ([]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for k := range r.regs {
		if k.account == accountID {
			ids = append(ids, k.event)
		}
	}
	return ids, nil
}

// attendeeCount checks the registered_count invariant against the rows.
func (r *memRepo) attendeeCount(eventID int64) (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.regs {
		if k.event == eventID {
			n++
		}
	}
	return r.events[eventID].RegisteredCount, n
}

type gateFunc func(accountID int64, op access.Operation) error

func (f gateFunc) Authorize(_ context.Context, accountID int64, op access.Operation) error {
	return f(accountID, op)
}

// staffOnly lets account 1000 and above do staff work.
var staffOnly = gateFunc(func(accountID int64, op access.Operation) error {
	if op == access.OpMarkAttended && accountID < 1000 {
		return apperr.New(apperr.Unauthorized, "account %d may not %s", accountID, op)
	}
	return nil
})

type MockPoster struct {
	mock.Mock
}

func (m *MockPoster) Post(ctx context.Context, req ledger.PostRequest) (*ledger.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func newTestService(poster Poster) (Service, *memRepo) {
	repo := newMemRepo()
	return NewService(repo, dbtest.NoTx{}, staffOnly, keylock.New(), poster), repo
}

func publish(t *testing.T, svc Service, id int64, capacity int, reward int64) {
	t.Helper()
	_, err := svc.Publish(context.Background(), id, Details{
		Title:         "Beach cleanup",
		Capacity:      capacity,
		CreditsReward: reward,
		Schedule:      Schedule{Date: "2026-05-01", Time: "09:00", Location: "North pier"},
	})
	require.NoError(t, err)
}

func TestRegister_CapacityTwo(t *testing.T) {
	svc, repo := newTestService(new(MockPoster))
	ctx := context.Background()
	publish(t, svc, 1, 2, 10)

	_, err := svc.Register(ctx, 1, 101)
	require.NoError(t, err)
	count, _ := repo.attendeeCount(1)
	assert.Equal(t, 1, count)

	_, err = svc.Register(ctx, 1, 102)
	require.NoError(t, err)
	count, _ = repo.attendeeCount(1)
	assert.Equal(t, 2, count)

	_, err = svc.Register(ctx, 1, 103)
	assert.True(t, apperr.IsKind(err, apperr.EventFull))

	status, err := svc.StatusFor(ctx, 1, 103)
	require.NoError(t, err)
	assert.Equal(t, StatusFull, status)

	status, err = svc.StatusFor(ctx, 1, 101)
	require.NoError(t, err)
	assert.Equal(t, StatusRegistered, status)
}

func TestRegister_Errors(t *testing.T) {
	svc, _ := newTestService(new(MockPoster))
	ctx := context.Background()
	publish(t, svc, 1, 5, 0)

	_, err := svc.Register(ctx, 99, 101)
	assert.True(t, apperr.IsKind(err, apperr.EventNotApproved))

	_, err = svc.Register(ctx, 1, 101)
	require.NoError(t, err)
	_, err = svc.Register(ctx, 1, 101)
	assert.True(t, apperr.IsKind(err, apperr.AlreadyRegistered))

	status, err := svc.StatusFor(ctx, 99, 101)
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, status)
}

func TestRegister_Unauthorized(t *testing.T) {
	repo := newMemRepo()
	deny := gateFunc(func(id int64, op access.Operation) error {
		return apperr.New(apperr.Unauthorized, "no")
	})
	svc := NewService(repo, dbtest.NoTx{}, deny, keylock.New(), new(MockPoster))

	_, err := svc.Register(context.Background(), 1, 101)
	assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
}

func TestRegister_ConcurrentExactlyK(t *testing.T) {
	svc, repo := newTestService(new(MockPoster))
	ctx := context.Background()
	publish(t, svc, 1, 10, 0)

	// Three seats are already taken.
	for i := int64(1); i <= 3; i++ {
		_, err := svc.Register(ctx, 1, i)
		require.NoError(t, err)
	}

	const n = 40
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		full    int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(accountID int64) {
			defer wg.Done()
			_, err := svc.Register(ctx, 1, accountID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case apperr.IsKind(err, apperr.EventFull):
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 7, success)
	assert.Equal(t, n-7, full)

	count, rows := repo.attendeeCount(1)
	assert.Equal(t, 10, count)
	assert.Equal(t, count, rows)
}

func TestCancel(t *testing.T) {
	svc, repo := newTestService(new(MockPoster))
	ctx := context.Background()
	publish(t, svc, 1, 1, 0)

	err := svc.Cancel(ctx, 1, 101)
	assert.True(t, apperr.IsKind(err, apperr.NotRegistered))

	_, err = svc.Register(ctx, 1, 101)
	require.NoError(t, err)
	require.NoError(t, svc.Cancel(ctx, 1, 101))

	count, rows := repo.attendeeCount(1)
	assert.Equal(t, 0, count)
	assert.Equal(t, 0, rows)

	// The freed seat can be taken again.
	_, err = svc.Register(ctx, 1, 102)
	require.NoError(t, err)
}

func TestMarkAttended(t *testing.T) {
	ctx := context.Background()

	t.Run("posts reward once", func(t *testing.T) {
		poster := new(MockPoster)
		svc, _ := newTestService(poster)
		publish(t, svc, 1, 5, 25)
		_, err := svc.Register(ctx, 1, 101)
		require.NoError(t, err)

		poster.On("Post", mock.Anything, mock.MatchedBy(func(req ledger.PostRequest) bool {
			return req.AccountID == 101 && req.Amount == 25 && req.Kind == ledger.KindEarned &&
				req.IdempotencyKey == "attended:1:101" && *req.RelatedEntityID == 1
		})).Return(&ledger.Transaction{ID: 9, Amount: 25}, nil).Once()

		tx, err := svc.MarkAttended(ctx, 1, 101, 1000)
		require.NoError(t, err)
		assert.Equal(t, int64(25), tx.Amount)

		_, err = svc.MarkAttended(ctx, 1, 101, 1000)
		assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))
		poster.AssertNumberOfCalls(t, "Post", 1)

		err = svc.Cancel(ctx, 1, 101)
		assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))
	})

	t.Run("zero reward", func(t *testing.T) {
		poster := new(MockPoster)
		svc, _ := newTestService(poster)
		publish(t, svc, 1, 5, 0)
		_, err := svc.Register(ctx, 1, 101)
		require.NoError(t, err)

		tx, err := svc.MarkAttended(ctx, 1, 101, 1000)
		require.NoError(t, err)
		assert.Nil(t, tx)
		poster.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
	})

	t.Run("not registered", func(t *testing.T) {
		svc, _ := newTestService(new(MockPoster))
		publish(t, svc, 1, 5, 10)

		_, err := svc.MarkAttended(ctx, 1, 101, 1000)
		assert.True(t, apperr.IsKind(err, apperr.NotRegistered))
	})

	t.Run("student reviewer", func(t *testing.T) {
		svc, _ := newTestService(new(MockPoster))
		publish(t, svc, 1, 5, 10)

		_, err := svc.MarkAttended(ctx, 1, 101, 102)
		assert.True(t, apperr.IsKind(err, apperr.Unauthorized))
	})
}

func TestPublish_Twice(t *testing.T) {
	svc, _ := newTestService(new(MockPoster))
	publish(t, svc, 1, 5, 10)

	_, err := svc.Publish(context.Background(), 1, Details{Capacity: 5})
	assert.True(t, apperr.IsKind(err, apperr.InvalidTransition))

	_, err = svc.Publish(context.Background(), 2, Details{Capacity: 0})
	assert.True(t, apperr.IsKind(err, apperr.InvalidPayload))
}

func TestListForAccount(t *testing.T) {
	svc, _ := newTestService(new(MockPoster))
	ctx := context.Background()
	publish(t, svc, 1, 1, 0)
	publish(t, svc, 2, 1, 0)
	publish(t, svc, 3, 5, 0)

	_, err := svc.Register(ctx, 1, 101)
	require.NoError(t, err)
	_, err = svc.Register(ctx, 2, 102)
	require.NoError(t, err)

	views, err := svc.ListForAccount(ctx, 101)
	require.NoError(t, err)

	got := map[int64]Status{}
	for _, v := range views {
		got[v.EntityID] = v.Status
	}
	assert.Equal(t, map[int64]Status{1: StatusRegistered, 2: StatusFull, 3: StatusAvailable}, got)
}
