package event

import (
	"context"
	"time"
)

// Lookups return nil, nil when the row does not exist.
type Repository interface {
	Create(ctx context.Context, ev *Event) error
	Get(ctx context.Context, eventID int64) (*Event, error)
	// GetForUpdate locks the event row inside the caller's transaction.
	GetForUpdate(ctx context.Context, eventID int64) (*Event, error)
	ListPublished(ctx context.Context) ([]Event, error)
	AdjustCount(ctx context.Context, eventID int64, delta int) error

	FindRegistration(ctx context.Context, eventID, accountID int64) (*Registration, error)
	AddRegistration(ctx context.Context, eventID, accountID int64) (*Registration, error)
	RemoveRegistration(ctx context.Context, eventID, accountID int64) error
	SetAttended(ctx context.Context, eventID, accountID int64, at time.Time) error
	RegisteredEventIDs(ctx context.Context, accountID int64) ([]int64, error)
}
