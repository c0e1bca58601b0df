package approval

import "context"

// Get and GetForUpdate return nil, nil for an unknown id.
type Repository interface {
	Create(ctx context.Context, e *Entity) error
	Get(ctx context.Context, id int64) (*Entity, error)
	GetForUpdate(ctx context.Context, id int64) (*Entity, error)
	// Update writes the status and review fields of e.
	Update(ctx context.Context, e *Entity) error
	List(ctx context.Context, f Filter) ([]Entity, error)
}
