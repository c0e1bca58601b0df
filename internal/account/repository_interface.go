package account

import (
	"context"

	"campuscredits/internal/access"
)

type Repository interface {
	Create(ctx context.Context, displayName, email, passwordHash string, role access.Role) (*Account, error)
	FindByEmail(ctx context.Context, email string) (*Account, error)
	FindByID(ctx context.Context, id int64) (*Account, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	RoleOf(ctx context.Context, id int64) (access.Role, bool, error)
	SetRole(ctx context.Context, id int64, role access.Role) error
	Deactivate(ctx context.Context, id int64) error
	Contact(ctx context.Context, id int64) (email, displayName string, err error)
}
