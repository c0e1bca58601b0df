package account

import (
	"context"
	"database/sql"
	"errors"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/db"

	"github.com/jmoiron/sqlx"
)

const accountColumns = `id, display_name, email, password_hash, role, credit_balance, active, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) Repository {
	return &repository{db: conn}
}

func notFound(err error, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(apperr.AccountNotFound, "account %v not found", id)
	}
	return err
}

func (r *repository) Create(ctx context.Context, displayName, email, passwordHash string, role access.Role) (*Account, error) {
	query := `
		INSERT INTO accounts (display_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + accountColumns

	var acc Account
	if err := db.Conn(ctx, r.db).GetContext(ctx, &acc, query, displayName, email, passwordHash, role); err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`

	var acc Account
	if err := db.Conn(ctx, r.db).GetContext(ctx, &acc, query, email); err != nil {
		return nil, notFound(err, email)
	}
	return &acc, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	var acc Account
	if err := db.Conn(ctx, r.db).GetContext(ctx, &acc, query, id); err != nil {
		return nil, notFound(err, id)
	}
	return &acc, nil
}

func (r *repository) EmailExists(ctx context.Context, email string) (bool, error) {
	return db.Exists(ctx, db.Conn(ctx, r.db), `SELECT EXISTS(SELECT 1 FROM accounts WHERE email = $1)`, email)
}

// RoleOf satisfies access.RoleStore.
func (r *repository) RoleOf(ctx context.Context, id int64) (access.Role, bool, error) {
	var row struct {
		Role   access.Role `db:"role"`
		Active bool        `db:"active"`
	}
	err := db.Conn(ctx, r.db).GetContext(ctx, &row, `SELECT role, active FROM accounts WHERE id = $1`, id)
	if err != nil {
		return "", false, notFound(err, id)
	}
	return row.Role, row.Active, nil
}

func (r *repository) SetRole(ctx context.Context, id int64, role access.Role) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE accounts SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (r *repository) Deactivate(ctx context.Context, id int64) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx, `UPDATE accounts SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

func (r *repository) Contact(ctx context.Context, id int64) (string, string, error) {
	var row struct {
		Email       string `db:"email"`
		DisplayName string `db:"display_name"`
	}
	err := db.Conn(ctx, r.db).GetContext(ctx, &row, `SELECT email, display_name FROM accounts WHERE id = $1`, id)
	if err != nil {
		return "", "", notFound(err, id)
	}
	return row.Email, row.DisplayName, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.New(apperr.AccountNotFound, "account %d not found", id)
	}
	return nil
}
