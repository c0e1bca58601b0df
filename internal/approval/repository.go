package approval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"campuscredits/internal/db"

	"github.com/jmoiron/sqlx"
)

const entityColumns = `id, kind, submitter_id, payload, status, reviewer_id, review_note, reviewed_at, created_at, updated_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) Create(ctx context.Context, e *Entity) error {
	query := `
		INSERT INTO approvable_entities (kind, submitter_id, payload, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return db.Conn(ctx, r.db).QueryRowxContext(ctx, query, e.Kind, e.SubmitterID, e.PayloadJSON, e.Status).
		Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
}

func (r *repository) get(ctx context.Context, query string, id int64) (*Entity, error) {
	var e Entity
	if err := db.Conn(ctx, r.db).GetContext(ctx, &e, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := hydrate(&e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *repository) Get(ctx context.Context, id int64) (*Entity, error) {
	return r.get(ctx, `SELECT `+entityColumns+` FROM approvable_entities WHERE id = $1`, id)
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (*Entity, error) {
	return r.get(ctx, `SELECT `+entityColumns+` FROM approvable_entities WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) Update(ctx context.Context, e *Entity) error {
	query := `
		UPDATE approvable_entities
		SET status = $1, reviewer_id = $2, review_note = $3, reviewed_at = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`
	return db.Conn(ctx, r.db).QueryRowxContext(ctx, query, e.Status, e.ReviewerID, e.ReviewNote, e.ReviewedAt, e.ID).
		Scan(&e.UpdatedAt)
}

func (r *repository) List(ctx context.Context, f Filter) ([]Entity, error) {
	var (
		conds []string
		args  []interface{}
	)
	if f.Kind != "" {
		args = append(args, f.Kind)
		conds = append(conds, fmt.Sprintf("kind = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.SubmitterID != 0 {
		args = append(args, f.SubmitterID)
		conds = append(conds, fmt.Sprintf("submitter_id = $%d", len(args)))
	}

	query := `SELECT ` + entityColumns + ` FROM approvable_entities`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	entities := []Entity{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &entities, query, args...); err != nil {
		return nil, err
	}
	for i := range entities {
		if err := hydrate(&entities[i]); err != nil {
			return nil, err
		}
	}
	return entities, nil
}

func hydrate(e *Entity) error {
	p, err := DecodePayload(e.Kind, e.PayloadJSON)
	if err != nil {
		return fmt.Errorf("entity %d: stored payload: %v", e.ID, err)
	}
	e.Payload = p
	return nil
}
