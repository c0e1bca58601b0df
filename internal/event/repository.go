package event

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campuscredits/internal/db"

	"github.com/jmoiron/sqlx"
)

const eventColumns = `entity_id, title, description, capacity, registered_count, credits_reward, event_date, event_time, location, created_at`

type repository struct {
	db *sqlx.DB
}

func NewRepository(conn *sqlx.DB) Repository {
	return &repository{db: conn}
}

func (r *repository) Create(ctx context.Context, ev *Event) error {
	query := `
		INSERT INTO events (entity_id, title, description, capacity, registered_count, credits_reward, event_date, event_time, location)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, $8)
		RETURNING created_at
	`
	return db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		ev.EntityID, ev.Title, ev.Description, ev.Capacity, ev.CreditsReward,
		ev.Date, ev.Time, ev.Location,
	).Scan(&ev.CreatedAt)
}

func (r *repository) get(ctx context.Context, query string, eventID int64) (*Event, error) {
	var ev Event
	err := db.Conn(ctx, r.db).GetContext(ctx, &ev, query, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ev, nil
}

func (r *repository) Get(ctx context.Context, eventID int64) (*Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE entity_id = $1`, eventID)
}

func (r *repository) GetForUpdate(ctx context.Context, eventID int64) (*Event, error) {
	return r.get(ctx, `SELECT `+eventColumns+` FROM events WHERE entity_id = $1 FOR UPDATE`, eventID)
}

func (r *repository) ListPublished(ctx context.Context) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY event_date, event_time, entity_id
	`

	events := []Event{}
	if err := db.Conn(ctx, r.db).SelectContext(ctx, &events, query); err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) AdjustCount(ctx context.Context, eventID int64, delta int) error {
	res, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE events SET registered_count = registered_count + $1 WHERE entity_id = $2`,
		delta, eventID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("event %d vanished while adjusting count", eventID)
	}
	return nil
}

func (r *repository) FindRegistration(ctx context.Context, eventID, accountID int64) (*Registration, error) {
	query := `
		SELECT event_id, account_id, registered_at, attended_at
		FROM event_registrations
		WHERE event_id = $1 AND account_id = $2
	`

	var reg Registration
	err := db.Conn(ctx, r.db).GetContext(ctx, &reg, query, eventID, accountID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &reg, nil
}

func (r *repository) AddRegistration(ctx context.Context, eventID, accountID int64) (*Registration, error) {
	query := `
		INSERT INTO event_registrations (event_id, account_id)
		VALUES ($1, $2)
		RETURNING event_id, account_id, registered_at, attended_at
	`

	var reg Registration
	if err := db.Conn(ctx, r.db).GetContext(ctx, &reg, query, eventID, accountID); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *repository) RemoveRegistration(ctx context.Context, eventID, accountID int64) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM event_registrations WHERE event_id = $1 AND account_id = $2`,
		eventID, accountID,
	)
	return err
}

func (r *repository) SetAttended(ctx context.Context, eventID, accountID int64, at time.Time) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE event_registrations SET attended_at = $1 WHERE event_id = $2 AND account_id = $3`,
		at, eventID, accountID,
	)
	return err
}

func (r *repository) RegisteredEventIDs(ctx context.Context, accountID int64) ([]int64, error) {
	ids := []int64{}
	err := db.Conn(ctx, r.db).SelectContext(ctx, &ids,
		`SELECT event_id FROM event_registrations WHERE account_id = $1`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	return ids, nil
}
