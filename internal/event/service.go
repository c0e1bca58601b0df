package event

import (
	"context"
	"fmt"
	"time"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/db"
	"campuscredits/internal/keylock"
	"campuscredits/internal/ledger"
	"campuscredits/internal/logger"
	"campuscredits/internal/metrics"
)

type Authorizer interface {
	Authorize(ctx context.Context, accountID int64, op access.Operation) error
}

// Poster is the part of the ledger attendance rewards go through.
type Poster interface {
	Post(ctx context.Context, req ledger.PostRequest) (*ledger.Transaction, error)
}

type Service interface {
	Publish(ctx context.Context, entityID int64, d Details) (*Event, error)
	Register(ctx context.Context, eventID, accountID int64) (*Registration, error)
	Cancel(ctx context.Context, eventID, accountID int64) error
	StatusFor(ctx context.Context, eventID, accountID int64) (Status, error)
	ListForAccount(ctx context.Context, accountID int64) ([]EventView, error)
	MarkAttended(ctx context.Context, eventID, accountID, reviewerID int64) (*ledger.Transaction, error)
}

type service struct {
	repo   Repository
	tx     db.Transactor
	gate   Authorizer
	locks  *keylock.Locker
	ledger Poster
	now    func() time.Time
}

func NewService(repo Repository, tx db.Transactor, gate Authorizer, locks *keylock.Locker, ledger Poster) Service {
	return &service{
		repo:   repo,
		tx:     tx,
		gate:   gate,
		locks:  locks,
		ledger: ledger,
		now:    time.Now,
	}
}

// Publish makes an approved event registrable. It runs inside the
// approving review's transaction when one is bound to ctx.
func (s *service) Publish(ctx context.Context, entityID int64, d Details) (*Event, error) {
	if d.Capacity <= 0 {
		return nil, apperr.New(apperr.InvalidPayload, "capacity must be positive")
	}
	if d.CreditsReward < 0 {
		return nil, apperr.New(apperr.InvalidPayload, "credits reward must not be negative")
	}

	ev := &Event{
		EntityID:      entityID,
		Title:         d.Title,
		Description:   d.Description,
		Capacity:      d.Capacity,
		CreditsReward: d.CreditsReward,
		Schedule:      d.Schedule,
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.repo.Get(ctx, entityID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.New(apperr.InvalidTransition, "event %d is already published", entityID)
		}
		return s.repo.Create(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("event published", "event_id", entityID, "capacity", d.Capacity)
	return ev, nil
}

func (s *service) Register(ctx context.Context, eventID, accountID int64) (*Registration, error) {
	reg, err := s.register(ctx, eventID, accountID)
	if err != nil {
		if kind, ok := apperr.KindOf(err); ok {
			metrics.RecordRegistration(string(kind))
		}
		return nil, err
	}
	metrics.RecordRegistration("ok")
	return reg, nil
}

func (s *service) register(ctx context.Context, eventID, accountID int64) (*Registration, error) {
	if err := s.gate.Authorize(ctx, accountID, access.OpRegister); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.Key("event", eventID))
	defer unlock()

	var reg *Registration
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ev, err := s.repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return apperr.New(apperr.EventNotApproved, "event %d is not open for registration", eventID)
		}

		existing, err := s.repo.FindRegistration(ctx, eventID, accountID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.New(apperr.AlreadyRegistered, "account %d is already registered for event %d", accountID, eventID)
		}

		if ev.RegisteredCount >= ev.Capacity {
			return apperr.New(apperr.EventFull, "event %d is full", eventID)
		}

		reg, err = s.repo.AddRegistration(ctx, eventID, accountID)
		if err != nil {
			return fmt.Errorf("add registration: %w", err)
		}
		return s.repo.AdjustCount(ctx, eventID, 1)
	})
	if err != nil {
		return nil, err
	}
	return reg, nil
}

func (s *service) Cancel(ctx context.Context, eventID, accountID int64) error {
	if err := s.gate.Authorize(ctx, accountID, access.OpCancel); err != nil {
		return err
	}

	unlock := s.locks.Lock(keylock.Key("event", eventID))
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ev, err := s.repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return apperr.New(apperr.NotRegistered, "account %d is not registered for event %d", accountID, eventID)
		}

		reg, err := s.repo.FindRegistration(ctx, eventID, accountID)
		if err != nil {
			return err
		}
		if reg == nil {
			return apperr.New(apperr.NotRegistered, "account %d is not registered for event %d", accountID, eventID)
		}
		if reg.AttendedAt != nil {
			return apperr.New(apperr.InvalidTransition, "attendance for event %d is already recorded", eventID)
		}

		if err := s.repo.RemoveRegistration(ctx, eventID, accountID); err != nil {
			return fmt.Errorf("remove registration: %w", err)
		}
		return s.repo.AdjustCount(ctx, eventID, -1)
	})
}

func (s *service) StatusFor(ctx context.Context, eventID, accountID int64) (Status, error) {
	ev, err := s.repo.Get(ctx, eventID)
	if err != nil {
		return "", err
	}
	if ev == nil {
		return DeriveStatus(nil, false), nil
	}

	reg, err := s.repo.FindRegistration(ctx, eventID, accountID)
	if err != nil {
		return "", err
	}
	return DeriveStatus(ev, reg != nil), nil
}

func (s *service) ListForAccount(ctx context.Context, accountID int64) ([]EventView, error) {
	events, err := s.repo.ListPublished(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := s.repo.RegisteredEventIDs(ctx, accountID)
	if err != nil {
		return nil, err
	}

	mine := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		mine[id] = struct{}{}
	}

	views := make([]EventView, 0, len(events))
	for i := range events {
		_, registered := mine[events[i].EntityID]
		views = append(views, EventView{Event: events[i], Status: DeriveStatus(&events[i], registered)})
	}
	return views, nil
}

// MarkAttended records attendance and credits the event's reward. A zero
// reward records attendance only and returns a nil transaction.
func (s *service) MarkAttended(ctx context.Context, eventID, accountID, reviewerID int64) (*ledger.Transaction, error) {
	if err := s.gate.Authorize(ctx, reviewerID, access.OpMarkAttended); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.Key("event", eventID))
	defer unlock()

	var posted *ledger.Transaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		ev, err := s.repo.GetForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if ev == nil {
			return apperr.New(apperr.NotRegistered, "account %d is not registered for event %d", accountID, eventID)
		}

		reg, err := s.repo.FindRegistration(ctx, eventID, accountID)
		if err != nil {
			return err
		}
		if reg == nil {
			return apperr.New(apperr.NotRegistered, "account %d is not registered for event %d", accountID, eventID)
		}
		if reg.AttendedAt != nil {
			return apperr.New(apperr.InvalidTransition, "attendance for event %d is already recorded", eventID)
		}

		if err := s.repo.SetAttended(ctx, eventID, accountID, s.now()); err != nil {
			return fmt.Errorf("set attended: %w", err)
		}

		if ev.CreditsReward == 0 {
			return nil
		}

		related := eventID
		posted, err = s.ledger.Post(ctx, ledger.PostRequest{
			AccountID:       accountID,
			Amount:          ev.CreditsReward,
			Kind:            ledger.KindEarned,
			Reason:          "Attended " + ev.Title,
			RelatedEntityID: &related,
			IdempotencyKey:  fmt.Sprintf("attended:%d:%d", eventID, accountID),
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordAttendance()
	logger.Info("attendance recorded", "event_id", eventID, "account_id", accountID, "reviewer_id", reviewerID)
	return posted, nil
}
