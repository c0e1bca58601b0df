package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"campuscredits/internal/access"
	"campuscredits/internal/apperr"
	"campuscredits/internal/db"
	"campuscredits/internal/event"
	"campuscredits/internal/keylock"
	"campuscredits/internal/ledger"
	"campuscredits/internal/logger"
	"campuscredits/internal/metrics"
)

var ErrEntityNotFound = errors.New("entity not found")

type Authorizer interface {
	Authorize(ctx context.Context, accountID int64, op access.Operation) error
}

// Poster debits approval costs.
type Poster interface {
	Post(ctx context.Context, req ledger.PostRequest) (*ledger.Transaction, error)
}

// Publisher opens an approved event for registration.
type Publisher interface {
	Publish(ctx context.Context, entityID int64, d event.Details) (*event.Event, error)
}

type Service interface {
	Submit(ctx context.Context, submitterID int64, kind Kind, raw []byte) (*Entity, error)
	SaveDraft(ctx context.Context, submitterID int64, kind Kind, raw []byte) (*Entity, error)
	SubmitDraft(ctx context.Context, entityID, submitterID int64) (*Entity, error)
	Review(ctx context.Context, entityID, reviewerID int64, decision Decision, note string) (*Entity, error)
	Get(ctx context.Context, viewerID, entityID int64) (*Entity, error)
	List(ctx context.Context, viewerID int64, f Filter) ([]Entity, error)
}

type service struct {
	repo      Repository
	tx        db.Transactor
	gate      Authorizer
	locks     *keylock.Locker
	ledger    Poster
	publisher Publisher
	now       func() time.Time
}

func NewService(repo Repository, tx db.Transactor, gate Authorizer, locks *keylock.Locker, ledger Poster, publisher Publisher) Service {
	return &service{
		repo:      repo,
		tx:        tx,
		gate:      gate,
		locks:     locks,
		ledger:    ledger,
		publisher: publisher,
		now:       time.Now,
	}
}

func (s *service) Submit(ctx context.Context, submitterID int64, kind Kind, raw []byte) (*Entity, error) {
	e, err := s.create(ctx, submitterID, kind, raw, StatusPending)
	if err != nil {
		return nil, err
	}
	metrics.RecordSubmission(string(kind))
	return e, nil
}

func (s *service) SaveDraft(ctx context.Context, submitterID int64, kind Kind, raw []byte) (*Entity, error) {
	return s.create(ctx, submitterID, kind, raw, StatusDraft)
}

func (s *service) create(ctx context.Context, submitterID int64, kind Kind, raw []byte, status Status) (*Entity, error) {
	if err := s.gate.Authorize(ctx, submitterID, access.OpSubmit); err != nil {
		return nil, err
	}

	payload, err := DecodePayload(kind, raw)
	if err != nil {
		return nil, err
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	e := &Entity{
		Kind:        kind,
		SubmitterID: submitterID,
		PayloadJSON: canonical,
		Payload:     payload,
		Status:      status,
	}
	if err := s.repo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create entity: %w", err)
	}

	logger.Info("entity created", "entity_id", e.ID, "kind", kind, "status", status, "submitter_id", submitterID)
	return e, nil
}

func (s *service) SubmitDraft(ctx context.Context, entityID, submitterID int64) (*Entity, error) {
	if err := s.gate.Authorize(ctx, submitterID, access.OpSubmit); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.Key("entity", entityID))
	defer unlock()

	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, entityID)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrEntityNotFound
		}
		if e.SubmitterID != submitterID {
			return apperr.New(apperr.Unauthorized, "only the submitter may submit entity %d", entityID)
		}
		if e.Status != StatusDraft {
			return apperr.New(apperr.InvalidTransition, "entity %d is %s, not draft", entityID, e.Status)
		}

		e.Status = StatusPending
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update entity: %w", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordSubmission(string(out.Kind))
	return out, nil
}

// Review moves a pending entity to approved or rejected. The status change
// and any ledger debit or event publication commit together.
func (s *service) Review(ctx context.Context, entityID, reviewerID int64, decision Decision, note string) (*Entity, error) {
	if decision != DecisionApprove && decision != DecisionReject {
		return nil, apperr.New(apperr.InvalidPayload, "unknown decision %q", decision)
	}
	if err := s.gate.Authorize(ctx, reviewerID, access.OpReview); err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(keylock.Key("entity", entityID))
	defer unlock()

	var out *Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		e, err := s.repo.GetForUpdate(ctx, entityID)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrEntityNotFound
		}
		if e.Status != StatusPending {
			return apperr.New(apperr.InvalidTransition, "entity %d is %s, not pending", entityID, e.Status)
		}

		if decision == DecisionApprove {
			if err := s.applyApproval(ctx, e); err != nil {
				return err
			}
			e.Status = StatusApproved
		} else {
			e.Status = StatusRejected
		}

		reviewedAt := s.now()
		e.ReviewerID = &reviewerID
		e.ReviewedAt = &reviewedAt
		if n := strings.TrimSpace(note); n != "" {
			e.ReviewNote = &n
		}
		if err := s.repo.Update(ctx, e); err != nil {
			return fmt.Errorf("update entity: %w", err)
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordReview(string(out.Kind), string(out.Status))
	logger.Info("entity reviewed", "entity_id", entityID, "kind", out.Kind, "status", out.Status, "reviewer_id", reviewerID)
	return out, nil
}

func (s *service) applyApproval(ctx context.Context, e *Entity) error {
	switch p := e.Payload.(type) {
	case EventPayload:
		_, err := s.publisher.Publish(ctx, e.ID, p.Details())
		return err
	default:
		cost := e.Payload.Cost()
		if cost == 0 {
			return nil
		}
		related := e.ID
		_, err := s.ledger.Post(ctx, ledger.PostRequest{
			AccountID:       e.SubmitterID,
			Amount:          -cost,
			Kind:            ledger.KindSpent,
			Reason:          approvalReason(e),
			RelatedEntityID: &related,
			IdempotencyKey:  fmt.Sprintf("review:%d", e.ID),
		})
		return err
	}
}

func approvalReason(e *Entity) string {
	switch p := e.Payload.(type) {
	case ShopRequestPayload:
		return fmt.Sprintf("Shop request: %s x%d", p.ItemName, p.Quantity)
	case VolunteerApplicationPayload:
		return "Volunteer application: " + p.Opportunity
	default:
		return string(e.Kind) + " approved"
	}
}

func (s *service) Get(ctx context.Context, viewerID, entityID int64) (*Entity, error) {
	e, err := s.repo.Get(ctx, entityID)
	if err != nil {
		return nil, err
	}
	// Missing ids look like someone else's entity to viewers without view_any.
	if e == nil || e.SubmitterID != viewerID {
		if err := s.gate.Authorize(ctx, viewerID, access.OpViewAny); err != nil {
			return nil, err
		}
	}
	if e == nil {
		return nil, ErrEntityNotFound
	}
	return e, nil
}

// List returns entities matching f. Listing anything other than the
// viewer's own submissions needs the view_any capability.
func (s *service) List(ctx context.Context, viewerID int64, f Filter) ([]Entity, error) {
	if f.SubmitterID != viewerID {
		if err := s.gate.Authorize(ctx, viewerID, access.OpViewAny); err != nil {
			return nil, err
		}
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}
