package approval

import (
	"bytes"
	"encoding/json"

	"campuscredits/internal/api"
	"campuscredits/internal/apperr"
	"campuscredits/internal/event"
)

// Payload is the kind-specific body of an entity. Cost is what approval
// debits from the submitter; zero means approval has no ledger effect.
type Payload interface {
	Kind() Kind
	Cost() int64
}

type EventPayload struct {
	Title         string         `json:"title" validate:"required,max=200"`
	Description   string         `json:"description" validate:"max=2000"`
	Capacity      int            `json:"capacity" validate:"gt=0"`
	CreditsReward int64          `json:"credits_reward" validate:"gte=0"`
	Schedule      event.Schedule `json:"schedule"`
}

func (EventPayload) Kind() Kind  { return KindEvent }
func (EventPayload) Cost() int64 { return 0 }

func (p EventPayload) Details() event.Details {
	return event.Details{
		Title:         p.Title,
		Description:   p.Description,
		Capacity:      p.Capacity,
		CreditsReward: p.CreditsReward,
		Schedule:      p.Schedule,
	}
}

type ShopRequestPayload struct {
	ItemName string `json:"item_name" validate:"required,max=200"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Credits  int64  `json:"cost" validate:"gte=0"`
	Notes    string `json:"notes" validate:"max=1000"`
}

func (ShopRequestPayload) Kind() Kind    { return KindShopRequest }
func (p ShopRequestPayload) Cost() int64 { return p.Credits }

type VolunteerApplicationPayload struct {
	Opportunity string `json:"opportunity" validate:"required,max=200"`
	Motivation  string `json:"motivation" validate:"required,max=2000"`
	Hours       int    `json:"hours" validate:"gte=0"`
	Credits     int64  `json:"cost" validate:"gte=0"`
}

func (VolunteerApplicationPayload) Kind() Kind    { return KindVolunteerApplication }
func (p VolunteerApplicationPayload) Cost() int64 { return p.Credits }

// DecodePayload strictly decodes raw as the payload of kind. Unknown
// fields, trailing data and failed validation are InvalidPayload.
func DecodePayload(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindEvent:
		return decodeInto[EventPayload](raw)
	case KindShopRequest:
		return decodeInto[ShopRequestPayload](raw)
	case KindVolunteerApplication:
		return decodeInto[VolunteerApplicationPayload](raw)
	default:
		return nil, apperr.New(apperr.InvalidPayload, "unknown entity kind %q", kind)
	}
}

func decodeInto[T Payload](raw []byte) (Payload, error) {
	var p T
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, apperr.Wrap(apperr.InvalidPayload, err, "malformed %s payload", p.Kind())
	}
	if dec.More() {
		return nil, apperr.New(apperr.InvalidPayload, "unexpected data after %s payload", p.Kind())
	}
	if errs := api.ValidateStruct(p); len(errs) > 0 {
		return nil, apperr.New(apperr.InvalidPayload, "invalid %s payload: %s", p.Kind(), api.Summary(errs))
	}
	return p, nil
}
