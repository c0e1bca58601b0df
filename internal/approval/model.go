package approval

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Kind string

const (
	KindEvent                Kind = "event"
	KindShopRequest          Kind = "shop_request"
	KindVolunteerApplication Kind = "volunteer_application"
)

type Status string

const (
	StatusDraft    Status = "draft"
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Entity is the envelope every reviewable submission shares. Payload is
// decoded from PayloadJSON according to Kind.
type Entity struct {
	ID          int64          `db:"id" json:"id"`
	Kind        Kind           `db:"kind" json:"kind"`
	SubmitterID int64          `db:"submitter_id" json:"submitter_id"`
	PayloadJSON types.JSONText `db:"payload" json:"-"`
	Payload     Payload        `db:"-" json:"payload"`
	Status      Status         `db:"status" json:"status"`
	ReviewerID  *int64         `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewNote  *string        `db:"review_note" json:"review_note,omitempty"`
	ReviewedAt  *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

type Filter struct {
	Kind        Kind
	Status      Status
	SubmitterID int64
	Limit       int
	Offset      int
}

type SubmitRequest struct {
	Kind    Kind           `json:"kind" binding:"required"`
	Payload types.JSONText `json:"payload" binding:"required"`
}

type ReviewRequest struct {
	Decision Decision `json:"decision" binding:"required,oneof=approve reject"`
	Note     string   `json:"note" binding:"max=500"`
}
