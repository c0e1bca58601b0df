package event

import "time"

type Status string

const (
	StatusRegistered Status = "registered"
	StatusAvailable  Status = "available"
	StatusFull       Status = "full"
	StatusNotFound   Status = "not_found"
)

type Schedule struct {
	Date     string `db:"event_date" json:"date" validate:"required,datetime=2006-01-02"`
	Time     string `db:"event_time" json:"time" validate:"required,datetime=15:04"`
	Location string `db:"location" json:"location" validate:"required,max=200"`
}

// Event is the registrable side of an approved event entity. It shares the
// entity's id.
type Event struct {
	EntityID        int64  `db:"entity_id" json:"id"`
	Title           string `db:"title" json:"title"`
	Description     string `db:"description" json:"description"`
	Capacity        int    `db:"capacity" json:"capacity"`
	RegisteredCount int    `db:"registered_count" json:"registered_count"`
	CreditsReward   int64  `db:"credits_reward" json:"credits_reward"`
	Schedule        `json:"schedule"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Registration struct {
	EventID      int64      `db:"event_id" json:"event_id"`
	AccountID    int64      `db:"account_id" json:"account_id"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`
	AttendedAt   *time.Time `db:"attended_at" json:"attended_at,omitempty"`
}

// Details is what an approved event entity hands over on publication.
type Details struct {
	Title         string
	Description   string
	Capacity      int
	CreditsReward int64
	Schedule      Schedule
}

type EventView struct {
	Event
	Status Status `json:"status"`
}

type StatusResponse struct {
	EventID int64  `json:"event_id"`
	Status  Status `json:"status"`
}

type AttendanceRequest struct {
	AccountID int64 `json:"account_id" binding:"required"`
}

type AttendanceResponse struct {
	EventID   int64 `json:"event_id"`
	AccountID int64 `json:"account_id"`
	Credited  int64 `json:"credited"`
}
