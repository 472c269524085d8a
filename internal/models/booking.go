package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCanceled  BookingStatus = "canceled"
	BookingStatusNoShow    BookingStatus = "no_show"
	BookingStatusFailed    BookingStatus = "failed"
)

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                string         `bun:"id,pk" json:"id"`
	TenantID          string         `bun:"tenant_id,notnull" json:"tenant_id"`
	ClientGeneratedID string         `bun:"client_generated_id,notnull" json:"client_generated_id"`
	ResourceID        string         `bun:"resource_id,notnull" json:"resource_id"`
	StartAt           time.Time      `bun:"start_at,notnull" json:"start_at"`
	EndAt             time.Time      `bun:"end_at,notnull" json:"end_at"`
	BookingTZ         string         `bun:"booking_tz,notnull" json:"booking_tz"`
	Status            BookingStatus  `bun:"status,notnull" json:"status"`
	CanceledAt        *time.Time     `bun:"canceled_at,nullzero" json:"canceled_at,omitempty"`
	NoShowFlag        bool           `bun:"no_show_flag,notnull" json:"no_show_flag"`
	AttendeeCount     int            `bun:"attendee_count,notnull" json:"attendee_count"`
	RescheduledFrom   *string        `bun:"rescheduled_from,nullzero" json:"rescheduled_from,omitempty"`
	ServiceSnapshot   map[string]any `bun:"service_snapshot,type:jsonb" json:"service_snapshot,omitempty"`
	CreatedAt         time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// LocalStart renders StartAt in the booking's own zone. Falls back to UTC if the zone is unknown.
func (b Booking) LocalStart() time.Time {
	loc, err := time.LoadLocation(b.BookingTZ)
	if err != nil {
		return b.StartAt.UTC()
	}
	return b.StartAt.In(loc)
}

type CreateBookingRequest struct {
	ClientGeneratedID string         `json:"client_generated_id"`
	ResourceID        string         `json:"resource_id"`
	StartAt           time.Time      `json:"start_at"`
	EndAt             time.Time      `json:"end_at"`
	Timezone          string         `json:"timezone,omitempty"`
	AttendeeCount     int            `json:"attendee_count"`
	ServiceSnapshot   map[string]any `json:"service_snapshot,omitempty"`
}

// RescheduleRequest moves an active booking to a new slot. Zero-valued fields
// inherit from the booking being replaced.
type RescheduleRequest struct {
	ClientGeneratedID string    `json:"client_generated_id"`
	ResourceID        string    `json:"resource_id,omitempty"`
	StartAt           time.Time `json:"start_at"`
	EndAt             time.Time `json:"end_at"`
	Timezone          string    `json:"timezone,omitempty"`
	AttendeeCount     int       `json:"attendee_count,omitempty"`
}

// LifecycleUpdate carries optional flag changes. Nil fields are left untouched.
type LifecycleUpdate struct {
	CanceledAt *time.Time     `json:"canceled_at,omitempty"`
	NoShowFlag *bool          `json:"no_show_flag,omitempty"`
	Status     *BookingStatus `json:"status,omitempty"`
}

type BookingResponse struct {
	Booking  Booking `json:"booking"`
	Replayed bool    `json:"replayed"`
}

type RescheduleResponse struct {
	Original    Booking `json:"original"`
	Replacement Booking `json:"replacement"`
	Replayed    bool    `json:"replayed"`
}
