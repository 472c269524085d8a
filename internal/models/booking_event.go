package models

import "time"

type BookingEventType string

const (
	BookingEventCreated  BookingEventType = "booking.created"
	BookingEventUpdated  BookingEventType = "booking.updated"
	BookingEventCanceled BookingEventType = "booking.canceled"
)

// BookingEvent is the payload published to Kafka and streamed to calendar subscribers.
type BookingEvent struct {
	Type              BookingEventType `json:"type"`
	BookingID         string           `json:"booking_id"`
	TenantID          string           `json:"tenant_id"`
	ResourceID        string           `json:"resource_id"`
	ClientGeneratedID string           `json:"client_generated_id"`
	Status            BookingStatus    `json:"status"`
	StartAt           time.Time        `json:"start_at"`
	EndAt             time.Time        `json:"end_at"`
	BookingTZ         string           `json:"booking_tz"`
	RescheduledFrom   *string          `json:"rescheduled_from,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
}

func NewBookingEvent(eventType BookingEventType, b Booking) BookingEvent {
	return BookingEvent{
		Type:              eventType,
		BookingID:         b.ID,
		TenantID:          b.TenantID,
		ResourceID:        b.ResourceID,
		ClientGeneratedID: b.ClientGeneratedID,
		Status:            b.Status,
		StartAt:           b.StartAt,
		EndAt:             b.EndAt,
		BookingTZ:         b.BookingTZ,
		RescheduledFrom:   b.RescheduledFrom,
		OccurredAt:        b.UpdatedAt,
	}
}
