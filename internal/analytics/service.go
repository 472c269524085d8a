package analytics

import (
	"context"
	"errors"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// Service handles analytics operations
type Service struct {
	db *DB
}

// NewService creates a new analytics service
func NewService(db *bun.DB) *Service {
	return &Service{db: NewDB(db)}
}

// ResourceBreakdown is the status mix for one resource
type ResourceBreakdown struct {
	ResourceID     string                       `json:"resource_id"`
	Total          int                          `json:"total"`
	Active         int                          `json:"active"`
	ByStatus       map[models.BookingStatus]int `json:"by_status"`
	TotalAttendees int                          `json:"total_attendees"`
}

// StatusBreakdown represents booking outcomes for a tenant over a window
type StatusBreakdown struct {
	TenantID  string              `json:"tenant_id"`
	From      *time.Time          `json:"from,omitempty"`
	To        *time.Time          `json:"to,omitempty"`
	Total     int                 `json:"total"`
	Resources []ResourceBreakdown `json:"resources"`
}

// StatusBreakdown counts bookings per resource and status.
// Canceled and no-show bookings are counted, they just are not active.
func (s *Service) StatusBreakdown(ctx context.Context, tenantID string, from, to time.Time) (*StatusBreakdown, error) {
	if tenantID == "" {
		return nil, booking.ErrInvalidRequest
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, errors.Join(booking.ErrInvalidTimeRange, errors.New("from must be before to"))
	}

	rows, err := s.db.GetStatusCounts(ctx, tenantID, from, to)
	if err != nil {
		return nil, err
	}

	result := &StatusBreakdown{TenantID: tenantID, Resources: []ResourceBreakdown{}}
	if !from.IsZero() {
		f := from.UTC()
		result.From = &f
	}
	if !to.IsZero() {
		t := to.UTC()
		result.To = &t
	}

	// rows are ordered by resource
	for _, row := range rows {
		n := len(result.Resources)
		if n == 0 || result.Resources[n-1].ResourceID != row.ResourceID {
			result.Resources = append(result.Resources, ResourceBreakdown{
				ResourceID: row.ResourceID,
				ByStatus:   make(map[models.BookingStatus]int),
			})
			n++
		}
		rb := &result.Resources[n-1]
		status := models.BookingStatus(row.Status)
		rb.ByStatus[status] += row.BookingCount
		rb.Total += row.BookingCount
		rb.TotalAttendees += row.AttendeeCount
		if booking.IsActive(status) {
			rb.Active += row.BookingCount
		}
		result.Total += row.BookingCount
	}
	return result, nil
}
