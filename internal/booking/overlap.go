package booking

import (
	"time"

	"ms-booking/internal/models"
)

// Interval is a half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) (Interval, error) {
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return Interval{}, ErrInvalidTimeRange
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

func BookingInterval(b *models.Booking) Interval {
	return Interval{Start: b.StartAt, End: b.EndAt}
}

// Overlaps reports whether two ranges share an instant. Touching ranges do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Conflicts reports whether a and b would violate the one-active-booking rule.
func Conflicts(a, b *models.Booking) bool {
	if a.ID != "" && a.ID == b.ID {
		return false
	}
	if a.ResourceID != b.ResourceID {
		return false
	}
	if !IsActive(a.Status) || !IsActive(b.Status) {
		return false
	}
	return BookingInterval(a).Overlaps(BookingInterval(b))
}

// FindConflict returns the earliest-starting booking in existing that conflicts with candidate.
func FindConflict(candidate *models.Booking, existing []models.Booking) *models.Booking {
	var found *models.Booking
	for i := range existing {
		if !Conflicts(candidate, &existing[i]) {
			continue
		}
		if found == nil || existing[i].StartAt.Before(found.StartAt) {
			found = &existing[i]
		}
	}
	return found
}

// NewOverlapConflict builds the error returned when conflicting blocks candidate.
func NewOverlapConflict(candidate, conflicting *models.Booking) *OverlapConflictError {
	err := &OverlapConflictError{
		ResourceID: candidate.ResourceID,
		Start:      candidate.StartAt,
		End:        candidate.EndAt,
	}
	if conflicting != nil {
		err.ConflictingBookingID = conflicting.ID
	}
	return err
}
