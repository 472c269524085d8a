package booking

import (
	"time"

	"ms-booking/internal/models"
)

var activeStatuses = []models.BookingStatus{
	models.BookingStatusPending,
	models.BookingStatusConfirmed,
	models.BookingStatusCheckedIn,
}

// ActiveStatuses returns the statuses that occupy a resource's calendar.
func ActiveStatuses() []models.BookingStatus {
	out := make([]models.BookingStatus, len(activeStatuses))
	copy(out, activeStatuses)
	return out
}

func IsActive(s models.BookingStatus) bool {
	for _, a := range activeStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func ValidStatus(s models.BookingStatus) bool {
	switch s {
	case models.BookingStatusPending,
		models.BookingStatusConfirmed,
		models.BookingStatusCheckedIn,
		models.BookingStatusCompleted,
		models.BookingStatusCanceled,
		models.BookingStatusNoShow,
		models.BookingStatusFailed:
		return true
	}
	return false
}

// flagOwned statuses can only come from canceled_at / no_show_flag.
func flagOwned(s models.BookingStatus) bool {
	return s == models.BookingStatusCanceled || s == models.BookingStatusNoShow
}

// DeriveStatus computes the canonical status. canceled_at beats no_show_flag, which
// beats the proposed value. A proposed value that is empty, unknown or owned by a flag
// that is not set falls back to pending.
func DeriveStatus(canceledAt *time.Time, noShow bool, proposed models.BookingStatus) models.BookingStatus {
	if canceledAt != nil {
		return models.BookingStatusCanceled
	}
	if noShow {
		return models.BookingStatusNoShow
	}
	if !ValidStatus(proposed) || flagOwned(proposed) {
		return models.BookingStatusPending
	}
	return proposed
}

// ApplyStatus overwrites b.Status with the derived value.
func ApplyStatus(b *models.Booking) {
	b.Status = DeriveStatus(b.CanceledAt, b.NoShowFlag, b.Status)
}
