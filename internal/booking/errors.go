package booking

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidRequest       = errors.New("booking: tenant, client_generated_id and resource_id are required")
	ErrInvalidTimeRange     = errors.New("booking: start_at must be before end_at")
	ErrInvalidAttendeeCount = errors.New("booking: attendee_count must be at least 1")
	ErrTimezoneRequired     = errors.New("booking: no timezone supplied or configured on resource or tenant")
	ErrInvalidTimezone      = errors.New("booking: invalid IANA timezone")
	ErrOverlapConflict      = errors.New("booking: overlaps an active booking on the resource")
	ErrNotFound             = errors.New("booking: not found")
	ErrInvalidStatus        = errors.New("booking: invalid status transition")
	ErrUnknownResource      = errors.New("booking: unknown resource")
	ErrUnknownTenant        = errors.New("booking: unknown tenant")

	// ErrDuplicateRequest is returned by a Store when (tenant_id, client_generated_id) already exists.
	// The Ledger turns it into an idempotent replay; callers never see it.
	ErrDuplicateRequest = errors.New("booking: duplicate client_generated_id")
)

// OverlapConflictError names the active booking that blocked admission.
// ConflictingBookingID may be empty when the store rejected the write but the
// blocking row could no longer be read back.
type OverlapConflictError struct {
	ResourceID           string
	ConflictingBookingID string
	Start                time.Time
	End                  time.Time
}

func (e *OverlapConflictError) Error() string {
	if e.ConflictingBookingID == "" {
		return fmt.Sprintf("%v: resource %s [%s, %s)", ErrOverlapConflict, e.ResourceID,
			e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("%v: resource %s [%s, %s) conflicts with booking %s", ErrOverlapConflict, e.ResourceID,
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339), e.ConflictingBookingID)
}

func (e *OverlapConflictError) Is(target error) bool {
	return target == ErrOverlapConflict
}
