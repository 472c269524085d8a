package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-booking/internal/logger"
	"ms-booking/internal/models"

	"github.com/google/uuid"
)

// Actor is the caller on whose behalf a ledger operation runs. Tenant scoping
// is enforced upstream; the ledger only filters by TenantID.
type Actor struct {
	TenantID string
	ActorID  string
}

// Store persists bookings. Admit, UpdateLifecycle and Reschedule must run the
// overlap check atomically with their write.
type Store interface {
	GetByID(ctx context.Context, tenantID, id string) (*models.Booking, error)
	GetByClientID(ctx context.Context, tenantID, clientID string) (*models.Booking, error)

	// Admit inserts b or fails with ErrDuplicateRequest or *OverlapConflictError.
	Admit(ctx context.Context, b *models.Booking) error

	// UpdateLifecycle loads the row under lock and hands it to mutate. When mutate
	// reports true the row is checked for overlap before being written back.
	UpdateLifecycle(ctx context.Context, tenantID, id string, mutate func(*models.Booking) (bool, error)) (*models.Booking, error)

	// Reschedule retires the original and admits replacement in one transaction.
	Reschedule(ctx context.Context, tenantID, originalID string, retire func(*models.Booking) error, replacement *models.Booking) (*models.Booking, error)

	ListByResource(ctx context.Context, tenantID, resourceID string, from, to time.Time, activeOnly bool) ([]models.Booking, error)
}

// AdmissionLock serialises admissions per resource ahead of the database.
type AdmissionLock interface {
	Acquire(ctx context.Context, resourceID, owner string) error
	Release(ctx context.Context, resourceID, owner string) error
}

type EventPublisher interface {
	PublishBookingCreated(ctx context.Context, b models.Booking) error
	PublishBookingUpdated(ctx context.Context, b models.Booking) error
}

type Ledger struct {
	Store    Store
	Resolver *TimezoneResolver
	Lock     AdmissionLock
	Events   EventPublisher
	Log      *logger.Logger
	Now      func() time.Time
}

// NewLedger wires a ledger. lock and events may be nil.
func NewLedger(store Store, registry Registry, lock AdmissionLock, events EventPublisher, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Discard()
	}
	return &Ledger{
		Store:    store,
		Resolver: NewTimezoneResolver(registry),
		Lock:     lock,
		Events:   events,
		Log:      log,
		Now:      time.Now,
	}
}

// ---------------- CREATE ----------------

// CreateBooking admits a new booking. created is false when the request replays an
// earlier one with the same client_generated_id; the stored booking is returned as is.
func (l *Ledger) CreateBooking(ctx context.Context, actor Actor, req models.CreateBookingRequest) (*models.Booking, bool, error) {
	if actor.TenantID == "" || strings.TrimSpace(req.ClientGeneratedID) == "" || req.ResourceID == "" {
		return nil, false, ErrInvalidRequest
	}
	interval, err := NewInterval(req.StartAt, req.EndAt)
	if err != nil {
		return nil, false, err
	}
	if req.AttendeeCount < 1 {
		return nil, false, ErrInvalidAttendeeCount
	}

	if existing, err := l.replay(ctx, actor.TenantID, req.ClientGeneratedID); err != nil || existing != nil {
		return existing, false, err
	}

	tz, err := l.Resolver.Resolve(ctx, req.Timezone, actor.TenantID, req.ResourceID)
	if err != nil {
		return nil, false, err
	}

	now := l.now()
	b := &models.Booking{
		ID:                uuid.NewString(),
		TenantID:          actor.TenantID,
		ClientGeneratedID: req.ClientGeneratedID,
		ResourceID:        req.ResourceID,
		StartAt:           interval.Start,
		EndAt:             interval.End,
		BookingTZ:         tz,
		Status:            models.BookingStatusPending,
		AttendeeCount:     req.AttendeeCount,
		ServiceSnapshot:   req.ServiceSnapshot,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ApplyStatus(b)

	release, err := l.acquire(ctx, b.ResourceID, b.ID)
	if err != nil {
		return nil, false, err
	}
	err = l.Store.Admit(ctx, b)
	release()

	if errors.Is(err, ErrDuplicateRequest) {
		// lost the race against a concurrent retry of the same request
		existing, gerr := l.Store.GetByClientID(ctx, actor.TenantID, req.ClientGeneratedID)
		if gerr != nil {
			return nil, false, fmt.Errorf("replay after duplicate: %w", gerr)
		}
		return existing, false, nil
	}
	if err != nil {
		var conflict *OverlapConflictError
		if errors.As(err, &conflict) {
			l.Log.LogBooking("CONFLICT", b.ID, conflict.Error())
		}
		return nil, false, err
	}

	l.Log.LogBooking("CREATED", b.ID, fmt.Sprintf("resource=%s tz=%s [%s, %s) local=%s", b.ResourceID, b.BookingTZ,
		b.StartAt.Format(time.RFC3339), b.EndAt.Format(time.RFC3339), b.LocalStart().Format(time.RFC3339)))
	l.publishCreated(ctx, *b)
	return b, true, nil
}

// ---------------- LIFECYCLE ----------------

// UpdateBookingLifecycle applies flag changes and re-derives status. The first
// canceled_at wins and can never be cleared. A booking that returns to the active
// set is checked for overlap again.
func (l *Ledger) UpdateBookingLifecycle(ctx context.Context, actor Actor, bookingID string, update models.LifecycleUpdate) (*models.Booking, error) {
	if actor.TenantID == "" || bookingID == "" {
		return nil, ErrNotFound
	}
	if update.Status != nil && (!ValidStatus(*update.Status) || flagOwned(*update.Status)) {
		return nil, fmt.Errorf("%w: %q cannot be requested directly", ErrInvalidStatus, *update.Status)
	}

	var (
		previous models.BookingStatus
		changed  bool
	)
	mutate := func(b *models.Booking) (bool, error) {
		previous = b.Status
		wasActive := IsActive(b.Status)
		wasCanceled := b.CanceledAt != nil
		wasNoShow := b.NoShowFlag

		if update.CanceledAt != nil && b.CanceledAt == nil {
			at := update.CanceledAt.UTC()
			b.CanceledAt = &at
		}
		if update.NoShowFlag != nil {
			b.NoShowFlag = *update.NoShowFlag
		}
		if update.Status != nil {
			b.Status = *update.Status
		}
		ApplyStatus(b)

		changed = b.Status != previous || (b.CanceledAt != nil) != wasCanceled || b.NoShowFlag != wasNoShow
		if !changed {
			return false, nil
		}
		b.UpdatedAt = l.now()
		return !wasActive && IsActive(b.Status), nil
	}

	updated, err := l.Store.UpdateLifecycle(ctx, actor.TenantID, bookingID, mutate)
	if err != nil {
		return nil, err
	}

	if !changed {
		return updated, nil
	}
	if previous != updated.Status {
		l.Log.LogLifecycle(updated.ID, string(previous), string(updated.Status))
	}
	l.publishUpdated(ctx, *updated)
	return updated, nil
}

// ---------------- RESCHEDULE ----------------

// RescheduleBooking cancels an active booking and admits its replacement atomically.
// The replacement carries rescheduled_from. Replays return the stored pair.
func (l *Ledger) RescheduleBooking(ctx context.Context, actor Actor, bookingID string, req models.RescheduleRequest) (original, replacement *models.Booking, created bool, err error) {
	if actor.TenantID == "" || bookingID == "" || strings.TrimSpace(req.ClientGeneratedID) == "" {
		return nil, nil, false, ErrInvalidRequest
	}
	interval, err := NewInterval(req.StartAt, req.EndAt)
	if err != nil {
		return nil, nil, false, err
	}
	if req.AttendeeCount < 0 {
		return nil, nil, false, ErrInvalidAttendeeCount
	}

	if existing, err := l.replay(ctx, actor.TenantID, req.ClientGeneratedID); err != nil || existing != nil {
		if err != nil {
			return nil, nil, false, err
		}
		return l.replayReschedule(ctx, actor.TenantID, existing)
	}

	current, err := l.Store.GetByID(ctx, actor.TenantID, bookingID)
	if err != nil {
		return nil, nil, false, err
	}
	if !IsActive(current.Status) {
		return nil, nil, false, fmt.Errorf("%w: cannot reschedule a %s booking", ErrInvalidStatus, current.Status)
	}

	resourceID := req.ResourceID
	if resourceID == "" {
		resourceID = current.ResourceID
	}
	explicitTZ := req.Timezone
	if explicitTZ == "" && resourceID == current.ResourceID {
		explicitTZ = current.BookingTZ
	}
	tz, err := l.Resolver.Resolve(ctx, explicitTZ, actor.TenantID, resourceID)
	if err != nil {
		return nil, nil, false, err
	}
	attendees := req.AttendeeCount
	if attendees == 0 {
		attendees = current.AttendeeCount
	}

	now := l.now()
	from := current.ID
	next := &models.Booking{
		ID:                uuid.NewString(),
		TenantID:          actor.TenantID,
		ClientGeneratedID: req.ClientGeneratedID,
		ResourceID:        resourceID,
		StartAt:           interval.Start,
		EndAt:             interval.End,
		BookingTZ:         tz,
		Status:            models.BookingStatusPending,
		AttendeeCount:     attendees,
		RescheduledFrom:   &from,
		ServiceSnapshot:   current.ServiceSnapshot,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ApplyStatus(next)

	retire := func(b *models.Booking) error {
		if !IsActive(b.Status) {
			return fmt.Errorf("%w: cannot reschedule a %s booking", ErrInvalidStatus, b.Status)
		}
		at := now.UTC()
		b.CanceledAt = &at
		ApplyStatus(b)
		b.UpdatedAt = now
		return nil
	}

	release, err := l.acquire(ctx, next.ResourceID, next.ID)
	if err != nil {
		return nil, nil, false, err
	}
	retired, err := l.Store.Reschedule(ctx, actor.TenantID, current.ID, retire, next)
	release()

	if errors.Is(err, ErrDuplicateRequest) {
		existing, gerr := l.Store.GetByClientID(ctx, actor.TenantID, req.ClientGeneratedID)
		if gerr != nil {
			return nil, nil, false, fmt.Errorf("replay after duplicate: %w", gerr)
		}
		return l.replayReschedule(ctx, actor.TenantID, existing)
	}
	if err != nil {
		return nil, nil, false, err
	}

	l.Log.LogBooking("RESCHEDULED", retired.ID, "replaced by "+next.ID)
	l.publishUpdated(ctx, *retired)
	l.publishCreated(ctx, *next)
	return retired, next, true, nil
}

func (l *Ledger) replayReschedule(ctx context.Context, tenantID string, replacement *models.Booking) (*models.Booking, *models.Booking, bool, error) {
	if replacement.RescheduledFrom == nil {
		// the token was spent on a plain create
		return nil, nil, false, fmt.Errorf("%w: client_generated_id %q already used by booking %s",
			ErrInvalidRequest, replacement.ClientGeneratedID, replacement.ID)
	}
	original, err := l.Store.GetByID(ctx, tenantID, *replacement.RescheduledFrom)
	if err != nil {
		return nil, nil, false, err
	}
	return original, replacement, false, nil
}

// ---------------- READS ----------------

func (l *Ledger) GetBooking(ctx context.Context, actor Actor, bookingID string) (*models.Booking, error) {
	if actor.TenantID == "" || bookingID == "" {
		return nil, ErrNotFound
	}
	return l.Store.GetByID(ctx, actor.TenantID, bookingID)
}

// ListResourceBookings returns bookings on a resource intersecting [from, to).
// Zero bounds are open.
func (l *Ledger) ListResourceBookings(ctx context.Context, actor Actor, resourceID string, from, to time.Time, activeOnly bool) ([]models.Booking, error) {
	if actor.TenantID == "" || resourceID == "" {
		return nil, ErrInvalidRequest
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return nil, ErrInvalidTimeRange
	}
	return l.Store.ListByResource(ctx, actor.TenantID, resourceID, from, to, activeOnly)
}

// ---------------- HELPERS ----------------

func (l *Ledger) replay(ctx context.Context, tenantID, clientID string) (*models.Booking, error) {
	existing, err := l.Store.GetByClientID(ctx, tenantID, clientID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("idempotency lookup: %w", err)
	}
	l.Log.LogBooking("REPLAYED", existing.ID, "client_generated_id="+clientID)
	return existing, nil
}

// acquire takes the admission lock if one is configured. The lock only narrows
// contention: the store decides conflicts, so a timeout or an unreachable Redis
// is logged and the admission goes ahead unlocked. Only a canceled ctx fails.
func (l *Ledger) acquire(ctx context.Context, resourceID, owner string) (func(), error) {
	noop := func() {}
	if l.Lock == nil {
		return noop, nil
	}
	if err := l.Lock.Acquire(ctx, resourceID, owner); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		l.Log.Warn("LOCK", fmt.Sprintf("admission lock %s unavailable, continuing without it: %v", resourceID, err))
		return noop, nil
	}
	return func() {
		if err := l.Lock.Release(context.WithoutCancel(ctx), resourceID, owner); err != nil {
			l.Log.Warn("LOCK", fmt.Sprintf("release %s: %v", resourceID, err))
		}
	}, nil
}

func (l *Ledger) publishCreated(ctx context.Context, b models.Booking) {
	if l.Events == nil {
		return
	}
	if err := l.Events.PublishBookingCreated(ctx, b); err != nil {
		l.Log.Error("EVENTS", fmt.Sprintf("publish created %s: %v", b.ID, err))
	}
}

func (l *Ledger) publishUpdated(ctx context.Context, b models.Booking) {
	if l.Events == nil {
		return
	}
	if err := l.Events.PublishBookingUpdated(ctx, b); err != nil {
		l.Log.Error("EVENTS", fmt.Sprintf("publish updated %s: %v", b.ID, err))
	}
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}
