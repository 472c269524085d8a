package db

import (
	"context"
	"errors"
	"strings"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun/driver/pgdriver"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// classify maps driver errors raised by the database constraints onto booking errors.
// The constraints back up the in-transaction checks when a concurrent writer slips through.
func (d *DB) classify(ctx context.Context, err error, candidate *models.Booking) error {
	if err == nil {
		return nil
	}

	switch sqlState(err) {
	case pgUniqueViolation:
		return booking.ErrDuplicateRequest
	case pgExclusionViolation:
		return d.conflictFromConstraint(ctx, candidate)
	}

	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return booking.ErrDuplicateRequest
	}
	return err
}

func sqlState(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

// conflictFromConstraint reads back the row that tripped the exclusion constraint.
// It may already be gone from the active set, in which case no id is reported.
func (d *DB) conflictFromConstraint(ctx context.Context, candidate *models.Booking) error {
	if candidate == nil {
		return booking.ErrOverlapConflict
	}
	conflict, err := d.findConflict(ctx, d.Bun, candidate)
	if err != nil {
		conflict = nil
	}
	return booking.NewOverlapConflict(candidate, conflict)
}
