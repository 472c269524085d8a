package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- READS ----------------

// GetByID → fetch one booking scoped to its tenant
func (d *DB) GetByID(ctx context.Context, tenantID, id string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("tenant_id = ?", tenantID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// GetByClientID → fetch the booking created for an idempotency token
func (d *DB) GetByClientID(ctx context.Context, tenantID, clientID string) (*models.Booking, error) {
	var b models.Booking
	err := d.Bun.NewSelect().
		Model(&b).
		Where("tenant_id = ?", tenantID).
		Where("client_generated_id = ?", clientID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListByResource → bookings on a resource intersecting [from, to), oldest first
func (d *DB) ListByResource(ctx context.Context, tenantID, resourceID string, from, to time.Time, activeOnly bool) ([]models.Booking, error) {
	bookings := []models.Booking{}
	q := d.Bun.NewSelect().
		Model(&bookings).
		Where("tenant_id = ?", tenantID).
		Where("resource_id = ?", resourceID)
	if !from.IsZero() {
		q = q.Where("end_at > ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("start_at < ?", to.UTC())
	}
	if activeOnly {
		q = q.Where("status IN (?)", bun.In(booking.ActiveStatuses()))
	}
	if err := q.Order("start_at ASC", "id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ---------------- WRITES ----------------

// Admit → insert a booking after the duplicate and overlap checks, all in one transaction
func (d *DB) Admit(ctx context.Context, b *models.Booking) error {
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := d.lockResource(ctx, tx, b.ResourceID); err != nil {
			return err
		}
		if err := d.checkDuplicate(ctx, tx, b); err != nil {
			return err
		}
		if err := d.checkOverlap(ctx, tx, b); err != nil {
			return err
		}
		_, err := tx.NewInsert().Model(b).Exec(ctx)
		return err
	})
	return d.classify(ctx, err, b)
}

// UpdateLifecycle → load the row under lock, mutate, recheck overlap if asked, write back
func (d *DB) UpdateLifecycle(ctx context.Context, tenantID, id string, mutate func(*models.Booking) (bool, error)) (*models.Booking, error) {
	var b *models.Booking
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		b, err = d.getForUpdate(ctx, tx, tenantID, id)
		if err != nil {
			return err
		}
		recheck, err := mutate(b)
		if err != nil {
			return err
		}
		if recheck {
			if err := d.lockResource(ctx, tx, b.ResourceID); err != nil {
				return err
			}
			if err := d.checkOverlap(ctx, tx, b); err != nil {
				return err
			}
		}
		return d.writeLifecycle(ctx, tx, b)
	})
	if err != nil {
		return nil, d.classify(ctx, err, b)
	}
	return b, nil
}

// Reschedule → retire the original and admit the replacement in one transaction
func (d *DB) Reschedule(ctx context.Context, tenantID, originalID string, retire func(*models.Booking) error, replacement *models.Booking) (*models.Booking, error) {
	var retired *models.Booking
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		original, err := d.getForUpdate(ctx, tx, tenantID, originalID)
		if err != nil {
			return err
		}
		if err := retire(original); err != nil {
			return err
		}
		if err := d.writeLifecycle(ctx, tx, original); err != nil {
			return err
		}

		if err := d.lockResource(ctx, tx, replacement.ResourceID); err != nil {
			return err
		}
		if err := d.checkDuplicate(ctx, tx, replacement); err != nil {
			return err
		}
		if err := d.checkOverlap(ctx, tx, replacement); err != nil {
			return err
		}
		if _, err := tx.NewInsert().Model(replacement).Exec(ctx); err != nil {
			return err
		}
		retired = original
		return nil
	})
	if err != nil {
		return nil, d.classify(ctx, err, replacement)
	}
	return retired, nil
}

// ---------------- HELPERS ----------------

func (d *DB) isPostgres() bool {
	return d.Bun.Dialect().Name() == dialect.PG
}

// lockResource serialises writers per resource for the rest of the transaction.
// sqlite already runs one writer at a time.
func (d *DB) lockResource(ctx context.Context, tx bun.Tx, resourceID string) error {
	if !d.isPostgres() {
		return nil
	}
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", "booking:"+resourceID); err != nil {
		return fmt.Errorf("advisory lock %s: %w", resourceID, err)
	}
	return nil
}

func (d *DB) getForUpdate(ctx context.Context, tx bun.Tx, tenantID, id string) (*models.Booking, error) {
	var b models.Booking
	q := tx.NewSelect().
		Model(&b).
		Where("tenant_id = ?", tenantID).
		Where("id = ?", id).
		Limit(1)
	if d.isPostgres() {
		q = q.For("UPDATE")
	}
	err := q.Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, booking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *DB) writeLifecycle(ctx context.Context, tx bun.Tx, b *models.Booking) error {
	_, err := tx.NewUpdate().
		Model(b).
		Column("status", "canceled_at", "no_show_flag", "updated_at").
		WherePK().
		Exec(ctx)
	return err
}

func (d *DB) checkDuplicate(ctx context.Context, tx bun.Tx, b *models.Booking) error {
	exists, err := tx.NewSelect().
		Model((*models.Booking)(nil)).
		Where("tenant_id = ?", b.TenantID).
		Where("client_generated_id = ?", b.ClientGeneratedID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return booking.ErrDuplicateRequest
	}
	return nil
}

func (d *DB) checkOverlap(ctx context.Context, db bun.IDB, b *models.Booking) error {
	conflict, err := d.findConflict(ctx, db, b)
	if err != nil {
		return err
	}
	if conflict != nil {
		return booking.NewOverlapConflict(b, conflict)
	}
	return nil
}

// findConflict narrows candidates in SQL and lets booking.FindConflict decide.
func (d *DB) findConflict(ctx context.Context, db bun.IDB, b *models.Booking) (*models.Booking, error) {
	if !booking.IsActive(b.Status) {
		return nil, nil
	}
	var candidates []models.Booking
	q := db.NewSelect().
		Model(&candidates).
		Where("resource_id = ?", b.ResourceID).
		Where("status IN (?)", bun.In(booking.ActiveStatuses())).
		Where("start_at < ?", b.EndAt).
		Where("end_at > ?", b.StartAt).
		Order("start_at ASC")
	if b.ID != "" {
		q = q.Where("id <> ?", b.ID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return booking.FindConflict(b, candidates), nil
}
