package analytics

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// StatusCountData is one (resource, status) bucket
type StatusCountData struct {
	ResourceID    string `bun:"resource_id"`
	Status        string `bun:"status"`
	BookingCount  int    `bun:"booking_count"`
	AttendeeCount int    `bun:"attendee_count"`
}

// GetStatusCounts groups a tenant's bookings starting in [from, to) by resource and status.
// Zero bounds are open.
func (db *DB) GetStatusCounts(ctx context.Context, tenantID string, from, to time.Time) ([]StatusCountData, error) {
	var rows []StatusCountData
	q := db.bun.NewSelect().
		TableExpr("bookings AS b").
		ColumnExpr("b.resource_id").
		ColumnExpr("b.status").
		ColumnExpr("COUNT(*) AS booking_count").
		ColumnExpr("COALESCE(SUM(b.attendee_count), 0) AS attendee_count").
		Where("b.tenant_id = ?", tenantID)

	if !from.IsZero() {
		q = q.Where("b.start_at >= ?", from.UTC())
	}
	if !to.IsZero() {
		q = q.Where("b.start_at < ?", to.UTC())
	}

	err := q.GroupExpr("b.resource_id, b.status").
		OrderExpr("b.resource_id, b.status").
		Scan(ctx, &rows)
	return rows, err
}
