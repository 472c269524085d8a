package db

import (
	"context"

	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// CreateSchema builds the tables straight from the models. It is used for sqlite
// runs and tests; Postgres gets its schema, exclusion constraint included, from
// the SQL migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{
		(*models.Tenant)(nil),
		(*models.Resource)(nil),
		(*models.Booking)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}

	_, err := db.NewCreateIndex().
		Model((*models.Booking)(nil)).
		Index("bookings_tenant_client_uniq").
		Unique().
		IfNotExists().
		Column("tenant_id", "client_generated_id").
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = db.NewCreateIndex().
		Model((*models.Booking)(nil)).
		Index("bookings_resource_start_idx").
		IfNotExists().
		Column("resource_id", "start_at").
		Exec(ctx)
	return err
}
