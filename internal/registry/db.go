package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"ms-booking/internal/booking"
	"ms-booking/internal/models"

	"github.com/uptrace/bun"
)

// DB reads tenants and resources. The registry is owned elsewhere; this
// service never writes to it outside of seeding.
type DB struct {
	Bun *bun.DB
}

// GetResourceTimezone → the resource's own zone, "" when unset
func (d *DB) GetResourceTimezone(ctx context.Context, tenantID, resourceID string) (string, error) {
	var res models.Resource
	err := d.Bun.NewSelect().
		Model(&res).
		Column("id", "timezone").
		Where("id = ?", resourceID).
		Where("tenant_id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", booking.ErrUnknownResource, resourceID)
	}
	if err != nil {
		return "", err
	}
	return res.Timezone, nil
}

// GetTenantTimezone → the tenant fallback zone, "" when unset
func (d *DB) GetTenantTimezone(ctx context.Context, tenantID string) (string, error) {
	var tenant models.Tenant
	err := d.Bun.NewSelect().
		Model(&tenant).
		Column("id", "timezone").
		Where("id = ?", tenantID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", booking.ErrUnknownTenant, tenantID)
	}
	if err != nil {
		return "", err
	}
	return tenant.Timezone, nil
}

// UpsertTenant is used by seeding and tests
func (d *DB) UpsertTenant(ctx context.Context, t *models.Tenant) error {
	_, err := d.Bun.NewInsert().
		Model(t).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("timezone = EXCLUDED.timezone").
		Exec(ctx)
	return err
}

// UpsertResource is used by seeding and tests
func (d *DB) UpsertResource(ctx context.Context, r *models.Resource) error {
	_, err := d.Bun.NewInsert().
		Model(r).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("kind = EXCLUDED.kind").
		Set("timezone = EXCLUDED.timezone").
		Exec(ctx)
	return err
}
