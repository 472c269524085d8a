package booking

import (
	"context"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// Registry is the tenant/resource registry as seen from the booking core.
// An empty zone with a nil error means "not configured".
type Registry interface {
	GetResourceTimezone(ctx context.Context, tenantID, resourceID string) (string, error)
	GetTenantTimezone(ctx context.Context, tenantID string) (string, error)
}

type TimezoneResolver struct {
	Registry Registry
}

func NewTimezoneResolver(registry Registry) *TimezoneResolver {
	return &TimezoneResolver{Registry: registry}
}

// Resolve picks the first zone present in explicit -> resource -> tenant and validates it.
// An invalid value at any step is an error; it never falls through to the next source.
func (r *TimezoneResolver) Resolve(ctx context.Context, explicit, tenantID, resourceID string) (string, error) {
	if tz := strings.TrimSpace(explicit); tz != "" {
		return tz, ValidateTimezone(tz)
	}

	tz, err := r.Registry.GetResourceTimezone(ctx, tenantID, resourceID)
	if err != nil {
		return "", fmt.Errorf("resource timezone lookup: %w", err)
	}
	if tz = strings.TrimSpace(tz); tz != "" {
		return tz, ValidateTimezone(tz)
	}

	tz, err = r.Registry.GetTenantTimezone(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("tenant timezone lookup: %w", err)
	}
	if tz = strings.TrimSpace(tz); tz != "" {
		return tz, ValidateTimezone(tz)
	}

	return "", ErrTimezoneRequired
}

// ValidateTimezone accepts IANA identifiers only. "Local" is rejected since it
// depends on the host running the service.
func ValidateTimezone(tz string) error {
	if tz == "" || tz == "Local" {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidTimezone, tz)
	}
	return nil
}
