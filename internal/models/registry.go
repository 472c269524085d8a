package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Tenant struct {
	bun.BaseModel `bun:"table:tenants"`

	ID        string    `bun:"id,pk" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Timezone  string    `bun:"timezone,nullzero" json:"timezone,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

type Resource struct {
	bun.BaseModel `bun:"table:resources"`

	ID        string    `bun:"id,pk" json:"id"`
	TenantID  string    `bun:"tenant_id,notnull" json:"tenant_id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Kind      string    `bun:"kind,notnull,default:'staff'" json:"kind"`
	Timezone  string    `bun:"timezone,nullzero" json:"timezone,omitempty"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

// TimezoneChangedEvent is published by the registry owner when a tenant or resource zone changes.
// An empty ResourceID means the tenant fallback changed.
type TimezoneChangedEvent struct {
	TenantID   string `json:"tenant_id"`
	ResourceID string `json:"resource_id,omitempty"`
	Timezone   string `json:"timezone,omitempty"`
}
