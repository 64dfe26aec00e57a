package model

import (
	"time"

	"github.com/google/uuid"
)

// UnitStatus is the occupancy/lifecycle state of a unit. The available and
// occupied states are derived from lease records by the store; maintenance
// and inactive are set out-of-band by maintenance workflows.
type UnitStatus string

const (
	UnitAvailable   UnitStatus = "available"
	UnitOccupied    UnitStatus = "occupied"
	UnitMaintenance UnitStatus = "maintenance"
	UnitInactive    UnitStatus = "inactive"
)

// Unit represents the units table. Monetary amounts are integer cents.
type Unit struct {
	ID               uuid.UUID  `json:"id"`
	PropertyID       uuid.UUID  `json:"property_id"`
	Label            string     `json:"label"`
	MonthlyRent      int64      `json:"monthly_rent"`
	Status           UnitStatus `json:"status"`
	Active           bool       `json:"active"`
	LastInspectionAt *time.Time `json:"last_inspection_at,omitempty"`
	NextInspectionAt *time.Time `json:"next_inspection_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Property represents the properties table. The engine only reads properties
// to know whether a unit's parent is active; property CRUD is external.
type Property struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
