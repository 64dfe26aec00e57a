package model

import (
	"time"

	"github.com/google/uuid"
)

// AllocationRequest is a proposed assignment of a tenant to a unit.
// RequestedBy identifies the acting landlord/operator; it is always passed
// explicitly rather than read from ambient state.
type AllocationRequest struct {
	TenantID    uuid.UUID  `json:"tenant_id"`
	UnitID      uuid.UUID  `json:"unit_id"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	MonthlyRent int64      `json:"monthly_rent"`
	Notes       string     `json:"notes,omitempty"`
	RequestedBy uuid.UUID  `json:"requested_by"`
}

// ConflictCheckResult aggregates the outcome of all conflict checks.
type ConflictCheckResult struct {
	HasConflicts      bool       `json:"has_conflicts"`
	Conflicts         []Conflict `json:"conflicts"`
	CanProceed        bool       `json:"can_proceed"`
	RecommendedAction string     `json:"recommended_action"`
}

// Availability is the result of a point availability query. When the unit is
// unavailable, AvailableFrom nil means the blocking lease is open-ended.
type Availability struct {
	Available       bool       `json:"available"`
	BlockingLeaseID *uuid.UUID `json:"blocking_lease_id,omitempty"`
	OccupantName    string     `json:"occupant_name,omitempty"`
	LeaseStart      *time.Time `json:"lease_start,omitempty"`
	LeaseEnd        *time.Time `json:"lease_end,omitempty"`
	AvailableFrom   *time.Time `json:"available_from,omitempty"`
}

// ReallocationRequest moves a tenant from their current lease to a new unit
// as one atomic operation.
type ReallocationRequest struct {
	TenantID         uuid.UUID `json:"tenant_id"`
	CurrentLeaseID   uuid.UUID `json:"current_lease_id"`
	NewUnitID        uuid.UUID `json:"new_unit_id"`
	EffectiveDate    time.Time `json:"effective_date"`
	NewRent          int64     `json:"new_rent"`
	Notes            string    `json:"notes,omitempty"`
	TerminateCurrent bool      `json:"terminate_current"`
	RequestedBy      uuid.UUID `json:"requested_by"`
}

// ResolutionOutcome reports the result of executing one resolution. The
// updated request, when present, is what the caller should submit next;
// executing a resolution never commits a lease by itself.
type ResolutionOutcome struct {
	Success          bool               `json:"success"`
	Message          string             `json:"message"`
	UpdatedRequest   *AllocationRequest `json:"updated_request,omitempty"`
	AlternativeUnits []Unit             `json:"alternative_units,omitempty"`
}

// AllocationEvent is an audit record of an engine action. Events are
// fire-and-forget; losing one never affects allocation correctness.
type AllocationEvent struct {
	ID        uuid.UUID              `json:"id"`
	Kind      string                 `json:"kind"`
	TenantID  uuid.UUID              `json:"tenant_id"`
	UnitID    uuid.UUID              `json:"unit_id"`
	LeaseID   *uuid.UUID             `json:"lease_id,omitempty"`
	ActorID   uuid.UUID              `json:"actor_id"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
