package model

import (
	"time"

	"github.com/google/uuid"
)

// LeaseStatus is the lifecycle state of a lease. After creation the only
// permitted transitions are active -> terminated/expired/cancelled; leases
// are never resurrected and never physically deleted.
type LeaseStatus string

const (
	LeaseActive     LeaseStatus = "active"
	LeaseTerminated LeaseStatus = "terminated"
	LeaseExpired    LeaseStatus = "expired"
	LeasePending    LeaseStatus = "pending"
	LeaseCancelled  LeaseStatus = "cancelled"
)

// Lease represents the leases table: the allocation record binding one
// tenant to one unit for a date range. EndDate nil means open-ended.
type Lease struct {
	ID              uuid.UUID   `json:"id"`
	TenantID        uuid.UUID   `json:"tenant_id"`
	UnitID          uuid.UUID   `json:"unit_id"`
	StartDate       time.Time   `json:"start_date"`
	EndDate         *time.Time  `json:"end_date,omitempty"`
	MonthlyRent     int64       `json:"monthly_rent"`
	SecurityDeposit int64       `json:"security_deposit"`
	Status          LeaseStatus `json:"status"`
	LeaseType       string      `json:"lease_type"`
	Notes           string      `json:"notes"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// LeaseTerms carries the caller-supplied terms for a new allocation.
type LeaseTerms struct {
	StartDate       time.Time  `json:"start_date"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	MonthlyRent     int64      `json:"monthly_rent"`
	SecurityDeposit int64      `json:"security_deposit"`
	LeaseType       string     `json:"lease_type"`
	Notes           string     `json:"notes"`
}
