package handler

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/allocation-engine/internal/model"
)

const dateLayout = "2006-01-02"

type checkAllocationRequest struct {
	TenantID    uuid.UUID `json:"tenant_id" validate:"required"`
	UnitID      uuid.UUID `json:"unit_id" validate:"required"`
	StartDate   string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate     string    `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MonthlyRent int64     `json:"monthly_rent" validate:"required,gt=0"`
	Notes       string    `json:"notes,omitempty"`
	RequestedBy uuid.UUID `json:"requested_by" validate:"required"`
}

func (r checkAllocationRequest) toModel() (model.AllocationRequest, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return model.AllocationRequest{}, fmt.Errorf("invalid start_date: %w", err)
	}
	req := model.AllocationRequest{
		TenantID:    r.TenantID,
		UnitID:      r.UnitID,
		StartDate:   start,
		MonthlyRent: r.MonthlyRent,
		Notes:       r.Notes,
		RequestedBy: r.RequestedBy,
	}
	if r.EndDate != "" {
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return model.AllocationRequest{}, fmt.Errorf("invalid end_date: %w", err)
		}
		req.EndDate = &end
	}
	return req, nil
}

type allocateRequest struct {
	TenantID        uuid.UUID `json:"tenant_id" validate:"required"`
	UnitID          uuid.UUID `json:"unit_id" validate:"required"`
	StartDate       string    `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string    `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	MonthlyRent     int64     `json:"monthly_rent" validate:"required,gt=0"`
	SecurityDeposit int64     `json:"security_deposit" validate:"gte=0"`
	LeaseType       string    `json:"lease_type,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	RequestedBy     uuid.UUID `json:"requested_by" validate:"required"`
}

func (r allocateRequest) toTerms() (model.LeaseTerms, error) {
	start, err := time.Parse(dateLayout, r.StartDate)
	if err != nil {
		return model.LeaseTerms{}, fmt.Errorf("invalid start_date: %w", err)
	}
	terms := model.LeaseTerms{
		StartDate:       start,
		MonthlyRent:     r.MonthlyRent,
		SecurityDeposit: r.SecurityDeposit,
		LeaseType:       r.LeaseType,
		Notes:           r.Notes,
	}
	if r.EndDate != "" {
		end, err := time.Parse(dateLayout, r.EndDate)
		if err != nil {
			return model.LeaseTerms{}, fmt.Errorf("invalid end_date: %w", err)
		}
		terms.EndDate = &end
	}
	return terms, nil
}

type allocateResponse struct {
	LeaseID uuid.UUID `json:"lease_id"`
}

type reallocateRequest struct {
	TenantID         uuid.UUID `json:"tenant_id" validate:"required"`
	CurrentLeaseID   uuid.UUID `json:"current_lease_id" validate:"required"`
	NewUnitID        uuid.UUID `json:"new_unit_id" validate:"required"`
	EffectiveDate    string    `json:"effective_date" validate:"required,datetime=2006-01-02"`
	NewRent          int64     `json:"new_rent" validate:"required,gt=0"`
	Notes            string    `json:"notes,omitempty"`
	TerminateCurrent bool      `json:"terminate_current"`
	RequestedBy      uuid.UUID `json:"requested_by" validate:"required"`
}

func (r reallocateRequest) toModel() (model.ReallocationRequest, error) {
	effective, err := time.Parse(dateLayout, r.EffectiveDate)
	if err != nil {
		return model.ReallocationRequest{}, fmt.Errorf("invalid effective_date: %w", err)
	}
	return model.ReallocationRequest{
		TenantID:         r.TenantID,
		CurrentLeaseID:   r.CurrentLeaseID,
		NewUnitID:        r.NewUnitID,
		EffectiveDate:    effective,
		NewRent:          r.NewRent,
		Notes:            r.Notes,
		TerminateCurrent: r.TerminateCurrent,
		RequestedBy:      r.RequestedBy,
	}, nil
}

type executeResolutionRequest struct {
	Resolution model.Resolution       `json:"resolution" validate:"required"`
	Request    checkAllocationRequest `json:"request" validate:"required"`
}

type errorResponse struct {
	Error string `json:"error"`
}
