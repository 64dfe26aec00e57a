package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/rentfold/allocation-engine/internal/model"
	"github.com/rentfold/allocation-engine/internal/monitoring"
	"github.com/rentfold/allocation-engine/internal/store"
)

// Store is the allocation-store contract the engine depends on. The
// concrete implementation is *store.Store; tests substitute an in-memory
// fake.
type Store interface {
	GetUnit(ctx context.Context, id uuid.UUID) (*model.Unit, error)
	GetTenant(ctx context.Context, id uuid.UUID) (*model.Tenant, error)
	GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error)
	GetLease(ctx context.Context, id uuid.UUID) (*model.Lease, error)
	ActiveLeasesForUnit(ctx context.Context, unitID uuid.UUID) ([]model.Lease, error)
	ActiveLeaseForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Lease, error)
	ListAvailableUnits(ctx context.Context, start time.Time, end *time.Time, propertyID *uuid.UUID) ([]model.Unit, error)
	CreateLease(ctx context.Context, lease *model.Lease) error
	UpdateLeaseStatus(ctx context.Context, id uuid.UUID, status model.LeaseStatus, endDate *time.Time, note string) error
	Reallocate(ctx context.Context, req model.ReallocationRequest) error
	RecordEvent(ctx context.Context, event model.AllocationEvent) error
}

// Engine is the tenant-unit allocation engine: conflict checking,
// availability resolution, plain allocation and atomic reallocation. It
// holds no mutable state of its own; all coordination is delegated to the
// store's transactional guarantees.
type Engine struct {
	store Store
	audit *AuditTrail
}

func NewEngine(s Store) *Engine {
	return &Engine{
		store: s,
		audit: NewAuditTrail(s),
	}
}

// Close flushes and stops the audit trail worker.
func (e *Engine) Close() {
	e.audit.Close()
}

// Allocate creates an active lease binding the tenant to the unit. Callers
// are expected to have run CheckAllocation first; the store's declarative
// constraints remain the backstop and surface as ConstraintViolation.
func (e *Engine) Allocate(ctx context.Context, tenantID, unitID uuid.UUID, terms model.LeaseTerms, requestedBy uuid.UUID) (uuid.UUID, error) {
	lease := &model.Lease{
		TenantID:        tenantID,
		UnitID:          unitID,
		StartDate:       terms.StartDate,
		EndDate:         terms.EndDate,
		MonthlyRent:     terms.MonthlyRent,
		SecurityDeposit: terms.SecurityDeposit,
		Status:          model.LeaseActive,
		LeaseType:       terms.LeaseType,
		Notes:           terms.Notes,
	}
	if lease.LeaseType == "" {
		lease.LeaseType = "standard"
	}

	if err := e.store.CreateLease(ctx, lease); err != nil {
		var cv *store.ConstraintViolation
		if errors.As(err, &cv) {
			log.Warn().Str("rule", cv.Rule).Str("unit_id", unitID.String()).Msg("Allocation rejected by store constraint")
		} else {
			log.Error().Err(err).Msg("Failed to create lease")
		}
		monitoring.Allocations.WithLabelValues("rejected").Inc()
		return uuid.Nil, err
	}

	monitoring.Allocations.WithLabelValues("created").Inc()
	e.audit.Record(model.AllocationEvent{
		Kind:     "allocation_created",
		TenantID: tenantID,
		UnitID:   unitID,
		LeaseID:  &lease.ID,
		ActorID:  requestedBy,
		Details:  map[string]interface{}{"monthly_rent": terms.MonthlyRent},
	})
	return lease.ID, nil
}

// Reallocate moves a tenant to a new unit as a single all-or-nothing
// operation. Precondition failures (ErrNoActiveLease, ErrUnitUnavailable)
// come back to the caller untouched; the engine never retries a write.
func (e *Engine) Reallocate(ctx context.Context, req model.ReallocationRequest) error {
	start := time.Now()
	err := e.store.Reallocate(ctx, req)
	monitoring.ReallocationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		monitoring.Reallocations.WithLabelValues("completed").Inc()
	case errors.Is(err, store.ErrNoActiveLease), errors.Is(err, store.ErrUnitUnavailable):
		monitoring.Reallocations.WithLabelValues("rejected").Inc()
		return err
	default:
		monitoring.Reallocations.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("tenant_id", req.TenantID.String()).Msg("Reallocation failed")
		return err
	}

	e.audit.Record(model.AllocationEvent{
		Kind:     "reallocation_completed",
		TenantID: req.TenantID,
		UnitID:   req.NewUnitID,
		LeaseID:  &req.CurrentLeaseID,
		ActorID:  req.RequestedBy,
		Details: map[string]interface{}{
			"effective_date":    req.EffectiveDate.Format("2006-01-02"),
			"terminate_current": req.TerminateCurrent,
		},
	})
	return nil
}

// ListAvailableUnits returns units free for the requested range, optionally
// scoped to one property. Used directly by callers and by the
// suggest-alternative resolution.
func (e *Engine) ListAvailableUnits(ctx context.Context, start time.Time, end *time.Time, propertyID *uuid.UUID) ([]model.Unit, error) {
	return e.store.ListAvailableUnits(ctx, start, end, propertyID)
}
