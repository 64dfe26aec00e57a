package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/allocation-engine/internal/model"
)

// syncUnitStatus recomputes a unit's derived occupancy state from its lease
// rows, inside the same transaction as the lease write. Only the
// available/occupied pair is touched; maintenance and inactive are owned by
// maintenance workflows. The statement is idempotent.
func syncUnitStatus(ctx context.Context, tx *sql.Tx, unitID uuid.UUID) error {
	query := `
		UPDATE units
		SET status = CASE
			WHEN EXISTS (SELECT 1 FROM leases WHERE unit_id = $1 AND status = $2) THEN $3::text
			ELSE $4::text
		END,
		updated_at = now()
		WHERE id = $1 AND status IN ($3, $4)
	`
	_, err := tx.ExecContext(ctx, query, unitID,
		model.LeaseActive, model.UnitOccupied, model.UnitAvailable)
	if err != nil {
		return fmt.Errorf("sync unit status: %w", err)
	}
	return nil
}

// CreateLease inserts a lease and updates the unit's derived status in the
// same transaction. The unit row is locked first so a concurrent allocation
// on the same unit serializes here; the partial unique index on active
// leases is the backstop either way.
func (s *Store) CreateLease(ctx context.Context, lease *model.Lease) error {
	lease.ID = uuid.New()
	if lease.Status == "" {
		lease.Status = model.LeaseActive
	}
	lease.CreatedAt = time.Now()
	lease.UpdatedAt = lease.CreatedAt

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var unitExists bool
		err := tx.QueryRowContext(ctx,
			`SELECT true FROM units WHERE id = $1 FOR UPDATE`, lease.UnitID,
		).Scan(&unitExists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return mapWriteError("lock unit", err)
		}

		query := `
			INSERT INTO leases (id, tenant_id, unit_id, start_date, end_date, monthly_rent, security_deposit, status, lease_type, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err = tx.ExecContext(ctx, query,
			lease.ID, lease.TenantID, lease.UnitID, lease.StartDate, lease.EndDate,
			lease.MonthlyRent, lease.SecurityDeposit, lease.Status, lease.LeaseType,
			lease.Notes, lease.CreatedAt, lease.UpdatedAt,
		)
		if err != nil {
			return mapWriteError("create lease", err)
		}

		return syncUnitStatus(ctx, tx, lease.UnitID)
	})
	if err != nil {
		return err
	}

	s.invalidateUnit(ctx, lease.UnitID)
	return nil
}

// GetLease retrieves a lease by ID.
func (s *Store) GetLease(ctx context.Context, id uuid.UUID) (*model.Lease, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lease := &model.Lease{}
	err := s.db.QueryRowContext(ctx, leaseSelect+` WHERE id = $1`, id).Scan(leaseFields(lease)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError("get lease", err)
	}
	return lease, nil
}

// ActiveLeasesForUnit returns all active leases on a unit, earliest start
// first. The store invariant allows at most one, but readers must not
// assume it.
func (s *Store) ActiveLeasesForUnit(ctx context.Context, unitID uuid.UUID) ([]model.Lease, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx,
		leaseSelect+` WHERE unit_id = $1 AND status = $2 ORDER BY start_date`,
		unitID, model.LeaseActive,
	)
	if err != nil {
		return nil, mapWriteError("active leases for unit", err)
	}
	defer rows.Close()

	var leases []model.Lease
	for rows.Next() {
		var lease model.Lease
		if err := rows.Scan(leaseFields(&lease)...); err != nil {
			return nil, err
		}
		leases = append(leases, lease)
	}
	return leases, rows.Err()
}

// ActiveLeaseForTenant returns the tenant's earliest active lease, or nil.
func (s *Store) ActiveLeaseForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Lease, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	lease := &model.Lease{}
	err := s.db.QueryRowContext(ctx,
		leaseSelect+` WHERE tenant_id = $1 AND status = $2 ORDER BY start_date LIMIT 1`,
		tenantID, model.LeaseActive,
	).Scan(leaseFields(lease)...)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError("active lease for tenant", err)
	}
	return lease, nil
}

// UpdateLeaseStatus transitions a lease away from active/pending. Leases
// only ever move to terminated, expired or cancelled; they are never
// resurrected and never deleted. endDate, when given, closes the lease on
// that date; note is appended to the lease notes. The unit's derived status
// is updated in the same transaction.
func (s *Store) UpdateLeaseStatus(ctx context.Context, id uuid.UUID, status model.LeaseStatus, endDate *time.Time, note string) error {
	switch status {
	case model.LeaseTerminated, model.LeaseExpired, model.LeaseCancelled:
	default:
		return fmt.Errorf("lease status %q is not a permitted transition", status)
	}

	var unitID uuid.UUID
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		return transitionLease(ctx, tx, id, status, endDate, note, &unitID)
	})
	if err != nil {
		return err
	}

	s.invalidateUnit(ctx, unitID)
	return nil
}

func transitionLease(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.LeaseStatus, endDate *time.Time, note string, unitID *uuid.UUID) error {
	query := `
		UPDATE leases
		SET status = $2,
			end_date = COALESCE($3, end_date),
			notes = CASE WHEN $4 = '' THEN notes ELSE trim(notes || E'\n' || $4) END,
			updated_at = now()
		WHERE id = $1 AND status IN ($5, $6)
		RETURNING unit_id
	`
	err := tx.QueryRowContext(ctx, query, id, status, endDate, note,
		model.LeaseActive, model.LeasePending,
	).Scan(unitID)
	if err == sql.ErrNoRows {
		return ErrNoActiveLease
	}
	if err != nil {
		return mapWriteError("transition lease", err)
	}
	return syncUnitStatus(ctx, tx, *unitID)
}

// Reallocate moves a tenant to a new unit as one unit of work: terminate
// (or keep) the current lease, create the replacement, and let the derived
// unit statuses follow, all in a single transaction. Preconditions are
// re-checked inside the transaction; of two concurrent reallocations
// targeting the same unit, the loser gets ErrUnitUnavailable, never a
// corrupted state. No retries happen here.
func (s *Store) Reallocate(ctx context.Context, req model.ReallocationRequest) error {
	var oldUnitID uuid.UUID

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		// Current lease must be active and belong to the tenant. Locked so
		// a concurrent termination cannot slip between check and write.
		var leaseTenant uuid.UUID
		var leaseStatus model.LeaseStatus
		err := tx.QueryRowContext(ctx,
			`SELECT tenant_id, unit_id, status FROM leases WHERE id = $1 FOR UPDATE`,
			req.CurrentLeaseID,
		).Scan(&leaseTenant, &oldUnitID, &leaseStatus)
		if err == sql.ErrNoRows {
			return ErrNoActiveLease
		}
		if err != nil {
			return mapWriteError("lock current lease", err)
		}
		if leaseTenant != req.TenantID || leaseStatus != model.LeaseActive {
			return ErrNoActiveLease
		}

		// Locking the target unit row serializes concurrent reallocations
		// aimed at the same unit.
		var unitStatus model.UnitStatus
		var unitActive bool
		err = tx.QueryRowContext(ctx,
			`SELECT status, active FROM units WHERE id = $1 FOR UPDATE`, req.NewUnitID,
		).Scan(&unitStatus, &unitActive)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return mapWriteError("lock target unit", err)
		}
		if !unitActive || unitStatus == model.UnitMaintenance || unitStatus == model.UnitInactive {
			return ErrUnitUnavailable
		}

		// Re-check availability from the effective date onward, inside the
		// transaction. The advisory check the caller ran earlier may be
		// stale by now.
		var blocking uuid.UUID
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM leases
			WHERE unit_id = $1 AND status = $2 AND (end_date IS NULL OR end_date >= $3)
			ORDER BY start_date
			LIMIT 1
		`, req.NewUnitID, model.LeaseActive, req.EffectiveDate).Scan(&blocking)
		if err == nil {
			return ErrUnitUnavailable
		}
		if err != sql.ErrNoRows {
			return mapWriteError("recheck availability", err)
		}

		if req.TerminateCurrent {
			endDate := req.EffectiveDate.AddDate(0, 0, -1)
			note := fmt.Sprintf("Reallocated to unit %s effective %s. %s",
				req.NewUnitID, req.EffectiveDate.Format("2006-01-02"), req.Notes)
			var terminatedUnit uuid.UUID
			if err := transitionLease(ctx, tx, req.CurrentLeaseID, model.LeaseTerminated, &endDate, note, &terminatedUnit); err != nil {
				return err
			}
		}

		now := time.Now()
		newLease := model.Lease{
			ID:          uuid.New(),
			TenantID:    req.TenantID,
			UnitID:      req.NewUnitID,
			StartDate:   req.EffectiveDate,
			MonthlyRent: req.NewRent,
			Status:      model.LeaseActive,
			LeaseType:   "standard",
			Notes:       fmt.Sprintf("Created by reallocation from lease %s. %s", req.CurrentLeaseID, req.Notes),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO leases (id, tenant_id, unit_id, start_date, end_date, monthly_rent, security_deposit, status, lease_type, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			newLease.ID, newLease.TenantID, newLease.UnitID, newLease.StartDate, nil,
			newLease.MonthlyRent, int64(0), newLease.Status, newLease.LeaseType,
			newLease.Notes, newLease.CreatedAt, newLease.UpdatedAt,
		)
		if err != nil {
			// A concurrent insert that beat the row lock surfaces as the
			// unique index firing; report it as the precondition failure.
			mapped := mapWriteError("insert replacement lease", err)
			if cv, ok := mapped.(*ConstraintViolation); ok && cv.Rule == RuleOneActiveLeasePerUnit {
				return ErrUnitUnavailable
			}
			return mapped
		}

		return syncUnitStatus(ctx, tx, req.NewUnitID)
	})
	if err != nil {
		return err
	}

	s.invalidateUnit(ctx, oldUnitID)
	s.invalidateUnit(ctx, req.NewUnitID)
	return nil
}

// RecordEvent appends an allocation audit event. Best effort; callers treat
// failures as non-fatal.
func (s *Store) RecordEvent(ctx context.Context, event model.AllocationEvent) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	details, err := marshalDetails(event.Details)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO allocation_events (id, kind, tenant_id, unit_id, lease_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = s.db.ExecContext(ctx, query,
		event.ID, event.Kind, event.TenantID, event.UnitID, event.LeaseID,
		event.ActorID, details, event.CreatedAt,
	)
	return mapWriteError("record event", err)
}

func marshalDetails(details map[string]interface{}) ([]byte, error) {
	if details == nil {
		return nil, nil
	}
	return json.Marshal(details)
}

const leaseSelect = `
	SELECT id, tenant_id, unit_id, start_date, end_date, monthly_rent, security_deposit, status, lease_type, notes, created_at, updated_at
	FROM leases`

func leaseFields(l *model.Lease) []interface{} {
	return []interface{}{
		&l.ID, &l.TenantID, &l.UnitID, &l.StartDate, &l.EndDate,
		&l.MonthlyRent, &l.SecurityDeposit, &l.Status, &l.LeaseType,
		&l.Notes, &l.CreatedAt, &l.UpdatedAt,
	}
}
