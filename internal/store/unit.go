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

func unitCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("unit:%s", id.String())
}

// CreateProperty inserts a new property.
func (s *Store) CreateProperty(ctx context.Context, prop *model.Property) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	prop.ID = uuid.New()
	prop.CreatedAt = time.Now()
	prop.UpdatedAt = prop.CreatedAt

	query := `
		INSERT INTO properties (id, name, address, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		prop.ID, prop.Name, prop.Address, prop.Active, prop.CreatedAt, prop.UpdatedAt,
	)
	return mapWriteError("create property", err)
}

// CreateUnit inserts a new unit. New units start available.
func (s *Store) CreateUnit(ctx context.Context, unit *model.Unit) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	unit.ID = uuid.New()
	unit.Status = model.UnitAvailable
	unit.Active = true
	unit.CreatedAt = time.Now()
	unit.UpdatedAt = unit.CreatedAt

	query := `
		INSERT INTO units (id, property_id, label, monthly_rent, status, active, last_inspection_at, next_inspection_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		unit.ID, unit.PropertyID, unit.Label, unit.MonthlyRent, unit.Status,
		unit.Active, unit.LastInspectionAt, unit.NextInspectionAt,
		unit.CreatedAt, unit.UpdatedAt,
	)
	return mapWriteError("create unit", err)
}

// GetUnit retrieves a unit by ID, serving point lookups from the cache when
// one is configured. Availability logic never relies on cached status; it
// reads lease rows directly.
func (s *Store) GetUnit(ctx context.Context, id uuid.UUID) (*model.Unit, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, unitCacheKey(id)).Result()
		if err == nil {
			unit := &model.Unit{}
			if err := json.Unmarshal([]byte(cached), unit); err == nil {
				return unit, nil
			}
		}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, property_id, label, monthly_rent, status, active, last_inspection_at, next_inspection_at, created_at, updated_at
		FROM units
		WHERE id = $1
	`
	unit := &model.Unit{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&unit.ID, &unit.PropertyID, &unit.Label, &unit.MonthlyRent, &unit.Status,
		&unit.Active, &unit.LastInspectionAt, &unit.NextInspectionAt,
		&unit.CreatedAt, &unit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError("get unit", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(unit); err == nil {
			s.cache.SetEx(ctx, unitCacheKey(id), data, unitCacheTTL)
		}
	}
	return unit, nil
}

// GetProperty retrieves a unit's parent property.
func (s *Store) GetProperty(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, address, active, created_at, updated_at
		FROM properties
		WHERE id = $1
	`
	prop := &model.Property{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&prop.ID, &prop.Name, &prop.Address, &prop.Active,
		&prop.CreatedAt, &prop.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mapWriteError("get property", err)
	}
	return prop, nil
}

// SetUnitStatus applies an out-of-band lifecycle transition (maintenance
// workflows, reactivation). The occupied state is derived from leases and
// cannot be set directly.
func (s *Store) SetUnitStatus(ctx context.Context, id uuid.UUID, status model.UnitStatus) error {
	if status == model.UnitOccupied {
		return fmt.Errorf("unit status %q is derived from lease records", status)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `UPDATE units SET status = $2, updated_at = now() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return mapWriteError("set unit status", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.invalidateUnit(ctx, id)
	return nil
}

// DeactivateUnit soft-deactivates a unit. Units referenced by leases are
// never deleted.
func (s *Store) DeactivateUnit(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `UPDATE units SET active = false, status = $2, updated_at = now() WHERE id = $1`
	result, err := s.db.ExecContext(ctx, query, id, model.UnitInactive)
	if err != nil {
		return mapWriteError("deactivate unit", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.invalidateUnit(ctx, id)
	return nil
}

// ListAvailableUnits returns active, available units in active properties
// with no active lease overlapping the requested range. An open-ended
// request (end nil) conflicts with any lease reaching past start.
func (s *Store) ListAvailableUnits(ctx context.Context, start time.Time, end *time.Time, propertyID *uuid.UUID) ([]model.Unit, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT u.id, u.property_id, u.label, u.monthly_rent, u.status, u.active, u.last_inspection_at, u.next_inspection_at, u.created_at, u.updated_at
		FROM units u
		JOIN properties p ON p.id = u.property_id
		WHERE u.active AND p.active
		  AND u.status NOT IN ($1, $2)
		  AND ($3::uuid IS NULL OR u.property_id = $3)
		  AND NOT EXISTS (
			SELECT 1 FROM leases l
			WHERE l.unit_id = u.id
			  AND l.status = $4
			  AND (l.end_date IS NULL OR l.end_date >= $5)
			  AND ($6::date IS NULL OR l.start_date <= $6)
		  )
		ORDER BY u.label
	`
	rows, err := s.db.QueryContext(ctx, query,
		model.UnitMaintenance, model.UnitInactive, propertyID,
		model.LeaseActive, start, end,
	)
	if err != nil {
		return nil, mapWriteError("list available units", err)
	}
	defer rows.Close()

	var units []model.Unit
	for rows.Next() {
		var unit model.Unit
		if err := rows.Scan(
			&unit.ID, &unit.PropertyID, &unit.Label, &unit.MonthlyRent, &unit.Status,
			&unit.Active, &unit.LastInspectionAt, &unit.NextInspectionAt,
			&unit.CreatedAt, &unit.UpdatedAt,
		); err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

func (s *Store) invalidateUnit(ctx context.Context, id uuid.UUID) {
	if s.cache != nil {
		s.cache.Del(ctx, unitCacheKey(id))
	}
}
