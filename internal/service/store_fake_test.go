package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/allocation-engine/internal/model"
	"github.com/rentfold/allocation-engine/internal/store"
)

// fakeStore mirrors the allocation store semantics in memory, including
// the derived unit-status maintenance and the reallocation preconditions,
// so engine behavior can be exercised without Postgres.
type fakeStore struct {
	mu         sync.Mutex
	units      map[uuid.UUID]*model.Unit
	tenants    map[uuid.UUID]*model.Tenant
	properties map[uuid.UUID]*model.Property
	leases     map[uuid.UUID]*model.Lease
	events     []model.AllocationEvent

	readErr error // when set, all reads fail with it
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		units:      make(map[uuid.UUID]*model.Unit),
		tenants:    make(map[uuid.UUID]*model.Tenant),
		properties: make(map[uuid.UUID]*model.Property),
		leases:     make(map[uuid.UUID]*model.Lease),
	}
}

func (f *fakeStore) addProperty(active bool) *model.Property {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &model.Property{ID: uuid.New(), Name: "Test Property", Active: active}
	f.properties[p.ID] = p
	return p
}

func (f *fakeStore) addUnit(propertyID uuid.UUID, label string, rent int64) *model.Unit {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &model.Unit{
		ID:          uuid.New(),
		PropertyID:  propertyID,
		Label:       label,
		MonthlyRent: rent,
		Status:      model.UnitAvailable,
		Active:      true,
	}
	f.units[u.ID] = u
	return u
}

func (f *fakeStore) addTenant(name string) *model.Tenant {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &model.Tenant{ID: uuid.New(), FullName: name, Status: "active"}
	f.tenants[t.ID] = t
	return t
}

// addLease inserts directly without invariant checks, so tests can also
// set up states the constraints would normally forbid.
func (f *fakeStore) addLease(tenantID, unitID uuid.UUID, status model.LeaseStatus, start time.Time, end *time.Time) *model.Lease {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := &model.Lease{
		ID:        uuid.New(),
		TenantID:  tenantID,
		UnitID:    unitID,
		StartDate: start,
		EndDate:   end,
		Status:    status,
	}
	f.leases[l.ID] = l
	f.syncUnitLocked(unitID)
	return l
}

func (f *fakeStore) syncUnitLocked(unitID uuid.UUID) {
	unit, ok := f.units[unitID]
	if !ok || (unit.Status != model.UnitAvailable && unit.Status != model.UnitOccupied) {
		return
	}
	unit.Status = model.UnitAvailable
	for _, l := range f.leases {
		if l.UnitID == unitID && l.Status == model.LeaseActive {
			unit.Status = model.UnitOccupied
			return
		}
	}
}

func (f *fakeStore) GetUnit(_ context.Context, id uuid.UUID) (*model.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	u, ok := f.units[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) GetTenant(_ context.Context, id uuid.UUID) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	t, ok := f.tenants[id]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeStore) GetProperty(_ context.Context, id uuid.UUID) (*model.Property, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	p, ok := f.properties[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) GetLease(_ context.Context, id uuid.UUID) (*model.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	l, ok := f.leases[id]
	if !ok {
		return nil, nil
	}
	copied := *l
	return &copied, nil
}

func (f *fakeStore) ActiveLeasesForUnit(_ context.Context, unitID uuid.UUID) ([]model.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var leases []model.Lease
	for _, l := range f.leases {
		if l.UnitID == unitID && l.Status == model.LeaseActive {
			leases = append(leases, *l)
		}
	}
	sort.Slice(leases, func(i, j int) bool { return leases[i].StartDate.Before(leases[j].StartDate) })
	return leases, nil
}

func (f *fakeStore) ActiveLeaseForTenant(_ context.Context, tenantID uuid.UUID) (*model.Lease, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var earliest *model.Lease
	for _, l := range f.leases {
		if l.TenantID == tenantID && l.Status == model.LeaseActive {
			if earliest == nil || l.StartDate.Before(earliest.StartDate) {
				earliest = l
			}
		}
	}
	if earliest == nil {
		return nil, nil
	}
	copied := *earliest
	return &copied, nil
}

func (f *fakeStore) ListAvailableUnits(_ context.Context, start time.Time, end *time.Time, propertyID *uuid.UUID) ([]model.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return nil, f.readErr
	}
	var units []model.Unit
	for _, u := range f.units {
		if !u.Active || u.Status == model.UnitMaintenance || u.Status == model.UnitInactive {
			continue
		}
		if propertyID != nil && u.PropertyID != *propertyID {
			continue
		}
		if prop, ok := f.properties[u.PropertyID]; !ok || !prop.Active {
			continue
		}
		blocked := false
		for _, l := range f.leases {
			if l.UnitID == u.ID && l.Status == model.LeaseActive && overlaps(l.StartDate, l.EndDate, start, end) {
				blocked = true
				break
			}
		}
		if !blocked {
			units = append(units, *u)
		}
	}
	sort.Slice(units, func(i, j int) bool { return units[i].Label < units[j].Label })
	return units, nil
}

func (f *fakeStore) CreateLease(_ context.Context, lease *model.Lease) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.units[lease.UnitID]; !ok {
		return store.ErrNotFound
	}
	if lease.MonthlyRent <= 0 {
		return &store.ConstraintViolation{Rule: store.RulePositiveRent, Detail: "monthly_rent must be positive"}
	}
	if lease.EndDate != nil && !lease.StartDate.Before(*lease.EndDate) {
		return &store.ConstraintViolation{Rule: store.RuleLeaseDateOrder, Detail: "start_date must precede end_date"}
	}
	for _, l := range f.leases {
		if l.UnitID == lease.UnitID && l.Status == model.LeaseActive {
			return &store.ConstraintViolation{Rule: store.RuleOneActiveLeasePerUnit, Detail: "unit already has an active lease"}
		}
	}
	lease.ID = uuid.New()
	if lease.Status == "" {
		lease.Status = model.LeaseActive
	}
	lease.CreatedAt = time.Now()
	lease.UpdatedAt = lease.CreatedAt
	copied := *lease
	f.leases[lease.ID] = &copied
	f.syncUnitLocked(lease.UnitID)
	return nil
}

func (f *fakeStore) UpdateLeaseStatus(_ context.Context, id uuid.UUID, status model.LeaseStatus, endDate *time.Time, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	lease, ok := f.leases[id]
	if !ok || (lease.Status != model.LeaseActive && lease.Status != model.LeasePending) {
		return store.ErrNoActiveLease
	}
	lease.Status = status
	if endDate != nil {
		lease.EndDate = endDate
	}
	if note != "" {
		lease.Notes += "\n" + note
	}
	f.syncUnitLocked(lease.UnitID)
	return nil
}

func (f *fakeStore) Reallocate(_ context.Context, req model.ReallocationRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, ok := f.leases[req.CurrentLeaseID]
	if !ok || current.TenantID != req.TenantID || current.Status != model.LeaseActive {
		return store.ErrNoActiveLease
	}
	unit, ok := f.units[req.NewUnitID]
	if !ok {
		return store.ErrNotFound
	}
	if !unit.Active || unit.Status == model.UnitMaintenance || unit.Status == model.UnitInactive {
		return store.ErrUnitUnavailable
	}
	for _, l := range f.leases {
		if l.UnitID == req.NewUnitID && l.Status == model.LeaseActive &&
			(l.EndDate == nil || !l.EndDate.Before(req.EffectiveDate)) {
			return store.ErrUnitUnavailable
		}
	}

	if req.TerminateCurrent {
		endDate := req.EffectiveDate.AddDate(0, 0, -1)
		current.Status = model.LeaseTerminated
		current.EndDate = &endDate
		current.Notes += "\nReallocated to unit " + req.NewUnitID.String()
		f.syncUnitLocked(current.UnitID)
	}

	newLease := &model.Lease{
		ID:          uuid.New(),
		TenantID:    req.TenantID,
		UnitID:      req.NewUnitID,
		StartDate:   req.EffectiveDate,
		MonthlyRent: req.NewRent,
		Status:      model.LeaseActive,
		Notes:       "Created by reallocation from lease " + req.CurrentLeaseID.String(),
	}
	f.leases[newLease.ID] = newLease
	f.syncUnitLocked(req.NewUnitID)
	return nil
}

func (f *fakeStore) RecordEvent(_ context.Context, event model.AllocationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

// activeLeaseOnUnit returns the active lease on a unit, if any.
func (f *fakeStore) activeLeaseOnUnit(unitID uuid.UUID) *model.Lease {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.leases {
		if l.UnitID == unitID && l.Status == model.LeaseActive {
			copied := *l
			return &copied
		}
	}
	return nil
}

func (f *fakeStore) unitStatus(unitID uuid.UUID) model.UnitStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.units[unitID].Status
}
