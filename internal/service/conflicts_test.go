package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rentfold/allocation-engine/internal/model"
)

func criticalConflicts(result model.ConflictCheckResult) []model.Conflict {
	var criticals []model.Conflict
	for _, c := range result.Conflicts {
		if c.Severity == model.SeverityCritical {
			criticals = append(criticals, c)
		}
	}
	return criticals
}

func findConflict(result model.ConflictCheckResult, ct model.ConflictType) *model.Conflict {
	for i := range result.Conflicts {
		if result.Conflicts[i].Type == ct {
			return &result.Conflicts[i]
		}
	}
	return nil
}

func findResolution(c *model.Conflict, id string) *model.Resolution {
	for i := range c.Resolutions {
		if c.Resolutions[i].ID == id {
			return &c.Resolutions[i]
		}
	}
	return nil
}

func TestCheckAllocation_CleanRequest(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
		RequestedBy: uuid.New(),
	})
	assert.False(t, result.HasConflicts)
	assert.True(t, result.CanProceed)
	assert.Equal(t, "proceed", result.RecommendedAction)
}

// Allocating onto an occupied unit yields a single critical UNIT_OCCUPIED
// conflict and blocks the request.
func TestCheckAllocation_OccupiedUnit(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	t1 := fs.addTenant("Alice Mwangi")
	t2 := fs.addTenant("Brian Otieno")
	blocking := fs.addLease(t1.ID, unit.ID, model.LeaseActive, date(2030, 1, 1), nil)

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    t2.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	assert.False(t, result.CanProceed)
	assert.Equal(t, "resolve critical conflicts", result.RecommendedAction)

	criticals := criticalConflicts(result)
	require.Len(t, criticals, 1)
	assert.Equal(t, model.ConflictUnitOccupied, criticals[0].Type)

	conflict := findConflict(result, model.ConflictUnitOccupied)
	require.NotNil(t, conflict)
	term := findResolution(conflict, "terminate-existing")
	require.NotNil(t, term)
	assert.Equal(t, model.RiskHigh, term.Risk)
	assert.False(t, term.Automated)
	action, ok := term.Action.(model.TerminateExisting)
	require.True(t, ok)
	assert.Equal(t, blocking.ID, action.LeaseID)
	assert.True(t, action.RequiresConfirmation)

	require.NotNil(t, findResolution(conflict, "suggest-alternative"))
	wait := findResolution(conflict, "wait-until-available")
	require.NotNil(t, wait)
	_, isWait := wait.Action.(model.Wait)
	assert.True(t, isWait, "open-ended blocker offers an indefinite wait")
}

func TestCheckAllocation_OccupiedUnitWithEndDateSnapsStart(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	t1 := fs.addTenant("Alice Mwangi")
	t2 := fs.addTenant("Brian Otieno")
	fs.addLease(t1.ID, unit.ID, model.LeaseActive, date(2030, 1, 1), datePtr(2030, 6, 30))

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    t2.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	conflict := findConflict(result, model.ConflictUnitOccupied)
	require.NotNil(t, conflict)
	wait := findResolution(conflict, "wait-until-available")
	require.NotNil(t, wait)
	assert.True(t, wait.Automated)
	action, ok := wait.Action.(model.AdjustDates)
	require.True(t, ok)
	require.NotNil(t, action.NewStart)
	assert.Equal(t, date(2030, 7, 1), *action.NewStart, "start moves to the day after the blocking lease ends")
}

// A tenant with an active lease elsewhere gets a warning, not a blocker.
func TestCheckAllocation_TenantHoldsOtherLease(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unitA := fs.addUnit(prop.ID, "A-101", 100000)
	unitB := fs.addUnit(prop.ID, "B-202", 100000)
	tenant := fs.addTenant("Alice Mwangi")
	existing := fs.addLease(tenant.ID, unitA.ID, model.LeaseActive, date(2030, 1, 1), nil)

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unitB.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	assert.True(t, result.CanProceed, "dual leases are allowed, only warned about")
	assert.Equal(t, "review warnings", result.RecommendedAction)

	conflict := findConflict(result, model.ConflictTenantActiveLease)
	require.NotNil(t, conflict)
	assert.Equal(t, model.SeverityWarning, conflict.Severity)

	term := findResolution(conflict, "terminate-current")
	require.NotNil(t, term)
	assert.Equal(t, model.RiskMedium, term.Risk)
	action, ok := term.Action.(model.TerminateExisting)
	require.True(t, ok)
	assert.Equal(t, existing.ID, action.LeaseID)

	dual := findResolution(conflict, "allow-dual-lease")
	require.NotNil(t, dual)
	assert.Equal(t, model.RiskHigh, dual.Risk)
	_, isOverride := dual.Action.(model.Override)
	assert.True(t, isOverride)
}

// End date before start date: critical DATE_OVERLAP with a remove-end-date
// resolution.
func TestCheckAllocation_EndBeforeStart(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 8, 1),
		EndDate:     datePtr(2030, 7, 1),
		MonthlyRent: 100000,
	})
	assert.False(t, result.CanProceed)

	conflict := findConflict(result, model.ConflictDateOverlap)
	require.NotNil(t, conflict)
	assert.Equal(t, model.SeverityCritical, conflict.Severity)

	drop := findResolution(conflict, "remove-end-date")
	require.NotNil(t, drop)
	action, ok := drop.Action.(model.AdjustDates)
	require.True(t, ok)
	assert.True(t, action.DropEndDate)
}

func TestCheckAllocation_StartDateInPast(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2020, 1, 1),
		MonthlyRent: 100000,
	})
	assert.True(t, result.CanProceed)

	conflict := findConflict(result, model.ConflictStartDatePast)
	require.NotNil(t, conflict)
	assert.Equal(t, model.SeverityWarning, conflict.Severity)
	snap := findResolution(conflict, "snap-start-to-today")
	require.NotNil(t, snap)
	assert.True(t, snap.Automated)
}

func TestCheckAllocation_ShortDuration(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		EndDate:     datePtr(2030, 6, 15),
		MonthlyRent: 100000,
	})
	assert.True(t, result.CanProceed)
	conflict := findConflict(result, model.ConflictShortDuration)
	require.NotNil(t, conflict)
	assert.Equal(t, model.SeverityWarning, conflict.Severity)
	require.NotNil(t, findResolution(conflict, "extend-lease"))
}

func TestCheckAllocation_UnitUnderMaintenance(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")
	fs.units[unit.ID].Status = model.UnitMaintenance

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	assert.False(t, result.CanProceed)

	conflict := findConflict(result, model.ConflictUnitMaintenance)
	require.NotNil(t, conflict)
	suggest := findResolution(conflict, "suggest-alternative")
	require.NotNil(t, suggest)
	assert.True(t, suggest.Automated)
	wait := findResolution(conflict, "wait-for-maintenance")
	require.NotNil(t, wait)
	assert.False(t, wait.Automated)
}

func TestCheckAllocation_InactiveUnit(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")
	fs.units[unit.ID].Status = model.UnitInactive

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	assert.False(t, result.CanProceed)

	conflict := findConflict(result, model.ConflictUnitInactive)
	require.NotNil(t, conflict)
	activate := findResolution(conflict, "activate-unit")
	require.NotNil(t, activate)
	assert.False(t, activate.Automated)
}

func TestCheckAllocation_InactiveParentProperty(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(false)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	assert.False(t, result.CanProceed)
	require.NotNil(t, findConflict(result, model.ConflictUnitInactive))
}

// Rent more than 20% off the unit's standard rent: warning with an
// automated snap-to-standard resolution.
func TestCheckAllocation_RentMismatch(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 150000, // 50% above standard
	})
	assert.True(t, result.CanProceed)

	conflict := findConflict(result, model.ConflictRentMismatch)
	require.NotNil(t, conflict)
	assert.Equal(t, model.SeverityWarning, conflict.Severity)

	standard := findResolution(conflict, "use-standard-rent")
	require.NotNil(t, standard)
	assert.True(t, standard.Automated)
	action, ok := standard.Action.(model.AdjustRent)
	require.True(t, ok)
	assert.Equal(t, int64(100000), action.NewRent)

	custom := findResolution(conflict, "approve-custom-rent")
	require.NotNil(t, custom)
	assert.False(t, custom.Automated)
}

func TestCheckAllocation_RentWithinTolerance(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 115000, // 15% above, within tolerance
	})
	assert.Nil(t, findConflict(result, model.ConflictRentMismatch))
}

// When the store is unreachable the engine fails closed: it reports the
// failure as a critical conflict instead of a clean bill of health.
func TestCheckAllocation_FailsClosedOnStoreError(t *testing.T) {
	engine, fs := newTestEngine(t)
	fs.readErr = errors.New("connection refused")

	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    uuid.New(),
		UnitID:      uuid.New(),
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 100000,
	})
	assert.False(t, result.CanProceed)
	assert.True(t, result.HasConflicts)
	require.NotNil(t, findConflict(result, model.ConflictCheckFailed))
}

// A failing check must not prevent the others from running.
func TestCheckAllocation_ChecksAreIndependent(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	tenant := fs.addTenant("Alice Mwangi")

	// Date sanity needs no store access, so it still reports even when
	// every read fails.
	fs.readErr = errors.New("connection refused")
	result := engine.CheckAllocation(context.Background(), model.AllocationRequest{
		TenantID:    tenant.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 8, 1),
		EndDate:     datePtr(2030, 7, 1),
		MonthlyRent: 100000,
	})
	assert.NotNil(t, findConflict(result, model.ConflictDateOverlap))
	assert.NotNil(t, findConflict(result, model.ConflictCheckFailed))
}

// Identical input with no intervening writes yields identical conflicts.
func TestCheckAllocation_Idempotent(t *testing.T) {
	engine, fs := newTestEngine(t)
	prop := fs.addProperty(true)
	unit := fs.addUnit(prop.ID, "A-101", 100000)
	t1 := fs.addTenant("Alice Mwangi")
	t2 := fs.addTenant("Brian Otieno")
	fs.addLease(t1.ID, unit.ID, model.LeaseActive, date(2030, 1, 1), nil)

	req := model.AllocationRequest{
		TenantID:    t2.ID,
		UnitID:      unit.ID,
		StartDate:   date(2030, 6, 1),
		MonthlyRent: 150000,
	}
	first := engine.CheckAllocation(context.Background(), req)
	second := engine.CheckAllocation(context.Background(), req)
	assert.Equal(t, first, second)
}
