package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rentfold/allocation-engine/internal/model"
	"github.com/rentfold/allocation-engine/internal/monitoring"
)

const (
	minLeaseDuration  = 30 * 24 * time.Hour
	rentMismatchRatio = 0.20
)

// CheckAllocation runs every conflict check against the proposed
// allocation and aggregates the findings. Checks are independent: one
// failing to run does not stop the others, and a check that cannot
// complete fails closed as a synthetic critical conflict rather than
// reporting safety it cannot vouch for. The whole call is read-only and
// idempotent.
func (e *Engine) CheckAllocation(ctx context.Context, req model.AllocationRequest) model.ConflictCheckResult {
	checks := []struct {
		name string
		fn   func(context.Context, model.AllocationRequest) ([]model.Conflict, error)
	}{
		{"unit occupancy", e.checkUnitOccupancy},
		{"tenant existing lease", e.checkTenantExistingLease},
		{"date sanity", e.checkDateSanity},
		{"unit lifecycle", e.checkUnitLifecycle},
		{"rent plausibility", e.checkRentPlausibility},
	}

	var conflicts []model.Conflict
	for _, check := range checks {
		found, err := check.fn(ctx, req)
		if err != nil {
			conflicts = append(conflicts, model.Conflict{
				Type:     model.ConflictCheckFailed,
				Severity: model.SeverityCritical,
				Message:  fmt.Sprintf("The %s check could not complete: %v. Allocation is blocked until it can be verified.", check.name, err),
				Details:  map[string]interface{}{"check": check.name},
			})
			continue
		}
		conflicts = append(conflicts, found...)
	}

	hasCritical := false
	hasWarning := false
	for _, c := range conflicts {
		monitoring.ConflictsDetected.WithLabelValues(string(c.Type), string(c.Severity)).Inc()
		switch c.Severity {
		case model.SeverityCritical:
			hasCritical = true
		case model.SeverityWarning:
			hasWarning = true
		}
	}

	result := model.ConflictCheckResult{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
		CanProceed:   !hasCritical,
	}
	switch {
	case hasCritical:
		result.RecommendedAction = "resolve critical conflicts"
		monitoring.AllocationChecks.WithLabelValues("blocked").Inc()
	case hasWarning:
		result.RecommendedAction = "review warnings"
		monitoring.AllocationChecks.WithLabelValues("warnings").Inc()
	default:
		result.RecommendedAction = "proceed"
		monitoring.AllocationChecks.WithLabelValues("clear").Inc()
	}
	return result
}

func (e *Engine) checkUnitOccupancy(ctx context.Context, req model.AllocationRequest) ([]model.Conflict, error) {
	availability, err := e.CheckAvailability(ctx, req.UnitID, req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}
	if availability.Available {
		return nil, nil
	}

	unit, err := e.store.GetUnit(ctx, req.UnitID)
	if err != nil {
		return nil, err
	}

	resolutions := []model.Resolution{}
	if availability.AvailableFrom != nil {
		freeFrom := availability.AvailableFrom.AddDate(0, 0, 1)
		resolutions = append(resolutions, model.Resolution{
			ID:          "wait-until-available",
			Title:       "Wait until the unit is free",
			Description: fmt.Sprintf("Move the start date to %s, the day after the current lease ends.", freeFrom.Format("2006-01-02")),
			Action:      model.AdjustDates{NewStart: &freeFrom},
			Risk:        model.RiskLow,
			Automated:   true,
		})
	} else {
		resolutions = append(resolutions, model.Resolution{
			ID:          "wait-until-available",
			Title:       "Wait for the unit to become free",
			Description: "The current lease is open-ended; the unit has no known free date.",
			Action:      model.Wait{},
			Risk:        model.RiskLow,
			Automated:   false,
		})
	}

	suggest := model.SuggestAlternative{}
	if unit != nil {
		propertyID := unit.PropertyID
		suggest.PropertyID = &propertyID
	}
	resolutions = append(resolutions,
		model.Resolution{
			ID:          "suggest-alternative",
			Title:       "Find an alternative unit",
			Description: "Search for other units free in the requested range.",
			Action:      suggest,
			Risk:        model.RiskLow,
			Automated:   true,
		},
	)
	if availability.BlockingLeaseID != nil {
		resolutions = append(resolutions, model.Resolution{
			ID:          "terminate-existing",
			Title:       "Terminate the current lease",
			Description: fmt.Sprintf("End the lease held by %s. Requires explicit confirmation.", availability.OccupantName),
			Action:      model.TerminateExisting{LeaseID: *availability.BlockingLeaseID, RequiresConfirmation: true},
			Risk:        model.RiskHigh,
			Automated:   false,
		})
	}

	details := map[string]interface{}{
		"occupant": availability.OccupantName,
	}
	if availability.BlockingLeaseID != nil {
		details["blocking_lease_id"] = availability.BlockingLeaseID.String()
	}
	if availability.LeaseEnd != nil {
		details["lease_end"] = availability.LeaseEnd.Format("2006-01-02")
	}

	return []model.Conflict{{
		Type:        model.ConflictUnitOccupied,
		Severity:    model.SeverityCritical,
		Message:     fmt.Sprintf("Unit is occupied by %s for the requested period.", availability.OccupantName),
		Details:     details,
		Resolutions: resolutions,
	}}, nil
}

func (e *Engine) checkTenantExistingLease(ctx context.Context, req model.AllocationRequest) ([]model.Conflict, error) {
	existing, err := e.store.ActiveLeaseForTenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.UnitID == req.UnitID {
		return nil, nil
	}

	// Dual leases are unusual but deliberately allowed, so this is a
	// warning, not a blocker.
	return []model.Conflict{{
		Type:     model.ConflictTenantActiveLease,
		Severity: model.SeverityWarning,
		Message:  "Tenant already holds an active lease on another unit.",
		Details: map[string]interface{}{
			"existing_lease_id": existing.ID.String(),
			"existing_unit_id":  existing.UnitID.String(),
		},
		Resolutions: []model.Resolution{
			{
				ID:          "terminate-current",
				Title:       "Terminate the tenant's current lease",
				Description: "End the existing lease before starting the new one.",
				Action:      model.TerminateExisting{LeaseID: existing.ID, RequiresConfirmation: true},
				Risk:        model.RiskMedium,
				Automated:   false,
			},
			{
				ID:          "allow-dual-lease",
				Title:       "Allow the tenant to hold both leases",
				Description: "Proceed with two concurrent active leases for this tenant.",
				Action:      model.Override{Reason: "dual lease approved"},
				Risk:        model.RiskHigh,
				Automated:   false,
			},
		},
	}}, nil
}

func (e *Engine) checkDateSanity(_ context.Context, req model.AllocationRequest) ([]model.Conflict, error) {
	var conflicts []model.Conflict
	today := time.Now().UTC().Truncate(24 * time.Hour)

	if req.StartDate.Before(today) {
		snapped := today
		conflicts = append(conflicts, model.Conflict{
			Type:     model.ConflictStartDatePast,
			Severity: model.SeverityWarning,
			Message:  "Start date is in the past.",
			Details:  map[string]interface{}{"start_date": req.StartDate.Format("2006-01-02")},
			Resolutions: []model.Resolution{{
				ID:          "snap-start-to-today",
				Title:       "Start the lease today",
				Description: fmt.Sprintf("Move the start date to %s.", snapped.Format("2006-01-02")),
				Action:      model.AdjustDates{NewStart: &snapped},
				Risk:        model.RiskLow,
				Automated:   true,
			}},
		})
	}

	if req.EndDate != nil {
		if !req.EndDate.After(req.StartDate) {
			conflicts = append(conflicts, model.Conflict{
				Type:     model.ConflictDateOverlap,
				Severity: model.SeverityCritical,
				Message:  "End date is not after the start date.",
				Details: map[string]interface{}{
					"start_date": req.StartDate.Format("2006-01-02"),
					"end_date":   req.EndDate.Format("2006-01-02"),
				},
				Resolutions: []model.Resolution{{
					ID:          "remove-end-date",
					Title:       "Make the lease open-ended",
					Description: "Drop the end date so the lease runs until terminated.",
					Action:      model.AdjustDates{DropEndDate: true},
					Risk:        model.RiskLow,
					Automated:   true,
				}},
			})
		} else if req.EndDate.Sub(req.StartDate) < minLeaseDuration {
			extended := req.StartDate.AddDate(0, 0, 30)
			conflicts = append(conflicts, model.Conflict{
				Type:     model.ConflictShortDuration,
				Severity: model.SeverityWarning,
				Message:  "Lease duration is under 30 days.",
				Details: map[string]interface{}{
					"days": int(req.EndDate.Sub(req.StartDate).Hours() / 24),
				},
				Resolutions: []model.Resolution{{
					ID:          "extend-lease",
					Title:       "Extend the lease to 30 days",
					Description: fmt.Sprintf("Move the end date to %s.", extended.Format("2006-01-02")),
					Action:      model.AdjustDates{NewEnd: &extended},
					Risk:        model.RiskLow,
					Automated:   false,
				}},
			})
		}
	}

	return conflicts, nil
}

func (e *Engine) checkUnitLifecycle(ctx context.Context, req model.AllocationRequest) ([]model.Conflict, error) {
	unit, err := e.store.GetUnit(ctx, req.UnitID)
	if err != nil {
		return nil, err
	}
	if unit == nil {
		return nil, fmt.Errorf("unit %s not found", req.UnitID)
	}

	switch unit.Status {
	case model.UnitMaintenance:
		propertyID := unit.PropertyID
		return []model.Conflict{{
			Type:     model.ConflictUnitMaintenance,
			Severity: model.SeverityCritical,
			Message:  "Unit is under maintenance.",
			Details:  map[string]interface{}{"unit_label": unit.Label},
			Resolutions: []model.Resolution{
				{
					ID:          "wait-for-maintenance",
					Title:       "Wait for maintenance to finish",
					Description: "Defer the allocation until the unit returns to service.",
					Action:      model.Wait{},
					Risk:        model.RiskLow,
					Automated:   false,
				},
				{
					ID:          "suggest-alternative",
					Title:       "Find an alternative unit",
					Description: "Search for other units free in the requested range.",
					Action:      model.SuggestAlternative{PropertyID: &propertyID},
					Risk:        model.RiskLow,
					Automated:   true,
				},
			},
		}}, nil
	case model.UnitInactive:
		return e.inactiveConflict(unit, "Unit is inactive."), nil
	}

	if !unit.Active {
		return e.inactiveConflict(unit, "Unit is deactivated."), nil
	}

	property, err := e.store.GetProperty(ctx, unit.PropertyID)
	if err != nil {
		return nil, err
	}
	if property != nil && !property.Active {
		return e.inactiveConflict(unit, "The unit's parent property is inactive."), nil
	}

	return nil, nil
}

func (e *Engine) inactiveConflict(unit *model.Unit, message string) []model.Conflict {
	return []model.Conflict{{
		Type:     model.ConflictUnitInactive,
		Severity: model.SeverityCritical,
		Message:  message,
		Details:  map[string]interface{}{"unit_label": unit.Label},
		Resolutions: []model.Resolution{{
			ID:          "activate-unit",
			Title:       "Reactivate the unit",
			Description: "Return the unit to service. Requires authorization.",
			Action:      model.Override{Reason: "unit reactivation approved"},
			Risk:        model.RiskMedium,
			Automated:   false,
		}},
	}}
}

func (e *Engine) checkRentPlausibility(ctx context.Context, req model.AllocationRequest) ([]model.Conflict, error) {
	unit, err := e.store.GetUnit(ctx, req.UnitID)
	if err != nil {
		return nil, err
	}
	if unit == nil || unit.MonthlyRent == 0 {
		return nil, nil
	}

	diff := req.MonthlyRent - unit.MonthlyRent
	if diff < 0 {
		diff = -diff
	}
	if float64(diff) <= rentMismatchRatio*float64(unit.MonthlyRent) {
		return nil, nil
	}

	return []model.Conflict{{
		Type:     model.ConflictRentMismatch,
		Severity: model.SeverityWarning,
		Message:  "Proposed rent differs from the unit's standard rent by more than 20%.",
		Details: map[string]interface{}{
			"proposed_rent": req.MonthlyRent,
			"standard_rent": unit.MonthlyRent,
		},
		Resolutions: []model.Resolution{
			{
				ID:          "use-standard-rent",
				Title:       "Use the unit's standard rent",
				Description: "Replace the proposed rent with the unit's nominal rent.",
				Action:      model.AdjustRent{NewRent: unit.MonthlyRent},
				Risk:        model.RiskLow,
				Automated:   true,
			},
			{
				ID:          "approve-custom-rent",
				Title:       "Approve the custom rent",
				Description: "Keep the proposed rent. Requires confirmation.",
				Action:      model.Override{Reason: "custom rent approved"},
				Risk:        model.RiskMedium,
				Automated:   false,
			},
		},
	}}, nil
}
