package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rentfold/allocation-engine/internal/model"
)

// ErrResolutionFailed marks a resolution that could not be applied. Other
// resolutions and conflicts are unaffected.
var ErrResolutionFailed = errors.New("resolution execution failed")

// ExecuteResolution applies one resolution to the original request.
// Executing a resolution never commits a lease: pure action kinds return a
// transformed request for the caller to re-check and submit, delegated
// kinds (alternative search, termination approval) run their lookup or
// queue their workflow and leave the request untouched. Every kind is
// idempotent.
func (e *Engine) ExecuteResolution(ctx context.Context, res model.Resolution, req model.AllocationRequest) (model.ResolutionOutcome, error) {
	switch action := res.Action.(type) {
	case model.AdjustDates:
		updated := req
		if action.NewStart != nil {
			updated.StartDate = *action.NewStart
		}
		if action.DropEndDate {
			updated.EndDate = nil
		} else if action.NewEnd != nil {
			end := *action.NewEnd
			updated.EndDate = &end
		}
		return model.ResolutionOutcome{
			Success:        true,
			Message:        "Request dates adjusted. Re-run the conflict check before allocating.",
			UpdatedRequest: &updated,
		}, nil

	case model.AdjustRent:
		updated := req
		updated.MonthlyRent = action.NewRent
		return model.ResolutionOutcome{
			Success:        true,
			Message:        "Proposed rent adjusted. Re-run the conflict check before allocating.",
			UpdatedRequest: &updated,
		}, nil

	case model.SuggestAlternative:
		units, err := e.store.ListAvailableUnits(ctx, req.StartDate, req.EndDate, action.PropertyID)
		if err != nil {
			return model.ResolutionOutcome{
				Success: false,
				Message: "Could not search for alternative units.",
			}, fmt.Errorf("%w: %v", ErrResolutionFailed, err)
		}
		message := fmt.Sprintf("Found %d alternative unit(s) free in the requested range.", len(units))
		if len(units) == 0 {
			message = "No alternative units are free in the requested range."
		}
		return model.ResolutionOutcome{
			Success:          true,
			Message:          message,
			AlternativeUnits: units,
		}, nil

	case model.TerminateExisting:
		// Termination is never applied here; it is queued for manual
		// approval with its own audit trail.
		e.audit.Record(model.AllocationEvent{
			Kind:     "termination_requested",
			TenantID: req.TenantID,
			UnitID:   req.UnitID,
			LeaseID:  &action.LeaseID,
			ActorID:  req.RequestedBy,
			Details:  map[string]interface{}{"resolution_id": res.ID},
		})
		return model.ResolutionOutcome{
			Success: true,
			Message: fmt.Sprintf("Termination of lease %s submitted for approval.", action.LeaseID),
		}, nil

	case model.Override:
		e.audit.Record(model.AllocationEvent{
			Kind:     "override_acknowledged",
			TenantID: req.TenantID,
			UnitID:   req.UnitID,
			ActorID:  req.RequestedBy,
			Details:  map[string]interface{}{"resolution_id": res.ID, "reason": action.Reason},
		})
		updated := req
		return model.ResolutionOutcome{
			Success:        true,
			Message:        "Warning acknowledged; the request may proceed unchanged.",
			UpdatedRequest: &updated,
		}, nil

	case model.Wait:
		if action.Until != nil {
			updated := req
			updated.StartDate = *action.Until
			return model.ResolutionOutcome{
				Success:        true,
				Message:        fmt.Sprintf("Allocation deferred to %s.", action.Until.Format("2006-01-02")),
				UpdatedRequest: &updated,
			}, nil
		}
		return model.ResolutionOutcome{
			Success: true,
			Message: "Allocation deferred until the unit becomes available.",
		}, nil

	case nil:
		return model.ResolutionOutcome{
			Success: false,
			Message: "Resolution carries no action.",
		}, ErrResolutionFailed

	default:
		return model.ResolutionOutcome{
			Success: false,
			Message: fmt.Sprintf("Unsupported resolution action %q.", action.Kind()),
		}, ErrResolutionFailed
	}
}
