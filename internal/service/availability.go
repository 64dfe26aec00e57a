package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/rentfold/allocation-engine/internal/model"
	"github.com/rentfold/allocation-engine/internal/monitoring"
)

// overlaps reports whether an existing lease's date range blocks a
// requested range. Dates are inclusive: a lease ending on the requested
// start date still blocks it. Nil ends mean open-ended.
func overlaps(leaseStart time.Time, leaseEnd *time.Time, reqStart time.Time, reqEnd *time.Time) bool {
	if leaseEnd != nil && leaseEnd.Before(reqStart) {
		return false
	}
	if reqEnd != nil && leaseStart.After(*reqEnd) {
		return false
	}
	return true
}

// CheckAvailability reports whether a unit is free for the requested range.
// When it is not, the result carries the blocking lease, the occupant's
// display name and the blocking lease's end date (nil when open-ended);
// since ranges are inclusive the unit is free from the day after that
// date. The check is read-only and advisory: it
// may be stale by the time a write lands, which is why Reallocate re-runs
// it inside its transaction.
func (e *Engine) CheckAvailability(ctx context.Context, unitID uuid.UUID, start time.Time, end *time.Time) (model.Availability, error) {
	leases, err := e.store.ActiveLeasesForUnit(ctx, unitID)
	if err != nil {
		return model.Availability{}, err
	}

	// Earliest-starting conflicting lease wins. More than one active lease
	// on a unit means the store invariant was breached somewhere; the
	// resolver still answers, but loudly.
	var blocking *model.Lease
	conflicting := 0
	for i := range leases {
		lease := leases[i]
		if !overlaps(lease.StartDate, lease.EndDate, start, end) {
			continue
		}
		conflicting++
		if blocking == nil || lease.StartDate.Before(blocking.StartDate) {
			blocking = &leases[i]
		}
	}
	if conflicting > 1 {
		monitoring.Alert("multiple active leases on unit", map[string]string{
			"unit_id": unitID.String(),
		})
	}
	if blocking == nil {
		return model.Availability{Available: true}, nil
	}

	occupantName := ""
	if tenant, err := e.store.GetTenant(ctx, blocking.TenantID); err == nil && tenant != nil {
		occupantName = tenant.FullName
	}

	return model.Availability{
		Available:       false,
		BlockingLeaseID: &blocking.ID,
		OccupantName:    occupantName,
		LeaseStart:      &blocking.StartDate,
		LeaseEnd:        blocking.EndDate,
		AvailableFrom:   blocking.EndDate,
	}, nil
}
