package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ConflictType tags the kind of problem a conflict check detected.
type ConflictType string

const (
	ConflictUnitOccupied      ConflictType = "UNIT_OCCUPIED"
	ConflictTenantActiveLease ConflictType = "TENANT_ACTIVE_LEASE"
	ConflictDateOverlap       ConflictType = "DATE_OVERLAP"
	ConflictStartDatePast     ConflictType = "START_DATE_PAST"
	ConflictShortDuration     ConflictType = "SHORT_DURATION"
	ConflictUnitMaintenance   ConflictType = "UNIT_MAINTENANCE"
	ConflictUnitInactive      ConflictType = "UNIT_INACTIVE"
	ConflictRentMismatch      ConflictType = "RENT_MISMATCH"
	ConflictCheckFailed       ConflictType = "CHECK_FAILED"
)

// Severity ranks a conflict. Only critical conflicts block an allocation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// RiskLevel ranks how dangerous applying a resolution is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Conflict is an ephemeral value produced by a conflict check. It is never
// persisted; every check recomputes it from current store state.
type Conflict struct {
	Type        ConflictType           `json:"type"`
	Severity    Severity               `json:"severity"`
	Message     string                 `json:"message"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Resolutions []Resolution           `json:"resolutions,omitempty"`
}

// Resolution describes one way to address a conflict. Automated resolutions
// may be applied without human confirmation.
type Resolution struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Action      Action    `json:"-"`
	Risk        RiskLevel `json:"risk"`
	Automated   bool      `json:"automated"`
}

// Action is the closed set of resolution action kinds. Each concrete type
// carries only the parameters relevant to that kind, so handling code can
// switch exhaustively instead of digging through an untyped parameter bag.
type Action interface {
	Kind() string
}

// TerminateExisting terminates a named lease. Never automated.
type TerminateExisting struct {
	LeaseID              uuid.UUID `json:"lease_id"`
	RequiresConfirmation bool      `json:"requires_confirmation"`
}

// AdjustDates rewrites the requested date range.
type AdjustDates struct {
	NewStart    *time.Time `json:"new_start,omitempty"`
	NewEnd      *time.Time `json:"new_end,omitempty"`
	DropEndDate bool       `json:"drop_end_date,omitempty"`
}

// AdjustRent rewrites the proposed monthly rent.
type AdjustRent struct {
	NewRent int64 `json:"new_rent"`
}

// SuggestAlternative searches for other units free in the requested range.
type SuggestAlternative struct {
	PropertyID *uuid.UUID `json:"property_id,omitempty"`
}

// Override acknowledges a warning and proceeds unchanged.
type Override struct {
	Reason string `json:"reason"`
}

// Wait defers the allocation. Until nil means indefinitely.
type Wait struct {
	Until *time.Time `json:"until,omitempty"`
}

func (TerminateExisting) Kind() string  { return "terminate-existing" }
func (AdjustDates) Kind() string        { return "adjust-dates" }
func (AdjustRent) Kind() string         { return "adjust-rent" }
func (SuggestAlternative) Kind() string { return "suggest-alternative" }
func (Override) Kind() string           { return "override" }
func (Wait) Kind() string               { return "wait" }

type resolutionJSON struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	ActionKind  string          `json:"action"`
	Params      json.RawMessage `json:"params,omitempty"`
	Risk        RiskLevel       `json:"risk"`
	Automated   bool            `json:"automated"`
}

// MarshalJSON flattens the action union into an "action" tag plus "params".
func (r Resolution) MarshalJSON() ([]byte, error) {
	out := resolutionJSON{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Risk:        r.Risk,
		Automated:   r.Automated,
	}
	if r.Action != nil {
		out.ActionKind = r.Action.Kind()
		params, err := json.Marshal(r.Action)
		if err != nil {
			return nil, err
		}
		out.Params = params
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores the action union from its tagged form.
func (r *Resolution) UnmarshalJSON(data []byte) error {
	var in resolutionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.ID = in.ID
	r.Title = in.Title
	r.Description = in.Description
	r.Risk = in.Risk
	r.Automated = in.Automated
	r.Action = nil
	if in.ActionKind == "" {
		return nil
	}

	params := in.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	switch in.ActionKind {
	case "terminate-existing":
		var a TerminateExisting
		if err := json.Unmarshal(params, &a); err != nil {
			return err
		}
		r.Action = a
	case "adjust-dates":
		var a AdjustDates
		if err := json.Unmarshal(params, &a); err != nil {
			return err
		}
		r.Action = a
	case "adjust-rent":
		var a AdjustRent
		if err := json.Unmarshal(params, &a); err != nil {
			return err
		}
		r.Action = a
	case "suggest-alternative":
		var a SuggestAlternative
		if err := json.Unmarshal(params, &a); err != nil {
			return err
		}
		r.Action = a
	case "override":
		var a Override
		if err := json.Unmarshal(params, &a); err != nil {
			return err
		}
		r.Action = a
	case "wait":
		var a Wait
		if err := json.Unmarshal(params, &a); err != nil {
			return err
		}
		r.Action = a
	default:
		return fmt.Errorf("unknown resolution action %q", in.ActionKind)
	}
	return nil
}
