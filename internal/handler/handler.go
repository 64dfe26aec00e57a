package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/rentfold/allocation-engine/internal/model"
	"github.com/rentfold/allocation-engine/internal/store"
)

// Engine is the slice of the allocation engine the HTTP layer needs.
// Implemented by *service.Engine.
type Engine interface {
	CheckAllocation(ctx context.Context, req model.AllocationRequest) model.ConflictCheckResult
	Allocate(ctx context.Context, tenantID, unitID uuid.UUID, terms model.LeaseTerms, requestedBy uuid.UUID) (uuid.UUID, error)
	Reallocate(ctx context.Context, req model.ReallocationRequest) error
	CheckAvailability(ctx context.Context, unitID uuid.UUID, start time.Time, end *time.Time) (model.Availability, error)
	ListAvailableUnits(ctx context.Context, start time.Time, end *time.Time, propertyID *uuid.UUID) ([]model.Unit, error)
	ExecuteResolution(ctx context.Context, res model.Resolution, req model.AllocationRequest) (model.ResolutionOutcome, error)
}

// Handler exposes the engine to UI and workflow collaborators over JSON.
type Handler struct {
	engine   Engine
	validate *validator.Validate
}

func New(engine Engine) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(),
	}
}

// Router builds the API routes.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/allocations/check", h.checkAllocation).Methods(http.MethodPost)
	api.HandleFunc("/allocations", h.allocate).Methods(http.MethodPost)
	api.HandleFunc("/reallocations", h.reallocate).Methods(http.MethodPost)
	api.HandleFunc("/units/{id}/availability", h.checkAvailability).Methods(http.MethodGet)
	api.HandleFunc("/units/available", h.listAvailableUnits).Methods(http.MethodGet)
	api.HandleFunc("/resolutions/execute", h.executeResolution).Methods(http.MethodPost)
	return r
}

func (h *Handler) checkAllocation(w http.ResponseWriter, r *http.Request) {
	var body checkAllocationRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result := h.engine.CheckAllocation(r.Context(), req)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) allocate(w http.ResponseWriter, r *http.Request) {
	var body allocateRequest
	if !h.decode(w, r, &body) {
		return
	}
	terms, err := body.toTerms()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	leaseID, err := h.engine.Allocate(r.Context(), body.TenantID, body.UnitID, terms, body.RequestedBy)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, allocateResponse{LeaseID: leaseID})
}

func (h *Handler) reallocate(w http.ResponseWriter, r *http.Request) {
	var body reallocateRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.engine.Reallocate(r.Context(), req); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) checkAvailability(w http.ResponseWriter, r *http.Request) {
	unitID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid unit id"))
		return
	}
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	availability, err := h.engine.CheckAvailability(r.Context(), unitID, start, end)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, availability)
}

func (h *Handler) listAvailableUnits(w http.ResponseWriter, r *http.Request) {
	start, end, err := parseDateRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var propertyID *uuid.UUID
	if raw := r.URL.Query().Get("property_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid property_id"))
			return
		}
		propertyID = &id
	}

	units, err := h.engine.ListAvailableUnits(r.Context(), start, end, propertyID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if units == nil {
		units = []model.Unit{}
	}
	writeJSON(w, http.StatusOK, units)
}

func (h *Handler) executeResolution(w http.ResponseWriter, r *http.Request) {
	var body executeResolutionRequest
	if !h.decode(w, r, &body) {
		return
	}
	req, err := body.Request.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	outcome, err := h.engine.ExecuteResolution(r.Context(), body.Resolution, req)
	if err != nil && !outcome.Success {
		log.Warn().Err(err).Str("resolution", body.Resolution.ID).Msg("Resolution execution failed")
		writeJSON(w, http.StatusUnprocessableEntity, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// decode reads, validates and reports; returns false when a response was
// already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

func parseDateRange(r *http.Request) (time.Time, *time.Time, error) {
	rawStart := r.URL.Query().Get("start")
	if rawStart == "" {
		return time.Time{}, nil, errors.New("start is required")
	}
	start, err := time.Parse(dateLayout, rawStart)
	if err != nil {
		return time.Time{}, nil, errors.New("invalid start date")
	}
	var end *time.Time
	if rawEnd := r.URL.Query().Get("end"); rawEnd != "" {
		parsed, err := time.Parse(dateLayout, rawEnd)
		if err != nil {
			return time.Time{}, nil, errors.New("invalid end date")
		}
		end = &parsed
	}
	return start, end, nil
}

func writeEngineError(w http.ResponseWriter, err error) {
	var cv *store.ConstraintViolation
	switch {
	case errors.As(err, &cv):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrUnitUnavailable), errors.Is(err, store.ErrNoActiveLease):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrTimeout):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		log.Error().Err(err).Msg("Internal error")
		writeError(w, http.StatusInternalServerError, errors.New("internal server error"))
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
