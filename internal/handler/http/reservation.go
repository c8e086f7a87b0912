package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
	"github.com/carpoolhq/carpool-go/pkg/httputil"
	"github.com/carpoolhq/carpool-go/pkg/middleware"
	"github.com/carpoolhq/carpool-go/pkg/validator"

	"github.com/carpoolhq/carpool-go/internal/service"
)

// ReservationHandler handles HTTP requests for reservation endpoints.
type ReservationHandler struct {
	service *service.ReservationService
	logger  *slog.Logger
}

// NewReservationHandler creates a new reservation HTTP handler.
func NewReservationHandler(svc *service.ReservationService, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: svc,
		logger:  logger,
	}
}

// CreateReservationRequest is the JSON request body for booking seats. The
// note is an optional message shown to the driver.
type CreateReservationRequest struct {
	RideID string `json:"ride_id" validate:"required,uuid"`
	Seats  int    `json:"seats" validate:"required,gte=1"`
	Note   string `json:"note" validate:"max=1000"`
}

// CreateReservation handles POST /api/v1/reservations
func (h *ReservationHandler) CreateReservation(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	riderID := middleware.UserIDFromContext(r.Context())
	reservation, err := h.service.CreateReservation(r.Context(), req.RideID, riderID, req.Seats, req.Note)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: reservation})
}

// CancelReservation handles DELETE /api/v1/reservations/{id}
func (h *ReservationHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	callerID := middleware.UserIDFromContext(r.Context())
	if err := h.service.CancelReservation(r.Context(), id.String(), callerID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetReservation handles GET /api/v1/reservations/{id}
func (h *ReservationHandler) GetReservation(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	callerID := middleware.UserIDFromContext(r.Context())
	reservation, err := h.service.GetReservation(r.Context(), id.String(), callerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reservation})
}

// ListRiderReservations handles GET /api/v1/riders/{id}/reservations
func (h *ReservationHandler) ListRiderReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// A rider's booking history is theirs alone.
	if middleware.UserIDFromContext(r.Context()) != id.String() {
		httputil.WriteError(w, r, apperrors.Forbidden("cannot list another rider's reservations"), h.logger)
		return
	}

	var (
		reservations any
		err          error
	)
	switch r.URL.Query().Get("window") {
	case "":
		reservations, err = h.service.ListByRider(r.Context(), id.String())
	case "upcoming":
		reservations, err = h.service.ListUpcomingByRider(r.Context(), id.String())
	case "past":
		reservations, err = h.service.ListPastByRider(r.Context(), id.String())
	default:
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "window must be upcoming or past"},
		})
		return
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reservations})
}

// ListRideReservations handles GET /api/v1/rides/{id}/reservations
func (h *ReservationHandler) ListRideReservations(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	callerID := middleware.UserIDFromContext(r.Context())
	reservations, err := h.service.ListByRide(r.Context(), id.String(), callerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: reservations})
}
