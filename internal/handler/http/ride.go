package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/carpoolhq/carpool-go/pkg/httputil"
	"github.com/carpoolhq/carpool-go/pkg/middleware"
	"github.com/carpoolhq/carpool-go/pkg/validator"

	"github.com/carpoolhq/carpool-go/internal/service"
)

// RideHandler handles HTTP requests for ride endpoints.
type RideHandler struct {
	service *service.RideService
	logger  *slog.Logger
}

// NewRideHandler creates a new ride HTTP handler.
func NewRideHandler(svc *service.RideService, logger *slog.Logger) *RideHandler {
	return &RideHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateRideRequest is the JSON request body for publishing a ride.
type CreateRideRequest struct {
	Origin        string    `json:"origin" validate:"required,max=255"`
	Destination   string    `json:"destination" validate:"required,max=255"`
	Description   string    `json:"description" validate:"max=1000"`
	DepartureTime time.Time `json:"departure_time" validate:"required"`
	PricePerSeat  int64     `json:"price_per_seat" validate:"gte=0"`
	TotalSeats    int       `json:"total_seats" validate:"required,gte=1,lte=8"`
}

// UpdateRideStatusRequest is the JSON request body for a status transition.
type UpdateRideStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE FULL COMPLETED CANCELLED"`
}

// --- Handlers ---

// CreateRide handles POST /api/v1/rides
func (h *RideHandler) CreateRide(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateRideRequest
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

	input := service.CreateRideInput{
		DriverID:      middleware.UserIDFromContext(r.Context()),
		Origin:        req.Origin,
		Destination:   req.Destination,
		Description:   req.Description,
		DepartureTime: req.DepartureTime,
		PricePerSeat:  req.PricePerSeat,
		TotalSeats:    req.TotalSeats,
	}

	ride, err := h.service.CreateRide(r.Context(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: ride})
}

// ListRides handles GET /api/v1/rides
func (h *RideHandler) ListRides(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := parsePageParams(w, r)
	if !ok {
		return
	}

	result, err := h.service.ListActive(r.Context(), page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Rides, result.TotalCount, result.Page, result.PerPage))
}

// SearchRides handles GET /api/v1/rides/search
func (h *RideHandler) SearchRides(w http.ResponseWriter, r *http.Request) {
	page, perPage, ok := parsePageParams(w, r)
	if !ok {
		return
	}

	var date *time.Time
	if v := r.URL.Query().Get("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "date must be in YYYY-MM-DD format"},
			})
			return
		}
		date = &parsed
	}

	origin := r.URL.Query().Get("origin")
	destination := r.URL.Query().Get("destination")

	result, err := h.service.SearchRides(r.Context(), origin, destination, date, page, perPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(result.Rides, result.TotalCount, result.Page, result.PerPage))
}

// GetRide handles GET /api/v1/rides/{id}
func (h *RideHandler) GetRide(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	ride, err := h.service.GetRide(r.Context(), id.String())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ride})
}

// UpdateRideStatus handles PATCH /api/v1/rides/{id}/status
func (h *RideHandler) UpdateRideStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateRideStatusRequest
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

	callerID := middleware.UserIDFromContext(r.Context())
	ride, err := h.service.UpdateRideStatus(r.Context(), id.String(), callerID, req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: ride})
}

// ListDriverRides handles GET /api/v1/drivers/{id}/rides
func (h *RideHandler) ListDriverRides(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var (
		rides any
		err   error
	)
	switch r.URL.Query().Get("window") {
	case "":
		rides, err = h.service.ListByDriver(r.Context(), id.String())
	case "upcoming":
		rides, err = h.service.ListUpcomingByDriver(r.Context(), id.String())
	case "past":
		rides, err = h.service.ListPastByDriver(r.Context(), id.String())
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

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: rides})
}

// parsePageParams parses page/per_page query parameters with the shared
// defaults. A false return means an error response has been written.
func parsePageParams(w http.ResponseWriter, r *http.Request) (page, perPage int, ok bool) {
	page, perPage = 1, 20

	if v := r.URL.Query().Get("page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "page must be a valid positive integer"},
			})
			return 0, 0, false
		}
		page = parsed
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 100 {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "per_page must be a valid integer between 1 and 100"},
			})
			return 0, 0, false
		}
		perPage = parsed
	}

	return page, perPage, true
}
