package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carpoolhq/carpool-go/pkg/health"
	"github.com/carpoolhq/carpool-go/pkg/middleware"

	"github.com/carpoolhq/carpool-go/internal/service"
)

// RouterConfig carries the collaborators the router wires together.
type RouterConfig struct {
	RideService        *service.RideService
	ReservationService *service.ReservationService
	ReviewService      *service.ReviewService
	HealthHandler      *health.Handler
	TokenValidator     middleware.TokenValidator
	Logger             *slog.Logger
	PprofCIDRs         []string
}

// NewRouter creates a chi router with all carpool service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("carpool"))
	r.Use(middleware.Tracing("carpool"))
	r.Use(middleware.RequestLogger(cfg.Logger))

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, cfg.PprofCIDRs, cfg.Logger)

	rideHandler := NewRideHandler(cfg.RideService, cfg.Logger)
	reservationHandler := NewReservationHandler(cfg.ReservationService, cfg.Logger)
	reviewHandler := NewReviewHandler(cfg.ReviewService, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(cfg.TokenValidator))

		r.Route("/rides", func(r chi.Router) {
			r.Post("/", rideHandler.CreateRide)
			r.Get("/", rideHandler.ListRides)
			r.Get("/search", rideHandler.SearchRides)
			r.Get("/{id}", rideHandler.GetRide)
			r.Patch("/{id}/status", rideHandler.UpdateRideStatus)
			r.Get("/{id}/reservations", reservationHandler.ListRideReservations)
			r.Get("/{id}/reviews", reviewHandler.ListRideReviews)
			r.Get("/{id}/can-review", reviewHandler.CanReview)
		})

		r.Route("/reservations", func(r chi.Router) {
			r.Post("/", reservationHandler.CreateReservation)
			r.Get("/{id}", reservationHandler.GetReservation)
			r.Delete("/{id}", reservationHandler.CancelReservation)
		})

		r.Route("/riders/{id}", func(r chi.Router) {
			r.Get("/reservations", reservationHandler.ListRiderReservations)
			r.Get("/reviews", reviewHandler.ListRiderReviews)
		})

		r.Route("/reviews", func(r chi.Router) {
			r.Post("/", reviewHandler.CreateReview)
			r.Get("/{id}", reviewHandler.GetReview)
		})

		r.Route("/drivers/{id}", func(r chi.Router) {
			r.Get("/rides", rideHandler.ListDriverRides)
			r.Get("/rating", reviewHandler.DriverRating)
			r.Get("/reviews", reviewHandler.ListDriverReviews)
		})
	})

	return r
}
