package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/carpoolhq/carpool-go/pkg/httputil"
	pkgkafka "github.com/carpoolhq/carpool-go/pkg/kafka"
	"github.com/carpoolhq/carpool-go/pkg/middleware"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/internal/event"
	"github.com/carpoolhq/carpool-go/internal/service"
)

// Fixed IDs used across the handler tests. Path parameters go through UUID
// parsing, so they have to be well formed.
const (
	testRideID        = "550e8400-e29b-41d4-a716-446655440001"
	testDriverID      = "550e8400-e29b-41d4-a716-446655440002"
	testRiderID       = "550e8400-e29b-41d4-a716-446655440003"
	testReservationID = "550e8400-e29b-41d4-a716-446655440004"
	testReviewID      = "550e8400-e29b-41d4-a716-446655440005"
)

// --- Mock RideRepository ---

type mockRideRepository struct {
	mock.Mock
}

func (m *mockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	args := m.Called(ctx, ride)
	return args.Error(0)
}

func (m *mockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Ride), args.Error(1)
}

func (m *mockRideRepository) ListActive(ctx context.Context, page, perPage int) ([]domain.Ride, int, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]domain.Ride), args.Int(1), args.Error(2)
}

func (m *mockRideRepository) Search(ctx context.Context, origin, destination string, date *time.Time, page, perPage int) ([]domain.Ride, int, error) {
	args := m.Called(ctx, origin, destination, date, page, perPage)
	return args.Get(0).([]domain.Ride), args.Int(1), args.Error(2)
}

func (m *mockRideRepository) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *mockRideRepository) ListUpcomingByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *mockRideRepository) ListPastByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	args := m.Called(ctx, driverID)
	return args.Get(0).([]domain.Ride), args.Error(1)
}

func (m *mockRideRepository) UpdateStatus(ctx context.Context, id, status string) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockRideRepository) TryReserveSeats(ctx context.Context, rideID string, seats int) error {
	args := m.Called(ctx, rideID, seats)
	return args.Error(0)
}

func (m *mockRideRepository) ReleaseSeats(ctx context.Context, rideID string, seats int) error {
	args := m.Called(ctx, rideID, seats)
	return args.Error(0)
}

// --- Mock ReservationRepository ---

type mockReservationRepository struct {
	mock.Mock
}

func (m *mockReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	args := m.Called(ctx, reservation)
	return args.Error(0)
}

func (m *mockReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *mockReservationRepository) GetByRideAndRider(ctx context.Context, rideID, riderID string) (*domain.Reservation, error) {
	args := m.Called(ctx, rideID, riderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *mockReservationRepository) HasConfirmedByRideAndRider(ctx context.Context, rideID, riderID string) (bool, error) {
	args := m.Called(ctx, rideID, riderID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReservationRepository) ListByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	args := m.Called(ctx, riderID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *mockReservationRepository) ListUpcomingByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	args := m.Called(ctx, riderID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *mockReservationRepository) ListPastByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	args := m.Called(ctx, riderID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *mockReservationRepository) ListByRide(ctx context.Context, rideID string) ([]domain.Reservation, error) {
	args := m.Called(ctx, rideID)
	return args.Get(0).([]domain.Reservation), args.Error(1)
}

func (m *mockReservationRepository) Cancel(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Mock ReviewRepository ---

type mockReviewRepository struct {
	mock.Mock
}

func (m *mockReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *mockReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ExistsByRideAndReviewer(ctx context.Context, rideID, reviewerID string) (bool, error) {
	args := m.Called(ctx, rideID, reviewerID)
	return args.Bool(0), args.Error(1)
}

func (m *mockReviewRepository) ListByDriver(ctx context.Context, driverID string, page, perPage int) ([]domain.Review, int, error) {
	args := m.Called(ctx, driverID, page, perPage)
	return args.Get(0).([]domain.Review), args.Int(1), args.Error(2)
}

func (m *mockReviewRepository) ListRecentByDriver(ctx context.Context, driverID string, limit int) ([]domain.Review, error) {
	args := m.Called(ctx, driverID, limit)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByReviewer(ctx context.Context, reviewerID string) ([]domain.Review, error) {
	args := m.Called(ctx, reviewerID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) ListByRide(ctx context.Context, rideID string) ([]domain.Review, error) {
	args := m.Called(ctx, rideID)
	return args.Get(0).([]domain.Review), args.Error(1)
}

func (m *mockReviewRepository) GetDriverSummary(ctx context.Context, driverID string) (*domain.RatingSummary, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingSummary), args.Error(1)
}

// --- Mock UserRepository ---

type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *mockUserRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	args := m.Called(ctx, id, rating, count)
	return args.Error(0)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	kafkaProducer := pkgkafka.NewProducer(kafkaCfg, logger)
	return event.NewProducer(kafkaProducer, logger)
}

// testRepos bundles the mock repositories behind one router.
type testRepos struct {
	rides        *mockRideRepository
	reservations *mockReservationRepository
	reviews      *mockReviewRepository
	users        *mockUserRepository
}

func newTestRepos() *testRepos {
	return &testRepos{
		rides:        new(mockRideRepository),
		reservations: new(mockReservationRepository),
		reviews:      new(mockReviewRepository),
		users:        new(mockUserRepository),
	}
}

// setupTestRouter creates a chi router matching the production route layout.
// The auth middleware is mounted with a stub validator so every request made
// with a bearer token is attributed to callerID.
func setupTestRouter(repos *testRepos, callerID string) *chi.Mux {
	logger := testLogger()
	producer := testEventProducer()

	rideService := service.NewRideService(repos.rides, producer, logger)
	inventory := service.NewInventoryService(repos.rides, producer, logger)
	reservationService := service.NewReservationService(repos.reservations, repos.rides, inventory, producer, logger)
	reviewService := service.NewReviewService(repos.reviews, repos.rides, repos.reservations, repos.users, nil, producer, logger)

	rideHandler := NewRideHandler(rideService, logger)
	reservationHandler := NewReservationHandler(reservationService, logger)
	reviewHandler := NewReviewHandler(reviewService, logger)

	validate := func(token string) (*middleware.Claims, error) {
		return &middleware.Claims{UserID: callerID, Role: "USER"}, nil
	}

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(validate))

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

// authedRequest builds a request carrying the bearer token the stub
// validator accepts.
func authedRequest(method, target string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer test-token")
	return req
}

// decodeResponse reads the response body into the httputil.Response struct.
func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) httputil.Response {
	t.Helper()
	var resp httputil.Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	return resp
}

// sampleRide returns a bookable ride offered by testDriverID.
func sampleRide() *domain.Ride {
	now := time.Now().UTC()
	return &domain.Ride{
		ID:             testRideID,
		DriverID:       testDriverID,
		Origin:         "Sofia",
		Destination:    "Plovdiv",
		Description:    "Leaving from the NDK underpass",
		DepartureTime:  now.Add(24 * time.Hour),
		PricePerSeat:   1500,
		TotalSeats:     4,
		AvailableSeats: 3,
		Status:         domain.RideStatusActive,
		CreatedAt:      now.Add(-time.Hour),
		UpdatedAt:      now.Add(-time.Hour),
	}
}

// departedRide returns a ride whose departure time has already passed.
func departedRide() *domain.Ride {
	ride := sampleRide()
	ride.DepartureTime = time.Now().UTC().Add(-3 * time.Hour)
	return ride
}

// sampleReservation returns a confirmed reservation held by testRiderID.
func sampleReservation() *domain.Reservation {
	now := time.Now().UTC()
	return &domain.Reservation{
		ID:         testReservationID,
		RideID:     testRideID,
		RiderID:    testRiderID,
		Seats:      2,
		Status:     domain.ReservationStatusConfirmed,
		TotalPrice: 3000,
		CreatedAt:  now.Add(-time.Hour),
		UpdatedAt:  now.Add(-time.Hour),
	}
}

// sampleReview returns a review of testDriverID written by testRiderID.
func sampleReview() *domain.Review {
	return &domain.Review{
		ID:         testReviewID,
		RideID:     testRideID,
		ReviewerID: testRiderID,
		DriverID:   testDriverID,
		Rating:     5,
		Comment:    "Great driver, on time",
		CreatedAt:  time.Now().UTC().Add(-time.Hour),
	}
}
