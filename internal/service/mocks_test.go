package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/stretchr/testify/mock"

	pkgkafka "github.com/carpoolhq/carpool-go/pkg/kafka"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/internal/event"
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

// --- Mock RatingCache ---

type mockRatingCache struct {
	mock.Mock
}

func (m *mockRatingCache) Get(ctx context.Context, driverID string) (*domain.RatingSummary, error) {
	args := m.Called(ctx, driverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RatingSummary), args.Error(1)
}

func (m *mockRatingCache) Set(ctx context.Context, summary *domain.RatingSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *mockRatingCache) Invalidate(ctx context.Context, driverID string) error {
	args := m.Called(ctx, driverID)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer builds an event producer against an unreachable broker.
// Publish failures are logged and swallowed by the services, so tests only
// exercise the code path, not the broker.
func newTestProducer() *event.Producer {
	logger := newTestLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}
