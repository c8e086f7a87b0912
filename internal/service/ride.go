package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/internal/event"
	"github.com/carpoolhq/carpool-go/internal/repository"
)

// Field length limits for ride input.
const (
	maxLocationLen    = 255
	maxDescriptionLen = 1000
)

// CreateRideInput carries the fields for creating a ride.
type CreateRideInput struct {
	DriverID      string
	Origin        string
	Destination   string
	Description   string
	DepartureTime time.Time
	PricePerSeat  int64
	TotalSeats    int
}

// RideListResult is a paginated page of rides.
type RideListResult struct {
	Rides      []domain.Ride
	TotalCount int
	Page       int
	PerPage    int
}

// RideService implements the ride catalog: creation, lookup, search, and
// driver-controlled status transitions.
type RideService struct {
	rideRepo repository.RideRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewRideService creates a new ride service.
func NewRideService(rideRepo repository.RideRepository, producer *event.Producer, logger *slog.Logger) *RideService {
	return &RideService{
		rideRepo: rideRepo,
		producer: producer,
		logger:   logger,
	}
}

// CreateRide publishes a new ride offered by a driver. Available seats start
// equal to total seats.
func (s *RideService) CreateRide(ctx context.Context, input CreateRideInput) (*domain.Ride, error) {
	if err := validateRideInput(input); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ride := &domain.Ride{
		ID:             uuid.New().String(),
		DriverID:       input.DriverID,
		Origin:         strings.TrimSpace(input.Origin),
		Destination:    strings.TrimSpace(input.Destination),
		Description:    strings.TrimSpace(input.Description),
		DepartureTime:  input.DepartureTime.UTC(),
		PricePerSeat:   input.PricePerSeat,
		TotalSeats:     input.TotalSeats,
		AvailableSeats: input.TotalSeats,
		Status:         domain.RideStatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, fmt.Errorf("create ride: %w", err)
	}

	s.logger.InfoContext(ctx, "ride created",
		slog.String("ride_id", ride.ID),
		slog.String("driver_id", ride.DriverID),
		slog.Int("total_seats", ride.TotalSeats),
	)

	if err := s.producer.PublishRideCreated(ctx, ride); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ride.created event",
			slog.String("ride_id", ride.ID),
			slog.String("error", err.Error()),
		)
	}

	return ride, nil
}

// GetRide retrieves a ride by ID.
func (s *RideService) GetRide(ctx context.Context, rideID string) (*domain.Ride, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("ride", rideID)
		}
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return ride, nil
}

// ListActive returns bookable rides departing in the future, soonest first.
func (s *RideService) ListActive(ctx context.Context, page, perPage int) (*RideListResult, error) {
	rides, total, err := s.rideRepo.ListActive(ctx, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list active rides: %w", err)
	}
	return &RideListResult{Rides: rides, TotalCount: total, Page: page, PerPage: perPage}, nil
}

// SearchRides returns bookable rides matching origin/destination substrings
// and an optional departure date.
func (s *RideService) SearchRides(ctx context.Context, origin, destination string, date *time.Time, page, perPage int) (*RideListResult, error) {
	rides, total, err := s.rideRepo.Search(ctx, strings.TrimSpace(origin), strings.TrimSpace(destination), date, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("search rides: %w", err)
	}
	return &RideListResult{Rides: rides, TotalCount: total, Page: page, PerPage: perPage}, nil
}

// ListByDriver returns all rides offered by a driver.
func (s *RideService) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	rides, err := s.rideRepo.ListByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list rides by driver: %w", err)
	}
	return rides, nil
}

// ListUpcomingByDriver returns the driver's rides departing in the future.
func (s *RideService) ListUpcomingByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	rides, err := s.rideRepo.ListUpcomingByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list upcoming rides by driver: %w", err)
	}
	return rides, nil
}

// ListPastByDriver returns the driver's rides that already departed.
func (s *RideService) ListPastByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	rides, err := s.rideRepo.ListPastByDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("list past rides by driver: %w", err)
	}
	return rides, nil
}

// UpdateRideStatus transitions a ride's status. Only the offering driver may
// do this, and only along the permitted transitions; FULL is derived from
// seat counts and cannot be set directly.
func (s *RideService) UpdateRideStatus(ctx context.Context, rideID, callerID, status string) (*domain.Ride, error) {
	if !domain.IsValidRideStatus(status) {
		return nil, apperrors.InvalidInput("invalid ride status")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("ride", rideID)
		}
		return nil, fmt.Errorf("update ride status: load ride: %w", err)
	}

	if ride.DriverID != callerID {
		return nil, apperrors.Forbidden("only the ride's driver can change its status")
	}

	if !domain.CanTransitionRideStatus(ride.Status, status) {
		return nil, apperrors.BusinessRule(fmt.Sprintf("cannot transition ride from %s to %s", ride.Status, status))
	}

	if err := s.rideRepo.UpdateStatus(ctx, rideID, status); err != nil {
		return nil, fmt.Errorf("update ride status: %w", err)
	}
	ride.Status = status

	s.logger.InfoContext(ctx, "ride status updated",
		slog.String("ride_id", rideID),
		slog.String("status", status),
	)

	if err := s.producer.PublishRideStatusChanged(ctx, rideID, status); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ride.status_changed event",
			slog.String("ride_id", rideID),
			slog.String("error", err.Error()),
		)
	}

	return ride, nil
}

// MarkCompleted transitions a ride to COMPLETED on behalf of the trip
// lifecycle system. It is idempotent: a ride that is already COMPLETED is
// left alone so event redelivery cannot fail.
func (s *RideService) MarkCompleted(ctx context.Context, rideID string) error {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("ride", rideID)
		}
		return fmt.Errorf("mark ride completed: load ride: %w", err)
	}

	if ride.Status == domain.RideStatusCompleted {
		return nil
	}
	if ride.Status == domain.RideStatusCancelled {
		// Completion of a cancelled ride means the upstream systems
		// disagree; drop the event rather than resurrect the ride.
		s.logger.WarnContext(ctx, "ignoring completion of cancelled ride",
			slog.String("ride_id", rideID),
		)
		return nil
	}

	if err := s.rideRepo.UpdateStatus(ctx, rideID, domain.RideStatusCompleted); err != nil {
		return fmt.Errorf("mark ride completed: %w", err)
	}

	s.logger.InfoContext(ctx, "ride completed",
		slog.String("ride_id", rideID),
	)

	if err := s.producer.PublishRideStatusChanged(ctx, rideID, domain.RideStatusCompleted); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish ride.status_changed event",
			slog.String("ride_id", rideID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

func validateRideInput(input CreateRideInput) error {
	origin := strings.TrimSpace(input.Origin)
	destination := strings.TrimSpace(input.Destination)

	switch {
	case origin == "":
		return apperrors.InvalidInput("origin is required")
	case len(origin) > maxLocationLen:
		return apperrors.InvalidInput("origin exceeds 255 characters")
	case destination == "":
		return apperrors.InvalidInput("destination is required")
	case len(destination) > maxLocationLen:
		return apperrors.InvalidInput("destination exceeds 255 characters")
	case len(input.Description) > maxDescriptionLen:
		return apperrors.InvalidInput("description exceeds 1000 characters")
	case input.PricePerSeat < 0:
		return apperrors.InvalidInput("price per seat must be non-negative")
	case input.TotalSeats < domain.MinSeats || input.TotalSeats > domain.MaxSeats:
		return apperrors.InvalidInput(fmt.Sprintf("total seats must be between %d and %d", domain.MinSeats, domain.MaxSeats))
	case !input.DepartureTime.After(time.Now().UTC()):
		return apperrors.InvalidInput("departure time must be in the future")
	}

	return nil
}
