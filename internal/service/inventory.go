package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"

	"github.com/carpoolhq/carpool-go/internal/event"
	"github.com/carpoolhq/carpool-go/internal/repository"
)

// SeatInventory is the seat accounting surface the reservation lifecycle
// depends on. Implementations must be safe under arbitrary concurrency.
type SeatInventory interface {
	// TryReserve atomically takes seats from a ride. It fails with
	// ErrNotFound or ErrInsufficientCapacity; it never partially reserves.
	TryReserve(ctx context.Context, rideID string, seats int) error

	// Release returns seats to a ride. Releasing more seats than were taken
	// is an invariant violation and is rejected.
	Release(ctx context.Context, rideID string, seats int) error
}

// InventoryService owns the available-seat counter of every ride. All seat
// math goes through the single conditional UPDATE in the repository, so two
// riders racing for the last seat cannot both win.
type InventoryService struct {
	rideRepo repository.RideRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewInventoryService creates a new seat inventory service.
func NewInventoryService(rideRepo repository.RideRepository, producer *event.Producer, logger *slog.Logger) *InventoryService {
	return &InventoryService{
		rideRepo: rideRepo,
		producer: producer,
		logger:   logger,
	}
}

// TryReserve atomically decrements the ride's available seats by seats.
func (s *InventoryService) TryReserve(ctx context.Context, rideID string, seats int) error {
	if seats < 1 {
		return apperrors.InvalidInput("seats must be at least 1")
	}

	if err := s.rideRepo.TryReserveSeats(ctx, rideID, seats); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "seats reserved",
		slog.String("ride_id", rideID),
		slog.Int("seats", seats),
	)

	return nil
}

// Release atomically returns seats to the ride. An over-release is rejected
// and reported as a reconciliation fault: the seat counter and the
// reservation records disagree, and silently clamping would hide the bug.
func (s *InventoryService) Release(ctx context.Context, rideID string, seats int) error {
	if seats < 1 {
		return apperrors.InvalidInput("seats must be at least 1")
	}

	err := s.rideRepo.ReleaseSeats(ctx, rideID, seats)
	if err == nil {
		s.logger.DebugContext(ctx, "seats released",
			slog.String("ride_id", rideID),
			slog.Int("seats", seats),
		)
		return nil
	}

	if errors.Is(err, apperrors.ErrConflict) {
		s.logger.ErrorContext(ctx, "seat release exceeds ride capacity, refusing",
			slog.String("ride_id", rideID),
			slog.Int("seats", seats),
			slog.String("error", err.Error()),
		)
		if pubErr := s.producer.PublishInventoryFault(ctx, event.InventoryFaultData{
			RideID:    rideID,
			Seats:     seats,
			Operation: "release",
			Reason:    err.Error(),
		}); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish inventory.fault event",
				slog.String("ride_id", rideID),
				slog.String("error", pubErr.Error()),
			)
		}
		return fmt.Errorf("release seats on ride %s: %w", rideID, err)
	}

	return err
}
