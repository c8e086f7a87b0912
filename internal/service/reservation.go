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

// ReservationService implements the reservation lifecycle: booking with
// ordered eligibility checks, cancellation with seat return, and the read
// views over a rider's bookings.
type ReservationService struct {
	reservationRepo repository.ReservationRepository
	rideRepo        repository.RideRepository
	inventory       SeatInventory
	producer        *event.Producer
	logger          *slog.Logger
}

// NewReservationService creates a new reservation service.
func NewReservationService(
	reservationRepo repository.ReservationRepository,
	rideRepo repository.RideRepository,
	inventory SeatInventory,
	producer *event.Producer,
	logger *slog.Logger,
) *ReservationService {
	return &ReservationService{
		reservationRepo: reservationRepo,
		rideRepo:        rideRepo,
		inventory:       inventory,
		producer:        producer,
		logger:          logger,
	}
}

// CreateReservation books seats on a ride for a rider. Eligibility is checked
// in a fixed order so a request failing several rules always reports the same
// one; the advisory capacity read is re-checked atomically by TryReserve
// before anything is persisted. The note is free text for the driver, stored
// as given apart from whitespace trimming.
func (s *ReservationService) CreateReservation(ctx context.Context, rideID, riderID string, seats int, note string) (*domain.Reservation, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("ride", rideID)
		}
		return nil, fmt.Errorf("create reservation: load ride: %w", err)
	}

	if !ride.IsActive() {
		return nil, apperrors.BusinessRule("ride is not active")
	}
	if ride.HasDeparted(time.Now().UTC()) {
		return nil, apperrors.BusinessRule("ride already departed")
	}
	if riderID == ride.DriverID {
		return nil, apperrors.BusinessRule("drivers cannot reserve seats on their own ride")
	}
	if seats < domain.MinSeats {
		return nil, apperrors.BusinessRule("seats must be at least 1")
	}
	if seats > ride.AvailableSeats {
		return nil, apperrors.InsufficientCapacity(rideID, seats, ride.AvailableSeats)
	}

	// One reservation per rider per ride, cancelled rows included.
	_, err = s.reservationRepo.GetByRideAndRider(ctx, rideID, riderID)
	if err == nil {
		return nil, apperrors.AlreadyReserved(rideID)
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("create reservation: check duplicate: %w", err)
	}

	// The authoritative capacity gate. Everything above was advisory.
	if err := s.inventory.TryReserve(ctx, rideID, seats); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reservation := &domain.Reservation{
		ID:         uuid.New().String(),
		RideID:     rideID,
		RiderID:    riderID,
		Seats:      seats,
		Status:     domain.ReservationStatusConfirmed,
		TotalPrice: int64(seats) * ride.PricePerSeat,
		Note:       strings.TrimSpace(note),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.reservationRepo.Create(ctx, reservation); err != nil {
		// The seats are already taken; hand them back before failing, or
		// they leak until an operator reconciles the ride.
		if relErr := s.inventory.Release(ctx, rideID, seats); relErr != nil {
			s.logger.ErrorContext(ctx, "compensating seat release failed after insert failure",
				slog.String("ride_id", rideID),
				slog.String("rider_id", riderID),
				slog.Int("seats", seats),
				slog.String("error", relErr.Error()),
			)
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "reservation created",
		slog.String("reservation_id", reservation.ID),
		slog.String("ride_id", rideID),
		slog.String("rider_id", riderID),
		slog.Int("seats", seats),
	)

	if err := s.producer.PublishReservationCreated(ctx, reservation); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish reservation.created event",
			slog.String("reservation_id", reservation.ID),
			slog.String("error", err.Error()),
		)
	}

	return reservation, nil
}

// CancelReservation cancels the rider's reservation and returns its seats to
// the ride. The status flip is the commit point: once the row reads
// CANCELLED the cancellation has happened, and a seat-release failure after
// that is a reconciliation fault, not a caller error.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID, callerID string) error {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NotFound("reservation", reservationID)
		}
		return fmt.Errorf("cancel reservation: load reservation: %w", err)
	}

	if reservation.RiderID != callerID {
		return apperrors.Forbidden("only the rider who booked the reservation can cancel it")
	}
	if reservation.IsCancelled() {
		return apperrors.AlreadyCancelled(reservationID)
	}

	ride, err := s.rideRepo.GetByID(ctx, reservation.RideID)
	if err != nil {
		return fmt.Errorf("cancel reservation: load ride: %w", err)
	}
	if ride.HasDeparted(time.Now().UTC()) {
		return apperrors.BusinessRule("ride already departed")
	}

	// The read above was advisory; a concurrent cancel may have won since.
	// The repository's status-guarded update arbitrates, so of two racing
	// cancels exactly one reaches the seat release below.
	if err := s.reservationRepo.Cancel(ctx, reservationID); err != nil {
		return err
	}
	reservation.Status = domain.ReservationStatusCancelled

	if err := s.inventory.Release(ctx, reservation.RideID, reservation.Seats); err != nil {
		// Past the commit point. The cancellation stands; the seat counter
		// is now short and needs reconciliation.
		s.logger.ErrorContext(ctx, "seat release failed after cancellation, inventory needs reconciliation",
			slog.String("reservation_id", reservationID),
			slog.String("ride_id", reservation.RideID),
			slog.Int("seats", reservation.Seats),
			slog.String("error", err.Error()),
		)
		if pubErr := s.producer.PublishInventoryFault(ctx, event.InventoryFaultData{
			RideID:        reservation.RideID,
			ReservationID: reservationID,
			Seats:         reservation.Seats,
			Operation:     "release_after_cancel",
			Reason:        err.Error(),
		}); pubErr != nil {
			s.logger.ErrorContext(ctx, "failed to publish inventory.fault event",
				slog.String("reservation_id", reservationID),
				slog.String("error", pubErr.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "reservation cancelled",
		slog.String("reservation_id", reservationID),
		slog.String("ride_id", reservation.RideID),
	)

	if err := s.producer.PublishReservationCancelled(ctx, reservation); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish reservation.cancelled event",
			slog.String("reservation_id", reservationID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// GetReservation retrieves a reservation visible to its rider or the ride's driver.
func (s *ReservationService) GetReservation(ctx context.Context, reservationID, callerID string) (*domain.Reservation, error) {
	reservation, err := s.reservationRepo.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("reservation", reservationID)
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	if reservation.RiderID == callerID {
		return reservation, nil
	}

	ride, err := s.rideRepo.GetByID(ctx, reservation.RideID)
	if err != nil {
		return nil, fmt.Errorf("get reservation: load ride: %w", err)
	}
	if ride.DriverID != callerID {
		return nil, apperrors.Forbidden("reservation belongs to another rider")
	}

	return reservation, nil
}

// ListByRider returns all of the rider's reservations, newest first.
func (s *ReservationService) ListByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	reservations, err := s.reservationRepo.ListByRider(ctx, riderID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by rider: %w", err)
	}
	return reservations, nil
}

// ListUpcomingByRider returns the rider's reservations on rides that have
// not departed yet, cancelled ones included.
func (s *ReservationService) ListUpcomingByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	reservations, err := s.reservationRepo.ListUpcomingByRider(ctx, riderID)
	if err != nil {
		return nil, fmt.Errorf("list upcoming reservations: %w", err)
	}
	return reservations, nil
}

// ListPastByRider returns the rider's reservations on rides that already
// departed, regardless of reservation status.
func (s *ReservationService) ListPastByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	reservations, err := s.reservationRepo.ListPastByRider(ctx, riderID)
	if err != nil {
		return nil, fmt.Errorf("list past reservations: %w", err)
	}
	return reservations, nil
}

// ListByRide returns the reservations on a ride. Only the ride's driver may
// see the passenger list.
func (s *ReservationService) ListByRide(ctx context.Context, rideID, callerID string) ([]domain.Reservation, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("ride", rideID)
		}
		return nil, fmt.Errorf("list reservations by ride: load ride: %w", err)
	}

	if ride.DriverID != callerID {
		return nil, apperrors.Forbidden("only the ride's driver can list its reservations")
	}

	reservations, err := s.reservationRepo.ListByRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("list reservations by ride: %w", err)
	}
	return reservations, nil
}
