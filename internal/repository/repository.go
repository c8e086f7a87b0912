package repository

import (
	"context"
	"time"

	"github.com/carpoolhq/carpool-go/internal/domain"
)

// RideRepository defines the interface for ride persistence and the atomic
// seat-inventory operations.
type RideRepository interface {
	// Create inserts a new ride with available_seats initialized to total_seats.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// ListActive returns ACTIVE rides departing in the future, soonest first.
	ListActive(ctx context.Context, page, perPage int) ([]domain.Ride, int, error)

	// Search returns bookable rides matching origin/destination substrings and
	// an optional departure date.
	Search(ctx context.Context, origin, destination string, date *time.Time, page, perPage int) ([]domain.Ride, int, error)

	// ListByDriver returns all rides offered by a driver, newest departure first.
	ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)

	// ListUpcomingByDriver returns the driver's rides departing in the future.
	ListUpcomingByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)

	// ListPastByDriver returns the driver's rides that already departed.
	ListPastByDriver(ctx context.Context, driverID string) ([]domain.Ride, error)

	// UpdateStatus sets the ride status.
	UpdateStatus(ctx context.Context, id, status string) error

	// TryReserveSeats atomically decrements available_seats by seats iff
	// enough seats remain. It returns ErrNotFound when the ride does not
	// exist and ErrInsufficientCapacity when it does but capacity is short.
	// A ride whose last seat is taken is flipped to FULL in the same statement.
	TryReserveSeats(ctx context.Context, rideID string, seats int) error

	// ReleaseSeats atomically increments available_seats by seats, bounded by
	// total_seats. A release that would exceed total_seats is rejected. A FULL
	// ride regains ACTIVE status; terminal statuses are preserved.
	ReleaseSeats(ctx context.Context, rideID string, seats int) error
}

// ReservationRepository defines the interface for reservation persistence operations.
type ReservationRepository interface {
	// Create inserts a new reservation. A duplicate (ride_id, rider_id) pair
	// fails with ErrAlreadyReserved.
	Create(ctx context.Context, reservation *domain.Reservation) error

	// GetByID retrieves a reservation by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Reservation, error)

	// GetByRideAndRider retrieves the rider's reservation on a ride,
	// regardless of status.
	GetByRideAndRider(ctx context.Context, rideID, riderID string) (*domain.Reservation, error)

	// HasConfirmedByRideAndRider reports whether the rider holds a CONFIRMED
	// reservation on the ride.
	HasConfirmedByRideAndRider(ctx context.Context, rideID, riderID string) (bool, error)

	// ListByRider returns all of the rider's reservations, newest first.
	ListByRider(ctx context.Context, riderID string) ([]domain.Reservation, error)

	// ListUpcomingByRider returns the rider's reservations on rides departing
	// in the future, regardless of reservation status.
	ListUpcomingByRider(ctx context.Context, riderID string) ([]domain.Reservation, error)

	// ListPastByRider returns the rider's reservations on rides that already
	// departed, regardless of reservation status.
	ListPastByRider(ctx context.Context, riderID string) ([]domain.Reservation, error)

	// ListByRide returns all reservations on a ride, newest first.
	ListByRide(ctx context.Context, rideID string) ([]domain.Reservation, error)

	// Cancel atomically flips a CONFIRMED reservation to CANCELLED. Exactly
	// one of any number of concurrent cancels succeeds; the losers get
	// ErrAlreadyCancelled, or ErrNotFound when no such row exists.
	Cancel(ctx context.Context, id string) error
}

// ReviewRepository defines the interface for review persistence operations.
type ReviewRepository interface {
	// Create inserts a new review. A duplicate (ride_id, reviewer_id) pair
	// fails with ErrAlreadyReviewed.
	Create(ctx context.Context, review *domain.Review) error

	// GetByID retrieves a review by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Review, error)

	// ExistsByRideAndReviewer reports whether the reviewer already reviewed the ride.
	ExistsByRideAndReviewer(ctx context.Context, rideID, reviewerID string) (bool, error)

	// ListByDriver returns reviews of the driver, newest first, paginated.
	ListByDriver(ctx context.Context, driverID string, page, perPage int) ([]domain.Review, int, error)

	// ListRecentByDriver returns the driver's most recent reviews, capped at limit.
	ListRecentByDriver(ctx context.Context, driverID string, limit int) ([]domain.Review, error)

	// ListByReviewer returns reviews written by the reviewer, newest first.
	ListByReviewer(ctx context.Context, reviewerID string) ([]domain.Review, error)

	// ListByRide returns all reviews of a ride, newest first.
	ListByRide(ctx context.Context, rideID string) ([]domain.Review, error)

	// GetDriverSummary recomputes the driver's aggregate rating over all of
	// their reviews. A driver with no reviews yields a zero summary.
	GetDriverSummary(ctx context.Context, driverID string) (*domain.RatingSummary, error)
}

// UserRepository defines the interface for user persistence operations.
type UserRepository interface {
	// GetByID retrieves a user by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.User, error)

	// UpdateRating persists a driver's recomputed aggregate rating.
	UpdateRating(ctx context.Context, id string, rating float64, count int) error
}

// RatingCache is a read-through cache for driver rating summaries.
type RatingCache interface {
	// Get returns the cached summary or ErrNotFound on a miss.
	Get(ctx context.Context, driverID string) (*domain.RatingSummary, error)

	// Set stores the summary with the cache's configured TTL.
	Set(ctx context.Context, summary *domain.RatingSummary) error

	// Invalidate drops the cached summary for a driver.
	Invalidate(ctx context.Context, driverID string) error
}
