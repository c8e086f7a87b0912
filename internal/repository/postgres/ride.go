package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/pkg/database"
	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
)

const rideColumns = `id, driver_id, origin, destination, description, departure_time,
		price_per_seat, total_seats, available_seats, status, created_at, updated_at`

// RideRepository implements repository.RideRepository using PostgreSQL.
// The seat operations are single conditional UPDATE statements so that the
// row itself serializes concurrent bookings; there is no read-then-write gap.
type RideRepository struct {
	pool database.DBTX
}

// NewRideRepository creates a new PostgreSQL-backed ride repository.
func NewRideRepository(pool database.DBTX) *RideRepository {
	return &RideRepository{pool: pool}
}

// Create inserts a new ride with available_seats initialized to total_seats.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, driver_id, origin, destination, description, departure_time,
			price_per_seat, total_seats, available_seats, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		ride.ID,
		ride.DriverID,
		ride.Origin,
		ride.Destination,
		ride.Description,
		ride.DepartureTime,
		ride.PricePerSeat,
		ride.TotalSeats,
		ride.Status,
		ride.CreatedAt,
		ride.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create ride: %w", err)
	}

	return nil
}

// GetByID retrieves a ride by its unique identifier.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE id = $1`

	ride, err := scanRideRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get ride by id: %w", err)
	}

	return ride, nil
}

// ListActive returns ACTIVE rides departing in the future, soonest first.
func (r *RideRepository) ListActive(ctx context.Context, page, perPage int) ([]domain.Ride, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	offset := (page - 1) * perPage

	query := `
		SELECT ` + rideColumns + `,
			   count(*) OVER() AS total_count
		FROM rides
		WHERE status = 'ACTIVE' AND departure_time > NOW()
		ORDER BY departure_time ASC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list active rides: %w", err)
	}
	defer rows.Close()

	return collectRidesWithCount(rows)
}

// Search returns bookable rides matching origin/destination substrings and an
// optional departure date. Matching is case-insensitive; an empty origin or
// destination matches everything.
func (r *RideRepository) Search(ctx context.Context, origin, destination string, date *time.Time, page, perPage int) ([]domain.Ride, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	offset := (page - 1) * perPage

	query := `
		SELECT ` + rideColumns + `,
			   count(*) OVER() AS total_count
		FROM rides
		WHERE status = 'ACTIVE'
		  AND departure_time > NOW()
		  AND origin ILIKE '%' || $1 || '%'
		  AND destination ILIKE '%' || $2 || '%'
		  AND ($3::date IS NULL OR departure_time::date = $3::date)
		ORDER BY departure_time ASC
		LIMIT $4 OFFSET $5`

	rows, err := r.pool.Query(ctx, query, origin, destination, date, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search rides: %w", err)
	}
	defer rows.Close()

	return collectRidesWithCount(rows)
}

// ListByDriver returns all rides offered by a driver, newest departure first.
func (r *RideRepository) ListByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE driver_id = $1
		ORDER BY departure_time DESC`

	return r.queryRides(ctx, query, driverID)
}

// ListUpcomingByDriver returns the driver's rides departing in the future.
func (r *RideRepository) ListUpcomingByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE driver_id = $1 AND departure_time > NOW()
		ORDER BY departure_time ASC`

	return r.queryRides(ctx, query, driverID)
}

// ListPastByDriver returns the driver's rides that already departed.
func (r *RideRepository) ListPastByDriver(ctx context.Context, driverID string) ([]domain.Ride, error) {
	query := `
		SELECT ` + rideColumns + `
		FROM rides
		WHERE driver_id = $1 AND departure_time <= NOW()
		ORDER BY departure_time DESC`

	return r.queryRides(ctx, query, driverID)
}

// UpdateStatus sets the ride status.
func (r *RideRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE rides
		SET status = $1, updated_at = NOW()
		WHERE id = $2`

	ct, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update ride status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("ride", id)
	}

	return nil
}

// TryReserveSeats atomically decrements available_seats by seats iff enough
// seats remain. The WHERE clause is the capacity check and the UPDATE is the
// decrement, so the operation is a single compare-and-set on the ride row.
func (r *RideRepository) TryReserveSeats(ctx context.Context, rideID string, seats int) error {
	query := `
		UPDATE rides
		SET available_seats = available_seats - $2,
			status = CASE WHEN available_seats - $2 = 0 AND status = 'ACTIVE' THEN 'FULL' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND available_seats >= $2`

	ct, err := r.pool.Exec(ctx, query, rideID, seats)
	if err != nil {
		return fmt.Errorf("reserve seats: %w", err)
	}

	if ct.RowsAffected() > 0 {
		return nil
	}

	// Zero rows: either the ride is gone or capacity is short. Re-read to
	// tell the two apart; the answer is advisory, the CAS already failed.
	var available int
	err = r.pool.QueryRow(ctx, `SELECT available_seats FROM rides WHERE id = $1`, rideID).Scan(&available)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("ride", rideID)
		}
		return fmt.Errorf("reserve seats: check capacity: %w", err)
	}

	return apperrors.InsufficientCapacity(rideID, seats, available)
}

// ReleaseSeats atomically increments available_seats by seats, bounded by
// total_seats. A FULL ride regains ACTIVE status; COMPLETED and CANCELLED
// are preserved.
func (r *RideRepository) ReleaseSeats(ctx context.Context, rideID string, seats int) error {
	query := `
		UPDATE rides
		SET available_seats = available_seats + $2,
			status = CASE WHEN status = 'FULL' THEN 'ACTIVE' ELSE status END,
			updated_at = NOW()
		WHERE id = $1 AND available_seats + $2 <= total_seats`

	ct, err := r.pool.Exec(ctx, query, rideID, seats)
	if err != nil {
		return fmt.Errorf("release seats: %w", err)
	}

	if ct.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, rideID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("release seats: check ride: %w", err)
	}
	if !exists {
		return apperrors.NotFound("ride", rideID)
	}

	// Releasing more seats than were ever taken would break the
	// available_seats <= total_seats invariant.
	return apperrors.Conflict(fmt.Sprintf("release of %d seats on ride %s exceeds total capacity", seats, rideID))
}

// queryRides runs a multi-row ride query without a total count column.
func (r *RideRepository) queryRides(ctx context.Context, query string, args ...any) ([]domain.Ride, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query rides: %w", err)
	}
	defer rows.Close()

	var rides []domain.Ride
	for rows.Next() {
		var ride domain.Ride
		if err := rows.Scan(
			&ride.ID,
			&ride.DriverID,
			&ride.Origin,
			&ride.Destination,
			&ride.Description,
			&ride.DepartureTime,
			&ride.PricePerSeat,
			&ride.TotalSeats,
			&ride.AvailableSeats,
			&ride.Status,
			&ride.CreatedAt,
			&ride.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan ride row: %w", err)
		}
		rides = append(rides, ride)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ride rows: %w", err)
	}

	if rides == nil {
		rides = []domain.Ride{}
	}

	return rides, nil
}

func collectRidesWithCount(rows pgx.Rows) ([]domain.Ride, int, error) {
	var (
		rides      []domain.Ride
		totalCount int
	)

	for rows.Next() {
		var ride domain.Ride
		if err := rows.Scan(
			&ride.ID,
			&ride.DriverID,
			&ride.Origin,
			&ride.Destination,
			&ride.Description,
			&ride.DepartureTime,
			&ride.PricePerSeat,
			&ride.TotalSeats,
			&ride.AvailableSeats,
			&ride.Status,
			&ride.CreatedAt,
			&ride.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ride row: %w", err)
		}
		rides = append(rides, ride)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ride rows: %w", err)
	}

	if rides == nil {
		rides = []domain.Ride{}
	}

	return rides, totalCount, nil
}

func scanRideRow(row pgx.Row) (*domain.Ride, error) {
	var ride domain.Ride
	err := row.Scan(
		&ride.ID,
		&ride.DriverID,
		&ride.Origin,
		&ride.Destination,
		&ride.Description,
		&ride.DepartureTime,
		&ride.PricePerSeat,
		&ride.TotalSeats,
		&ride.AvailableSeats,
		&ride.Status,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}
