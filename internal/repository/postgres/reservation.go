package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/pkg/database"
	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
)

const reservationColumns = `id, ride_id, rider_id, seats, status, total_price, note, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// ReservationRepository implements repository.ReservationRepository using PostgreSQL.
type ReservationRepository struct {
	pool database.DBTX
}

// NewReservationRepository creates a new PostgreSQL-backed reservation repository.
func NewReservationRepository(pool database.DBTX) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

// Create inserts a new reservation. The unique index on (ride_id, rider_id)
// is the last line of defense against duplicate bookings racing past the
// service-level check; a violation maps to ErrAlreadyReserved.
func (r *ReservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	query := `
		INSERT INTO reservations (id, ride_id, rider_id, seats, status, total_price, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		reservation.ID,
		reservation.RideID,
		reservation.RiderID,
		reservation.Seats,
		reservation.Status,
		reservation.TotalPrice,
		reservation.Note,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyReserved(reservation.RideID)
		}
		return fmt.Errorf("create reservation: %w", err)
	}

	return nil
}

// GetByID retrieves a reservation by its unique identifier.
func (r *ReservationRepository) GetByID(ctx context.Context, id string) (*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE id = $1`

	res, err := scanReservationRow(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get reservation by id: %w", err)
	}

	return res, nil
}

// GetByRideAndRider retrieves the rider's reservation on a ride, regardless of status.
func (r *ReservationRepository) GetByRideAndRider(ctx context.Context, rideID, riderID string) (*domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE ride_id = $1 AND rider_id = $2`

	res, err := scanReservationRow(r.pool.QueryRow(ctx, query, rideID, riderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get reservation by ride and rider: %w", err)
	}

	return res, nil
}

// HasConfirmedByRideAndRider reports whether the rider holds a CONFIRMED
// reservation on the ride.
func (r *ReservationRepository) HasConfirmedByRideAndRider(ctx context.Context, rideID, riderID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reservations
			WHERE ride_id = $1 AND rider_id = $2 AND status = 'CONFIRMED'
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, rideID, riderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check confirmed reservation: %w", err)
	}

	return exists, nil
}

// ListByRider returns all of the rider's reservations, newest first.
func (r *ReservationRepository) ListByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE rider_id = $1
		ORDER BY created_at DESC`

	return r.queryReservations(ctx, query, riderID)
}

// ListUpcomingByRider returns the rider's reservations, whatever their
// status, on rides departing in the future, soonest departure first.
func (r *ReservationRepository) ListUpcomingByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	query := `
		SELECT r.id, r.ride_id, r.rider_id, r.seats, r.status, r.total_price, r.note, r.created_at, r.updated_at
		FROM reservations r
		JOIN rides ON rides.id = r.ride_id
		WHERE r.rider_id = $1 AND rides.departure_time > NOW()
		ORDER BY rides.departure_time ASC`

	return r.queryReservations(ctx, query, riderID)
}

// ListPastByRider returns the rider's reservations, whatever their status,
// on rides that already departed, most recent departure first.
func (r *ReservationRepository) ListPastByRider(ctx context.Context, riderID string) ([]domain.Reservation, error) {
	query := `
		SELECT r.id, r.ride_id, r.rider_id, r.seats, r.status, r.total_price, r.note, r.created_at, r.updated_at
		FROM reservations r
		JOIN rides ON rides.id = r.ride_id
		WHERE r.rider_id = $1 AND rides.departure_time <= NOW()
		ORDER BY rides.departure_time DESC`

	return r.queryReservations(ctx, query, riderID)
}

// ListByRide returns all reservations on a ride, newest first.
func (r *ReservationRepository) ListByRide(ctx context.Context, rideID string) ([]domain.Reservation, error) {
	query := `
		SELECT ` + reservationColumns + `
		FROM reservations
		WHERE ride_id = $1
		ORDER BY created_at DESC`

	return r.queryReservations(ctx, query, rideID)
}

// Cancel flips a CONFIRMED reservation to CANCELLED. The status guard makes
// the flip a compare-and-set: of two racing cancels only one updates the row,
// so the seats behind it are returned exactly once. Zero rows affected means
// the reservation is missing or no longer CONFIRMED; a follow-up read tells
// the two apart.
func (r *ReservationRepository) Cancel(ctx context.Context, id string) error {
	query := `
		UPDATE reservations
		SET status = 'CANCELLED', updated_at = NOW()
		WHERE id = $1 AND status = 'CONFIRMED'`

	ct, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancel reservation: %w", err)
	}
	if ct.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = r.pool.QueryRow(ctx, `SELECT status FROM reservations WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("reservation", id)
		}
		return fmt.Errorf("cancel reservation: classify conflict: %w", err)
	}
	if status == domain.ReservationStatusCancelled {
		return apperrors.AlreadyCancelled(id)
	}
	return apperrors.BusinessRule("reservation is " + status + " and cannot be cancelled")
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		var res domain.Reservation
		if err := rows.Scan(
			&res.ID,
			&res.RideID,
			&res.RiderID,
			&res.Seats,
			&res.Status,
			&res.TotalPrice,
			&res.Note,
			&res.CreatedAt,
			&res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan reservation row: %w", err)
		}
		reservations = append(reservations, res)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reservation rows: %w", err)
	}

	if reservations == nil {
		reservations = []domain.Reservation{}
	}

	return reservations, nil
}

func scanReservationRow(row pgx.Row) (*domain.Reservation, error) {
	var res domain.Reservation
	err := row.Scan(
		&res.ID,
		&res.RideID,
		&res.RiderID,
		&res.Seats,
		&res.Status,
		&res.TotalPrice,
		&res.Note,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
