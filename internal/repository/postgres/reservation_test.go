package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/pkg/database"
	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func setupReservationRepo(t *testing.T) (*ReservationRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewReservationRepository(mock)
	return repo, mock
}

var reservationCols = []string{
	"id", "ride_id", "rider_id", "seats", "status", "total_price", "note", "created_at", "updated_at",
}

func sampleReservation() domain.Reservation {
	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return domain.Reservation{
		ID:         "res-1",
		RideID:     "ride-1",
		RiderID:    "rider-1",
		Seats:      2,
		Status:     domain.ReservationStatusConfirmed,
		TotalPrice: 3000,
		Note:       "meet at the fountain",
		CreatedAt:  ts,
		UpdatedAt:  ts,
	}
}

func reservationRow(res domain.Reservation) *pgxmock.Rows {
	return pgxmock.NewRows(reservationCols).
		AddRow(res.ID, res.RideID, res.RiderID, res.Seats, res.Status,
			res.TotalPrice, res.Note, res.CreatedAt, res.UpdatedAt)
}

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestReservationRepository_Create_Success(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(res.ID, res.RideID, res.RiderID, res.Seats, res.Status,
			res.TotalPrice, res.Note, res.CreatedAt, res.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), &res)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_Create_DuplicateRider(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(res.ID, res.RideID, res.RiderID, res.Seats, res.Status,
			res.TotalPrice, res.Note, res.CreatedAt, res.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation, ConstraintName: "reservations_ride_id_rider_id_key"})

	err := repo.Create(context.Background(), &res)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyReserved)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_Create_Error(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectExec("INSERT INTO reservations").
		WithArgs(res.ID, res.RideID, res.RiderID, res.Seats, res.Status,
			res.TotalPrice, res.Note, res.CreatedAt, res.UpdatedAt).
		WillReturnError(errors.New("db write error"))

	err := repo.Create(context.Background(), &res)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "create reservation")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetByID / GetByRideAndRider
// ---------------------------------------------------------------------------

func TestReservationRepository_GetByID_Success(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectQuery("SELECT .+ FROM reservations WHERE id").
		WithArgs(res.ID).
		WillReturnRows(reservationRow(res))

	result, err := repo.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, result.ID)
	assert.Equal(t, res.Seats, result.Seats)
	assert.Equal(t, res.TotalPrice, result.TotalPrice)
	assert.Equal(t, res.Note, result.Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM reservations WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByID(context.Background(), "missing")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_GetByRideAndRider_Success(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectQuery("SELECT .+ FROM reservations WHERE ride_id").
		WithArgs(res.RideID, res.RiderID).
		WillReturnRows(reservationRow(res))

	result, err := repo.GetByRideAndRider(context.Background(), res.RideID, res.RiderID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_GetByRideAndRider_NotFound(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM reservations WHERE ride_id").
		WithArgs("ride-1", "rider-x").
		WillReturnError(pgx.ErrNoRows)

	result, err := repo.GetByRideAndRider(context.Background(), "ride-1", "rider-x")
	assert.Nil(t, result)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// HasConfirmedByRideAndRider
// ---------------------------------------------------------------------------

func TestReservationRepository_HasConfirmed(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ride-1", "rider-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	confirmed, err := repo.HasConfirmedByRideAndRider(context.Background(), "ride-1", "rider-1")
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_HasConfirmed_False(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("ride-1", "rider-x").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	confirmed, err := repo.HasConfirmedByRideAndRider(context.Background(), "ride-1", "rider-x")
	require.NoError(t, err)
	assert.False(t, confirmed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Lists
// ---------------------------------------------------------------------------

func TestReservationRepository_ListByRider_Success(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectQuery("SELECT .+ FROM reservations WHERE rider_id").
		WithArgs("rider-1").
		WillReturnRows(reservationRow(res))

	reservations, err := repo.ListByRider(context.Background(), "rider-1")
	require.NoError(t, err)
	assert.Len(t, reservations, 1)
	assert.Equal(t, res.ID, reservations[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_ListByRider_Empty(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT .+ FROM reservations WHERE rider_id").
		WithArgs("rider-x").
		WillReturnRows(pgxmock.NewRows(reservationCols))

	reservations, err := repo.ListByRider(context.Background(), "rider-x")
	require.NoError(t, err)
	assert.Equal(t, []domain.Reservation{}, reservations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// The upcoming and past windows split on departure time alone; the query
// regexes below pin the WHERE clauses so a status filter cannot sneak back in.

func TestReservationRepository_ListUpcomingByRider_Success(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	res := sampleReservation()
	mock.ExpectQuery(`WHERE r\.rider_id = \$1 AND rides\.departure_time > NOW\(\)`).
		WithArgs("rider-1").
		WillReturnRows(reservationRow(res))

	reservations, err := repo.ListUpcomingByRider(context.Background(), "rider-1")
	require.NoError(t, err)
	assert.Len(t, reservations, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_ListPastByRider_IncludesCancelled(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	cancelled := sampleReservation()
	cancelled.Status = domain.ReservationStatusCancelled
	mock.ExpectQuery(`WHERE r\.rider_id = \$1 AND rides\.departure_time <= NOW\(\)`).
		WithArgs("rider-1").
		WillReturnRows(reservationRow(cancelled))

	reservations, err := repo.ListPastByRider(context.Background(), "rider-1")
	require.NoError(t, err)
	require.Len(t, reservations, 1)
	assert.Equal(t, domain.ReservationStatusCancelled, reservations[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_ListPastByRider_Empty(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectQuery(`WHERE r\.rider_id = \$1 AND rides\.departure_time <= NOW\(\)`).
		WithArgs("rider-1").
		WillReturnRows(pgxmock.NewRows(reservationCols))

	reservations, err := repo.ListPastByRider(context.Background(), "rider-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.Reservation{}, reservations)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Cancel
// ---------------------------------------------------------------------------

// The regex pins the status guard: the UPDATE must only touch rows that are
// still CONFIRMED, or concurrent cancels would release seats twice.
const cancelQueryPattern = `UPDATE reservations\s+SET status = 'CANCELLED', updated_at = NOW\(\)\s+WHERE id = \$1 AND status = 'CONFIRMED'`

func TestReservationRepository_Cancel_Success(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectExec(cancelQueryPattern).
		WithArgs("res-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Cancel(context.Background(), "res-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_Cancel_NotFound(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectExec(cancelQueryPattern).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM reservations").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	err := repo.Cancel(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A cancel that loses the race finds the row already CANCELLED and reports
// that instead of updating it a second time.
func TestReservationRepository_Cancel_AlreadyCancelled(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectExec(cancelQueryPattern).
		WithArgs("res-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM reservations").
		WithArgs("res-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.ReservationStatusCancelled))

	err := repo.Cancel(context.Background(), "res-1")
	assert.ErrorIs(t, err, apperrors.ErrAlreadyCancelled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReservationRepository_Cancel_CompletedIsNotCancellable(t *testing.T) {
	repo, mock := setupReservationRepo(t)
	defer mock.Close()

	mock.ExpectExec(cancelQueryPattern).
		WithArgs("res-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status FROM reservations").
		WithArgs("res-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(domain.ReservationStatusCompleted))

	err := repo.Cancel(context.Background(), "res-1")
	assert.ErrorIs(t, err, apperrors.ErrBusinessRule)
	assert.NoError(t, mock.ExpectationsWereMet())
}
