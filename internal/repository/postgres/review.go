package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/carpoolhq/carpool-go/internal/domain"
	"github.com/carpoolhq/carpool-go/pkg/database"
	apperrors "github.com/carpoolhq/carpool-go/pkg/errors"
)

const reviewColumns = `id, ride_id, reviewer_id, driver_id, rating, comment, created_at`

// ReviewRepository implements repository.ReviewRepository using PostgreSQL.
type ReviewRepository struct {
	pool database.DBTX
}

// NewReviewRepository creates a new PostgreSQL-backed review repository.
func NewReviewRepository(pool database.DBTX) *ReviewRepository {
	return &ReviewRepository{pool: pool}
}

// Create inserts a new review. The unique index on (ride_id, reviewer_id)
// maps to ErrAlreadyReviewed on violation.
func (r *ReviewRepository) Create(ctx context.Context, review *domain.Review) error {
	query := `
		INSERT INTO reviews (id, ride_id, reviewer_id, driver_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		review.ID,
		review.RideID,
		review.ReviewerID,
		review.DriverID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperrors.AlreadyReviewed(review.RideID)
		}
		return fmt.Errorf("create review: %w", err)
	}

	return nil
}

// GetByID retrieves a review by its unique identifier.
func (r *ReviewRepository) GetByID(ctx context.Context, id string) (*domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE id = $1`

	var rev domain.Review
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rev.ID,
		&rev.RideID,
		&rev.ReviewerID,
		&rev.DriverID,
		&rev.Rating,
		&rev.Comment,
		&rev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get review by id: %w", err)
	}

	return &rev, nil
}

// ExistsByRideAndReviewer reports whether the reviewer already reviewed the ride.
func (r *ReviewRepository) ExistsByRideAndReviewer(ctx context.Context, rideID, reviewerID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM reviews
			WHERE ride_id = $1 AND reviewer_id = $2
		)`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, rideID, reviewerID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check review exists: %w", err)
	}

	return exists, nil
}

// ListByDriver returns reviews of the driver, newest first, paginated.
func (r *ReviewRepository) ListByDriver(ctx context.Context, driverID string, page, perPage int) ([]domain.Review, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}

	offset := (page - 1) * perPage

	query := `
		SELECT ` + reviewColumns + `,
			   count(*) OVER() AS total_count
		FROM reviews
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, driverID, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews by driver: %w", err)
	}
	defer rows.Close()

	var (
		reviews    []domain.Review
		totalCount int
	)

	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(
			&rev.ID,
			&rev.RideID,
			&rev.ReviewerID,
			&rev.DriverID,
			&rev.Rating,
			&rev.Comment,
			&rev.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, totalCount, nil
}

// ListRecentByDriver returns the driver's most recent reviews, capped at limit.
func (r *ReviewRepository) ListRecentByDriver(ctx context.Context, driverID string, limit int) ([]domain.Review, error) {
	if limit <= 0 {
		limit = domain.RecentReviewsLimit
	}

	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE driver_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	return r.queryReviews(ctx, query, driverID, limit)
}

// ListByReviewer returns reviews written by the reviewer, newest first.
func (r *ReviewRepository) ListByReviewer(ctx context.Context, reviewerID string) ([]domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE reviewer_id = $1
		ORDER BY created_at DESC`

	return r.queryReviews(ctx, query, reviewerID)
}

// ListByRide returns all reviews of a ride, newest first.
func (r *ReviewRepository) ListByRide(ctx context.Context, rideID string) ([]domain.Review, error) {
	query := `
		SELECT ` + reviewColumns + `
		FROM reviews
		WHERE ride_id = $1
		ORDER BY created_at DESC`

	return r.queryReviews(ctx, query, rideID)
}

// GetDriverSummary recomputes the driver's aggregate rating over all of their
// reviews. The average is rounded half-up to one decimal.
func (r *ReviewRepository) GetDriverSummary(ctx context.Context, driverID string) (*domain.RatingSummary, error) {
	query := `
		SELECT COALESCE(AVG(rating), 0), COUNT(*)
		FROM reviews
		WHERE driver_id = $1`

	summary := domain.RatingSummary{DriverID: driverID}
	err := r.pool.QueryRow(ctx, query, driverID).Scan(&summary.AverageRating, &summary.TotalCount)
	if err != nil {
		return nil, fmt.Errorf("get driver rating summary: %w", err)
	}

	summary.AverageRating = math.Round(summary.AverageRating*10) / 10

	return &summary, nil
}

func (r *ReviewRepository) queryReviews(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var rev domain.Review
		if err := rows.Scan(
			&rev.ID,
			&rev.RideID,
			&rev.ReviewerID,
			&rev.DriverID,
			&rev.Rating,
			&rev.Comment,
			&rev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan review row: %w", err)
		}
		reviews = append(reviews, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate review rows: %w", err)
	}

	if reviews == nil {
		reviews = []domain.Review{}
	}

	return reviews, nil
}
