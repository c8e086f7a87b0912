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

// maxCommentLen bounds the free-text comment on a review.
const maxCommentLen = 1000

// ReviewListResult is a paginated page of reviews.
type ReviewListResult struct {
	Reviews    []domain.Review
	TotalCount int
	Page       int
	PerPage    int
}

// ReviewService implements reviews and the driver rating aggregate. The
// aggregate is recomputed from scratch on every new review rather than
// adjusted incrementally, so a lost update cannot skew it forever.
type ReviewService struct {
	reviewRepo      repository.ReviewRepository
	rideRepo        repository.RideRepository
	reservationRepo repository.ReservationRepository
	userRepo        repository.UserRepository
	ratingCache     repository.RatingCache
	producer        *event.Producer
	logger          *slog.Logger
}

// NewReviewService creates a new review service. ratingCache may be nil when
// Redis is not configured; summaries are then always served from Postgres.
func NewReviewService(
	reviewRepo repository.ReviewRepository,
	rideRepo repository.RideRepository,
	reservationRepo repository.ReservationRepository,
	userRepo repository.UserRepository,
	ratingCache repository.RatingCache,
	producer *event.Producer,
	logger *slog.Logger,
) *ReviewService {
	return &ReviewService{
		reviewRepo:      reviewRepo,
		rideRepo:        rideRepo,
		reservationRepo: reservationRepo,
		userRepo:        userRepo,
		ratingCache:     ratingCache,
		producer:        producer,
		logger:          logger,
	}
}

// CreateReview records a rider's rating of the driver for one ride and
// recomputes the driver's aggregate. Whether the ride "happened" is judged
// by its schedule time, not its status: a driver who never flips the status
// cannot block reviews.
func (s *ReviewService) CreateReview(ctx context.Context, rideID, reviewerID string, rating int, comment string) (*domain.Review, error) {
	if !domain.IsValidRating(rating) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("rating must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	if len(comment) > maxCommentLen {
		return nil, apperrors.InvalidInput("comment exceeds 1000 characters")
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("ride", rideID)
		}
		return nil, fmt.Errorf("create review: load ride: %w", err)
	}

	if !ride.HasDeparted(time.Now().UTC()) {
		return nil, apperrors.BusinessRule("ride has not happened yet")
	}
	if reviewerID == ride.DriverID {
		return nil, apperrors.BusinessRule("drivers cannot review their own ride")
	}

	confirmed, err := s.reservationRepo.HasConfirmedByRideAndRider(ctx, rideID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("create review: check reservation: %w", err)
	}
	if !confirmed {
		return nil, apperrors.BusinessRule("only riders with a confirmed reservation can review this ride")
	}

	exists, err := s.reviewRepo.ExistsByRideAndReviewer(ctx, rideID, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("create review: check duplicate: %w", err)
	}
	if exists {
		return nil, apperrors.AlreadyReviewed(rideID)
	}

	review := &domain.Review{
		ID:         uuid.New().String(),
		RideID:     rideID,
		ReviewerID: reviewerID,
		DriverID:   ride.DriverID,
		Rating:     rating,
		Comment:    strings.TrimSpace(comment),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.reviewRepo.Create(ctx, review); err != nil {
		return nil, err
	}

	summary, err := s.recomputeDriverRating(ctx, ride.DriverID)
	if err != nil {
		// The review is in; a stale aggregate corrects itself on the next
		// review, so surface the problem in logs only.
		s.logger.ErrorContext(ctx, "failed to recompute driver rating",
			slog.String("driver_id", ride.DriverID),
			slog.String("error", err.Error()),
		)
		summary = &domain.RatingSummary{DriverID: ride.DriverID}
	}

	s.logger.InfoContext(ctx, "review created",
		slog.String("review_id", review.ID),
		slog.String("ride_id", rideID),
		slog.String("driver_id", ride.DriverID),
		slog.Int("rating", rating),
	)

	if err := s.producer.PublishReviewCreated(ctx, review, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish review.created event",
			slog.String("review_id", review.ID),
			slog.String("error", err.Error()),
		)
	}

	return review, nil
}

// CanReview reports whether the rider could submit a review for the ride
// right now. It mirrors the CreateReview checks but ineligibility is an
// answer, not an error.
func (s *ReviewService) CanReview(ctx context.Context, rideID, reviewerID string) (bool, error) {
	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("can review: load ride: %w", err)
	}

	if !ride.HasDeparted(time.Now().UTC()) {
		return false, nil
	}
	if reviewerID == ride.DriverID {
		return false, nil
	}

	confirmed, err := s.reservationRepo.HasConfirmedByRideAndRider(ctx, rideID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("can review: check reservation: %w", err)
	}
	if !confirmed {
		return false, nil
	}

	exists, err := s.reviewRepo.ExistsByRideAndReviewer(ctx, rideID, reviewerID)
	if err != nil {
		return false, fmt.Errorf("can review: check duplicate: %w", err)
	}

	return !exists, nil
}

// GetReview retrieves a review by ID.
func (s *ReviewService) GetReview(ctx context.Context, reviewID string) (*domain.Review, error) {
	review, err := s.reviewRepo.GetByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return review, nil
}

// ListByDriver returns reviews of the driver, newest first, paginated.
func (s *ReviewService) ListByDriver(ctx context.Context, driverID string, page, perPage int) (*ReviewListResult, error) {
	reviews, total, err := s.reviewRepo.ListByDriver(ctx, driverID, page, perPage)
	if err != nil {
		return nil, fmt.Errorf("list reviews by driver: %w", err)
	}
	return &ReviewListResult{Reviews: reviews, TotalCount: total, Page: page, PerPage: perPage}, nil
}

// ListRecentByDriver returns the driver's most recent reviews.
func (s *ReviewService) ListRecentByDriver(ctx context.Context, driverID string) ([]domain.Review, error) {
	reviews, err := s.reviewRepo.ListRecentByDriver(ctx, driverID, domain.RecentReviewsLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent reviews: %w", err)
	}
	return reviews, nil
}

// ListByReviewer returns reviews written by the reviewer, newest first.
func (s *ReviewService) ListByReviewer(ctx context.Context, reviewerID string) ([]domain.Review, error) {
	reviews, err := s.reviewRepo.ListByReviewer(ctx, reviewerID)
	if err != nil {
		return nil, fmt.Errorf("list reviews by reviewer: %w", err)
	}
	return reviews, nil
}

// ListByRide returns all reviews of a ride, newest first.
func (s *ReviewService) ListByRide(ctx context.Context, rideID string) ([]domain.Review, error) {
	reviews, err := s.reviewRepo.ListByRide(ctx, rideID)
	if err != nil {
		return nil, fmt.Errorf("list reviews by ride: %w", err)
	}
	return reviews, nil
}

// DriverRatingSummary returns the driver's aggregate rating, read through
// the cache when one is configured.
func (s *ReviewService) DriverRatingSummary(ctx context.Context, driverID string) (*domain.RatingSummary, error) {
	if s.ratingCache != nil {
		summary, err := s.ratingCache.Get(ctx, driverID)
		if err == nil {
			return summary, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "rating cache read failed, falling back to database",
				slog.String("driver_id", driverID),
				slog.String("error", err.Error()),
			)
		}
	}

	summary, err := s.reviewRepo.GetDriverSummary(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("driver rating summary: %w", err)
	}

	if s.ratingCache != nil {
		if err := s.ratingCache.Set(ctx, summary); err != nil {
			s.logger.WarnContext(ctx, "rating cache write failed",
				slog.String("driver_id", driverID),
				slog.String("error", err.Error()),
			)
		}
	}

	return summary, nil
}

// recomputeDriverRating re-aggregates the driver's reviews, persists the
// result on the user row, and drops the cached summary.
func (s *ReviewService) recomputeDriverRating(ctx context.Context, driverID string) (*domain.RatingSummary, error) {
	summary, err := s.reviewRepo.GetDriverSummary(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("recompute driver rating: %w", err)
	}

	if err := s.userRepo.UpdateRating(ctx, driverID, summary.AverageRating, summary.TotalCount); err != nil {
		return nil, fmt.Errorf("recompute driver rating: persist: %w", err)
	}

	if s.ratingCache != nil {
		if err := s.ratingCache.Invalidate(ctx, driverID); err != nil {
			s.logger.WarnContext(ctx, "rating cache invalidation failed",
				slog.String("driver_id", driverID),
				slog.String("error", err.Error()),
			)
		}
	}

	return summary, nil
}
