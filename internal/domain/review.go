package domain

import (
	"time"
)

// Rating bounds for a review.
const (
	MinRating = 1
	MaxRating = 5
)

// RecentReviewsLimit caps the number of reviews returned by the recent-reviews query.
const RecentReviewsLimit = 10

// Review is a rider's rating of a driver for one completed ride. At most one
// review row exists per (RideID, ReviewerID) pair.
type Review struct {
	ID         string    `json:"id"`
	RideID     string    `json:"ride_id"`
	ReviewerID string    `json:"reviewer_id"`
	DriverID   string    `json:"driver_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RatingSummary is the aggregate rating for a driver.
type RatingSummary struct {
	DriverID      string  `json:"driver_id"`
	AverageRating float64 `json:"average_rating"`
	TotalCount    int     `json:"total_count"`
}

// IsValidRating checks whether the rating is within the allowed range.
func IsValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
