package domain

import (
	"time"
)

// Ride status constants.
const (
	RideStatusActive    = "ACTIVE"
	RideStatusFull      = "FULL"
	RideStatusCompleted = "COMPLETED"
	RideStatusCancelled = "CANCELLED"
)

// Seat capacity bounds for a single ride.
const (
	MinSeats = 1
	MaxSeats = 8
)

// Ride represents a scheduled trip offered by a driver. AvailableSeats is the
// bookable remainder and always stays within [0, TotalSeats]; the database row
// is the authoritative copy under concurrent booking.
type Ride struct {
	ID             string    `json:"id"`
	DriverID       string    `json:"driver_id"`
	Origin         string    `json:"origin"`
	Destination    string    `json:"destination"`
	Description    string    `json:"description,omitempty"`
	DepartureTime  time.Time `json:"departure_time"`
	PricePerSeat   int64     `json:"price_per_seat"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsActive returns true if the ride is open for booking.
func (r *Ride) IsActive() bool {
	return r.Status == RideStatusActive
}

// HasDeparted returns true if the ride's scheduled departure is in the past.
// Departure is judged by schedule time, not by status.
func (r *Ride) HasDeparted(now time.Time) bool {
	return !r.DepartureTime.After(now)
}

// IsTerminal returns true if the ride is in a status with no outgoing transitions.
func (r *Ride) IsTerminal() bool {
	return r.Status == RideStatusCompleted || r.Status == RideStatusCancelled
}

// ValidRideStatuses returns the set of valid ride statuses.
func ValidRideStatuses() []string {
	return []string{RideStatusActive, RideStatusFull, RideStatusCompleted, RideStatusCancelled}
}

// IsValidRideStatus checks whether the given status is a valid ride status.
func IsValidRideStatus(status string) bool {
	for _, s := range ValidRideStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// CanTransitionRideStatus reports whether a ride may move from one status to
// another. FULL is derived from seat counts and flips back to ACTIVE only via
// seat release, so it is not a valid explicit target.
func CanTransitionRideStatus(from, to string) bool {
	switch from {
	case RideStatusActive:
		return to == RideStatusCancelled || to == RideStatusCompleted
	case RideStatusFull:
		return to == RideStatusCompleted
	default:
		return false
	}
}
