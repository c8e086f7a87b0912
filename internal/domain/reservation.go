package domain

import (
	"time"
)

// Reservation status constants. COMPLETED is written by the post-ride batch
// process, never by this service; it is accepted here so rows the batch has
// touched still round-trip.
const (
	ReservationStatusConfirmed = "CONFIRMED"
	ReservationStatusCancelled = "CANCELLED"
	ReservationStatusCompleted = "COMPLETED"
)

// Reservation represents seats held by a rider on a ride. At most one
// reservation row exists per (RideID, RiderID) pair, regardless of status.
type Reservation struct {
	ID         string    `json:"id"`
	RideID     string    `json:"ride_id"`
	RiderID    string    `json:"rider_id"`
	Seats      int       `json:"seats"`
	Status     string    `json:"status"`
	TotalPrice int64     `json:"total_price"`
	Note       string    `json:"note,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsConfirmed returns true if the reservation currently holds seats.
func (r *Reservation) IsConfirmed() bool {
	return r.Status == ReservationStatusConfirmed
}

// IsCancelled returns true if the reservation has been cancelled.
func (r *Reservation) IsCancelled() bool {
	return r.Status == ReservationStatusCancelled
}

// ValidReservationStatuses returns the set of valid reservation statuses.
func ValidReservationStatuses() []string {
	return []string{ReservationStatusConfirmed, ReservationStatusCancelled, ReservationStatusCompleted}
}

// IsValidReservationStatus checks whether the given status is a valid reservation status.
func IsValidReservationStatus(status string) bool {
	for _, s := range ValidReservationStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
