package domain

import (
	"time"
)

// User role constants.
const (
	RoleRider  = "RIDER"
	RoleDriver = "DRIVER"
)

// User is the local projection of an account, carrying the driver's
// aggregate rating. Rating is recomputed from reviews on every new review
// and rounded half-up to one decimal.
type User struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	Rating      float64   `json:"rating"`
	RatingCount int       `json:"rating_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// IsDriver returns true if the user offers rides.
func (u *User) IsDriver() bool {
	return u.Role == RoleDriver
}
