package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/carpoolhq/carpool-go/internal/domain"
	pkgkafka "github.com/carpoolhq/carpool-go/pkg/kafka"
)

// Kafka topic constants for carpool domain events.
const (
	TopicRideCreated          = "carpool.ride.created"
	TopicRideStatusChanged    = "carpool.ride.status_changed"
	TopicReservationCreated   = "carpool.reservation.created"
	TopicReservationCancelled = "carpool.reservation.cancelled"
	TopicReviewCreated        = "carpool.review.created"
	TopicInventoryFault       = "carpool.inventory.fault"
)

// Aggregate type constants.
const (
	AggregateTypeRide        = "ride"
	AggregateTypeReservation = "reservation"
	AggregateTypeReview      = "review"
)

// Source identifier for events originating from this service.
const SourceCarpoolService = "carpool-service"

// RideCreatedData is the payload for a ride.created event.
type RideCreatedData struct {
	RideID        string    `json:"ride_id"`
	DriverID      string    `json:"driver_id"`
	Origin        string    `json:"origin"`
	Destination   string    `json:"destination"`
	DepartureTime time.Time `json:"departure_time"`
	TotalSeats    int       `json:"total_seats"`
	PricePerSeat  int64     `json:"price_per_seat"`
}

// RideStatusChangedData is the payload for a ride.status_changed event.
type RideStatusChangedData struct {
	RideID string `json:"ride_id"`
	Status string `json:"status"`
}

// ReservationCreatedData is the payload for a reservation.created event.
type ReservationCreatedData struct {
	ReservationID string `json:"reservation_id"`
	RideID        string `json:"ride_id"`
	RiderID       string `json:"rider_id"`
	Seats         int    `json:"seats"`
	TotalPrice    int64  `json:"total_price"`
}

// ReservationCancelledData is the payload for a reservation.cancelled event.
type ReservationCancelledData struct {
	ReservationID string `json:"reservation_id"`
	RideID        string `json:"ride_id"`
	RiderID       string `json:"rider_id"`
	Seats         int    `json:"seats"`
}

// ReviewCreatedData is the payload for a review.created event.
type ReviewCreatedData struct {
	ReviewID      string  `json:"review_id"`
	RideID        string  `json:"ride_id"`
	ReviewerID    string  `json:"reviewer_id"`
	DriverID      string  `json:"driver_id"`
	Rating        int     `json:"rating"`
	AverageRating float64 `json:"average_rating"`
	TotalCount    int     `json:"total_count"`
}

// InventoryFaultData is the payload for an inventory.fault event. These are
// reconciliation alerts: the reservation state and the seat counter diverged
// and an operator (or a repair job) has to intervene.
type InventoryFaultData struct {
	RideID        string `json:"ride_id"`
	ReservationID string `json:"reservation_id,omitempty"`
	Seats         int    `json:"seats"`
	Operation     string `json:"operation"`
	Reason        string `json:"reason"`
}

// Producer publishes carpool domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishRideCreated publishes a ride.created event.
func (p *Producer) PublishRideCreated(ctx context.Context, ride *domain.Ride) error {
	data := RideCreatedData{
		RideID:        ride.ID,
		DriverID:      ride.DriverID,
		Origin:        ride.Origin,
		Destination:   ride.Destination,
		DepartureTime: ride.DepartureTime,
		TotalSeats:    ride.TotalSeats,
		PricePerSeat:  ride.PricePerSeat,
	}

	event, err := pkgkafka.NewEvent(TopicRideCreated, ride.ID, AggregateTypeRide, SourceCarpoolService, data)
	if err != nil {
		return fmt.Errorf("create ride.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRideCreated, event); err != nil {
		return fmt.Errorf("publish ride.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published ride.created event",
		slog.String("ride_id", ride.ID),
		slog.String("driver_id", ride.DriverID),
	)

	return nil
}

// PublishRideStatusChanged publishes a ride.status_changed event.
func (p *Producer) PublishRideStatusChanged(ctx context.Context, rideID, status string) error {
	data := RideStatusChangedData{
		RideID: rideID,
		Status: status,
	}

	event, err := pkgkafka.NewEvent(TopicRideStatusChanged, rideID, AggregateTypeRide, SourceCarpoolService, data)
	if err != nil {
		return fmt.Errorf("create ride.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRideStatusChanged, event); err != nil {
		return fmt.Errorf("publish ride.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published ride.status_changed event",
		slog.String("ride_id", rideID),
		slog.String("status", status),
	)

	return nil
}

// PublishReservationCreated publishes a reservation.created event.
func (p *Producer) PublishReservationCreated(ctx context.Context, reservation *domain.Reservation) error {
	data := ReservationCreatedData{
		ReservationID: reservation.ID,
		RideID:        reservation.RideID,
		RiderID:       reservation.RiderID,
		Seats:         reservation.Seats,
		TotalPrice:    reservation.TotalPrice,
	}

	event, err := pkgkafka.NewEvent(TopicReservationCreated, reservation.RideID, AggregateTypeReservation, SourceCarpoolService, data)
	if err != nil {
		return fmt.Errorf("create reservation.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReservationCreated, event); err != nil {
		return fmt.Errorf("publish reservation.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published reservation.created event",
		slog.String("reservation_id", reservation.ID),
		slog.String("ride_id", reservation.RideID),
	)

	return nil
}

// PublishReservationCancelled publishes a reservation.cancelled event.
func (p *Producer) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	data := ReservationCancelledData{
		ReservationID: reservation.ID,
		RideID:        reservation.RideID,
		RiderID:       reservation.RiderID,
		Seats:         reservation.Seats,
	}

	event, err := pkgkafka.NewEvent(TopicReservationCancelled, reservation.RideID, AggregateTypeReservation, SourceCarpoolService, data)
	if err != nil {
		return fmt.Errorf("create reservation.cancelled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReservationCancelled, event); err != nil {
		return fmt.Errorf("publish reservation.cancelled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published reservation.cancelled event",
		slog.String("reservation_id", reservation.ID),
		slog.String("ride_id", reservation.RideID),
	)

	return nil
}

// PublishReviewCreated publishes a review.created event carrying the driver's
// recomputed aggregate rating.
func (p *Producer) PublishReviewCreated(ctx context.Context, review *domain.Review, summary *domain.RatingSummary) error {
	data := ReviewCreatedData{
		ReviewID:      review.ID,
		RideID:        review.RideID,
		ReviewerID:    review.ReviewerID,
		DriverID:      review.DriverID,
		Rating:        review.Rating,
		AverageRating: summary.AverageRating,
		TotalCount:    summary.TotalCount,
	}

	event, err := pkgkafka.NewEvent(TopicReviewCreated, review.RideID, AggregateTypeReview, SourceCarpoolService, data)
	if err != nil {
		return fmt.Errorf("create review.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewCreated, event); err != nil {
		return fmt.Errorf("publish review.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.created event",
		slog.String("review_id", review.ID),
		slog.String("driver_id", review.DriverID),
	)

	return nil
}

// PublishInventoryFault publishes an inventory.fault reconciliation alert.
func (p *Producer) PublishInventoryFault(ctx context.Context, data InventoryFaultData) error {
	event, err := pkgkafka.NewEvent(TopicInventoryFault, data.RideID, AggregateTypeRide, SourceCarpoolService, data)
	if err != nil {
		return fmt.Errorf("create inventory.fault event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicInventoryFault, event); err != nil {
		return fmt.Errorf("publish inventory.fault event: %w", err)
	}

	p.logger.WarnContext(ctx, "published inventory.fault event",
		slog.String("ride_id", data.RideID),
		slog.String("operation", data.Operation),
		slog.String("reason", data.Reason),
	)

	return nil
}
