package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	pkgkafka "github.com/carpoolhq/carpool-go/pkg/kafka"
)

// Kafka topics consumed by this service.
const (
	// TopicRideCompleted is produced by the trip lifecycle system when a
	// ride has actually been driven. This service never decides completion
	// on its own; it only applies the transition.
	TopicRideCompleted = "carpool.ride.completed"
)

// RideService defines the interface required by the event consumer.
type RideService interface {
	MarkCompleted(ctx context.Context, rideID string) error
}

// RideCompletedData is the expected payload of a ride.completed event.
type RideCompletedData struct {
	RideID string `json:"ride_id"`
}

// Consumer processes incoming Kafka events.
type Consumer struct {
	logger  *slog.Logger
	service RideService
}

// NewConsumer creates a new event consumer.
func NewConsumer(service RideService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleRideCompleted processes ride.completed events by transitioning the
// ride to COMPLETED. The transition is idempotent, so redelivery is harmless.
func (c *Consumer) HandleRideCompleted(ctx context.Context, event *pkgkafka.Event) error {
	var data RideCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal ride.completed data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing ride.completed event",
		slog.String("ride_id", data.RideID),
	)

	if err := c.service.MarkCompleted(ctx, data.RideID); err != nil {
		return fmt.Errorf("mark ride %s completed: %w", data.RideID, err)
	}

	c.logger.InfoContext(ctx, "ride marked completed",
		slog.String("ride_id", data.RideID),
	)

	return nil
}
