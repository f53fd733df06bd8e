package out_amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/domain"
	"github.com/destone28/aureavia/internal/shared/mq"
)

// RideEventPublisher публикует события жизненного цикла поездок в RabbitMQ.
type RideEventPublisher struct {
	mq  *mq.RabbitMQ
	log zerolog.Logger
}

// NewRideEventPublisher создает новый publisher.
func NewRideEventPublisher(mqConn *mq.RabbitMQ, log zerolog.Logger) *RideEventPublisher {
	return &RideEventPublisher{mq: mqConn, log: log}
}

// PublishRideEvent публикует событие поездки в exchange ride.events.
func (p *RideEventPublisher) PublishRideEvent(ctx context.Context, eventType string, ride *domain.Ride) error {
	event := domain.RideEvent{
		ID:        uuid.New().String(),
		RideID:    ride.ID,
		EventType: eventType,
		EventData: ride,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal ride event: %w", err)
	}

	routingKey := routingKeyFor(eventType)

	if err := p.mq.Publish(ctx, mq.ExchangeRideEvents, routingKey, payload); err != nil {
		p.log.Error().Err(err).
			Str("ride_id", ride.ID).
			Str("event_type", eventType).
			Str("routing_key", routingKey).
			Msg("publish ride event failed")
		return &domain.IntegrationError{Op: "publish ride event", Err: err}
	}

	p.log.Debug().
		Str("ride_id", ride.ID).
		Str("event_type", eventType).
		Str("routing_key", routingKey).
		Msg("ride event published")

	return nil
}

// RequestStrongGPS шлет рекомендательный сигнал GPS-коллаборатору включить
// частый сэмплинг для поездки.
func (p *RideEventPublisher) RequestStrongGPS(ctx context.Context, rideID string) error {
	payload, err := json.Marshal(map[string]string{
		"command": "strong_sampling",
		"ride_id": rideID,
	})
	if err != nil {
		return fmt.Errorf("marshal gps command: %w", err)
	}

	if err := p.mq.Publish(ctx, mq.ExchangeGPSCommands, "", payload); err != nil {
		p.log.Warn().Err(err).Str("ride_id", rideID).Msg("strong gps signal failed")
		return &domain.IntegrationError{Op: "request strong gps", Err: err}
	}
	return nil
}

func routingKeyFor(eventType string) string {
	switch eventType {
	case domain.EventRideCreated:
		return "ride.created"
	case domain.EventRideCritical:
		return "ride.critical"
	case domain.EventRideAssigned:
		return "ride.assigned"
	case domain.EventRideStarted:
		return "ride.started"
	case domain.EventRideCompleted:
		return "ride.completed"
	case domain.EventRideCancelled:
		return "ride.cancelled"
	case domain.EventRideAmended:
		return "ride.amended"
	default:
		return "ride.event"
	}
}
