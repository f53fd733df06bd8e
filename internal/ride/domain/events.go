package domain

import "time"

// Типы событий жизненного цикла, публикуемых в RabbitMQ.
const (
	EventRideCreated   = "RIDE_CREATED"
	EventRideCritical  = "RIDE_CRITICAL"
	EventRideAssigned  = "RIDE_ASSIGNED"
	EventRideStarted   = "RIDE_STARTED"
	EventRideCompleted = "RIDE_COMPLETED"
	EventRideCancelled = "RIDE_CANCELLED"
	EventRideAmended   = "RIDE_AMENDED"
)

// Виды уведомлений для диспетчера уведомлений.
const (
	NotifyRideCritical  = "ride_critical"
	NotifyRideAssigned  = "ride_assigned"
	NotifyRideAccepted  = "ride_accepted"
	NotifyRideCancelled = "ride_cancelled"
)

// RideEvent — событие, уходящее во внешний мир через брокер.
type RideEvent struct {
	ID        string    `json:"id"`
	RideID    string    `json:"ride_id"`
	EventType string    `json:"event_type"`
	EventData any       `json:"event_data"`
	CreatedAt time.Time `json:"created_at"`
}
