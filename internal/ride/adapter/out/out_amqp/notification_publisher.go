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

// outboundNotification — сообщение для push/email коллаборатора.
type outboundNotification struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id"`
	Kind    string    `json:"kind"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	RideID  string    `json:"ride_id"`
	SentAt  time.Time `json:"sent_at"`
}

// NotificationPublisher выполняет порт NotificationDispatcher поверх
// RabbitMQ: по одному сообщению на получателя в exchange notifications.
type NotificationPublisher struct {
	mq  *mq.RabbitMQ
	log zerolog.Logger
}

// NewNotificationPublisher создает новый publisher.
func NewNotificationPublisher(mqConn *mq.RabbitMQ, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{mq: mqConn, log: log}
}

// Notify публикует уведомление каждому получателю. Частичный сбой не
// останавливает рассылку остальным; возвращается первый встреченный сбой.
func (p *NotificationPublisher) Notify(ctx context.Context, userIDs []string, kind string, rideID string) error {
	title, body := notificationText(kind, rideID)
	routingKey := "notify." + kind

	var firstErr error
	for _, userID := range userIDs {
		payload, err := json.Marshal(outboundNotification{
			ID:     uuid.New().String(),
			UserID: userID,
			Kind:   kind,
			Title:  title,
			Body:   body,
			RideID: rideID,
			SentAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("marshal notification: %w", err)
		}

		if err := p.mq.Publish(ctx, mq.ExchangeNotifications, routingKey, payload); err != nil {
			p.log.Error().Err(err).
				Str("user_id", userID).
				Str("ride_id", rideID).
				Str("kind", kind).
				Msg("publish notification failed")
			if firstErr == nil {
				firstErr = &domain.IntegrationError{Op: "publish notification", Err: err}
			}
		}
	}
	return firstErr
}

// notificationText — заголовки в продуктовом языке платформы.
func notificationText(kind, rideID string) (title, body string) {
	switch kind {
	case domain.NotifyRideCritical:
		return "Corsa critica", fmt.Sprintf("La corsa %s non è ancora assegnata a meno di 3 ore dalla partenza.", rideID)
	case domain.NotifyRideAssigned:
		return "Nuova corsa assegnata", fmt.Sprintf("Ti è stata assegnata la corsa %s.", rideID)
	case domain.NotifyRideAccepted:
		return "Corsa accettata", fmt.Sprintf("La corsa %s è stata accettata dal driver.", rideID)
	case domain.NotifyRideCancelled:
		return "Corsa cancellata", fmt.Sprintf("La corsa %s è stata cancellata.", rideID)
	default:
		return kind, fmt.Sprintf("Aggiornamento corsa %s.", rideID)
	}
}
