package mq

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Exchanges и очереди ядра.
const (
	ExchangeRideEvents    = "ride.events"    // topic: события жизненного цикла
	ExchangeNotifications = "notifications"  // topic: доставки push/email коллаборатору
	ExchangeGPSCommands   = "gps.commands"   // fanout: рекомендательные сигналы GPS-сэмплинга

	QueueNotificationsOut = "notifications.outbound"
)

// SetupTopology создает exchanges, очереди и bindings ядра.
func SetupTopology(mq *RabbitMQ, log zerolog.Logger) error {
	ch := mq.Channel()
	if ch == nil {
		return fmt.Errorf("rabbitmq channel not available")
	}

	if err := ch.ExchangeDeclare(
		ExchangeRideEvents,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // args
	); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeRideEvents, err)
	}

	if err := ch.ExchangeDeclare(ExchangeNotifications, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeNotifications, err)
	}

	if err := ch.ExchangeDeclare(ExchangeGPSCommands, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", ExchangeGPSCommands, err)
	}

	// Очереди для событий поездок: по одной на тип события.
	rideQueues := []string{
		"ride.created",
		"ride.critical",
		"ride.assigned",
		"ride.started",
		"ride.completed",
		"ride.cancelled",
		"ride.amended",
	}
	for _, q := range rideQueues {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, ExchangeRideEvents, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}

	// Очередь для транспорта уведомлений (push/email коллаборатор).
	if _, err := ch.QueueDeclare(QueueNotificationsOut, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", QueueNotificationsOut, err)
	}
	if err := ch.QueueBind(QueueNotificationsOut, "notify.#", ExchangeNotifications, false, nil); err != nil {
		return fmt.Errorf("bind %s: %w", QueueNotificationsOut, err)
	}

	log.Info().Msg("rabbitmq topology ready")
	return nil
}
