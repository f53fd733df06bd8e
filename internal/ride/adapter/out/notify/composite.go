package notify

import (
	"context"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
)

// CompositeDispatcher рассылает уведомление по всем каналам. WebSocket —
// best-effort для открытых дашбордов, AMQP — основной канал для push/email
// коллаборатора. Ошибка основного канала возвращается вызывающему.
type CompositeDispatcher struct {
	channels []out.NotificationDispatcher
}

// NewCompositeDispatcher собирает диспетчер из каналов доставки.
func NewCompositeDispatcher(channels ...out.NotificationDispatcher) *CompositeDispatcher {
	return &CompositeDispatcher{channels: channels}
}

// Notify выполняет рассылку по каждому каналу, возвращая первый сбой.
func (d *CompositeDispatcher) Notify(ctx context.Context, userIDs []string, kind string, rideID string) error {
	var firstErr error
	for _, ch := range d.channels {
		if err := ch.Notify(ctx, userIDs, kind, rideID); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
