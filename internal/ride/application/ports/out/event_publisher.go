package out

import (
	"context"

	"github.com/destone28/aureavia/internal/ride/domain"
)

// EventPublisher публикует события жизненного цикла поездки во внешний мир.
type EventPublisher interface {
	PublishRideEvent(ctx context.Context, eventType string, ride *domain.Ride) error

	// RequestStrongGPS — рекомендательный сигнал GPS-коллаборатору включить
	// частый сэмплинг для водителя критической поездки. Ошибка не влияет
	// на состояние ядра.
	RequestStrongGPS(ctx context.Context, rideID string) error
}

// DedupCache — быстрый TTL-кэш перед уникальным ключом БД для входящих
// вебхуков. БД остается источником истины: промах кэша безопасен.
type DedupCache interface {
	// Seen отмечает ключ и сообщает, встречался ли он раньше.
	Seen(ctx context.Context, key string) (bool, error)
}
