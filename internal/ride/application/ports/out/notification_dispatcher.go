package out

import "context"

// NotificationDispatcher — fire-and-forget доставка событий жизненного цикла
// заинтересованным пользователям. Канал доставки, retry и хранение
// прочитанности — забота коллаборатора. Дубликаты допустимы: защита от
// повторного триггера лежит на critical_at, а не на доставке.
type NotificationDispatcher interface {
	Notify(ctx context.Context, userIDs []string, kind string, rideID string) error
}

// ActorDirectory — справочник пользователей для рассылки уведомлений.
type ActorDirectory interface {
	// ListOperationalIDs возвращает пользователей операционных ролей
	// (admin, assistant).
	ListOperationalIDs(ctx context.Context) ([]string, error)
}
