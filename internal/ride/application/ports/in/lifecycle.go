package in

import (
	"context"

	"github.com/destone28/aureavia/internal/ride/domain"
)

// StartRide — водитель начинает подтвержденную поездку (booked -> in_progress).
type StartRide interface {
	Start(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
}

// CompleteRide — водитель завершает поездку (in_progress -> completed).
type CompleteRide interface {
	Complete(ctx context.Context, rideID, driverID string) (*domain.Ride, error)
}

// CancelRide — отмена из любого неконечного статуса.
// Повторная отмена уже отмененной поездки — успех без новой записи истории.
type CancelRide interface {
	Cancel(ctx context.Context, rideID string, actorID *string, notes string) (*domain.Ride, error)
}

// EscalateRide — перевод to_assign -> critical монитором.
// Проигранная гонка (поездка успела получить водителя) — не ошибка скана.
type EscalateRide interface {
	Escalate(ctx context.Context, ride *domain.Ride) (*domain.Ride, error)
}
