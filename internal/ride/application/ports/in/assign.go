package in

import (
	"context"

	"github.com/destone28/aureavia/internal/ride/domain"
)

// AssignInput — запрос на назначение водителя.
type AssignInput struct {
	RideID string

	// CandidateDriverID пуст — включается автоподбор по правилам.
	CandidateDriverID string

	// ForcedBy — администратор, форсировавший назначение в обход проверки
	// доступности. Фиксируется в assigned_by.
	ForcedBy *string

	// ActorID — кто инициировал операцию (для истории).
	ActorID string
}

// AssignRide назначает ровно одного водителя на поездку.
// Конкурентная вторая попытка на ту же поездку получает ConflictError.
type AssignRide interface {
	Assign(ctx context.Context, input AssignInput) (*domain.Ride, error)
}
