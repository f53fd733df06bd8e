package in

import (
	"context"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// RideWithHistory — поездка вместе с полной историей переходов.
type RideWithHistory struct {
	Ride    *domain.Ride          `json:"ride"`
	History []*domain.RideHistory `json:"history"`
}

// QueryRides — read-only операции для внешнего API-слоя.
type QueryRides interface {
	GetRide(ctx context.Context, rideID string) (*RideWithHistory, error)
	ListRides(ctx context.Context, f out.ListFilter) ([]*domain.Ride, int, error)
	ListCritical(ctx context.Context) ([]*domain.Ride, error)
}
