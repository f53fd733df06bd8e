package usecase

import (
	"context"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// QueryService — read-only выборки для API.
type QueryService struct {
	rides out.RideRepository
}

// NewQueryService создает сервис выборок.
func NewQueryService(rides out.RideRepository) *QueryService {
	return &QueryService{rides: rides}
}

// GetRide возвращает поездку вместе с историей переходов.
func (s *QueryService) GetRide(ctx context.Context, rideID string) (*in.RideWithHistory, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	history, err := s.rides.History(ctx, rideID)
	if err != nil {
		return nil, err
	}
	return &in.RideWithHistory{Ride: ride, History: history}, nil
}

// ListRides возвращает страницу поездок и общее число под фильтром.
func (s *QueryService) ListRides(ctx context.Context, f out.ListFilter) ([]*domain.Ride, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 200 {
		f.PageSize = 50
	}
	return s.rides.List(ctx, f)
}

// ListCritical — все поездки в статусе critical.
func (s *QueryService) ListCritical(ctx context.Context) ([]*domain.Ride, error) {
	rides, _, err := s.rides.List(ctx, out.ListFilter{
		Status:   domain.StatusCritical,
		Page:     1,
		PageSize: 200,
	})
	return rides, err
}
