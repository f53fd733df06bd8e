package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// LifecycleService — машина состояний поездки. Все изменения статуса идут
// через примитив Transition репозитория; здесь — выбор ребра, штампы времени
// и побочные эффекты (уведомления, события).
type LifecycleService struct {
	rides      out.RideRepository
	actors     out.ActorDirectory
	dispatcher out.NotificationDispatcher
	events     out.EventPublisher
	log        zerolog.Logger

	// Now подменяется в тестах.
	Now func() time.Time
}

// NewLifecycleService создает машину состояний.
func NewLifecycleService(
	rides out.RideRepository,
	actors out.ActorDirectory,
	dispatcher out.NotificationDispatcher,
	events out.EventPublisher,
	log zerolog.Logger,
) *LifecycleService {
	return &LifecycleService{
		rides:      rides,
		actors:     actors,
		dispatcher: dispatcher,
		events:     events,
		log:        log,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start — водитель начинает поездку (booked -> in_progress).
func (s *LifecycleService) Start(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(ride, driverID); err != nil {
		return nil, err
	}

	now := s.Now()
	updated, err := s.rides.Transition(ctx, out.TransitionRequest{
		RideID:          ride.ID,
		ExpectedVersion: ride.Version,
		NewStatus:       domain.StatusInProgress,
		ChangedBy:       &driverID,
		Notes:           "Driver started the ride",
		Apply: func(r *domain.Ride) {
			r.StartedAt = &now
		},
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, domain.EventRideStarted, updated)
	return updated, nil
}

// Complete — водитель завершает поездку (in_progress -> completed).
// Счетчики водителя обновляются в той же транзакции.
func (s *LifecycleService) Complete(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAssignedDriver(ride, driverID); err != nil {
		return nil, err
	}

	stats := &out.DriverStatsDelta{DriverID: driverID, Rides: 1}
	if ride.DistanceKm != nil {
		stats.Km = *ride.DistanceKm
	}
	if ride.DriverShare != nil {
		stats.Earnings = *ride.DriverShare
	}

	now := s.Now()
	updated, err := s.rides.Transition(ctx, out.TransitionRequest{
		RideID:          ride.ID,
		ExpectedVersion: ride.Version,
		NewStatus:       domain.StatusCompleted,
		ChangedBy:       &driverID,
		Notes:           "Driver completed the ride",
		Apply: func(r *domain.Ride) {
			r.CompletedAt = &now
		},
		StatsDelta: stats,
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, domain.EventRideCompleted, updated)
	return updated, nil
}

// Cancel — отмена из любого неконечного статуса. Повторная отмена уже
// отмененной поездки — успех без новой записи истории.
func (s *LifecycleService) Cancel(ctx context.Context, rideID string, actorID *string, notes string) (*domain.Ride, error) {
	ride, err := s.rides.FindByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status == domain.StatusCancelled {
		return ride, nil
	}

	if notes == "" {
		notes = "Ride cancelled"
	}

	now := s.Now()
	updated, err := s.rides.Transition(ctx, out.TransitionRequest{
		RideID:          ride.ID,
		ExpectedVersion: ride.Version,
		NewStatus:       domain.StatusCancelled,
		ChangedBy:       actorID,
		Notes:           notes,
		Apply: func(r *domain.Ride) {
			if r.CriticalAt != nil && r.CriticalResolvedAt == nil {
				resolution := domain.ResolutionCancelled
				r.CriticalResolvedAt = &now
				r.CriticalResolutionType = &resolution
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if updated.DriverID != nil {
		if err := s.dispatcher.Notify(ctx, []string{*updated.DriverID}, domain.NotifyRideCancelled, updated.ID); err != nil {
			s.log.Error().Err(err).Str("ride_id", updated.ID).Msg("cancel notification failed")
		}
	}

	s.publishEvent(ctx, domain.EventRideCancelled, updated)
	return updated, nil
}

// Escalate — перевод to_assign -> critical. Вызывается монитором.
// Поездка, успевшая получить водителя между выборкой и переходом, проиграет
// проверку ребра/версии — для скана это не ошибка.
func (s *LifecycleService) Escalate(ctx context.Context, ride *domain.Ride) (*domain.Ride, error) {
	now := s.Now()
	updated, err := s.rides.Transition(ctx, out.TransitionRequest{
		RideID:          ride.ID,
		ExpectedVersion: ride.Version,
		NewStatus:       domain.StatusCritical,
		Notes:           "Auto-marked as critical: less than 3h to scheduled pickup",
		Apply: func(r *domain.Ride) {
			// critical_at ставится один раз, при первой эскалации
			if r.CriticalAt == nil {
				r.CriticalAt = &now
			}
		},
	})
	if err != nil {
		return nil, err
	}

	s.publishEvent(ctx, domain.EventRideCritical, updated)

	// Рекомендательный сигнал GPS-коллаборатору, не влияет на результат
	if err := s.events.RequestStrongGPS(ctx, updated.ID); err != nil {
		s.log.Warn().Err(err).Str("ride_id", updated.ID).Msg("strong gps request failed")
	}

	operational, err := s.actors.ListOperationalIDs(ctx)
	if err != nil {
		return updated, &domain.IntegrationError{Op: "list operational actors", Err: err}
	}
	if err := s.dispatcher.Notify(ctx, operational, domain.NotifyRideCritical, updated.ID); err != nil {
		return updated, err
	}
	return updated, nil
}

func (s *LifecycleService) requireAssignedDriver(ride *domain.Ride, driverID string) error {
	if ride.DriverID == nil || *ride.DriverID != driverID {
		return &domain.ConflictError{
			RideID: ride.ID,
			Reason: "actor is not the assigned driver",
		}
	}
	return nil
}

// publishEvent — best-effort: недоступный брокер не откатывает переход.
func (s *LifecycleService) publishEvent(ctx context.Context, eventType string, ride *domain.Ride) {
	if err := s.events.PublishRideEvent(ctx, eventType, ride); err != nil {
		s.log.Error().Err(err).
			Str("ride_id", ride.ID).
			Str("event_type", eventType).
			Msg("publish lifecycle event failed")
	}
}
