package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// IngestService превращает вебхуки внешних платформ в мутации хранилища.
// Идемпотентность create держится на уникальном ключе БД; Redis-кэш лишь
// срезает повторные доставки до обращения к БД.
type IngestService struct {
	rides     out.RideRepository
	dedup     out.DedupCache
	events    out.EventPublisher
	lifecycle *LifecycleService
	log       zerolog.Logger

	Now func() time.Time
}

// NewIngestService создает обработчик вебхуков.
func NewIngestService(
	rides out.RideRepository,
	dedup out.DedupCache,
	events out.EventPublisher,
	lifecycle *LifecycleService,
	log zerolog.Logger,
) *IngestService {
	return &IngestService{
		rides:     rides,
		dedup:     dedup,
		events:    events,
		lifecycle: lifecycle,
		log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateBooking создает поездку в to_assign. Повторная доставка того же
// (source_platform, external_id) возвращает существующую поездку без ошибки.
func (s *IngestService) CreateBooking(ctx context.Context, payload in.BookingCreate) (*domain.Ride, bool, error) {
	if err := checkRouteType(payload.RouteType); err != nil {
		return nil, false, err
	}

	key := dedupKey(payload.SourcePlatform, payload.ExternalID)
	if seen, err := s.dedup.Seen(ctx, key); err != nil {
		// кэш необязателен, БД все равно отловит дубль
		s.log.Warn().Err(err).Str("key", key).Msg("dedup cache unavailable")
	} else if seen {
		existing, err := s.rides.FindByExternalKey(ctx, payload.SourcePlatform, payload.ExternalID)
		if err == nil {
			s.log.Debug().Str("ride_id", existing.ID).Msg("duplicate webhook short-circuited by cache")
			return existing, false, nil
		}
		if !domain.IsNotFound(err) {
			return nil, false, err
		}
		// ключ в кэше есть, а строки нет: падаем в обычный путь создания
	}

	now := s.Now()
	externalID := payload.ExternalID
	passengerCount := payload.PassengerCount
	if passengerCount == 0 {
		passengerCount = 1
	}

	ride := &domain.Ride{
		ID:             uuid.New().String(),
		ExternalID:     &externalID,
		SourcePlatform: payload.SourcePlatform,
		Status:         domain.StatusToAssign,
		Version:        1,
		PickupAddress:  payload.PickupAddress,
		DropoffAddress: payload.DropoffAddress,
		ScheduledAt:    payload.ScheduledAt.UTC(),
		PassengerName:  payload.PassengerName,
		PassengerPhone: payload.PassengerPhone,
		PassengerCount: passengerCount,
		RouteType:      payload.RouteType,
		DistanceKm:     payload.DistanceKm,
		DurationMin:    payload.DurationMin,
		Price:          payload.Price,
		Notes:          payload.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	created, existing, err := s.rides.Create(ctx, ride, nil, "Ride received from "+payload.SourcePlatform)
	if err != nil {
		return nil, false, err
	}
	if !created {
		s.log.Info().
			Str("ride_id", existing.ID).
			Str("source_platform", payload.SourcePlatform).
			Str("external_id", payload.ExternalID).
			Msg("duplicate booking webhook ignored")
		return existing, false, nil
	}

	s.log.Info().
		Str("ride_id", ride.ID).
		Str("source_platform", ride.SourcePlatform).
		Time("scheduled_at", ride.ScheduledAt).
		Msg("ride created from webhook")

	if err := s.events.PublishRideEvent(ctx, domain.EventRideCreated, ride); err != nil {
		s.log.Error().Err(err).Str("ride_id", ride.ID).Msg("publish ride.created failed")
	}
	return ride, true, nil
}

// AmendBooking применяет частичную правку. Правки расписания или маршрута
// запрещены для выполняющейся и завершенной поездки; контактные поля и
// заметки принимаются в любом неотмененном статусе.
func (s *IngestService) AmendBooking(ctx context.Context, payload in.BookingAmend) (*domain.Ride, error) {
	if err := checkRouteType(payload.RouteType); err != nil {
		return nil, err
	}

	ride, err := s.rides.FindByExternalKey(ctx, payload.SourcePlatform, payload.ExternalID)
	if err != nil {
		return nil, err
	}
	if ride.Status == domain.StatusCancelled {
		return nil, &domain.ConflictError{RideID: ride.ID, Reason: "cannot amend a cancelled ride"}
	}

	patch := out.RidePatch{
		ScheduledAt:    payload.ScheduledAt,
		PickupAddress:  payload.PickupAddress,
		DropoffAddress: payload.DropoffAddress,
		PassengerName:  payload.PassengerName,
		PassengerPhone: payload.PassengerPhone,
		PassengerCount: payload.PassengerCount,
		RouteType:      payload.RouteType,
		DistanceKm:     payload.DistanceKm,
		DurationMin:    payload.DurationMin,
		Price:          payload.Price,
		Notes:          payload.Notes,
	}
	if patch.Empty() {
		return ride, nil
	}
	if patch.TouchesSchedule() &&
		(ride.Status == domain.StatusInProgress || ride.Status == domain.StatusCompleted) {
		return nil, &domain.ConflictError{
			RideID: ride.ID,
			Reason: fmt.Sprintf("schedule amendment rejected for status %q", ride.Status),
		}
	}
	if patch.ScheduledAt != nil {
		utc := patch.ScheduledAt.UTC()
		patch.ScheduledAt = &utc
	}

	updated, err := s.rides.UpdateFields(ctx, ride.ID, patch)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("ride_id", updated.ID).Msg("ride amended from webhook")
	if err := s.events.PublishRideEvent(ctx, domain.EventRideAmended, updated); err != nil {
		s.log.Error().Err(err).Str("ride_id", updated.ID).Msg("publish ride.updated failed")
	}
	return updated, nil
}

// CancelBooking отменяет поездку по ключу платформы. Отмена completed
// отклоняется проверкой ребра; повторная отмена идемпотентна.
func (s *IngestService) CancelBooking(ctx context.Context, payload in.BookingCancel) (*domain.Ride, error) {
	ride, err := s.rides.FindByExternalKey(ctx, payload.SourcePlatform, payload.ExternalID)
	if err != nil {
		return nil, err
	}

	notes := "Cancelled by " + payload.SourcePlatform
	if payload.Reason != nil && *payload.Reason != "" {
		notes = notes + ": " + *payload.Reason
	}
	return s.lifecycle.Cancel(ctx, ride.ID, nil, notes)
}

// checkRouteType отклоняет неизвестный тип маршрута до обращения к хранилищу.
func checkRouteType(rt *string) error {
	if rt != nil && !domain.ValidRouteType(*rt) {
		return &domain.ValidationError{
			Field:  "route_type",
			Reason: fmt.Sprintf("must be %s or %s", domain.RouteUrban, domain.RouteExtraUrban),
		}
	}
	return nil
}

func dedupKey(sourcePlatform, externalID string) string {
	return sourcePlatform + ":" + externalID
}
