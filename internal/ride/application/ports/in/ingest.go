package in

import (
	"context"
	"time"

	"github.com/destone28/aureavia/internal/ride/domain"
)

// BookingCreate — событие нового бронирования от внешней платформы.
type BookingCreate struct {
	ExternalID     string    `json:"external_id" validate:"required,max=100"`
	SourcePlatform string    `json:"source_platform" validate:"required,max=100"`
	PickupAddress  string    `json:"pickup_address" validate:"required,max=500"`
	DropoffAddress string    `json:"dropoff_address" validate:"required,max=500"`
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
	PassengerName  *string   `json:"passenger_name,omitempty" validate:"omitempty,max=200"`
	PassengerPhone *string   `json:"passenger_phone,omitempty" validate:"omitempty,max=30"`
	PassengerCount int       `json:"passenger_count" validate:"omitempty,min=1,max=16"`
	RouteType      *string   `json:"route_type,omitempty" validate:"omitempty,oneof=urban extra_urban"`
	DistanceKm     *float64  `json:"distance_km,omitempty" validate:"omitempty,gte=0"`
	DurationMin    *int      `json:"duration_min,omitempty" validate:"omitempty,gte=0"`
	Price          *float64  `json:"price,omitempty" validate:"omitempty,gte=0"`
	Notes          *string   `json:"notes,omitempty"`
}

// BookingAmend — частичная правка существующего бронирования.
type BookingAmend struct {
	ExternalID     string     `json:"external_id" validate:"required,max=100"`
	SourcePlatform string     `json:"source_platform" validate:"required,max=100"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	PickupAddress  *string    `json:"pickup_address,omitempty" validate:"omitempty,max=500"`
	DropoffAddress *string    `json:"dropoff_address,omitempty" validate:"omitempty,max=500"`
	PassengerName  *string    `json:"passenger_name,omitempty" validate:"omitempty,max=200"`
	PassengerPhone *string    `json:"passenger_phone,omitempty" validate:"omitempty,max=30"`
	PassengerCount *int       `json:"passenger_count,omitempty" validate:"omitempty,min=1,max=16"`
	RouteType      *string    `json:"route_type,omitempty" validate:"omitempty,oneof=urban extra_urban"`
	DistanceKm     *float64   `json:"distance_km,omitempty" validate:"omitempty,gte=0"`
	DurationMin    *int       `json:"duration_min,omitempty" validate:"omitempty,gte=0"`
	Price          *float64   `json:"price,omitempty" validate:"omitempty,gte=0"`
	Notes          *string    `json:"notes,omitempty"`
}

// BookingCancel — отмена бронирования внешней платформой.
type BookingCancel struct {
	ExternalID     string  `json:"external_id" validate:"required,max=100"`
	SourcePlatform string  `json:"source_platform" validate:"required,max=100"`
	Reason         *string `json:"reason,omitempty"`
}

// IngestBooking — нормализация входящих вебхуков в мутации хранилища.
type IngestBooking interface {
	// CreateBooking идемпотентен: повторная доставка того же
	// (source_platform, external_id) возвращает существующую поездку
	// и created=false.
	CreateBooking(ctx context.Context, payload BookingCreate) (ride *domain.Ride, created bool, err error)

	// AmendBooking применяет патч полей без перехода статуса. Правки
	// расписания/маршрута для выполняющейся или завершенной поездки
	// отклоняются с ConflictError; контактные поля и заметки допустимы.
	AmendBooking(ctx context.Context, payload BookingAmend) (*domain.Ride, error)

	// CancelBooking ведет поездку через ребро -> cancelled. Если ребро
	// нелегально (например completed), возвращается доменный отказ.
	CancelBooking(ctx context.Context, payload BookingCancel) (*domain.Ride, error)
}
