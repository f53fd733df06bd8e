package out

import (
	"context"
	"time"

	"github.com/destone28/aureavia/internal/ride/domain"
)

// DriverStatsDelta — инкремент счетчиков водителя, применяемый в той же
// транзакции, что и переход статуса (используется при завершении поездки).
type DriverStatsDelta struct {
	DriverID string
	Rides    int
	Km       float64
	Earnings float64
}

// TransitionRequest — единственный примитив записи статуса.
// Внутри одной транзакции: читается текущая (status, version), проверяется
// легальность ребра и совпадение ExpectedVersion, применяется Apply к полям,
// пишется новый статус с version+1 и добавляется ровно одна запись истории.
type TransitionRequest struct {
	RideID          string
	ExpectedVersion int64
	NewStatus       string
	ChangedBy       *string
	Notes           string

	// Apply мутирует поля поездки (driver_id, critical_* и т.д.) внутри
	// той же транзакции. Может быть nil.
	Apply func(*domain.Ride)

	// StatsDelta — необязательное обновление счетчиков водителя в той же
	// транзакции.
	StatsDelta *DriverStatsDelta
}

// RidePatch — частичное обновление полей при amendment. Никогда не трогает статус.
type RidePatch struct {
	ScheduledAt    *time.Time
	PickupAddress  *string
	DropoffAddress *string
	PassengerName  *string
	PassengerPhone *string
	PassengerCount *int
	RouteType      *string
	DistanceKm     *float64
	DurationMin    *int
	Price          *float64
	Notes          *string
}

// TouchesSchedule сообщает, затрагивает ли патч расписание/маршрут —
// такие правки запрещены для выполняющейся или завершенной поездки.
func (p RidePatch) TouchesSchedule() bool {
	return p.ScheduledAt != nil || p.PickupAddress != nil || p.DropoffAddress != nil ||
		p.RouteType != nil || p.DistanceKm != nil || p.DurationMin != nil || p.Price != nil
}

// Empty сообщает, что патч не содержит ни одного поля.
func (p RidePatch) Empty() bool {
	return !p.TouchesSchedule() && p.PassengerName == nil && p.PassengerPhone == nil &&
		p.PassengerCount == nil && p.Notes == nil
}

// ListFilter — фильтры выборки поездок.
type ListFilter struct {
	Status         string
	DateFrom       *time.Time
	DateTo         *time.Time
	DriverID       string
	SourcePlatform string

	// VisibleToDriver ограничивает выборку: свои поездки плюс неназначенный пул.
	VisibleToDriver string

	Page     int
	PageSize int
}

// RideRepository — хранилище поездок. Transition — единственный путь записи
// для status, driver_id, critical_at и critical_resolved_at.
type RideRepository interface {
	// Create создает поездку в to_assign и пишет первую запись истории.
	// При нарушении уникальности (source_platform, external_id) возвращает
	// уже существующую поездку и created=false.
	Create(ctx context.Context, ride *domain.Ride, createdBy *string, notes string) (created bool, existing *domain.Ride, err error)

	FindByID(ctx context.Context, rideID string) (*domain.Ride, error)
	FindByExternalKey(ctx context.Context, sourcePlatform, externalID string) (*domain.Ride, error)

	List(ctx context.Context, f ListFilter) ([]*domain.Ride, int, error)

	// ListUnassignedDue возвращает to_assign поездки с подачей в окне
	// (now, until]. Уже критические исключены самим предикатом статуса.
	ListUnassignedDue(ctx context.Context, now, until time.Time) ([]*domain.Ride, error)

	// CountActiveByDriver — количество назначенных незавершенных поездок водителя.
	CountActiveByDriver(ctx context.Context, driverID string) (int, error)

	Transition(ctx context.Context, req TransitionRequest) (*domain.Ride, error)

	// UpdateFields применяет amendment-патч без смены статуса.
	UpdateFields(ctx context.Context, rideID string, patch RidePatch) (*domain.Ride, error)

	History(ctx context.Context, rideID string) ([]*domain.RideHistory, error)
}
