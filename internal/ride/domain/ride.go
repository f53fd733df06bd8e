package domain

import "time"

// Статусы поездки. Значения пишутся в БД и наружу как есть.
const (
	StatusToAssign   = "to_assign"
	StatusCritical   = "critical"
	StatusBooked     = "booked"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Типы разрешения критической поездки.
const (
	ResolutionAssignedNormal = "assigned_normal"
	ResolutionAssignedForced = "assigned_forced"
	ResolutionCancelled      = "cancelled"
)

// Типы маршрута.
const (
	RouteUrban      = "urban"
	RouteExtraUrban = "extra_urban"
)

// ValidRouteType сообщает, является ли значение известным типом маршрута.
func ValidRouteType(rt string) bool {
	return rt == RouteUrban || rt == RouteExtraUrban
}

// CriticalWindow — за сколько до подачи неназначенная поездка считается критической.
const CriticalWindow = 3 * time.Hour

// Ride — основная сущность: посредническая поездка (NCC).
// Пара (SourcePlatform, ExternalID) уникальна и служит ключом идемпотентности
// для вебхуков. Version увеличивается на каждом переходе статуса.
type Ride struct {
	ID             string  `json:"id" db:"id"`
	ExternalID     *string `json:"external_id,omitempty" db:"external_id"`
	SourcePlatform string  `json:"source_platform" db:"source_platform"`
	Status         string  `json:"status" db:"status"`
	Version        int64   `json:"version" db:"version"`

	PickupAddress  string `json:"pickup_address" db:"pickup_address"`
	DropoffAddress string `json:"dropoff_address" db:"dropoff_address"`

	ScheduledAt time.Time  `json:"scheduled_at" db:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	PassengerName  *string `json:"passenger_name,omitempty" db:"passenger_name"`
	PassengerPhone *string `json:"passenger_phone,omitempty" db:"passenger_phone"`
	PassengerCount int     `json:"passenger_count" db:"passenger_count"`

	RouteType   *string  `json:"route_type,omitempty" db:"route_type"`
	DistanceKm  *float64 `json:"distance_km,omitempty" db:"distance_km"`
	DurationMin *int     `json:"duration_min,omitempty" db:"duration_min"`
	Price       *float64 `json:"price,omitempty" db:"price"`
	DriverShare *float64 `json:"driver_share,omitempty" db:"driver_share"`
	Notes       *string  `json:"notes,omitempty" db:"notes"`

	DriverID   *string `json:"driver_id,omitempty" db:"driver_id"`
	AssignedBy *string `json:"assigned_by,omitempty" db:"assigned_by"`

	CriticalAt             *time.Time `json:"critical_at,omitempty" db:"critical_at"`
	CriticalResolvedAt     *time.Time `json:"critical_resolved_at,omitempty" db:"critical_resolved_at"`
	CriticalResolutionType *string    `json:"critical_resolution_type,omitempty" db:"critical_resolution_type"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Assignable сообщает, можно ли назначить водителя на поездку.
func (r *Ride) Assignable() bool {
	return r.Status == StatusToAssign || r.Status == StatusCritical
}

// Terminal сообщает, достигла ли поездка конечного статуса.
func (r *Ride) Terminal() bool {
	return r.Status == StatusCompleted || r.Status == StatusCancelled
}
