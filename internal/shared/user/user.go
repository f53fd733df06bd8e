package user

import "time"

// Роли пользователей. Операционные роли (admin, assistant) — аудитория
// уведомлений о критических поездках.
const (
	RoleAdmin     = "admin"
	RoleAssistant = "assistant"
	RoleDriver    = "driver"
)

// User — пользователь системы. Водитель — это пользователь с ролью driver,
// флагом доступности и, опционально, партнерской компанией (nil — прямой).
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	FullName     string    `json:"full_name" db:"full_name"`
	Role         string    `json:"role" db:"role"`
	CompanyID    *string   `json:"company_id,omitempty" db:"company_id"`
	IsAvailable  bool      `json:"is_available" db:"is_available"`
	TotalRides   int       `json:"total_rides" db:"total_rides"`
	TotalKm      float64   `json:"total_km" db:"total_km"`
	TotalEarning float64   `json:"total_earnings" db:"total_earnings"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Operational проверяет, относится ли пользователь к операционным ролям.
func (u *User) Operational() bool {
	return u.Role == RoleAdmin || u.Role == RoleAssistant
}
