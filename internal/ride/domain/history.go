package domain

import "time"

// RideHistory — единственная append-only запись о переходе статуса.
// Формируется только машиной состояний, никогда не изменяется и не удаляется.
type RideHistory struct {
	ID        string    `json:"id" db:"id"`
	RideID    string    `json:"ride_id" db:"ride_id"`
	OldStatus *string   `json:"old_status,omitempty" db:"old_status"`
	NewStatus string    `json:"new_status" db:"new_status"`
	ChangedBy *string   `json:"changed_by,omitempty" db:"changed_by"`
	ChangedAt time.Time `json:"changed_at" db:"changed_at"`
	Notes     *string   `json:"notes,omitempty" db:"notes"`
}
