package out

import "context"

// Driver — то немногое, что ядро знает о водителе: идентичность,
// принадлежность к партнерской компании и доступность.
type Driver struct {
	ID            string
	CompanyID     *string // nil — прямой водитель
	Available     bool
	CompanyActive bool
}

// Direct сообщает, что водитель прямой (не из партнерской компании).
func (d Driver) Direct() bool { return d.CompanyID == nil }

// DriverDirectory — справочник водителей, принадлежащий внешнему коллаборатору.
type DriverDirectory interface {
	Get(ctx context.Context, driverID string) (*Driver, error)
	ListAvailable(ctx context.Context) ([]*Driver, error)
}
