package assignment

import (
	"context"
	"time"
)

// Rule — правило приоритета назначения для временного слота.
// CompanyID nil означает пул прямых водителей. Меньший Priority — выше
// в очереди. IsBlocked превращает правило в запрет: подходящий слот
// исключает свою цель из автоподбора.
type Rule struct {
	ID        string
	Priority  int
	CompanyID *string
	SlotStart time.Duration // от полуночи
	SlotEnd   time.Duration
	DayOfWeek int // 0 = понедельник, как в ISO
	IsBlocked bool
	CreatedAt time.Time
}

// Applies сообщает, покрывает ли правило момент подачи.
func (r *Rule) Applies(at time.Time) bool {
	if int(at.Weekday()+6)%7 != r.DayOfWeek {
		return false
	}
	tod := at.Sub(at.Truncate(24 * time.Hour))
	if r.SlotEnd <= r.SlotStart {
		// слот через полночь
		return tod >= r.SlotStart || tod < r.SlotEnd
	}
	return tod >= r.SlotStart && tod < r.SlotEnd
}

// RuleRepository — хранилище правил назначения.
type RuleRepository interface {
	// ListAll возвращает все правила по возрастанию приоритета,
	// включая запрещающие.
	ListAll(ctx context.Context) ([]*Rule, error)
}
