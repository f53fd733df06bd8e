package domain

import (
	"errors"
	"fmt"
)

// ConflictError — нелегальное ребро статуса или проигранная гонка
// (несовпадение version). Вызывающий может перечитать и повторить.
type ConflictError struct {
	RideID string
	From   string
	To     string
	Reason string
}

func (e *ConflictError) Error() string {
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("%s: %s -> %s", e.Reason, e.From, e.To)
	}
	return e.Reason
}

// NotFoundError — сущность не найдена.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// ValidationError — некорректный входящий payload, отклоняется до обращения к БД.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NoEligibleDriverError — автоподбор не нашел ни одного подходящего водителя.
type NoEligibleDriverError struct {
	RideID string
}

func (e *NoEligibleDriverError) Error() string {
	return fmt.Sprintf("no eligible driver for ride %s", e.RideID)
}

// DriverUnavailableError — явный кандидат недоступен, а назначение не форсировано.
type DriverUnavailableError struct {
	DriverID string
}

func (e *DriverUnavailableError) Error() string {
	return fmt.Sprintf("driver %s is not available", e.DriverID)
}

// IntegrationError — недоступен внешний транспорт (брокер, push/email).
// Никогда не фатален для состояния ядра.
type IntegrationError struct {
	Op  string
	Err error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("integration %s: %v", e.Op, e.Err)
}

func (e *IntegrationError) Unwrap() error { return e.Err }

// IsConflict сообщает, является ли ошибка конфликтом перехода/версии.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// IsNotFound сообщает, является ли ошибка отсутствием сущности.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
