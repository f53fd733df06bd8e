package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// Lock — распределенный лок одного прохода скана. nil-safe обертка
// делается в конструкторе.
type Lock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Monitor периодически ищет неназначенные поездки с подачей ближе трех
// часов и эскалирует их в critical. Поездки с подачей в прошлом не
// эскалируются. Проход single-flight: внутри процесса — атомарный флаг,
// между инстансами — Redis-лок.
type Monitor struct {
	rides     out.RideRepository
	escalator in.EscalateRide
	lock      Lock
	interval  time.Duration
	window    time.Duration
	log       zerolog.Logger

	running atomic.Bool

	// Now подменяется в тестах.
	Now func() time.Time
}

// New создает монитор критических поездок. lock может быть nil при
// единственном инстансе.
func New(
	rides out.RideRepository,
	escalator in.EscalateRide,
	lock Lock,
	interval, window time.Duration,
	log zerolog.Logger,
) *Monitor {
	if window <= 0 {
		window = domain.CriticalWindow
	}
	return &Monitor{
		rides:     rides,
		escalator: escalator,
		lock:      lock,
		interval:  interval,
		window:    window,
		log:       log,
		Now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run крутит тикер до отмены контекста. Первый проход выполняется сразу.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info().
		Dur("interval", m.interval).
		Dur("window", m.window).
		Msg("critical ride monitor started")

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	if err := m.Scan(ctx); err != nil {
		m.log.Error().Err(err).Msg("critical scan failed")
	}
	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("critical ride monitor stopped")
			return
		case <-ticker.C:
			if err := m.Scan(ctx); err != nil {
				m.log.Error().Err(err).Msg("critical scan failed")
			}
		}
	}
}

// Scan выполняет один проход. Затянувшийся предыдущий проход не
// накладывается: новый тик просто пропускается.
func (m *Monitor) Scan(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		m.log.Debug().Msg("previous scan still running, tick skipped")
		return nil
	}
	defer m.running.Store(false)

	if m.lock != nil {
		acquired, err := m.lock.TryAcquire(ctx)
		if err != nil {
			// Redis недоступен: сканируем без распределенного лока, эскалация
			// все равно идемпотентна за счет проверки ребра в Transition
			m.log.Warn().Err(err).Msg("scan lock unavailable, proceeding without it")
		} else if !acquired {
			m.log.Debug().Msg("scan lock held by another instance, tick skipped")
			return nil
		} else {
			defer func() {
				if err := m.lock.Release(ctx); err != nil {
					m.log.Warn().Err(err).Msg("scan lock release failed")
				}
			}()
		}
	}

	now := m.Now()
	due, err := m.rides.ListUnassignedDue(ctx, now, now.Add(m.window))
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	escalated, failed := 0, 0
	for _, ride := range due {
		if _, err := m.escalator.Escalate(ctx, ride); err != nil {
			// конфликт означает, что поездку успели назначить или отменить
			// между выборкой и переходом — для скана это не сбой
			if domain.IsConflict(err) {
				m.log.Debug().Str("ride_id", ride.ID).Msg("ride changed under scan, skipped")
				continue
			}
			failed++
			m.log.Error().Err(err).Str("ride_id", ride.ID).Msg("ride escalation failed")
			continue
		}
		escalated++
	}

	m.log.Info().
		Int("due", len(due)).
		Int("escalated", escalated).
		Int("failed", failed).
		Msg("critical scan completed")
	return nil
}
