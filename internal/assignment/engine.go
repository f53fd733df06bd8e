package assignment

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// приоритеты пулов по умолчанию, когда правило для пула отсутствует
const (
	defaultDirectPriority  = 0
	defaultCompanyPriority = 1 << 30
)

// Engine назначает водителей на поездки: явный кандидат или автоподбор по
// правилам приоритета. Гонка двух назначений на одну поездку разрешается
// проверкой version в Transition: побеждает ровно один.
type Engine struct {
	rides      out.RideRepository
	drivers    out.DriverDirectory
	rules      RuleRepository
	actors     out.ActorDirectory
	dispatcher out.NotificationDispatcher
	events     out.EventPublisher
	log        zerolog.Logger

	// Now подменяется в тестах.
	Now func() time.Time
}

// NewEngine создает движок назначений.
func NewEngine(
	rides out.RideRepository,
	drivers out.DriverDirectory,
	rules RuleRepository,
	actors out.ActorDirectory,
	dispatcher out.NotificationDispatcher,
	events out.EventPublisher,
	log zerolog.Logger,
) *Engine {
	return &Engine{
		rides:      rides,
		drivers:    drivers,
		rules:      rules,
		actors:     actors,
		dispatcher: dispatcher,
		events:     events,
		log:        log,
		Now:        func() time.Time { return time.Now().UTC() },
	}
}

// Assign назначает водителя и переводит поездку в booked одним переходом.
func (e *Engine) Assign(ctx context.Context, input in.AssignInput) (*domain.Ride, error) {
	ride, err := e.rides.FindByID(ctx, input.RideID)
	if err != nil {
		return nil, err
	}
	if !ride.Assignable() {
		return nil, &domain.ConflictError{
			RideID: ride.ID,
			From:   ride.Status,
			To:     domain.StatusBooked,
			Reason: "ride is not assignable",
		}
	}

	var driverID string
	if input.CandidateDriverID != "" {
		driverID, err = e.checkCandidate(ctx, input)
	} else {
		driverID, err = e.autoSelect(ctx, ride)
	}
	if err != nil {
		return nil, err
	}

	forced := input.ForcedBy != nil
	assignedBy := input.ActorID
	if forced {
		assignedBy = *input.ForcedBy
	}

	notes := "Driver assigned"
	selfAccept := !forced && input.ActorID == driverID
	switch {
	case forced:
		notes = "Driver assignment forced by admin"
	case selfAccept:
		notes = "Driver accepted the ride"
	}

	now := e.Now()
	updated, err := e.rides.Transition(ctx, out.TransitionRequest{
		RideID:          ride.ID,
		ExpectedVersion: ride.Version,
		NewStatus:       domain.StatusBooked,
		ChangedBy:       &input.ActorID,
		Notes:           notes,
		Apply: func(r *domain.Ride) {
			r.DriverID = &driverID
			r.AssignedBy = &assignedBy
			if r.CriticalAt != nil && r.CriticalResolvedAt == nil {
				resolution := domain.ResolutionAssignedNormal
				if forced {
					resolution = domain.ResolutionAssignedForced
				}
				r.CriticalResolvedAt = &now
				r.CriticalResolutionType = &resolution
			}
		},
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("ride_id", updated.ID).
		Str("driver_id", driverID).
		Bool("forced", forced).
		Msg("driver assigned")

	e.notifyAssigned(ctx, updated, driverID, selfAccept)

	if err := e.events.PublishRideEvent(ctx, domain.EventRideAssigned, updated); err != nil {
		e.log.Error().Err(err).Str("ride_id", updated.ID).Msg("publish ride assigned event failed")
	}
	return updated, nil
}

// checkCandidate проверяет явного кандидата. Форсированное назначение
// обходит проверку доступности, но не существование водителя.
func (e *Engine) checkCandidate(ctx context.Context, input in.AssignInput) (string, error) {
	d, err := e.drivers.Get(ctx, input.CandidateDriverID)
	if err != nil {
		return "", err
	}
	if input.ForcedBy == nil {
		if !d.Available || (!d.Direct() && !d.CompanyActive) {
			return "", &domain.DriverUnavailableError{DriverID: d.ID}
		}
	}
	return d.ID, nil
}

// autoSelect выбирает водителя по правилам: пулы (прямые водители, компании)
// упорядочиваются по приоритету применимых правил, запрещающее правило
// исключает свой пул. Внутри пула побеждает водитель с наименьшим числом
// активных поездок, при равенстве — с меньшим ID.
func (e *Engine) autoSelect(ctx context.Context, ride *domain.Ride) (string, error) {
	candidates, err := e.drivers.ListAvailable(ctx)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", &domain.NoEligibleDriverError{RideID: ride.ID}
	}

	rules, err := e.rules.ListAll(ctx)
	if err != nil {
		return "", err
	}

	priority, blocked := poolPolicy(rules, ride.ScheduledAt)

	pools := make(map[string][]*out.Driver)
	for _, d := range candidates {
		key := ""
		if d.CompanyID != nil {
			key = *d.CompanyID
		}
		if blocked[key] {
			continue
		}
		pools[key] = append(pools[key], d)
	}

	keys := make([]string, 0, len(pools))
	for key := range pools {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		pi, pj := poolPriority(priority, keys[i]), poolPriority(priority, keys[j])
		if pi != pj {
			return pi < pj
		}
		return keys[i] < keys[j]
	})

	for _, key := range keys {
		winner, err := e.leastBusy(ctx, pools[key])
		if err != nil {
			return "", err
		}
		if winner != "" {
			return winner, nil
		}
	}
	return "", &domain.NoEligibleDriverError{RideID: ride.ID}
}

// poolPolicy сводит применимые правила к приоритету пула и множеству
// запрещенных пулов. Ключ пула — company_id, пустая строка — прямые водители.
func poolPolicy(rules []*Rule, at time.Time) (map[string]int, map[string]bool) {
	priority := make(map[string]int)
	blocked := make(map[string]bool)
	for _, rule := range rules {
		if !rule.Applies(at) {
			continue
		}
		key := ""
		if rule.CompanyID != nil {
			key = *rule.CompanyID
		}
		if rule.IsBlocked {
			blocked[key] = true
			continue
		}
		if cur, ok := priority[key]; !ok || rule.Priority < cur {
			priority[key] = rule.Priority
		}
	}
	return priority, blocked
}

func poolPriority(priority map[string]int, key string) int {
	if p, ok := priority[key]; ok {
		return p
	}
	if key == "" {
		return defaultDirectPriority
	}
	return defaultCompanyPriority
}

func (e *Engine) leastBusy(ctx context.Context, pool []*out.Driver) (string, error) {
	best := ""
	bestActive := 0
	for _, d := range pool {
		active, err := e.rides.CountActiveByDriver(ctx, d.ID)
		if err != nil {
			return "", err
		}
		if best == "" || active < bestActive || (active == bestActive && d.ID < best) {
			best = d.ID
			bestActive = active
		}
	}
	return best, nil
}

// notifyAssigned — уведомления после назначения: водителю при назначении
// оператором, операторам при самостоятельном принятии водителем.
func (e *Engine) notifyAssigned(ctx context.Context, ride *domain.Ride, driverID string, selfAccept bool) {
	if selfAccept {
		operational, err := e.actors.ListOperationalIDs(ctx)
		if err != nil {
			e.log.Error().Err(err).Str("ride_id", ride.ID).Msg("list operational actors failed")
			return
		}
		if err := e.dispatcher.Notify(ctx, operational, domain.NotifyRideAccepted, ride.ID); err != nil {
			e.log.Error().Err(err).Str("ride_id", ride.ID).Msg("accept notification failed")
		}
		return
	}
	if err := e.dispatcher.Notify(ctx, []string{driverID}, domain.NotifyRideAssigned, ride.ID); err != nil {
		e.log.Error().Err(err).Str("ride_id", ride.ID).Msg("assign notification failed")
	}
}
