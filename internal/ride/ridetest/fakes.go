// Package ridetest содержит in-memory реализации портов для тестов
// use case-слоя, движка назначений и монитора.
package ridetest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
)

// MemoryRideRepo — потокобезопасный in-memory репозиторий поездок с той же
// семантикой версий и ребер, что у PostgreSQL реализации.
type MemoryRideRepo struct {
	mu      sync.Mutex
	rides   map[string]*domain.Ride
	history map[string][]*domain.RideHistory

	// Stats накапливает инкременты счетчиков водителей из Transition.
	Stats map[string]out.DriverStatsDelta

	// TransitionErr подменяет результат Transition, если задан.
	TransitionErr error
}

// NewMemoryRideRepo создает пустой репозиторий.
func NewMemoryRideRepo() *MemoryRideRepo {
	return &MemoryRideRepo{
		rides:   make(map[string]*domain.Ride),
		history: make(map[string][]*domain.RideHistory),
		Stats:   make(map[string]out.DriverStatsDelta),
	}
}

// Put кладет поездку в хранилище без записи истории (сидинг теста).
func (m *MemoryRideRepo) Put(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ride.Version == 0 {
		ride.Version = 1
	}
	m.rides[ride.ID] = clone(ride)
}

func (m *MemoryRideRepo) Create(ctx context.Context, ride *domain.Ride, createdBy *string, notes string) (bool, *domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ride.ExternalID != nil {
		for _, existing := range m.rides {
			if existing.ExternalID != nil &&
				existing.SourcePlatform == ride.SourcePlatform &&
				*existing.ExternalID == *ride.ExternalID {
				return false, clone(existing), nil
			}
		}
	}

	m.rides[ride.ID] = clone(ride)
	m.appendHistory(ride.ID, nil, ride.Status, createdBy, notes)
	return true, nil, nil
}

func (m *MemoryRideRepo) FindByID(ctx context.Context, rideID string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[rideID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "ride", ID: rideID}
	}
	return clone(ride), nil
}

func (m *MemoryRideRepo) FindByExternalKey(ctx context.Context, sourcePlatform, externalID string) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, ride := range m.rides {
		if ride.ExternalID != nil && ride.SourcePlatform == sourcePlatform && *ride.ExternalID == externalID {
			return clone(ride), nil
		}
	}
	return nil, &domain.NotFoundError{Entity: "ride", ID: sourcePlatform + ":" + externalID}
}

func (m *MemoryRideRepo) List(ctx context.Context, f out.ListFilter) ([]*domain.Ride, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*domain.Ride
	for _, ride := range m.rides {
		if f.Status != "" && ride.Status != f.Status {
			continue
		}
		if f.DriverID != "" && (ride.DriverID == nil || *ride.DriverID != f.DriverID) {
			continue
		}
		if f.SourcePlatform != "" && ride.SourcePlatform != f.SourcePlatform {
			continue
		}
		if f.DateFrom != nil && ride.ScheduledAt.Before(*f.DateFrom) {
			continue
		}
		if f.DateTo != nil && ride.ScheduledAt.After(*f.DateTo) {
			continue
		}
		if f.VisibleToDriver != "" {
			own := ride.DriverID != nil && *ride.DriverID == f.VisibleToDriver
			pool := ride.Status == domain.StatusToAssign || ride.Status == domain.StatusCritical
			if !own && !pool {
				continue
			}
		}
		matched = append(matched, clone(ride))
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
	})

	total := len(matched)
	if f.PageSize > 0 {
		start := (f.Page - 1) * f.PageSize
		if start < 0 {
			start = 0
		}
		if start > total {
			start = total
		}
		end := start + f.PageSize
		if end > total {
			end = total
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (m *MemoryRideRepo) ListUnassignedDue(ctx context.Context, now, until time.Time) ([]*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*domain.Ride
	for _, ride := range m.rides {
		if ride.Status != domain.StatusToAssign {
			continue
		}
		if !ride.ScheduledAt.After(now) || ride.ScheduledAt.After(until) {
			continue
		}
		due = append(due, clone(ride))
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].ScheduledAt.Before(due[j].ScheduledAt)
	})
	return due, nil
}

func (m *MemoryRideRepo) CountActiveByDriver(ctx context.Context, driverID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, ride := range m.rides {
		if ride.DriverID != nil && *ride.DriverID == driverID &&
			(ride.Status == domain.StatusBooked || ride.Status == domain.StatusInProgress) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryRideRepo) Transition(ctx context.Context, req out.TransitionRequest) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.TransitionErr != nil {
		return nil, m.TransitionErr
	}

	ride, ok := m.rides[req.RideID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "ride", ID: req.RideID}
	}
	if ride.Version != req.ExpectedVersion {
		return nil, &domain.ConflictError{
			RideID: ride.ID,
			From:   ride.Status,
			To:     req.NewStatus,
			Reason: "stale version",
		}
	}
	if err := domain.CanTransition(ride.Status, req.NewStatus); err != nil {
		var conflict *domain.ConflictError
		if errors.As(err, &conflict) {
			conflict.RideID = ride.ID
		}
		return nil, err
	}

	updated := clone(ride)
	if req.Apply != nil {
		req.Apply(updated)
	}
	fromStatus := updated.Status
	updated.Status = req.NewStatus
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()

	m.rides[updated.ID] = clone(updated)
	m.appendHistory(updated.ID, &fromStatus, req.NewStatus, req.ChangedBy, req.Notes)

	if req.StatsDelta != nil {
		acc := m.Stats[req.StatsDelta.DriverID]
		acc.DriverID = req.StatsDelta.DriverID
		acc.Rides += req.StatsDelta.Rides
		acc.Km += req.StatsDelta.Km
		acc.Earnings += req.StatsDelta.Earnings
		m.Stats[req.StatsDelta.DriverID] = acc
	}
	return clone(updated), nil
}

func (m *MemoryRideRepo) UpdateFields(ctx context.Context, rideID string, patch out.RidePatch) (*domain.Ride, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ride, ok := m.rides[rideID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "ride", ID: rideID}
	}

	updated := clone(ride)
	if patch.ScheduledAt != nil {
		updated.ScheduledAt = *patch.ScheduledAt
	}
	if patch.PickupAddress != nil {
		updated.PickupAddress = *patch.PickupAddress
	}
	if patch.DropoffAddress != nil {
		updated.DropoffAddress = *patch.DropoffAddress
	}
	if patch.PassengerName != nil {
		updated.PassengerName = patch.PassengerName
	}
	if patch.PassengerPhone != nil {
		updated.PassengerPhone = patch.PassengerPhone
	}
	if patch.PassengerCount != nil {
		updated.PassengerCount = *patch.PassengerCount
	}
	if patch.RouteType != nil {
		updated.RouteType = patch.RouteType
	}
	if patch.DistanceKm != nil {
		updated.DistanceKm = patch.DistanceKm
	}
	if patch.DurationMin != nil {
		updated.DurationMin = patch.DurationMin
	}
	if patch.Price != nil {
		updated.Price = patch.Price
	}
	if patch.Notes != nil {
		updated.Notes = patch.Notes
	}
	updated.UpdatedAt = time.Now().UTC()

	m.rides[rideID] = clone(updated)
	return clone(updated), nil
}

func (m *MemoryRideRepo) History(ctx context.Context, rideID string) ([]*domain.RideHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.history[rideID]
	result := make([]*domain.RideHistory, len(entries))
	for i, entry := range entries {
		c := *entry
		result[i] = &c
	}
	return result, nil
}

func (m *MemoryRideRepo) appendHistory(rideID string, from *string, to string, changedBy *string, notes string) {
	entry := &domain.RideHistory{
		ID:        uuid.New().String(),
		RideID:    rideID,
		OldStatus: from,
		NewStatus: to,
		ChangedBy: changedBy,
		ChangedAt: time.Now().UTC(),
	}
	if notes != "" {
		entry.Notes = &notes
	}
	m.history[rideID] = append(m.history[rideID], entry)
}

func clone(r *domain.Ride) *domain.Ride {
	c := *r
	return &c
}

// NotifyCall — один вызов диспетчера уведомлений.
type NotifyCall struct {
	UserIDs []string
	Kind    string
	RideID  string
}

// RecordingDispatcher записывает уведомления; Err возвращается каждым вызовом.
type RecordingDispatcher struct {
	mu    sync.Mutex
	calls []NotifyCall

	Err error
}

func (d *RecordingDispatcher) Notify(ctx context.Context, userIDs []string, kind, rideID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]string, len(userIDs))
	copy(ids, userIDs)
	sort.Strings(ids)
	d.calls = append(d.calls, NotifyCall{UserIDs: ids, Kind: kind, RideID: rideID})
	return d.Err
}

// Calls возвращает снимок записанных уведомлений.
func (d *RecordingDispatcher) Calls() []NotifyCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	calls := make([]NotifyCall, len(d.calls))
	copy(calls, d.calls)
	return calls
}

// CallsOfKind возвращает уведомления заданного вида.
func (d *RecordingDispatcher) CallsOfKind(kind string) []NotifyCall {
	var matched []NotifyCall
	for _, call := range d.Calls() {
		if call.Kind == kind {
			matched = append(matched, call)
		}
	}
	return matched
}

// StubActors — фиксированный список операционных пользователей.
type StubActors struct {
	IDs []string
	Err error
}

func (s *StubActors) ListOperationalIDs(ctx context.Context) ([]string, error) {
	return s.IDs, s.Err
}

// StubDirectory — справочник водителей на карте.
type StubDirectory struct {
	Drivers map[string]*out.Driver
}

func (s *StubDirectory) Get(ctx context.Context, driverID string) (*out.Driver, error) {
	d, ok := s.Drivers[driverID]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "driver", ID: driverID}
	}
	c := *d
	return &c, nil
}

func (s *StubDirectory) ListAvailable(ctx context.Context) ([]*out.Driver, error) {
	var available []*out.Driver
	for _, d := range s.Drivers {
		if !d.Available {
			continue
		}
		if !d.Direct() && !d.CompanyActive {
			continue
		}
		c := *d
		available = append(available, &c)
	}
	sort.Slice(available, func(i, j int) bool {
		return available[i].ID < available[j].ID
	})
	return available, nil
}

// PublishedEvent — одно событие, ушедшее в брокер.
type PublishedEvent struct {
	EventType string
	RideID    string
}

// RecordingPublisher записывает события; Err возвращается каждым вызовом.
type RecordingPublisher struct {
	mu          sync.Mutex
	events      []PublishedEvent
	gpsRequests []string

	Err error
}

func (p *RecordingPublisher) PublishRideEvent(ctx context.Context, eventType string, ride *domain.Ride) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{EventType: eventType, RideID: ride.ID})
	return p.Err
}

func (p *RecordingPublisher) RequestStrongGPS(ctx context.Context, rideID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gpsRequests = append(p.gpsRequests, rideID)
	return p.Err
}

// Events возвращает снимок опубликованных событий.
func (p *RecordingPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	events := make([]PublishedEvent, len(p.events))
	copy(events, p.events)
	return events
}

// GPSRequests возвращает поездки, для которых запрошен частый GPS.
func (p *RecordingPublisher) GPSRequests() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	requests := make([]string, len(p.gpsRequests))
	copy(requests, p.gpsRequests)
	return requests
}

// StubDedup — in-memory кэш дедупликации.
type StubDedup struct {
	mu   sync.Mutex
	keys map[string]bool

	Err error
}

func (s *StubDedup) Seen(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}
	if s.keys == nil {
		s.keys = make(map[string]bool)
	}
	seen := s.keys[key]
	s.keys[key] = true
	return seen, nil
}
