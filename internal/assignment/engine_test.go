package assignment

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/domain"
	"github.com/destone28/aureavia/internal/ride/ridetest"
)

type stubRules struct {
	rules []*Rule
}

func (s *stubRules) ListAll(ctx context.Context) ([]*Rule, error) {
	return s.rules, nil
}

func strPtr(s string) *string { return &s }

type engineFixture struct {
	repo       *ridetest.MemoryRideRepo
	directory  *ridetest.StubDirectory
	rules      *stubRules
	actors     *ridetest.StubActors
	dispatcher *ridetest.RecordingDispatcher
	events     *ridetest.RecordingPublisher
	engine     *Engine
	now        time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	f := &engineFixture{
		repo:       ridetest.NewMemoryRideRepo(),
		directory:  &ridetest.StubDirectory{Drivers: map[string]*out.Driver{}},
		rules:      &stubRules{},
		actors:     &ridetest.StubActors{IDs: []string{"admin-1"}},
		dispatcher: &ridetest.RecordingDispatcher{},
		events:     &ridetest.RecordingPublisher{},
		now:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	f.engine = NewEngine(f.repo, f.directory, f.rules, f.actors, f.dispatcher, f.events, zerolog.Nop())
	f.engine.Now = func() time.Time { return f.now }
	return f
}

func (f *engineFixture) seedRide(id, status string) *domain.Ride {
	ride := &domain.Ride{
		ID:             id,
		SourcePlatform: "uber_ncc",
		Status:         status,
		Version:        1,
		PickupAddress:  "Via Roma 1, Milano",
		DropoffAddress: "Linate",
		ScheduledAt:    f.now.Add(2 * time.Hour),
		PassengerCount: 1,
	}
	f.repo.Put(ride)
	return ride
}

func (f *engineFixture) addDriver(id string, companyID *string, available, companyActive bool) {
	f.directory.Drivers[id] = &out.Driver{
		ID:            id,
		CompanyID:     companyID,
		Available:     available,
		CompanyActive: companyActive,
	}
}

func TestAssign_ExplicitCandidate(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-1", nil, true, true)

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ActorID:           "admin-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBooked, ride.Status)
	require.NotNil(t, ride.DriverID)
	assert.Equal(t, "driver-1", *ride.DriverID)
	require.NotNil(t, ride.AssignedBy)
	assert.Equal(t, "admin-1", *ride.AssignedBy)
	assert.Equal(t, int64(2), ride.Version)

	calls := f.dispatcher.CallsOfKind(domain.NotifyRideAssigned)
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"driver-1"}, calls[0].UserIDs)
}

func TestAssign_UnavailableCandidateRejected(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-1", nil, false, true)

	_, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ActorID:           "admin-1",
	})
	var unavailable *domain.DriverUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "driver-1", unavailable.DriverID)
}

func TestAssign_InactiveCompanyCandidateRejected(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-1", strPtr("company-1"), true, false)

	_, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ActorID:           "admin-1",
	})
	var unavailable *domain.DriverUnavailableError
	assert.ErrorAs(t, err, &unavailable)
}

func TestAssign_ForcedOverridesAvailability(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-1", nil, false, true)

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ForcedBy:          strPtr("admin-1"),
		ActorID:           "admin-1",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusBooked, ride.Status)
	require.NotNil(t, ride.AssignedBy)
	assert.Equal(t, "admin-1", *ride.AssignedBy)
}

func TestAssign_SelfAcceptNotifiesOperators(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-1", nil, true, true)

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ActorID:           "driver-1",
	})
	require.NoError(t, err)
	require.NotNil(t, ride.AssignedBy)
	assert.Equal(t, "driver-1", *ride.AssignedBy)

	accepted := f.dispatcher.CallsOfKind(domain.NotifyRideAccepted)
	require.Len(t, accepted, 1)
	assert.Equal(t, []string{"admin-1"}, accepted[0].UserIDs)
	assert.Empty(t, f.dispatcher.CallsOfKind(domain.NotifyRideAssigned))
}

func TestAssign_NotAssignableStatus(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusBooked)
	f.addDriver("driver-1", nil, true, true)

	_, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ActorID:           "admin-1",
	})
	assert.True(t, domain.IsConflict(err))
}

func TestAssign_ResolvesCritical(t *testing.T) {
	f := newEngineFixture(t)
	ride := f.seedRide("ride-1", domain.StatusCritical)
	criticalAt := f.now.Add(-5 * time.Minute)
	ride.CriticalAt = &criticalAt
	f.repo.Put(ride)
	f.addDriver("driver-1", nil, true, true)

	updated, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ActorID:           "admin-1",
	})
	require.NoError(t, err)

	require.NotNil(t, updated.CriticalResolvedAt)
	require.NotNil(t, updated.CriticalResolutionType)
	assert.Equal(t, domain.ResolutionAssignedNormal, *updated.CriticalResolutionType)
}

func TestAssign_ForcedResolutionType(t *testing.T) {
	f := newEngineFixture(t)
	ride := f.seedRide("ride-1", domain.StatusCritical)
	criticalAt := f.now.Add(-5 * time.Minute)
	ride.CriticalAt = &criticalAt
	f.repo.Put(ride)
	f.addDriver("driver-1", nil, false, true)

	updated, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:            "ride-1",
		CandidateDriverID: "driver-1",
		ForcedBy:          strPtr("admin-1"),
		ActorID:           "admin-1",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.CriticalResolutionType)
	assert.Equal(t, domain.ResolutionAssignedForced, *updated.CriticalResolutionType)
}

func TestAutoSelect_DirectDriversFirst(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-direct", nil, true, true)
	f.addDriver("driver-partner", strPtr("company-1"), true, true)

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "driver-direct", *ride.DriverID)
}

func TestAutoSelect_BlockedDirectFallsToCompany(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-direct", nil, true, true)
	f.addDriver("driver-partner", strPtr("company-1"), true, true)

	// вторник 14:00 попадает в слот: прямой пул заблокирован
	f.rules.rules = []*Rule{
		{DayOfWeek: 1, SlotStart: 0, SlotEnd: 24 * time.Hour, IsBlocked: true},
	}

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "driver-partner", *ride.DriverID)
}

func TestAutoSelect_CompanyPriorityOrder(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-a", strPtr("company-a"), true, true)
	f.addDriver("driver-b", strPtr("company-b"), true, true)

	f.rules.rules = []*Rule{
		{DayOfWeek: 1, SlotStart: 0, SlotEnd: 24 * time.Hour, IsBlocked: true},                                  // блок прямых
		{DayOfWeek: 1, SlotStart: 0, SlotEnd: 24 * time.Hour, CompanyID: strPtr("company-b"), Priority: 10},
		{DayOfWeek: 1, SlotStart: 0, SlotEnd: 24 * time.Hour, CompanyID: strPtr("company-a"), Priority: 20},
	}

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "driver-b", *ride.DriverID, "company-b has lower priority value and wins")
}

func TestAutoSelect_RuleOutsideSlotIgnored(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign) // подача 14:00 вторника
	f.addDriver("driver-direct", nil, true, true)
	f.addDriver("driver-partner", strPtr("company-1"), true, true)

	// блок прямого пула действует только утром
	f.rules.rules = []*Rule{
		{DayOfWeek: 1, SlotStart: 6 * time.Hour, SlotEnd: 10 * time.Hour, IsBlocked: true},
	}

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "driver-direct", *ride.DriverID)
}

func TestAutoSelect_LeastBusyWins(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-a", nil, true, true)
	f.addDriver("driver-b", nil, true, true)

	// driver-a уже везет две поездки
	busy1 := f.seedRide("busy-1", domain.StatusToAssign)
	busy2 := f.seedRide("busy-2", domain.StatusToAssign)
	for _, r := range []*domain.Ride{busy1, busy2} {
		_, err := f.repo.Transition(context.Background(), out.TransitionRequest{
			RideID:          r.ID,
			ExpectedVersion: r.Version,
			NewStatus:       domain.StatusBooked,
			Apply:           func(ride *domain.Ride) { ride.DriverID = strPtr("driver-a") },
		})
		require.NoError(t, err)
	}

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "driver-b", *ride.DriverID)
}

func TestAutoSelect_TieBreakByDriverID(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-b", nil, true, true)
	f.addDriver("driver-a", nil, true, true)

	ride, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "driver-a", *ride.DriverID)
}

func TestAutoSelect_NoEligibleDriver(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)

	_, err := f.engine.Assign(context.Background(), in.AssignInput{
		RideID:  "ride-1",
		ActorID: "admin-1",
	})
	var noDriver *domain.NoEligibleDriverError
	require.ErrorAs(t, err, &noDriver)
	assert.Equal(t, "ride-1", noDriver.RideID)
}

func TestAssign_ConcurrentExactlyOneWinner(t *testing.T) {
	f := newEngineFixture(t)
	f.seedRide("ride-1", domain.StatusToAssign)
	f.addDriver("driver-1", nil, true, true)
	f.addDriver("driver-2", nil, true, true)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, driverID := range []string{"driver-1", "driver-2"} {
		wg.Add(1)
		go func(i int, driverID string) {
			defer wg.Done()
			_, errs[i] = f.engine.Assign(context.Background(), in.AssignInput{
				RideID:            "ride-1",
				CandidateDriverID: driverID,
				ActorID:           driverID,
			})
		}(i, driverID)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
		} else {
			assert.True(t, domain.IsConflict(err), "loser must get a conflict, got %v", err)
		}
	}
	assert.Equal(t, 1, winners)

	stored, err := f.repo.FindByID(context.Background(), "ride-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBooked, stored.Status)
	require.NotNil(t, stored.DriverID)
	assert.Equal(t, int64(2), stored.Version)
}
