package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destone28/aureavia/internal/ride/application/ports/out"
	"github.com/destone28/aureavia/internal/ride/application/usecase"
	"github.com/destone28/aureavia/internal/ride/domain"
	"github.com/destone28/aureavia/internal/ride/ridetest"
)

func assignRequest(rideID string, version int64, driverID string) out.TransitionRequest {
	return out.TransitionRequest{
		RideID:          rideID,
		ExpectedVersion: version,
		NewStatus:       domain.StatusBooked,
		Apply: func(r *domain.Ride) {
			r.DriverID = &driverID
		},
	}
}

type stubLock struct {
	acquired bool
	denied   bool
	err      error
	releases int
}

func (l *stubLock) TryAcquire(ctx context.Context) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	if l.denied {
		return false, nil
	}
	l.acquired = true
	return true, nil
}

func (l *stubLock) Release(ctx context.Context) error {
	l.releases++
	return nil
}

type monitorFixture struct {
	repo       *ridetest.MemoryRideRepo
	dispatcher *ridetest.RecordingDispatcher
	events     *ridetest.RecordingPublisher
	lock       *stubLock
	mon        *Monitor
	now        time.Time
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		repo:       ridetest.NewMemoryRideRepo(),
		dispatcher: &ridetest.RecordingDispatcher{},
		events:     &ridetest.RecordingPublisher{},
		lock:       &stubLock{},
		now:        time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	actors := &ridetest.StubActors{IDs: []string{"admin-1", "assistant-1"}}
	lifecycle := usecase.NewLifecycleService(f.repo, actors, f.dispatcher, f.events, zerolog.Nop())
	lifecycle.Now = func() time.Time { return f.now }

	f.mon = New(f.repo, lifecycle, f.lock, time.Minute, domain.CriticalWindow, zerolog.Nop())
	f.mon.Now = func() time.Time { return f.now }
	return f
}

func (f *monitorFixture) seedRide(id string, scheduledIn time.Duration) *domain.Ride {
	ride := &domain.Ride{
		ID:             id,
		SourcePlatform: "uber_ncc",
		Status:         domain.StatusToAssign,
		Version:        1,
		PickupAddress:  "Via Trento 2, Torino",
		DropoffAddress: "Caselle",
		ScheduledAt:    f.now.Add(scheduledIn),
		PassengerCount: 1,
	}
	f.repo.Put(ride)
	return ride
}

func (f *monitorFixture) status(t *testing.T, rideID string) string {
	t.Helper()
	ride, err := f.repo.FindByID(context.Background(), rideID)
	require.NoError(t, err)
	return ride.Status
}

func TestScan_EscalatesInsideWindow(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("far", 4*time.Hour)
	f.seedRide("near", 90*time.Minute)
	f.seedRide("past", -30*time.Minute)

	require.NoError(t, f.mon.Scan(context.Background()))

	assert.Equal(t, domain.StatusToAssign, f.status(t, "far"))
	assert.Equal(t, domain.StatusCritical, f.status(t, "near"))
	assert.Equal(t, domain.StatusToAssign, f.status(t, "past"), "past rides are never escalated")

	calls := f.dispatcher.CallsOfKind(domain.NotifyRideCritical)
	require.Len(t, calls, 1)
	assert.Equal(t, "near", calls[0].RideID)
	assert.Equal(t, []string{"admin-1", "assistant-1"}, calls[0].UserIDs)
}

func TestScan_SecondRunIsNoop(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("near", 90*time.Minute)

	require.NoError(t, f.mon.Scan(context.Background()))
	require.NoError(t, f.mon.Scan(context.Background()))

	assert.Len(t, f.dispatcher.CallsOfKind(domain.NotifyRideCritical), 1)

	ride, err := f.repo.FindByID(context.Background(), "near")
	require.NoError(t, err)
	assert.Equal(t, int64(2), ride.Version)

	history, err := f.repo.History(context.Background(), "near")
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestScan_TimeAdvancesIntoWindow(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("ride-1", 4*time.Hour)

	require.NoError(t, f.mon.Scan(context.Background()))
	assert.Equal(t, domain.StatusToAssign, f.status(t, "ride-1"))

	// через полтора часа до подачи остается 2.5 часа
	f.now = f.now.Add(90 * time.Minute)
	require.NoError(t, f.mon.Scan(context.Background()))
	assert.Equal(t, domain.StatusCritical, f.status(t, "ride-1"))

	ride, err := f.repo.FindByID(context.Background(), "ride-1")
	require.NoError(t, err)
	require.NotNil(t, ride.CriticalAt)
	assert.Equal(t, f.now, *ride.CriticalAt)
}

func TestScan_NotifyFailureDoesNotAbortScan(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("ride-a", 60*time.Minute)
	f.seedRide("ride-b", 120*time.Minute)
	f.dispatcher.Err = assert.AnError

	require.NoError(t, f.mon.Scan(context.Background()))

	// обе поездки эскалированы несмотря на сбой уведомлений
	assert.Equal(t, domain.StatusCritical, f.status(t, "ride-a"))
	assert.Equal(t, domain.StatusCritical, f.status(t, "ride-b"))
}

func TestScan_LockDeniedSkipsTick(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("near", 90*time.Minute)
	f.lock.denied = true

	require.NoError(t, f.mon.Scan(context.Background()))
	assert.Equal(t, domain.StatusToAssign, f.status(t, "near"))
}

func TestScan_LockOutageDoesNotBlockScan(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("near", 90*time.Minute)
	f.lock.err = assert.AnError

	require.NoError(t, f.mon.Scan(context.Background()))
	assert.Equal(t, domain.StatusCritical, f.status(t, "near"))
}

func TestScan_ReleasesLock(t *testing.T) {
	f := newMonitorFixture(t)
	f.seedRide("near", 90*time.Minute)

	require.NoError(t, f.mon.Scan(context.Background()))
	assert.True(t, f.lock.acquired)
	assert.Equal(t, 1, f.lock.releases)
}

func TestScan_AssignedRideNotEscalated(t *testing.T) {
	f := newMonitorFixture(t)
	ride := f.seedRide("near", 90*time.Minute)

	_, err := f.repo.Transition(context.Background(), assignRequest(ride.ID, ride.Version, "driver-1"))
	require.NoError(t, err)

	require.NoError(t, f.mon.Scan(context.Background()))
	assert.Equal(t, domain.StatusBooked, f.status(t, "near"))
	assert.Empty(t, f.dispatcher.CallsOfKind(domain.NotifyRideCritical))
}
