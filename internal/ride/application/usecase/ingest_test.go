package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/destone28/aureavia/internal/ride/application/ports/in"
	"github.com/destone28/aureavia/internal/ride/domain"
	"github.com/destone28/aureavia/internal/ride/ridetest"
)

type ingestFixture struct {
	repo       *ridetest.MemoryRideRepo
	dedup      *ridetest.StubDedup
	dispatcher *ridetest.RecordingDispatcher
	events     *ridetest.RecordingPublisher
	svc        *IngestService
	now        time.Time
}

func newIngestFixture(t *testing.T) *ingestFixture {
	t.Helper()
	f := &ingestFixture{
		repo:       ridetest.NewMemoryRideRepo(),
		dedup:      &ridetest.StubDedup{},
		dispatcher: &ridetest.RecordingDispatcher{},
		events:     &ridetest.RecordingPublisher{},
		now:        time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	actors := &ridetest.StubActors{IDs: []string{"admin-1"}}
	lifecycle := NewLifecycleService(f.repo, actors, f.dispatcher, f.events, zerolog.Nop())
	lifecycle.Now = func() time.Time { return f.now }
	f.svc = NewIngestService(f.repo, f.dedup, f.events, lifecycle, zerolog.Nop())
	f.svc.Now = func() time.Time { return f.now }
	return f
}

func createPayload() in.BookingCreate {
	return in.BookingCreate{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		PickupAddress:  "Via Roma 1, Milano",
		DropoffAddress: "Malpensa T1",
		ScheduledAt:    time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC),
		PassengerCount: 2,
	}
}

func TestCreateBooking(t *testing.T) {
	f := newIngestFixture(t)

	ride, created, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, domain.StatusToAssign, ride.Status)
	assert.Equal(t, int64(1), ride.Version)
	require.NotNil(t, ride.ExternalID)
	assert.Equal(t, "BK-1001", *ride.ExternalID)
	assert.Equal(t, 2, ride.PassengerCount)

	history, err := f.repo.History(context.Background(), ride.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Nil(t, history[0].OldStatus)
	assert.Equal(t, domain.StatusToAssign, history[0].NewStatus)

	events := f.events.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventRideCreated, events[0].EventType)
}

func TestCreateBooking_DuplicateDelivery(t *testing.T) {
	f := newIngestFixture(t)

	first, created, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	history, err := f.repo.History(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreateBooking_DuplicateSurvivesCacheOutage(t *testing.T) {
	f := newIngestFixture(t)
	f.dedup.Err = assert.AnError

	first, created, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
}

func TestCreateBooking_SameExternalIDDifferentPlatform(t *testing.T) {
	f := newIngestFixture(t)

	first, created, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)
	require.True(t, created)

	other := createPayload()
	other.SourcePlatform = "booking_ncc"
	second, created, err := f.svc.CreateBooking(context.Background(), other)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestCreateBooking_DefaultPassengerCount(t *testing.T) {
	f := newIngestFixture(t)

	payload := createPayload()
	payload.PassengerCount = 0
	ride, _, err := f.svc.CreateBooking(context.Background(), payload)
	require.NoError(t, err)
	assert.Equal(t, 1, ride.PassengerCount)
}

func TestCreateBooking_RouteType(t *testing.T) {
	f := newIngestFixture(t)

	payload := createPayload()
	payload.RouteType = strPtr(domain.RouteExtraUrban)
	ride, _, err := f.svc.CreateBooking(context.Background(), payload)
	require.NoError(t, err)
	require.NotNil(t, ride.RouteType)
	assert.Equal(t, domain.RouteExtraUrban, *ride.RouteType)
}

func TestCreateBooking_UnknownRouteTypeRejected(t *testing.T) {
	f := newIngestFixture(t)

	payload := createPayload()
	payload.RouteType = strPtr("suburban")
	_, _, err := f.svc.CreateBooking(context.Background(), payload)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "route_type", ve.Field)

	// Отклонено до записи: повторная доставка с корректным типом проходит.
	payload.RouteType = strPtr(domain.RouteUrban)
	_, created, err := f.svc.CreateBooking(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestAmendBooking(t *testing.T) {
	f := newIngestFixture(t)
	_, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	newTime := time.Date(2026, 3, 10, 16, 30, 0, 0, time.UTC)
	updated, err := f.svc.AmendBooking(context.Background(), in.BookingAmend{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		ScheduledAt:    &newTime,
		PassengerName:  strPtr("Mario Rossi"),
	})
	require.NoError(t, err)

	assert.Equal(t, newTime, updated.ScheduledAt)
	require.NotNil(t, updated.PassengerName)
	assert.Equal(t, "Mario Rossi", *updated.PassengerName)
	assert.Equal(t, domain.StatusToAssign, updated.Status)
}

func TestAmendBooking_UnknownRouteTypeRejected(t *testing.T) {
	f := newIngestFixture(t)
	_, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	_, err = f.svc.AmendBooking(context.Background(), in.BookingAmend{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		RouteType:      strPtr("scenic"),
	})

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "route_type", ve.Field)
}

func TestAmendBooking_ScheduleRejectedInProgress(t *testing.T) {
	f := newIngestFixture(t)
	ride, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	seedStatus(t, f.repo, ride.ID, domain.StatusInProgress, "driver-1")

	newTime := time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)
	_, err = f.svc.AmendBooking(context.Background(), in.BookingAmend{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		ScheduledAt:    &newTime,
	})
	assert.True(t, domain.IsConflict(err))
}

func TestAmendBooking_ContactFieldsAllowedOnCompleted(t *testing.T) {
	f := newIngestFixture(t)
	ride, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	seedStatus(t, f.repo, ride.ID, domain.StatusCompleted, "driver-1")

	updated, err := f.svc.AmendBooking(context.Background(), in.BookingAmend{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		Notes:          strPtr("fattura richiesta"),
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Notes)
	assert.Equal(t, "fattura richiesta", *updated.Notes)
	assert.Equal(t, domain.StatusCompleted, updated.Status)
}

func TestAmendBooking_CancelledRejected(t *testing.T) {
	f := newIngestFixture(t)
	ride, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	seedStatus(t, f.repo, ride.ID, domain.StatusCancelled, "")

	_, err = f.svc.AmendBooking(context.Background(), in.BookingAmend{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		Notes:          strPtr("late note"),
	})
	assert.True(t, domain.IsConflict(err))
}

func TestAmendBooking_UnknownRide(t *testing.T) {
	f := newIngestFixture(t)

	_, err := f.svc.AmendBooking(context.Background(), in.BookingAmend{
		ExternalID:     "BK-missing",
		SourcePlatform: "uber_ncc",
		Notes:          strPtr("x"),
	})
	assert.True(t, domain.IsNotFound(err))
}

func TestCancelBooking(t *testing.T) {
	f := newIngestFixture(t)
	_, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	updated, err := f.svc.CancelBooking(context.Background(), in.BookingCancel{
		ExternalID:     "BK-1001",
		SourcePlatform: "uber_ncc",
		Reason:         strPtr("passenger request"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, updated.Status)
}

func TestCancelBooking_Repeated(t *testing.T) {
	f := newIngestFixture(t)
	ride, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	_, err = f.svc.CancelBooking(context.Background(), in.BookingCancel{
		ExternalID: "BK-1001", SourcePlatform: "uber_ncc",
	})
	require.NoError(t, err)

	second, err := f.svc.CancelBooking(context.Background(), in.BookingCancel{
		ExternalID: "BK-1001", SourcePlatform: "uber_ncc",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, second.Status)

	history, err := f.repo.History(context.Background(), ride.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2) // создание + одна отмена
}

func TestCancelBooking_CompletedRejected(t *testing.T) {
	f := newIngestFixture(t)
	ride, _, err := f.svc.CreateBooking(context.Background(), createPayload())
	require.NoError(t, err)

	seedStatus(t, f.repo, ride.ID, domain.StatusCompleted, "driver-1")

	_, err = f.svc.CancelBooking(context.Background(), in.BookingCancel{
		ExternalID: "BK-1001", SourcePlatform: "uber_ncc",
	})
	assert.True(t, domain.IsConflict(err))
}

// seedStatus прогоняет поездку по легальным ребрам до нужного статуса.
func seedStatus(t *testing.T, repo *ridetest.MemoryRideRepo, rideID, status, driverID string) *domain.Ride {
	t.Helper()
	ctx := context.Background()

	path := map[string][]string{
		domain.StatusBooked:     {domain.StatusBooked},
		domain.StatusInProgress: {domain.StatusBooked, domain.StatusInProgress},
		domain.StatusCompleted:  {domain.StatusBooked, domain.StatusInProgress, domain.StatusCompleted},
		domain.StatusCancelled:  {domain.StatusCancelled},
	}[status]
	require.NotNil(t, path, "unsupported seed status %s", status)

	var ride *domain.Ride
	for _, next := range path {
		current, err := repo.FindByID(ctx, rideID)
		require.NoError(t, err)

		req := transitionToBooked(rideID, current.Version, driverID)
		req.NewStatus = next
		if next != domain.StatusBooked {
			req.Apply = nil
		}
		ride, err = repo.Transition(ctx, req)
		require.NoError(t, err)
	}
	return ride
}
