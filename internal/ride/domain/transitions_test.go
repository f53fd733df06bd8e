package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{StatusToAssign, StatusCritical, true},
		{StatusToAssign, StatusBooked, true},
		{StatusToAssign, StatusCancelled, true},
		{StatusToAssign, StatusInProgress, false},
		{StatusToAssign, StatusCompleted, false},
		{StatusCritical, StatusBooked, true},
		{StatusCritical, StatusCancelled, true},
		{StatusCritical, StatusToAssign, false},
		{StatusBooked, StatusInProgress, true},
		{StatusBooked, StatusCancelled, true},
		{StatusBooked, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusBooked, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusToAssign, false},
		{StatusCancelled, StatusBooked, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"_to_"+tt.to, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var conflict *ConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, tt.from, conflict.From)
			assert.Equal(t, tt.to, conflict.To)
		})
	}
}

func TestCanTransition_SelfLoopRejected(t *testing.T) {
	for status := range validTransitions {
		assert.Error(t, CanTransition(status, status), "self loop for %s", status)
	}
}

func TestCanTransition_UnknownStatus(t *testing.T) {
	assert.Error(t, CanTransition("unknown", StatusBooked))
}

func TestValidStatus(t *testing.T) {
	for _, status := range []string{StatusToAssign, StatusCritical, StatusBooked, StatusInProgress, StatusCompleted, StatusCancelled} {
		assert.True(t, ValidStatus(status), status)
	}
	assert.False(t, ValidStatus("pending"))
}

func TestRideAssignable(t *testing.T) {
	ride := &Ride{Status: StatusToAssign}
	assert.True(t, ride.Assignable())
	ride.Status = StatusCritical
	assert.True(t, ride.Assignable())
	ride.Status = StatusBooked
	assert.False(t, ride.Assignable())
	ride.Status = StatusCancelled
	assert.False(t, ride.Assignable())
}

func TestRideTerminal(t *testing.T) {
	ride := &Ride{Status: StatusCompleted}
	assert.True(t, ride.Terminal())
	ride.Status = StatusCancelled
	assert.True(t, ride.Terminal())
	ride.Status = StatusInProgress
	assert.False(t, ride.Terminal())
}
