package assignment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRuleApplies(t *testing.T) {
	// вторник, 10 марта 2026
	tuesdayMorning := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	rule := &Rule{
		DayOfWeek: 1, // вторник
		SlotStart: 8 * time.Hour,
		SlotEnd:   12 * time.Hour,
	}

	assert.True(t, rule.Applies(tuesdayMorning))
	assert.False(t, rule.Applies(tuesdayMorning.Add(24*time.Hour)), "wrong weekday")
	assert.False(t, rule.Applies(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)), "slot end is exclusive")
	assert.True(t, rule.Applies(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)), "slot start is inclusive")
	assert.False(t, rule.Applies(time.Date(2026, 3, 10, 7, 59, 0, 0, time.UTC)))
}

func TestRuleApplies_OvernightSlot(t *testing.T) {
	rule := &Rule{
		DayOfWeek: 4, // пятница
		SlotStart: 22 * time.Hour,
		SlotEnd:   4 * time.Hour,
	}

	friday := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	assert.True(t, rule.Applies(friday))
	assert.True(t, rule.Applies(time.Date(2026, 3, 13, 2, 0, 0, 0, time.UTC)))
	assert.False(t, rule.Applies(time.Date(2026, 3, 13, 12, 0, 0, 0, time.UTC)))
}

func TestRuleApplies_MondayIsZero(t *testing.T) {
	rule := &Rule{DayOfWeek: 0, SlotStart: 0, SlotEnd: 24 * time.Hour}

	monday := time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC)
	sunday := time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC)
	assert.True(t, rule.Applies(monday))
	assert.False(t, rule.Applies(sunday))
}
