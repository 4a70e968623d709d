package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnumsValid(t *testing.T) {
	assert.True(t, CurrencyEUR.Valid())
	assert.False(t, Currency("RUB").Valid())
	assert.True(t, FrequencyYearly.Valid())
	assert.False(t, Frequency("hourly").Valid())
	assert.True(t, CategoryFinance.Valid())
	assert.False(t, Category("games").Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("paused").Valid())
}

func TestRunStatusTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunCompleted, RunSkipped, RunFailed} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []RunStatus{RunPending, RunRunning, RunSleeping} {
		assert.False(t, s.Terminal(), s)
	}
}

func TestReminderOffsetsDescending(t *testing.T) {
	assert.Equal(t, []int{7, 5, 3, 1}, ReminderOffsets)
}

func TestCallerIsAdmin(t *testing.T) {
	assert.True(t, Caller{ID: "1", Role: RoleAdmin}.IsAdmin())
	assert.False(t, Caller{ID: "1", Role: RoleUser}.IsAdmin())
}
