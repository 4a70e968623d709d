package renewal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestFinalize_BackfillsRenewalDate(t *testing.T) {
	start := date(2025, 3, 1)
	now := date(2025, 3, 1)

	tests := []struct {
		name      string
		frequency models.Frequency
		want      time.Time
	}{
		{name: "daily", frequency: models.FrequencyDaily, want: date(2025, 3, 2)},
		{name: "weekly", frequency: models.FrequencyWeekly, want: date(2025, 3, 8)},
		{name: "monthly", frequency: models.FrequencyMonthly, want: date(2025, 3, 31)},
		{name: "yearly", frequency: models.FrequencyYearly, want: date(2026, 3, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Finalize(Input{StartDate: start, Frequency: tt.frequency}, now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.RenewalDate)
			assert.Equal(t, models.StatusActive, res.Status)
		})
	}
}

func TestFinalize_YearlyLeapYearScenario(t *testing.T) {
	in := Input{StartDate: date(2024, 1, 1), Frequency: models.FrequencyYearly}

	res, err := Finalize(in, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, date(2024, 12, 31), res.RenewalDate)
	assert.Equal(t, models.StatusExpired, res.Status)
}

func TestFinalize_StatusBoundary(t *testing.T) {
	start := date(2025, 1, 1)
	renewal := date(2025, 2, 1)

	res, err := Finalize(Input{StartDate: start, Frequency: models.FrequencyMonthly, RenewalDate: ptr(renewal)}, renewal)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, res.Status, "renewal equal to now stays active")

	res, err = Finalize(Input{StartDate: start, Frequency: models.FrequencyMonthly, RenewalDate: ptr(renewal)}, renewal.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, models.StatusExpired, res.Status)
}

func TestFinalize_KeepsExplicitStatus(t *testing.T) {
	start := date(2025, 1, 1)
	res, err := Finalize(Input{
		StartDate:   start,
		Frequency:   models.FrequencyMonthly,
		RenewalDate: ptr(date(2025, 12, 1)),
		Status:      models.StatusCancelled,
	}, date(2025, 6, 1))
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, res.Status)
	assert.Equal(t, date(2025, 12, 1), res.RenewalDate)
}

func TestFinalize_ValidationErrors(t *testing.T) {
	now := date(2025, 6, 1)

	tests := []struct {
		name string
		in   Input
	}{
		{
			name: "дата начала в будущем",
			in:   Input{StartDate: date(2025, 6, 2), Frequency: models.FrequencyMonthly},
		},
		{
			name: "продление раньше начала",
			in:   Input{StartDate: date(2025, 5, 1), Frequency: models.FrequencyMonthly, RenewalDate: ptr(date(2025, 4, 30))},
		},
		{
			name: "неизвестная частота",
			in:   Input{StartDate: date(2025, 5, 1), Frequency: models.Frequency("hourly")},
		},
		{
			name: "нет даты начала",
			in:   Input{Frequency: models.FrequencyDaily},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Finalize(tt.in, now)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
		})
	}
}

func TestOffset(t *testing.T) {
	days, ok := Offset(models.FrequencyWeekly)
	assert.True(t, ok)
	assert.Equal(t, 7, days)

	days, ok = Offset(models.FrequencyYearly)
	assert.True(t, ok)
	assert.Equal(t, 365, days)

	_, ok = Offset("hourly")
	assert.False(t, ok)
}

func TestReminderDateAndSameDay(t *testing.T) {
	renewal := date(2025, 7, 10)
	assert.Equal(t, date(2025, 7, 3), ReminderDate(renewal, 7))
	assert.Equal(t, date(2025, 7, 9), ReminderDate(renewal, 1))

	assert.True(t, SameDay(date(2025, 7, 3), date(2025, 7, 3).Add(23*time.Hour)))
	assert.False(t, SameDay(date(2025, 7, 3), date(2025, 7, 4)))

	msk := time.FixedZone("MSK", 3*3600)
	assert.True(t, SameDay(time.Date(2025, 7, 4, 1, 0, 0, 0, msk), date(2025, 7, 3)))
}
