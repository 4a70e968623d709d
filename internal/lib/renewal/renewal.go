// Package renewal вычисляет дату продления и статус подписки.
//
// Функции пакета чистые: текущее время передаётся аргументом.
package renewal

import (
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

var offsets = map[models.Frequency]int{
	models.FrequencyDaily:   1,
	models.FrequencyWeekly:  7,
	models.FrequencyMonthly: 30,
	models.FrequencyYearly:  365,
}

// Input исходные даты подписки.
type Input struct {
	StartDate   time.Time
	Frequency   models.Frequency
	RenewalDate *time.Time
	Status      models.Status
}

// Result итоговые дата продления и статус.
type Result struct {
	RenewalDate time.Time
	Status      models.Status
}

// Offset возвращает период продления в днях для частоты freq.
func Offset(freq models.Frequency) (int, bool) {
	days, ok := offsets[freq]
	return days, ok
}

// Finalize проставляет дату продления, если она не задана, проверяет даты
// и пересчитывает статус относительно now.
func Finalize(in Input, now time.Time) (Result, error) {
	const op = "renewal.Finalize"

	if in.StartDate.IsZero() {
		return Result{}, apperr.Validation(op, "startDate is required")
	}
	if in.StartDate.After(now) {
		return Result{}, apperr.Validation(op, "startDate must be in the past")
	}

	var renewalDate time.Time
	if in.RenewalDate != nil && !in.RenewalDate.IsZero() {
		renewalDate = *in.RenewalDate
	} else {
		days, ok := Offset(in.Frequency)
		if !ok {
			return Result{}, apperr.Validation(op, "unknown frequency: "+string(in.Frequency))
		}
		renewalDate = in.StartDate.AddDate(0, 0, days)
	}

	if renewalDate.Before(in.StartDate) {
		return Result{}, apperr.Validation(op, "renewalDate must be after the start date")
	}

	status := in.Status
	if status == "" {
		status = models.StatusActive
	}
	if renewalDate.Before(now) {
		status = models.StatusExpired
	}

	return Result{RenewalDate: renewalDate, Status: status}, nil
}

// ReminderDate дата напоминания за offset дней до продления.
func ReminderDate(renewalDate time.Time, offset int) time.Time {
	return renewalDate.AddDate(0, 0, -offset)
}

// SameDay сообщает, приходятся ли a и b на один календарный день в UTC.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
