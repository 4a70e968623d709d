package models

import "time"

// ReminderOffsets дни до продления, в которые отправляются напоминания, по убыванию.
var ReminderOffsets = []int{7, 5, 3, 1}

// SubscriptionSnapshot состояние подписки и контакт владельца на момент шага workflow.
type SubscriptionSnapshot struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         string    `json:"price"`
	Currency      Currency  `json:"currency"`
	Frequency     Frequency `json:"frequency"`
	PaymentMethod string    `json:"paymentMethod"`
	Status        Status    `json:"status"`
	RenewalDate   time.Time `json:"renewalDate"`
	UserName      string    `json:"userName"`
	UserEmail     string    `json:"userEmail"`
}

// Reminder сообщение для сервиса отправки писем.
type Reminder struct {
	RunID        string               `json:"runId"`
	Offset       int                  `json:"offset"`
	To           string               `json:"to"`
	Subscription SubscriptionSnapshot `json:"subscription"`
}
