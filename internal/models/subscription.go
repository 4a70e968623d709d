// Package models содержит доменные структуры подписки, пользователя,
// напоминания и долговременного процесса, а также DTO входящих запросов.
package models

import (
	"time"

	"github.com/samber/lo"
)

// Currency валюта подписки.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// Currencies допустимые валюты.
var Currencies = []Currency{CurrencyUSD, CurrencyEUR, CurrencyGBP}

// Valid сообщает, входит ли значение в перечисление.
func (c Currency) Valid() bool { return lo.Contains(Currencies, c) }

// Frequency периодичность списания.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Frequencies допустимые периодичности.
var Frequencies = []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly}

func (f Frequency) Valid() bool { return lo.Contains(Frequencies, f) }

// Category категория подписки.
type Category string

const (
	CategorySports        Category = "sports"
	CategoryNews          Category = "news"
	CategoryEntertainment Category = "entertainment"
	CategoryLifestyle     Category = "lifestyle"
	CategoryTechnology    Category = "technology"
	CategoryPolitics      Category = "politics"
	CategoryFinance       Category = "finance"
	CategoryOther         Category = "other"
)

// Categories допустимые категории.
var Categories = []Category{
	CategorySports, CategoryNews, CategoryEntertainment, CategoryLifestyle,
	CategoryTechnology, CategoryPolitics, CategoryFinance, CategoryOther,
}

func (c Category) Valid() bool { return lo.Contains(Categories, c) }

// Status состояние подписки.
type Status string

const (
	StatusActive    Status = "active"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Statuses допустимые состояния.
var Statuses = []Status{StatusActive, StatusCancelled, StatusExpired}

func (s Status) Valid() bool { return lo.Contains(Statuses, s) }

// Subscription запись о подписке пользователя.
// Price хранится строкой с десятичной дробью, чтобы не терять точность.
type Subscription struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Price         string    `json:"price"`
	Currency      Currency  `json:"currency"`
	Frequency     Frequency `json:"frequency"`
	Category      Category  `json:"category"`
	PaymentMethod string    `json:"paymentMethod"`
	Status        Status    `json:"status"`
	StartDate     time.Time `json:"startDate"`
	RenewalDate   time.Time `json:"renewalDate"`
	UserID        string    `json:"user"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// DummySubscription тело запроса на создание подписки.
// Даты приходят строками в формате 2006-01-02 или RFC 3339.
type DummySubscription struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	Price         string `json:"price" validate:"required,numeric"`
	Currency      string `json:"currency,omitempty" validate:"omitempty,oneof=USD EUR GBP"`
	Frequency     string `json:"frequency" validate:"required,oneof=daily weekly monthly yearly"`
	Category      string `json:"category" validate:"required,oneof=sports news entertainment lifestyle technology politics finance other"`
	PaymentMethod string `json:"paymentMethod" validate:"required"`
	StartDate     string `json:"startDate" validate:"required"`
	RenewalDate   string `json:"renewalDate,omitempty"`
}

// SubscriptionFilter параметры административного списка подписок.
type SubscriptionFilter struct {
	Status   *Status
	Category *Category
	Limit    uint64
	Offset   uint64
}
