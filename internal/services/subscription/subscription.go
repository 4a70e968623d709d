// Package subscription реализует хранилище подписок: создание с расчётом даты
// продления, чтение с кешированием, списки с проверкой прав и отмену.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/apperr"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/renewal"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/reminder"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/cache"
)

const (
	// DefaultLimit размер страницы административного списка по умолчанию.
	DefaultLimit = 50
	// MaxLimit наибольший размер страницы.
	MaxLimit = 200
	// MaxUpcomingDays наибольшее окно для ближайших продлений.
	MaxUpcomingDays = 365
)

// Repository определяет методы для работы с подписками в хранилище.
type Repository interface {
	CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*models.Subscription, error)
	ListSubscriptionsByOwner(ctx context.Context, ownerID string) ([]*models.Subscription, error)
	ListSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error)
	ListUpcomingRenewals(ctx context.Context, ownerID string, from, to time.Time) ([]*models.Subscription, error)
	UpdateSubscriptionStatus(ctx context.Context, id string, status models.Status) (*models.Subscription, error)
}

// Cache описывает методы для кеширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Trigger запускает процесс напоминаний через HTTP-точку workflow.
type Trigger interface {
	Trigger(ctx context.Context, url string, payload any) error
}

// Options параметры сервиса.
type Options struct {
	TriggerURL string
	CacheTTL   time.Duration
	Now        func() time.Time
}

// Service реализует бизнес-логику работы с подписками, включая кеширование.
type Service struct {
	repo     Repository
	cache    Cache
	trigger  Trigger
	opts     Options
	validate *validator.Validate
	metrics  *metrics.Metrics
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, c Cache, trigger Trigger, opts Options, m *metrics.Metrics, log *slog.Logger) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:     repo,
		cache:    c,
		trigger:  trigger,
		opts:     opts,
		validate: validator.New(),
		metrics:  m,
		log:      log,
	}
}

// Create проверяет поля, рассчитывает дату продления и статус, сохраняет подписку
// и запускает процесс напоминаний. Сбой запуска не отменяет создание.
func (s *Service) Create(ctx context.Context, ownerID string, req models.DummySubscription) (*models.Subscription, error) {
	const op = "subscription.Create"

	if err := s.validate.Struct(req); err != nil {
		return nil, apperr.Validation(op, ValidationMessage(err))
	}
	if err := checkPrice(op, req.Price); err != nil {
		return nil, err
	}
	startDate, err := ParseDate(req.StartDate)
	if err != nil {
		return nil, apperr.Validation(op, "startDate must be a date in YYYY-MM-DD or RFC 3339 format")
	}
	var renewalDate *time.Time
	if req.RenewalDate != "" {
		d, err := ParseDate(req.RenewalDate)
		if err != nil {
			return nil, apperr.Validation(op, "renewalDate must be a date in YYYY-MM-DD or RFC 3339 format")
		}
		renewalDate = &d
	}

	frequency := models.Frequency(req.Frequency)
	res, err := renewal.Finalize(renewal.Input{
		StartDate:   startDate,
		Frequency:   frequency,
		RenewalDate: renewalDate,
	}, s.opts.Now())
	if err != nil {
		return nil, err
	}

	currency := models.Currency(req.Currency)
	if currency == "" {
		currency = models.CurrencyUSD
	}

	sub, err := s.repo.CreateSubscription(ctx, models.Subscription{
		Name:          strings.TrimSpace(req.Name),
		Price:         req.Price,
		Currency:      currency,
		Frequency:     frequency,
		Category:      models.Category(req.Category),
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		Status:        res.Status,
		StartDate:     startDate,
		RenewalDate:   res.RenewalDate,
		UserID:        ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created new subscription", slog.String("id", sub.ID), slog.String("status", string(sub.Status)))

	s.setCache(ctx, sub)
	s.startReminders(ctx, sub.ID)

	return sub, nil
}

func (s *Service) startReminders(ctx context.Context, id string) {
	if s.opts.TriggerURL == "" {
		s.log.Warn("workflow trigger url is not configured, reminders are not scheduled", slog.String("id", id))
		return
	}
	err := s.trigger.Trigger(ctx, s.opts.TriggerURL, reminder.Payload{SubscriptionID: id})
	if err != nil {
		s.metrics.TriggerFailures.Inc()
		s.log.Error("failed to trigger reminder workflow", slog.String("id", id), sl.Err(err))
	}
}

// Get возвращает подписку по ID, используя кеш или репозиторий.
func (s *Service) Get(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "subscription.Get"
	if !validID(id) {
		return nil, apperr.NotFound(op, "subscription not found")
	}

	var cached models.Subscription
	found, err := s.cache.Get(ctx, cache.SubscriptionKey(id), &cached)
	if err != nil {
		s.log.Warn("failed to read subscription from cache", slog.String("id", id), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.setCache(ctx, sub)
	return sub, nil
}

// ListByOwner возвращает подписки владельца в порядке создания. Доступно только самому владельцу.
func (s *Service) ListByOwner(ctx context.Context, caller models.Caller, ownerID string) ([]*models.Subscription, error) {
	const op = "subscription.ListByOwner"
	if caller.ID != ownerID {
		return nil, apperr.Forbidden(op, "you are not the owner of this account")
	}
	subs, err := s.repo.ListSubscriptionsByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// ListAll возвращает подписки всех пользователей. Доступно только администратору.
func (s *Service) ListAll(ctx context.Context, caller models.Caller, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	const op = "subscription.ListAll"
	if !caller.IsAdmin() {
		return nil, apperr.Forbidden(op, "admin role required")
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, apperr.Validation(op, "unknown status: "+string(*filter.Status))
	}
	if filter.Category != nil && !filter.Category.Valid() {
		return nil, apperr.Validation(op, "unknown category: "+string(*filter.Category))
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	filter.Limit = min(filter.Limit, MaxLimit)

	subs, err := s.repo.ListSubscriptions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Cancel переводит подписку в статус cancelled. Повторная отмена ничего не меняет.
// Процесс напоминаний увидит отмену при следующем пробуждении.
func (s *Service) Cancel(ctx context.Context, caller models.Caller, id string) (*models.Subscription, error) {
	const op = "subscription.Cancel"
	if !validID(id) {
		return nil, apperr.NotFound(op, "subscription not found")
	}

	sub, err := s.repo.GetSubscription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if sub.UserID != caller.ID {
		return nil, apperr.Forbidden(op, "you are not the owner of this subscription")
	}
	if sub.Status == models.StatusCancelled {
		return sub, nil
	}

	updated, err := s.repo.UpdateSubscriptionStatus(ctx, id, models.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, cache.SubscriptionKey(id)); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("id", id), sl.Err(err))
	}
	s.log.Info("subscription cancelled", slog.String("id", id))
	return updated, nil
}

// UpcomingRenewals возвращает активные подписки владельца с продлением в ближайшие days дней.
func (s *Service) UpcomingRenewals(ctx context.Context, caller models.Caller, days int) ([]*models.Subscription, error) {
	const op = "subscription.UpcomingRenewals"
	if days < 1 || days > MaxUpcomingDays {
		return nil, apperr.Validation(op, fmt.Sprintf("days must be between 1 and %d", MaxUpcomingDays))
	}
	now := s.opts.Now()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	subs, err := s.repo.ListUpcomingRenewals(ctx, caller.ID, from, from.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

func (s *Service) setCache(ctx context.Context, sub *models.Subscription) {
	key := cache.SubscriptionKey(sub.ID)
	if err := s.cache.Set(ctx, key, sub, s.opts.CacheTTL); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", key), sl.Err(err))
	}
}

// ParseDate разбирает дату в формате 2006-01-02 или RFC 3339 и приводит её к UTC.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// ValidationMessage собирает ошибки validator в одно сообщение для клиента.
func ValidationMessage(err error) string {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return "invalid request"
	}
	return strings.Join(lo.Map(errs, func(fe validator.FieldError, _ int) string {
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("field %s is a required field", fe.Field())
		case "oneof":
			return fmt.Sprintf("field %s must be one of [%s]", fe.Field(), fe.Param())
		case "min", "max":
			return fmt.Sprintf("field %s length must be %s %s", fe.Field(), fe.Tag(), fe.Param())
		default:
			return fmt.Sprintf("field %s is not valid", fe.Field())
		}
	}), ", ")
}

var priceFormat = regexp.MustCompile(`^\d{1,10}(\.\d{1,2})?$`)

func checkPrice(op, price string) error {
	v, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return apperr.Validation(op, "price must be a number")
	}
	if v < 0 {
		return apperr.Validation(op, "price must be greater than or equal to 0")
	}
	// numeric(12, 2): не больше 10 цифр до точки и 2 после
	if !priceFormat.MatchString(price) {
		return apperr.Validation(op, "price must be a plain decimal with at most 2 fractional digits")
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
