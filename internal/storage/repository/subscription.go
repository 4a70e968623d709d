package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

var subscriptionColumns = []string{
	"id", "name", "price::text", "currency", "frequency", "category", "payment_method",
	"status", "start_date", "renewal_date", "user_id", "created_at", "updated_at",
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row scanner) (*models.Subscription, error) {
	var sub models.Subscription
	err := row.Scan(&sub.ID, &sub.Name, &sub.Price, &sub.Currency, &sub.Frequency, &sub.Category,
		&sub.PaymentMethod, &sub.Status, &sub.StartDate, &sub.RenewalDate, &sub.UserID,
		&sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CreateSubscription вставляет подписку и возвращает сохранённую запись.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	const op = "storage.CreateSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Insert("subscriptions").
		Columns("name", "price", "currency", "frequency", "category", "payment_method",
			"status", "start_date", "renewal_date", "user_id").
		Values(sub.Name, sub.Price, sub.Currency, sub.Frequency, sub.Category, sub.PaymentMethod,
			sub.Status, sub.StartDate, sub.RenewalDate, sub.UserID).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}

	created, err := scanSubscription(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}
	return created, nil
}

// GetSubscription возвращает подписку по id.
func (s *Storage) GetSubscription(ctx context.Context, id string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}
	return sub, nil
}

// ListSubscriptionsByOwner возвращает подписки владельца в порядке создания.
func (s *Storage) ListSubscriptionsByOwner(ctx context.Context, ownerID string) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsByOwner"
	return s.querySubscriptions(ctx, op, psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"user_id": ownerID}).
		OrderBy("seq"))
}

// ListSubscriptions возвращает подписки всех пользователей с необязательными фильтрами.
func (s *Storage) ListSubscriptions(ctx context.Context, filter models.SubscriptionFilter) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptions"
	q := psql.Select(subscriptionColumns...).From("subscriptions").OrderBy("seq")
	if filter.Status != nil {
		q = q.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.Category != nil {
		q = q.Where(sq.Eq{"category": *filter.Category})
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	return s.querySubscriptions(ctx, op, q)
}

// ListUpcomingRenewals возвращает активные подписки владельца с продлением в [from, to].
func (s *Storage) ListUpcomingRenewals(ctx context.Context, ownerID string, from, to time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListUpcomingRenewals"
	return s.querySubscriptions(ctx, op, psql.Select(subscriptionColumns...).
		From("subscriptions").
		Where(sq.Eq{"user_id": ownerID, "status": models.StatusActive}).
		Where(sq.GtOrEq{"renewal_date": from}).
		Where(sq.LtOrEq{"renewal_date": to}).
		OrderBy("renewal_date", "seq"))
}

// UpdateSubscriptionStatus меняет статус подписки и возвращает обновлённую запись.
func (s *Storage) UpdateSubscriptionStatus(ctx context.Context, id string, status models.Status) (*models.Subscription, error) {
	const op = "storage.UpdateSubscriptionStatus"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Update("subscriptions").
		Set("status", status).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + joinColumns()).
		ToSql()
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}

	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}
	return sub, nil
}

// ExpireSubscriptions переводит в expired активные подписки с датой продления раньше before
// и возвращает их id.
func (s *Storage) ExpireSubscriptions(ctx context.Context, before time.Time) ([]string, error) {
	const op = "storage.ExpireSubscriptions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Update("subscriptions").
		Set("status", models.StatusExpired).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"status": models.StatusActive}).
		Where(sq.Lt{"renewal_date": before}).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapError(op, "subscription", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, "subscription", err)
	}
	return ids, nil
}

// GetSubscriptionSnapshot возвращает подписку вместе с именем и почтой владельца.
func (s *Storage) GetSubscriptionSnapshot(ctx context.Context, id string) (*models.SubscriptionSnapshot, error) {
	const op = "storage.GetSubscriptionSnapshot"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := psql.Select(
		"s.id", "s.name", "s.price::text", "s.currency", "s.frequency", "s.payment_method",
		"s.status", "s.renewal_date", "u.name", "u.email").
		From("subscriptions s").
		Join("users u ON u.id = s.user_id").
		Where(sq.Eq{"s.id": id}).
		ToSql()
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}

	var snap models.SubscriptionSnapshot
	err = s.DB.QueryRowContext(ctx, query, args...).Scan(&snap.ID, &snap.Name, &snap.Price,
		&snap.Currency, &snap.Frequency, &snap.PaymentMethod, &snap.Status, &snap.RenewalDate,
		&snap.UserName, &snap.UserEmail)
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}
	return &snap, nil
}

func (s *Storage) querySubscriptions(ctx context.Context, op string, q sq.SelectBuilder) ([]*models.Subscription, error) {
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(op, "subscription", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	result := make([]*models.Subscription, 0)
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, mapError(op, "subscription", err)
		}
		result = append(result, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(op, "subscription", err)
	}
	return result, nil
}

func joinColumns() string {
	return strings.Join(subscriptionColumns, ", ")
}
