// Package cache хранит JSON-значения в Redis: кеш подписок и маркеры идемпотентности.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
)

const markerConfirmed = "sent"

// Cache обёртка над клиентом Redis.
type Cache struct {
	Db *redis.Client
}

// NewClient создаёт клиент Redis по настройкам и проверяет соединение.
func NewClient(ctx context.Context, cfg config.RedisConnection) (*redis.Client, error) {
	const op = "cache.NewClient"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return db, nil
}

// InitServer подключается к Redis и возвращает Cache.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	db, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{Db: db}, nil
}

// Get читает key в result. found=false, если ключа нет.
func (c *Cache) Get(ctx context.Context, key string, result any) (bool, error) {
	const op = "cache.Get"
	val, err := c.Db.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err = json.Unmarshal(val, result); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// Set сохраняет value в JSON с временем жизни expiration.
func (c *Cache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	const op = "cache.Set"
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := c.Db.Set(ctx, key, jsonData, expiration).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Invalidate удаляет key.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	const op = "cache.Invalidate"
	if err := c.Db.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Acquire ставит маркер key, если его ещё нет. ok=false, если маркер уже стоял.
func (c *Cache) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	const op = "cache.Acquire"
	ok, err := c.Db.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// Confirm помечает маркер key как подтверждённый и продлевает его на ttl.
func (c *Cache) Confirm(ctx context.Context, key string, ttl time.Duration) error {
	const op = "cache.Confirm"
	if err := c.Db.Set(ctx, key, markerConfirmed, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Confirmed сообщает, подтверждён ли маркер key.
func (c *Cache) Confirmed(ctx context.Context, key string) (bool, error) {
	const op = "cache.Confirmed"
	val, err := c.Db.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return val == markerConfirmed, nil
}

// Close закрывает клиент.
func (c *Cache) Close() error {
	return c.Db.Close()
}

// SubscriptionKey ключ кеша подписки.
func SubscriptionKey(id string) string {
	return "subscription:" + id
}

// ReminderSentKey маркер отправленного напоминания.
func ReminderSentKey(runID string, offset int) string {
	return fmt.Sprintf("reminder:sent:%s:%d", runID, offset)
}
