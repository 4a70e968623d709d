// Package wakeup хранит время пробуждения экземпляров workflow в sorted set Redis.
//
// Член множества это id экземпляра, score это unix-время пробуждения в миллисекундах.
package wakeup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey ключ sorted set с пробуждениями.
const DefaultKey = "workflow:wakeups"

const lockPrefix = "workflow:lock:"

// Queue очередь отложенных пробуждений.
type Queue struct {
	rdb *redis.Client
	key string
}

// New создаёт очередь поверх rdb.
func New(rdb *redis.Client) *Queue {
	return &Queue{rdb: rdb, key: DefaultKey}
}

// Schedule ставит пробуждение runID на момент at. Повторный вызов переносит время.
func (q *Queue) Schedule(ctx context.Context, runID string, at time.Time) error {
	const op = "wakeup.Schedule"
	err := q.rdb.ZAdd(ctx, q.key, redis.Z{Score: score(at), Member: runID}).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ScheduleIfAbsent ставит пробуждение runID на at, только если runID ещё нет в очереди.
func (q *Queue) ScheduleIfAbsent(ctx context.Context, runID string, at time.Time) error {
	const op = "wakeup.ScheduleIfAbsent"
	err := q.rdb.ZAddNX(ctx, q.key, redis.Z{Score: score(at), Member: runID}).Err()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Claim забирает до limit экземпляров, время которых наступило к now.
// Экземпляр, который успел забрать другой процесс, пропускается.
func (q *Queue) Claim(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	const op = "wakeup.Claim"
	due, err := q.rdb.ZRangeByScore(ctx, q.key, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatFloat(score(now), 'f', -1, 64),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	claimed := make([]string, 0, len(due))
	for _, runID := range due {
		removed, err := q.rdb.ZRem(ctx, q.key, runID).Result()
		if err != nil {
			return claimed, fmt.Errorf("%s: %w", op, err)
		}
		if removed == 0 {
			continue
		}
		claimed = append(claimed, runID)
	}
	return claimed, nil
}

// Remove снимает запланированное пробуждение.
func (q *Queue) Remove(ctx context.Context, runID string) error {
	const op = "wakeup.Remove"
	if err := q.rdb.ZRem(ctx, q.key, runID).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// WakeAt возвращает запланированное время пробуждения runID.
func (q *Queue) WakeAt(ctx context.Context, runID string) (time.Time, bool, error) {
	const op = "wakeup.WakeAt"
	s, err := q.rdb.ZScore(ctx, q.key, runID).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%s: %w", op, err)
	}
	return time.UnixMilli(int64(s)).UTC(), true, nil
}

// Len число запланированных пробуждений.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("wakeup.Len: %w", err)
	}
	return n, nil
}

// Lock захватывает эксклюзивное право воспроизводить runID на ttl.
func (q *Queue) Lock(ctx context.Context, runID string, ttl time.Duration) (bool, error) {
	ok, err := q.rdb.SetNX(ctx, lockPrefix+runID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("wakeup.Lock: %w", err)
	}
	return ok, nil
}

// Unlock освобождает runID.
func (q *Queue) Unlock(ctx context.Context, runID string) error {
	if err := q.rdb.Del(ctx, lockPrefix+runID).Err(); err != nil {
		return fmt.Errorf("wakeup.Unlock: %w", err)
	}
	return nil
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}
