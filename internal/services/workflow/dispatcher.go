package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
)

// Dispatcher опрашивает очередь пробуждений и передаёт наступившие экземпляры в пул.
type Dispatcher struct {
	queue        Queue
	pool         *Pool
	log          *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	pollInterval time.Duration
	batchSize    int64
}

// NewDispatcher создаёт диспетчер.
func NewDispatcher(queue Queue, pool *Pool, log *slog.Logger, m *metrics.Metrics,
	pollInterval time.Duration, batchSize int64) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if batchSize < 1 {
		batchSize = 10
	}
	return &Dispatcher{
		queue:        queue,
		pool:         pool,
		log:          log,
		metrics:      m,
		now:          time.Now,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Start крутит цикл опроса до отмены ctx.
func (d *Dispatcher) Start(ctx context.Context) {
	d.log.Info("dispatcher started", slog.Duration("poll_interval", d.pollInterval))

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dispatcher stopping")
			return
		case <-ticker.C:
			d.poll(ctx)
		}
	}
}

func (d *Dispatcher) poll(ctx context.Context) {
	ids, err := d.queue.Claim(ctx, d.now(), d.batchSize)
	if err != nil {
		d.log.Error("failed to claim wake-ups", sl.Err(err))
		return
	}
	if len(ids) == 0 {
		return
	}
	d.metrics.WakeupsClaimed.Add(float64(len(ids)))

	for i, id := range ids {
		if !d.pool.Submit(ctx, id) {
			d.requeue(ids[i:])
			return
		}
	}
}

// requeue возвращает в очередь экземпляры, не переданные воркерам до остановки.
func (d *Dispatcher) requeue(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := d.now()
	for _, id := range ids {
		if err := d.queue.Schedule(ctx, id, now); err != nil {
			d.log.Error("failed to requeue wake-up", sl.RunID(id), sl.Err(err))
		}
	}
}
