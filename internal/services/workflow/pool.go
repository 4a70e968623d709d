package workflow

import (
	"context"
	"log/slog"
	"sync"

	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
)

// Resumer воспроизводит экземпляр по идентификатору.
type Resumer interface {
	Resume(ctx context.Context, runID string) error
}

// Pool фиксированное число горутин, воспроизводящих экземпляры.
type Pool struct {
	numWorkers int
	jobs       chan string
	resumer    Resumer
	log        *slog.Logger
	wg         sync.WaitGroup
}

// NewPool создаёт пул из numWorkers воркеров.
func NewPool(numWorkers int, resumer Resumer, log *slog.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{
		numWorkers: numWorkers,
		jobs:       make(chan string, numWorkers*2),
		resumer:    resumer,
		log:        log,
	}
}

// Start запускает воркеры. Они читают задания до закрытия канала.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	p.log.Info("worker pool started", slog.Int("num_workers", p.numWorkers))
}

// Submit передаёт экземпляр воркерам. Возвращает false, если ctx завершён раньше.
func (p *Pool) Submit(ctx context.Context, runID string) bool {
	select {
	case p.jobs <- runID:
		return true
	case <-ctx.Done():
		return false
	}
}

// Stop закрывает канал заданий и ждёт завершения воркеров.
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.log.Info("worker pool stopped")
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	for runID := range p.jobs {
		if err := p.resumer.Resume(ctx, runID); err != nil {
			p.log.Error("failed to resume workflow",
				slog.Int("worker", id), sl.RunID(runID), sl.Err(err))
		}
	}
}
