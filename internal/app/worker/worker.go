// Package worker собирает процесс, который воспроизводит долговременные
// процессы напоминаний и периодически помечает просроченные подписки.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-tracker/internal/config"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/expiry"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/reminder"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/workflow"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/cache"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/repository"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/wakeup"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	logger     *slog.Logger
	db         *repository.Storage
	cache      *cache.Cache
	conn       *amqp.Connection
	ch         *amqp.Channel
	engine     *workflow.Engine
	pool       *workflow.Pool
	dispatcher *workflow.Dispatcher
	sweeper    *expiry.Service
	server     *http.Server
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = db.CheckDatabaseReady(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, err
	}
	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	queue := wakeup.New(cacheRedis.Db)
	engine := workflow.NewEngine(db, queue, logger, m, workflow.Options{
		MaxAttempts: cfg.Workflow.MaxAttempts,
		RetryDelay:  cfg.Workflow.RetryDelay,
	})
	notifier := reminder.NewNotifier(rabbitmq.NewPublisher(ch, rabbitmq.ExchangeNotifications), m, logger)
	reminder.New(db, notifier, logger).Register(engine)

	pool := workflow.NewPool(cfg.Workflow.Workers, engine, logger)
	dispatcher := workflow.NewDispatcher(queue, pool, logger, m, cfg.Workflow.PollInterval, cfg.Workflow.BatchSize)

	sweeper := expiry.New(db, cacheRedis, m, logger, cfg.Workflow.ExpiryEvery)

	router := chi.NewRouter()
	router.Method(http.MethodGet, "/health", health.New(logger, map[string]health.Checker{
		"postgres": db.CheckDatabaseReady,
		"redis":    func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
	}))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &App{
		logger:     logger,
		db:         db,
		cache:      cacheRedis,
		conn:       conn,
		ch:         ch,
		engine:     engine,
		pool:       pool,
		dispatcher: dispatcher,
		sweeper:    sweeper,
		server: &http.Server{
			Addr:         cfg.HTTPServer.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
			WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
			IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		},
	}, nil
}

// Run восстанавливает незавершённые процессы и обрабатывает пробуждения до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	n, err := a.engine.Recover(ctx)
	if err != nil {
		a.logger.Error("failed to recover workflow runs", sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("workflow runs recovered", slog.Int("count", n))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.pool.Start(runCtx)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.dispatcher.Start(runCtx)
	}()
	go func() {
		defer wg.Done()
		a.sweeper.Start(runCtx)
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errCh:
		a.logger.Error("metrics server failed", sl.Err(err))
	}

	a.logger.Info("reminder worker shutting down gracefully")
	cancel()
	timeoutCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if serr := a.server.Shutdown(timeoutCtx); serr != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(serr))
	}

	wg.Wait()
	a.pool.Stop()
	a.close()
	return err
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close redis", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close database", sl.Err(err))
	}
}
