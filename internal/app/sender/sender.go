// Package sender собирает процесс, который читает напоминания из RabbitMQ
// и отправляет письма через SMTP.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
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
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/smtp"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	senderservice "github.com/magabrotheeeer/subscription-tracker/internal/services/sender"
	"github.com/magabrotheeeer/subscription-tracker/internal/storage/cache"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	conn          *amqp.Connection
	ch            *amqp.Channel
	cache         *cache.Cache
	senderService *senderservice.Service
	concurrency   int
	server        *http.Server
	logger        *slog.Logger
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		_ = cacheRedis.Close()
		return nil, err
	}

	queues := rabbitmq.GetNotificationQueues()
	ch, err := rabbitmq.SetupChannel(conn, queues)
	if err != nil {
		conn.Close()
		_ = cacheRedis.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	m := metrics.New(reg)

	senderService, err := senderservice.New(smtp.NewTransport(cfg.SMTP, logger), cacheRedis, m, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		_ = cacheRedis.Close()
		return nil, err
	}

	router := chi.NewRouter()
	router.Method(http.MethodGet, "/health", health.New(logger, map[string]health.Checker{
		"redis": func(ctx context.Context) error { return cacheRedis.Db.Ping(ctx).Err() },
	}))
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &App{
		conn:          conn,
		ch:            ch,
		cache:         cacheRedis,
		senderService: senderService,
		concurrency:   cfg.Workflow.Workers,
		server: &http.Server{
			Addr:         cfg.HTTPServer.AddressHTTP,
			Handler:      router,
			ReadTimeout:  cfg.HTTPServer.TimeoutHTTP,
			WriteTimeout: cfg.HTTPServer.TimeoutHTTP,
			IdleTimeout:  cfg.HTTPServer.IdleTimeout,
		},
		logger: logger,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	go func() {
		a.logger.Info("metrics server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server failed", sl.Err(err))
		}
	}()

	err := rabbitmq.ConsumeMessages(ctx, a.ch, rabbitmq.QueueReminder, a.concurrency, a.logger, a.senderService.HandleReminder)
	if err != nil {
		a.logger.Error("reminder consumer stopped", slog.String("queue", rabbitmq.QueueReminder), sl.Err(err))
	}

	a.logger.Info("Sender service shutting down gracefully")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if serr := a.server.Shutdown(timeoutCtx); serr != nil {
		a.logger.Error("failed to stop metrics server", sl.Err(serr))
	}
	if cerr := a.ch.Close(); cerr != nil {
		a.logger.Error("failed to close channel", sl.Err(cerr))
	}
	if cerr := a.conn.Close(); cerr != nil {
		a.logger.Error("failed to close connection", sl.Err(cerr))
	}
	if cerr := a.cache.Close(); cerr != nil {
		a.logger.Error("failed to close redis", sl.Err(cerr))
	}
	return err
}
