// Package api собирает HTTP-приложение: маршруты, middleware и зависимости.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/auth/signin"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/auth/signup"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/cancel"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/create"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/listall"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/listbyowner"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/read"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/subscription/upcoming"
	userlist "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/user/list"
	userread "github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/user/read"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/handlers/workflow/trigger"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/metrics"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/auth"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/reminder"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/subscription"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/user"

	// swagger-спецификация регистрируется в init
	_ "github.com/magabrotheeeer/subscription-tracker/docs"
)

// Deps зависимости маршрутов.
type Deps struct {
	Auth          *auth.Service
	Users         *user.Service
	Subscriptions *subscription.Service
	Workflows     reminder.Starter
	SigningKey    string
	Limiter       *middlewarectx.RateLimiter
	Metrics       *metrics.Metrics
	Gatherer      prometheus.Gatherer
	Health        map[string]health.Checker
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middlewarectx.Metrics(d.Metrics),
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Group(func(r chi.Router) {
			r.Use(d.Limiter.Middleware(logger))
			r.Post("/auth/sign-up", signup.New(logger, d.Auth).ServeHTTP)
			r.Post("/auth/sign-in", signin.New(logger, d.Auth).ServeHTTP)
		})

		// Вызывается клиентом workflow, проверяется подписью
		r.Post("/workflows/subscription/reminder", trigger.New(logger, d.Workflows, d.SigningKey).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(d.Auth, logger))
			r.Use(d.Limiter.Middleware(logger))

			r.Get("/users/{id}", userread.New(logger, d.Users).ServeHTTP)

			r.Post("/subscriptions", create.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/upcoming-renewals", upcoming.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/user/{id}", listbyowner.New(logger, d.Subscriptions).ServeHTTP)
			r.Get("/subscriptions/{id}", read.New(logger, d.Subscriptions).ServeHTTP)
			r.Put("/subscriptions/{id}/cancel", cancel.New(logger, d.Subscriptions).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Get("/users", userlist.New(logger, d.Users).ServeHTTP)
				r.Get("/subscriptions", listall.New(logger, d.Subscriptions).ServeHTTP)
			})
		})
	})

	r.Method(http.MethodGet, "/health", health.New(logger, d.Health))
	r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
