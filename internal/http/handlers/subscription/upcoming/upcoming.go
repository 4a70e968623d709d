// Package upcoming реализует HTTP-обработчик ближайших продлений текущего пользователя.
package upcoming

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// DefaultDays горизонт по умолчанию совпадает с первым напоминанием.
const DefaultDays = 7

// Service описывает интерфейс бизнес-логики ближайших продлений.
type Service interface {
	UpcomingRenewals(ctx context.Context, caller models.Caller, days int) ([]*models.Subscription, error)
}

// Handler отдаёт активные подписки с продлением в ближайшие days дней.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Ближайшие продления
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Param days query int false "Горизонт в днях (1..365, по умолчанию 7)"
// @Success 200 {object} response.Response{data=[]models.Subscription}
// @Failure 400 {object} response.ErrorResponse "Некорректный горизонт"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Router /subscriptions/upcoming-renewals [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.upcoming"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	caller, ok := middlewarectx.CallerFrom(r.Context())
	if !ok {
		log.Error("caller not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	days := DefaultDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, response.Error("days must be an integer"))
			return
		}
		days = n
	}

	subs, err := h.service.UpcomingRenewals(r.Context(), caller, days)
	if err != nil {
		log.Error("failed to list upcoming renewals", sl.Err(err))
		response.FromError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(subs))
}
