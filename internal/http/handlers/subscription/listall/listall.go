// Package listall реализует административный HTTP-обработчик списка всех подписок
// с фильтрами по статусу и категории и постраничной выдачей.
package listall

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/samber/lo"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/models"
)

// Service описывает интерфейс бизнес-логики списка подписок.
type Service interface {
	ListAll(ctx context.Context, caller models.Caller, filter models.SubscriptionFilter) ([]*models.Subscription, error)
}

// Handler отдаёт подписки всех пользователей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Все подписки
// @Description Возвращает подписки всех пользователей. Только для администратора.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Param status query string false "Статус" Enums(active, cancelled, expired)
// @Param category query string false "Категория"
// @Param limit query int false "Размер страницы (по умолчанию 50, не больше 200)"
// @Param offset query int false "Смещение"
// @Success 200 {object} response.Response{data=[]models.Subscription}
// @Failure 400 {object} response.ErrorResponse "Некорректные параметры"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 403 {object} response.ErrorResponse "Недостаточно прав"
// @Router /subscriptions [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.listall"
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

	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		log.Info("invalid query", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("limit and offset must be non-negative integers"))
		return
	}

	subs, err := h.service.ListAll(r.Context(), caller, filter)
	if err != nil {
		log.Error("failed to list subscriptions", sl.Err(err))
		response.FromError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(subs))
}

func parseFilter(q url.Values) (models.SubscriptionFilter, error) {
	var filter models.SubscriptionFilter
	if s := q.Get("status"); s != "" {
		filter.Status = lo.ToPtr(models.Status(s))
	}
	if c := q.Get("category"); c != "" {
		filter.Category = lo.ToPtr(models.Category(c))
	}
	var err error
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.ParseUint(v, 10, 64); err != nil {
			return filter, err
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.ParseUint(v, 10, 64); err != nil {
			return filter, err
		}
	}
	return filter, nil
}
