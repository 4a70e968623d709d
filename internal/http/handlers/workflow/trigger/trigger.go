// Package trigger реализует HTTP-точку запуска процесса напоминаний.
//
// Тело запроса подписано HMAC-SHA256 общим ключом. Обработчик только регистрирует
// экземпляр процесса и отвечает 202; выполнение идёт в reminder-worker.
package trigger

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subscription-tracker/internal/http/response"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/signature"
	"github.com/magabrotheeeer/subscription-tracker/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-tracker/internal/services/reminder"
)

const maxBodyBytes = 64 << 10

// Handler принимает запрос на запуск процесса напоминаний.
type Handler struct {
	log        *slog.Logger
	starter    reminder.Starter
	signingKey string
}

// New создает новый Handler.
func New(log *slog.Logger, starter reminder.Starter, signingKey string) *Handler {
	return &Handler{
		log:        log,
		starter:    starter,
		signingKey: signingKey,
	}
}

// ServeHTTP godoc
// @Summary Запуск процесса напоминаний
// @Description Регистрирует процесс напоминаний для подписки. Повторный запуск возвращает существующий экземпляр.
// @Tags Workflows
// @Accept  json
// @Produce  json
// @Param X-Workflow-Signature header string true "base64(HMAC-SHA256(body))"
// @Param request body reminder.Payload true "ID подписки"
// @Success 202 {object} response.Response{data=models.WorkflowRun} "Процесс принят"
// @Failure 400 {object} response.ErrorResponse "Некорректное тело"
// @Failure 401 {object} response.ErrorResponse "Неверная подпись"
// @Router /workflows/subscription/reminder [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.workflow.trigger"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if !signature.Verify(h.signingKey, body, r.Header.Get(signature.Header)) {
		log.Warn("workflow trigger signature mismatch")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid signature"))
		return
	}

	var payload reminder.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Error("failed to decode payload", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	run, created, err := reminder.Start(r.Context(), h.starter, payload.SubscriptionID)
	if err != nil {
		log.Error("failed to start reminder workflow", sl.SubscriptionID(payload.SubscriptionID), sl.Err(err))
		response.FromError(w, r, err)
		return
	}

	if created {
		log.Info("reminder workflow accepted", sl.RunID(run.ID))
	} else {
		log.Info("reminder workflow already exists", sl.RunID(run.ID), slog.String("status", string(run.Status)))
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, response.OKWithData(run))
}

