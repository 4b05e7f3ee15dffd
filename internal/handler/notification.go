package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/insider-one/notify-dispatch/internal/dispatch"
	"github.com/insider-one/notify-dispatch/internal/domain"
	"github.com/insider-one/notify-dispatch/internal/middleware"
)

// NotificationHandler exposes the ingress and status surface [spec §6].
type NotificationHandler struct {
	dispatcher *dispatch.Dispatcher
	store      domain.NotificationRepository
	validate   *validator.Validate
}

func NewNotificationHandler(dispatcher *dispatch.Dispatcher, store domain.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{
		dispatcher: dispatcher,
		store:      store,
		validate:   validator.New(),
	}
}

// RegisterRoutes mounts the three notification endpoints under r.
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/send", h.Send)
	r.Get("/status/{id}", h.Status)
	r.Post("/retry/{id}", h.Retry)
}

// Send accepts POST /api/v1/send [spec §6].
func (h *NotificationHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req dispatch.SendRequest
	if err := DecodeJSON(r, &req); err != nil {
		HandleError(w, err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		JSONError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request failed validation", err.Error())
		return
	}

	client, ok := middleware.ClientFromContext(r.Context())
	if !ok {
		JSONError(w, http.StatusUnauthorized, "MISSING_API_KEY", "X-API-Key header is required", nil)
		return
	}
	if !client.AllowsChannel(req.Channel) {
		JSONError(w, http.StatusForbidden, "CHANNEL_NOT_ALLOWED", "api client is not permitted to use this channel", nil)
		return
	}

	resp, err := h.dispatcher.Submit(r.Context(), req, client.ID)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusAccepted, resp)
}

// Status serves GET /api/v1/status/{id} [spec §6].
func (h *NotificationHandler) Status(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid notification id", nil)
		return
	}

	n, err := h.store.FindByID(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, dispatch.ToStatusResponse(n))
}

// Retry serves POST /api/v1/retry/{id}, the admin forceRetry operation
// [spec §8 P5].
func (h *NotificationHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid notification id", nil)
		return
	}

	if err := h.dispatcher.ForceRetry(r.Context(), id); err != nil {
		HandleError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]string{"message": "notification re-queued for delivery"})
}
