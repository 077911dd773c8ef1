package handler

import (
	"errors"
	"net/http"

	"github.com/drivesink/drivesink/internal/service"
)

type WebhookHandler struct {
	monitor *service.Monitor
}

func NewWebhookHandler(monitor *service.Monitor) *WebhookHandler {
	return &WebhookHandler{
		monitor: monitor,
	}
}

// Webhook receives Drive change notifications. Drive sends everything in
// headers, not the body. Every recognized delivery is answered 200 regardless
// of what happens internally; 400 is reserved for deliveries missing the
// required headers.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	channelID := r.Header.Get("X-Goog-Channel-ID")
	resourceState := r.Header.Get("X-Goog-Resource-State")

	outcome, err := h.monitor.HandleNotification(r.Context(), channelID, resourceState)
	if errors.Is(err, service.ErrMissingFields) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": "Missing required headers",
		})
		return
	}

	body := map[string]any{"status": outcome.Status}
	if outcome.Status == service.StatusProcessing {
		body["files"] = outcome.Files
	}

	writeJSON(w, http.StatusOK, body)
}
