package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/drivesink/drivesink/internal/service"
)

type SetupHandler struct {
	channels *service.Channels
}

func NewSetupHandler(channels *service.Channels) *SetupHandler {
	return &SetupHandler{
		channels: channels,
	}
}

type channelResponse struct {
	ChannelID  string    `json:"channel_id"`
	FolderID   string    `json:"folder_id"`
	Expiration time.Time `json:"expiration"`
}

// Setup registers monitoring for one folder. This is the synchronous,
// operator-initiated surface, so unlike the webhook it reports failures.
func (h *SetupHandler) Setup(w http.ResponseWriter, r *http.Request) {
	folderID := r.FormValue("folder_id")
	if folderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"detail": "folder_id is required",
		})
		return
	}

	channel, err := h.channels.Setup(r.Context(), folderID)
	if err != nil {
		slog.Error("failed to set up monitoring", "error", err, "folder_id", folderID)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"detail": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Monitoring setup successfully",
		"channel": channelResponse{
			ChannelID:  channel.ChannelID,
			FolderID:   channel.FolderID,
			Expiration: channel.Expiration,
		},
	})
}
