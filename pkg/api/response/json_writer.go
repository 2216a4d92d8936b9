package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chatgpt-whatsapp-bot/pkg/logger"
)

type JSONResponseWriter struct{}

// WriteAck acknowledges a webhook. The provider only needs a 200-level
// status; application-level failures are reported to the user over the chat
// channel, never through webhook error codes.
func (j *JSONResponseWriter) WriteAck(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		slog.Error("encoding ack response", logger.Err(err))
	}
}
