package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"

	"chatgpt-whatsapp-bot/pkg/api/response"
	"chatgpt-whatsapp-bot/pkg/logger"
)

type ChatService interface {
	HandleIncoming(ctx context.Context, values url.Values) error
}

type Validator interface {
	IsAuthentic(r *http.Request) bool
}

type whatsApp struct {
	chat      ChatService
	validator Validator
	writer    response.JSONResponseWriter
	requestID atomic.Int64
}

func NewWhatsApp(chat ChatService, validator Validator) *whatsApp {
	return &whatsApp{
		chat:      chat,
		validator: validator,
	}
}

// Reply handles inbound messages. The ack is unconditional so provider-side
// retries never misfire on application-level errors.
func (h *whatsApp) Reply(w http.ResponseWriter, r *http.Request) {
	ctx := logger.ContextWithRequestID(r.Context(), h.requestID.Add(1))
	defer h.writer.WriteAck(w)

	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(ctx, "parsing webhook form", logger.Err(err))
		return
	}
	if !h.validator.IsAuthentic(r) {
		slog.WarnContext(ctx, "dropping request with invalid signature", "from", r.PostForm.Get("From"))
		return
	}

	slog.InfoContext(ctx, "Received message webhook", "from", r.PostForm.Get("From"))

	if err := h.chat.HandleIncoming(ctx, r.PostForm); err != nil {
		slog.ErrorContext(ctx, "handling incoming message", logger.Err(err))
	}
}

// Status receives delivery-status callbacks. They are acknowledged and
// otherwise ignored.
func (h *whatsApp) Status(w http.ResponseWriter, r *http.Request) {
	ctx := logger.ContextWithRequestID(r.Context(), h.requestID.Add(1))
	defer h.writer.WriteAck(w)

	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(ctx, "parsing webhook form", logger.Err(err))
		return
	}

	slog.InfoContext(ctx, "Received status webhook",
		"messageSid", r.PostForm.Get("MessageSid"),
		"status", r.PostForm.Get("MessageStatus"),
	)
}
