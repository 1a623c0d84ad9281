package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"stockpay/internal/checkout"
	"stockpay/internal/gateway"
	"stockpay/internal/service"
	"stockpay/internal/webhook"
)

type Handler struct {
	webhooks  service.WebhookService
	initiator service.PaymentInitiator
	log       *slog.Logger
}

func NewHandler(webhooks service.WebhookService, initiator service.PaymentInitiator, log *slog.Logger) *Handler {
	return &Handler{webhooks: webhooks, initiator: initiator, log: log}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /pub/webhook/paystack", h.PaystackWebhook)
	mux.HandleFunc("POST /inventory/{id}/payments", h.InitiatePayment)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// PaystackWebhook hands the raw body bytes to the webhook service before any
// parsing: the signature covers exactly what the sender transmitted. The
// response is a fast acknowledgment; reconciliation happens asynchronously.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "unreadable_body")
		return
	}
	signature := r.Header.Get("x-paystack-signature")

	h.log.Info("received paystack webhook")

	ack, err := h.webhooks.HandleWebhook(r.Context(), rawBody, signature)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrInvalidSignature):
			h.respondError(w, http.StatusUnauthorized, "invalid_webhook")
		case errors.Is(err, gateway.ErrTransactionNotFound):
			h.respondError(w, http.StatusNotFound, "payment_not_found")
		case errors.Is(err, gateway.ErrUnavailable):
			// Non-2xx makes the sender redeliver once the outage clears.
			h.respondError(w, http.StatusServiceUnavailable, "verification_unavailable")
		default:
			h.log.Error("webhook handling failed", "error", err)
			h.respondError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, ack)
}

func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		h.respondError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	tx, err := h.initiator.InitiatePayment(r.Context(), req.UserID, r.PathValue("id"))
	if err != nil {
		switch {
		case checkout.IsNotFound(err):
			h.respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, checkout.ErrInventoryUnavailable), errors.Is(err, checkout.ErrOwnInventory):
			h.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, gateway.ErrUnavailable):
			h.respondError(w, http.StatusServiceUnavailable, err.Error())
		default:
			h.log.Error("initiate payment failed", "error", err)
			h.respondError(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, tx)
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
