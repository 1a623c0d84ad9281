package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"stockpay/internal/model"
	"stockpay/internal/service"
)

// ErrInvalidSignature rejects an inbound delivery whose HMAC does not match.
// Nothing is enqueued for such requests.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// allowedEvents is the explicit allow-list of processor events this handler
// acts on. Anything else is acknowledged and ignored; the sender must not
// learn which event types we consider invalid.
var allowedEvents = map[string]struct{}{
	"charge.success": {},
}

// Handler verifies an inbound Paystack webhook, re-verifies the charge
// server to server, and enqueues a reconciliation job.
type Handler struct {
	signer  *Signer
	gateway service.Gateway
	queue   service.Queue
	log     *slog.Logger
}

func NewHandler(signer *Signer, gw service.Gateway, queue service.Queue, log *slog.Logger) *Handler {
	return &Handler{
		signer:  signer,
		gateway: gw,
		queue:   queue,
		log:     log.With("handler", "paystack-webhook"),
	}
}

type eventEnvelope struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook implements service.WebhookService. The body must be the
// byte-exact request payload; it is verified before any parsing happens.
func (h *Handler) HandleWebhook(ctx context.Context, rawBody []byte, signature string) (service.Ack, error) {
	if !h.signer.Verify(rawBody, signature) {
		h.log.Error("invalid webhook signature")
		return service.Ack{}, ErrInvalidSignature
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(rawBody, &envelope); err != nil {
		return service.Ack{}, fmt.Errorf("parse webhook body: %w", err)
	}

	if _, ok := allowedEvents[envelope.Event]; !ok {
		h.log.Info("event type not allowed", "event", envelope.Event)
		return service.AckLogged, nil
	}

	switch envelope.Event {
	case "charge.success":
		if err := h.onChargeSuccess(ctx, envelope.Data.Reference); err != nil {
			return service.Ack{}, err
		}
	}

	return service.AckHandled, nil
}

// onChargeSuccess re-verifies the charge with the processor and enqueues a
// reconciliation job built entirely from the verified transaction. The
// webhook body's amount and currency are never used: a replayed delivery
// could otherwise forge a confirmation.
func (h *Handler) onChargeSuccess(ctx context.Context, reference string) error {
	tx, err := h.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return err
	}

	job := model.ReconcileJob{
		Processor:         model.ProcessorPaystack,
		Reference:         tx.Reference,
		ProcessorRef:      tx.ProcessorRef,
		Amount:            tx.Amount,
		Fee:               tx.Fee,
		Currency:          tx.Currency,
		Status:            normalizeStatus(tx.Status),
		Metadata:          tx.Metadata,
		ProcessorResponse: tx.Raw,
	}

	if err := h.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue reconcile job: %w", err)
	}

	h.log.Info("reconcile job enqueued", "reference", job.Reference, "intent", job.Metadata.Intent)
	return nil
}

// normalizeStatus maps Paystack's verify-endpoint status vocabulary onto the
// job contract's. The worker only ever commits "successful" charges.
func normalizeStatus(status string) string {
	if status == "success" {
		return "successful"
	}
	return status
}
