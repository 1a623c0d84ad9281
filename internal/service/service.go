package service

import (
	"context"

	"stockpay/internal/gateway"
	"stockpay/internal/model"
)

// Store is the data-access surface the reconciliation core needs. The pgx
// repository implements it; tests substitute an in-memory fake.
type Store interface {
	FindInventoryByID(ctx context.Context, id string) (*model.Inventory, error)
	PaymentExists(ctx context.Context, reference string, processor model.PaymentProcessor, processorRef string) (bool, error)
	CreateInventoryPayment(ctx context.Context, p model.Payment) error
	CreatePayment(ctx context.Context, p model.Payment) error
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// Queue durably enqueues reconciliation jobs. Enqueue returns only once the
// backing store has acknowledged the write; delivery to workers is at least
// once and unordered.
type Queue interface {
	Enqueue(ctx context.Context, job model.ReconcileJob) error
}

// Gateway re-verifies transactions against the payment processor.
type Gateway interface {
	VerifyTransaction(ctx context.Context, reference string) (*gateway.VerifiedTransaction, error)
}

// RefLock serialises processing per application reference.
type RefLock interface {
	Acquire(ctx context.Context, reference string) (bool, error)
	Release(ctx context.Context, reference string) error
}

// Notifier sends the post-commit confirmation. Implementations must be safe
// to fail: callers log and move on.
type Notifier interface {
	SendPaymentSuccessful(ctx context.Context, email string, p PaymentNotification) error
}

type PaymentNotification struct {
	Name      string
	Inventory string
	Price     int64
	Currency  model.Currency
}

// Ack is the neutral acknowledgment returned to the webhook sender.
type Ack struct {
	Message string `json:"message"`
}

var (
	AckHandled = Ack{Message: "webhook handled"}
	AckLogged  = Ack{Message: "webhook_logged"}
)

// WebhookService verifies, translates and enqueues an inbound processor
// webhook. The transport layer hands over the raw, unparsed body bytes.
type WebhookService interface {
	HandleWebhook(ctx context.Context, rawBody []byte, signature string) (Ack, error)
}

// PaymentInitiator starts a checkout with the processor.
type PaymentInitiator interface {
	InitiatePayment(ctx context.Context, userID, inventoryID string) (*gateway.InitializedTransaction, error)
}
