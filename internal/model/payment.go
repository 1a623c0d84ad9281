package model

import "time"

type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentFailed     PaymentStatus = "failed"
	PaymentSuccessful PaymentStatus = "successful"
)

// PaymentScope tags which business workflow a payment belongs to.
// The set is closed: worker dispatch switches over it exhaustively and
// rejects anything else, so adding a scope is a compile-visible change.
type PaymentScope string

const (
	ScopeInventoryItemPayment PaymentScope = "inventory_item_payment"
)

type PaymentProcessor string

const (
	ProcessorPaystack PaymentProcessor = "paystack"
)

type Currency string

const (
	NGN Currency = "NGN"
	USD Currency = "USD"
)

// JobMetadata travels from payment initiation through the processor and back
// on the verified transaction. Inventory and User are entity ids.
type JobMetadata struct {
	Intent    string `json:"intent"`
	Inventory string `json:"inventory"`
	User      string `json:"user"`
}

// Payment is a reconciled charge. Rows are created exactly once per
// successfully reconciled transaction and never updated afterwards.
// Reference and (Processor, ProcessorRef) are each unique at the storage
// layer; the worker's existence check is only a fast path in front of that.
type Payment struct {
	ID                string           `json:"id"`
	Amount            int64            `json:"amount"`
	Fee               int64            `json:"fee"`
	Currency          Currency         `json:"currency"`
	Status            PaymentStatus    `json:"status"`
	Scope             PaymentScope     `json:"scope"`
	Reference         string           `json:"reference"`
	ProcessorRef      string           `json:"processor_ref"`
	Processor         PaymentProcessor `json:"processor"`
	InventoryID       string           `json:"inventory_id,omitempty"`
	UserID            string           `json:"user_id"`
	Metadata          JobMetadata      `json:"metadata"`
	ProcessorResponse string           `json:"-"`
	CreatedAt         time.Time        `json:"created_at"`
}

// ReconcileJob is the queue wire contract between the webhook handler and
// the reconciliation workers. All fields are populated from the processor's
// own verification response, never from the webhook body.
type ReconcileJob struct {
	Processor         PaymentProcessor `json:"processor"`
	Reference         string           `json:"reference"`
	ProcessorRef      string           `json:"processorRef"`
	Amount            int64            `json:"amount"`
	Fee               int64            `json:"fee,omitempty"`
	Currency          Currency         `json:"currency"`
	Status            string           `json:"status"`
	Metadata          JobMetadata      `json:"metadata"`
	ProcessorResponse string           `json:"processorResponse"`
}
