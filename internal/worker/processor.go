package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stockpay/internal/model"
	"stockpay/internal/repository"
	"stockpay/internal/service"
)

var (
	// ErrInvalidIntent rejects jobs tagged with an unsupported metadata
	// intent. The intent set is closed; an unknown value is a bug or forged
	// metadata, never something redelivery can fix.
	ErrInvalidIntent = errors.New("invalid intent")
	// ErrAmountMismatch rejects jobs whose verified amount or currency does
	// not equal the inventory's price. Possible tampering or a price-change
	// race; flagged for dispute review instead of silently accepted.
	ErrAmountMismatch = errors.New("invalid inventory payment received")
	// ErrReferenceLocked means another worker currently holds this
	// application reference. Redelivery will find the committed payment.
	ErrReferenceLocked = errors.New("reference is being processed")
)

// Processor applies a reconciliation job to the data model:
// intent dispatch, status short-circuit, duplicate check, amount check,
// availability check, atomic commit, best-effort notification.
type Processor struct {
	store        service.Store
	lock         service.RefLock
	notifier     service.Notifier
	recordFailed bool
	log          *slog.Logger
}

func NewProcessor(store service.Store, lock service.RefLock, notifier service.Notifier, recordFailed bool, log *slog.Logger) *Processor {
	return &Processor{
		store:        store,
		lock:         lock,
		notifier:     notifier,
		recordFailed: recordFailed,
		log:          log,
	}
}

func (p *Processor) Process(ctx context.Context, job model.ReconcileJob) error {
	log := p.log.With(
		"reference", job.Reference,
		"processor", job.Processor,
		"intent", job.Metadata.Intent,
		"amount", job.Amount,
		"currency", job.Currency,
	)
	log.Info("payment reconciliation started")

	switch model.PaymentScope(job.Metadata.Intent) {
	case model.ScopeInventoryItemPayment:
		return p.reconcileInventoryPayment(ctx, log, job)
	default:
		log.Error("invalid intent")
		return ErrInvalidIntent
	}
}

func (p *Processor) reconcileInventoryPayment(ctx context.Context, log *slog.Logger, job model.ReconcileJob) error {
	if job.Status != string(model.PaymentSuccessful) {
		log.Info("payment not successful", "status", job.Status)
		if p.recordFailed {
			return p.recordNonSuccessful(ctx, log, job)
		}
		return nil
	}

	// Serialise the check-then-commit window per reference. Duplicate
	// deliveries racing past each other would otherwise both pass the
	// existence check; the loser is then caught by the unique index, but
	// the lock keeps that path cold.
	acquired, err := p.lock.Acquire(ctx, job.Reference)
	if err != nil {
		return fmt.Errorf("acquire lock for %s: %w", job.Reference, err)
	}
	if !acquired {
		return ErrReferenceLocked
	}
	defer func() { _ = p.lock.Release(ctx, job.Reference) }()

	exists, err := p.store.PaymentExists(ctx, job.Reference, job.Processor, job.ProcessorRef)
	if err != nil {
		return fmt.Errorf("check payment existence: %w", err)
	}
	if exists {
		log.Error("duplicate payment")
		return repository.ErrDuplicatePayment
	}

	inventory, err := p.store.FindInventoryByID(ctx, job.Metadata.Inventory)
	if err != nil {
		if errors.Is(err, repository.ErrInventoryNotFound) {
			log.Error("inventory not found", "inventory_id", job.Metadata.Inventory)
		}
		return err
	}

	if inventory.Price != job.Amount || inventory.Currency != job.Currency {
		log.Error("invalid payment amount",
			"expected_amount", inventory.Price,
			"expected_currency", inventory.Currency,
		)
		return ErrAmountMismatch
	}

	if inventory.Status != model.InventoryAvailable || inventory.Quantity == 0 {
		log.Error("inventory no longer available",
			"inventory_id", inventory.ID,
			"inventory_status", inventory.Status,
			"quantity", inventory.Quantity,
		)
		return repository.ErrInventoryUnavailable
	}

	payment := model.Payment{
		Amount:            job.Amount,
		Fee:               job.Fee,
		Currency:          job.Currency,
		Status:            model.PaymentSuccessful,
		Scope:             model.ScopeInventoryItemPayment,
		Reference:         job.Reference,
		ProcessorRef:      job.ProcessorRef,
		Processor:         job.Processor,
		InventoryID:       inventory.ID,
		UserID:            job.Metadata.User,
		Metadata:          job.Metadata,
		ProcessorResponse: job.ProcessorResponse,
	}

	if err := p.store.CreateInventoryPayment(ctx, payment); err != nil {
		return err
	}
	log.Info("item payment successful", "inventory_id", inventory.ID)

	p.notifyBuyer(ctx, log, job, inventory)
	return nil
}

// recordNonSuccessful persists a failed or pending charge for audit when the
// policy is enabled. The insert ignores conflicts so redeliveries stay
// harmless.
func (p *Processor) recordNonSuccessful(ctx context.Context, log *slog.Logger, job model.ReconcileJob) error {
	status := model.PaymentFailed
	if job.Status == string(model.PaymentPending) {
		status = model.PaymentPending
	}

	err := p.store.CreatePayment(ctx, model.Payment{
		Amount:            job.Amount,
		Fee:               job.Fee,
		Currency:          job.Currency,
		Status:            status,
		Scope:             model.ScopeInventoryItemPayment,
		Reference:         job.Reference,
		ProcessorRef:      job.ProcessorRef,
		Processor:         job.Processor,
		UserID:            job.Metadata.User,
		Metadata:          job.Metadata,
		ProcessorResponse: job.ProcessorResponse,
	})
	if err != nil {
		return fmt.Errorf("record non-successful charge: %w", err)
	}
	log.Info("non-successful charge recorded", "status", status)
	return nil
}

// notifyBuyer sends the confirmation email. The financial state is already
// committed, so failures here are logged and swallowed.
func (p *Processor) notifyBuyer(ctx context.Context, log *slog.Logger, job model.ReconcileJob, inventory *model.Inventory) {
	user, err := p.store.FindUserByID(ctx, job.Metadata.User)
	if err != nil {
		log.Error("notification skipped: buyer lookup failed", "user_id", job.Metadata.User, "error", err)
		return
	}

	err = p.notifier.SendPaymentSuccessful(ctx, user.Email, service.PaymentNotification{
		Name:      user.Name,
		Inventory: inventory.Name,
		Price:     inventory.Price,
		Currency:  inventory.Currency,
	})
	if err != nil {
		log.Error("payment notification failed", "user_id", user.ID, "error", err)
	}
}

// Terminal reports whether an error can never be fixed by redelivering the
// job. Terminal failures are parked for manual inspection; everything else
// is retried by the queue up to its attempt bound.
func Terminal(err error) bool {
	return errors.Is(err, ErrInvalidIntent) ||
		errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, repository.ErrInventoryNotFound) ||
		errors.Is(err, repository.ErrInventoryUnavailable) ||
		errors.Is(err, repository.ErrDuplicatePayment)
}
