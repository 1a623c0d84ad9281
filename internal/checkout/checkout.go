package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"stockpay/internal/gateway"
	"stockpay/internal/model"
	"stockpay/internal/repository"
	"stockpay/internal/service"
)

var (
	ErrInventoryUnavailable = errors.New("inventory is not available")
	ErrOwnInventory         = errors.New("you can not pay for your own inventory item")
)

// Initiator starts a checkout with the payment processor. The application
// reference minted here is what later ties the webhook, the verified
// transaction and the committed payment row together.
type Initiator struct {
	store   service.Store
	gateway gatewayClient
	log     *slog.Logger
}

type gatewayClient interface {
	InitializeTransaction(ctx context.Context, email string, amount int64, currency model.Currency, reference string, metadata model.JobMetadata) (*gateway.InitializedTransaction, error)
}

func NewInitiator(store service.Store, gw gatewayClient, log *slog.Logger) *Initiator {
	return &Initiator{store: store, gateway: gw, log: log.With("service", "checkout")}
}

func (i *Initiator) InitiatePayment(ctx context.Context, userID, inventoryID string) (*gateway.InitializedTransaction, error) {
	inventory, err := i.store.FindInventoryByID(ctx, inventoryID)
	if err != nil {
		return nil, err
	}
	user, err := i.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if inventory.Status != model.InventoryAvailable || inventory.Quantity == 0 {
		return nil, ErrInventoryUnavailable
	}
	if inventory.CreatedBy == user.ID {
		return nil, ErrOwnInventory
	}

	metadata := model.JobMetadata{
		Intent:    string(model.ScopeInventoryItemPayment),
		Inventory: inventory.ID,
		User:      user.ID,
	}
	reference := newReference()

	tx, err := i.gateway.InitializeTransaction(ctx, user.Email, inventory.Price, inventory.Currency, reference, metadata)
	if err != nil {
		return nil, fmt.Errorf("initialize transaction: %w", err)
	}

	i.log.Info("payment initiated",
		"reference", reference,
		"inventory_id", inventory.ID,
		"user_id", user.ID,
		"amount", inventory.Price,
	)
	return tx, nil
}

// newReference mints an application reference for a checkout attempt.
func newReference() string {
	return "inv_" + uuid.NewString()
}

// IsNotFound lets transports map missing-entity errors to 404 without
// depending on the repository package directly.
func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrInventoryNotFound) || errors.Is(err, repository.ErrUserNotFound)
}
