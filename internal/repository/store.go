package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockpay/internal/model"
)

var (
	ErrInventoryNotFound    = errors.New("inventory not found")
	ErrInventoryUnavailable = errors.New("inventory is no longer available")
	ErrDuplicatePayment     = errors.New("duplicate payment")
	ErrUserNotFound         = errors.New("user not found")
)

// Store is the pgx-backed data store for inventory, payments and users.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) FindInventoryByID(ctx context.Context, id string) (*model.Inventory, error) {
	const query = `
		SELECT id, name, category, price, currency, quantity, sku, status, created_by, created_at, updated_at
		FROM inventory WHERE id = $1`

	var inv model.Inventory
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&inv.ID, &inv.Name, &inv.Category, &inv.Price, &inv.Currency,
		&inv.Quantity, &inv.SKU, &inv.Status, &inv.CreatedBy,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrInventoryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return &inv, nil
}

// PaymentExists reports whether a payment with the given application
// reference, or the same (processor, processor reference) pair, has already
// been committed. Only successful rows count: a pending or failed audit row
// records a charge that may still settle, so it must not satisfy the
// duplicate check. This is the fast-path check; the partial unique indexes
// on the payments table remain the authoritative guard.
func (s *Store) PaymentExists(ctx context.Context, reference string, processor model.PaymentProcessor, processorRef string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM payments
			WHERE (reference = $1 OR (processor = $2 AND processor_ref = $3))
			  AND status = 'successful'
		)`

	var exists bool
	if err := s.pool.QueryRow(ctx, query, reference, processor, processorRef).Scan(&exists); err != nil {
		return false, fmt.Errorf("query payment existence: %w", err)
	}
	return exists, nil
}

// CreateInventoryPayment commits a reconciled charge in one transaction:
// the payment row is inserted and the inventory quantity decremented by one,
// flipping status to out_of_stock when the last unit is sold. The decrement
// is guarded so that two nearly simultaneous commits for the last unit
// cannot both succeed; the loser rolls back with ErrInventoryUnavailable.
func (s *Store) CreateInventoryPayment(ctx context.Context, p model.Payment) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	// A charge first seen as pending or failed may have left an audit row
	// under this reference. The settled payment supersedes it.
	_, err = tx.Exec(ctx, `
		DELETE FROM payments WHERE reference = $1 AND status <> 'successful'`,
		p.Reference,
	)
	if err != nil {
		return fmt.Errorf("supersede audit row: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO payments
			(id, amount, fee, currency, status, scope, reference, processor_ref, processor,
			 inventory_id, user_id, metadata_intent, metadata_inventory, metadata_user,
			 processor_response, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		p.ID, p.Amount, p.Fee, p.Currency, p.Status, p.Scope, p.Reference,
		p.ProcessorRef, p.Processor, nullable(p.InventoryID), p.UserID,
		p.Metadata.Intent, p.Metadata.Inventory, p.Metadata.User,
		p.ProcessorResponse, p.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// A concurrent delivery of the same charge won the race.
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert payment: %w", err)
	}

	res, err := tx.Exec(ctx, `
		UPDATE inventory
		SET quantity = quantity - 1,
		    status = CASE WHEN quantity = 1 THEN 'out_of_stock' ELSE status END,
		    updated_at = now()
		WHERE id = $1 AND status = 'available' AND quantity > 0`,
		p.InventoryID,
	)
	if err != nil {
		return fmt.Errorf("decrement inventory: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrInventoryUnavailable
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreatePayment inserts a payment row without touching inventory. Used by
// the optional audit policy that records non-successful charges; any
// existing row for the same reference, audit or settled, makes this a
// no-op. The guard lives in the statement because the unique indexes only
// cover successful rows.
func (s *Store) CreatePayment(ctx context.Context, p model.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO payments
			(id, amount, fee, currency, status, scope, reference, processor_ref, processor,
			 inventory_id, user_id, metadata_intent, metadata_inventory, metadata_user,
			 processor_response, created_at)
		SELECT $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16
		WHERE NOT EXISTS (SELECT 1 FROM payments WHERE reference = $7)`,
		p.ID, p.Amount, p.Fee, p.Currency, p.Status, p.Scope, p.Reference,
		p.ProcessorRef, p.Processor, nullable(p.InventoryID), p.UserID,
		p.Metadata.Intent, p.Metadata.Inventory, p.Metadata.User,
		p.ProcessorResponse, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	const query = `SELECT id, name, email FROM users WHERE id = $1`

	var u model.User
	err := s.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateInventory(ctx context.Context, inv model.Inventory) (*model.Inventory, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	if inv.Status == "" {
		inv.Status = model.InventoryAvailable
	}
	if inv.Currency == "" {
		inv.Currency = model.NGN
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory (id, name, category, price, currency, quantity, sku, status, created_by, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		inv.ID, inv.Name, inv.Category, inv.Price, inv.Currency, inv.Quantity,
		inv.SKU, inv.Status, inv.CreatedBy, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert inventory: %w", err)
	}
	return &inv, nil
}

// DiscontinueInventory flips an item to discontinued. Items are never
// physically deleted, and the discontinued status is absorbing.
func (s *Store) DiscontinueInventory(ctx context.Context, id string) error {
	res, err := s.pool.Exec(ctx, `
		UPDATE inventory SET status = 'discontinued', updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("discontinue inventory: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrInventoryNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
