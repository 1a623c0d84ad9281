package model

import "time"

type InventoryStatus string

const (
	InventoryAvailable    InventoryStatus = "available"
	InventoryOutOfStock   InventoryStatus = "out_of_stock"
	InventoryDiscontinued InventoryStatus = "discontinued"
)

// Inventory is a sellable item. Price is in minor currency units (kobo,
// cents). Quantity and Status are mutated only by the reconciliation worker;
// items are discontinued, never deleted, and a discontinued item never
// returns to any other status.
type Inventory struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Price     int64           `json:"price"`
	Currency  Currency        `json:"currency"`
	Quantity  int64           `json:"quantity"`
	SKU       string          `json:"sku"`
	Status    InventoryStatus `json:"status"`
	CreatedBy string          `json:"created_by"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
