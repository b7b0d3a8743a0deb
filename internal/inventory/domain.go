package inventory

import (
	"fmt"
	"time"

	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// TableName is the backing table for inventory items.
const TableName = "inventory"

// Item mirrors one inventory row. order_date and non_order_reason are
// mutually exclusive; setting one clears the other.
type Item struct {
	ID             string     `db:"id" json:"id"`
	ItemName       string     `db:"item_name" json:"item_name"`
	Quantity       int64      `db:"quantity" json:"quantity"`
	ReorderLevel   int64      `db:"reorder_level" json:"reorder_level"`
	Unit           string     `db:"unit" json:"unit"`
	Remark         string     `db:"remark" json:"remark"`
	OrderDate      *time.Time `db:"order_date" json:"order_date"`
	NonOrderReason *string    `db:"non_order_reason" json:"non_order_reason"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// NeverReorder is the reorder_level sentinel for items that are never
// reordered.
const NeverReorder int64 = -1

// NewItem describes an item to be created. Quantity is clamped to >= 0 and
// ReorderLevel to >= NeverReorder.
type NewItem struct {
	ItemName       string     `json:"item_name" validate:"required"`
	Quantity       int64      `json:"quantity"`
	ReorderLevel   int64      `json:"reorder_level"`
	Unit           string     `json:"unit"`
	Remark         string     `json:"remark"`
	OrderDate      *time.Time `json:"order_date"`
	NonOrderReason *string    `json:"non_order_reason"`
}

// ItemUpdate carries a partial item edit; nil fields are left untouched.
type ItemUpdate struct {
	ItemName       *string    `json:"item_name"`
	Quantity       *int64     `json:"quantity"`
	ReorderLevel   *int64     `json:"reorder_level"`
	Unit           *string    `json:"unit"`
	Remark         *string    `json:"remark"`
	OrderDate      *time.Time `json:"order_date"`
	NonOrderReason *string    `json:"non_order_reason"`
}

// Stats summarises the collection for the dashboard.
type Stats struct {
	TotalItems    int64 `json:"total_items"`
	TotalProducts int   `json:"total_products"`
	LowStock      int   `json:"low_stock"`
	OutOfStock    int   `json:"out_of_stock"`
}

// Movement types recorded against inventory mutations.
const (
	MovementStockIn  = "stock_in"
	MovementStockOut = "stock_out"
)

// MovementEntry is the audit record appended when stock changes hands.
type MovementEntry struct {
	ItemID   string
	ItemName string
	Quantity int64
	Type     string
	Remark   string
}

// ErrItemNotFound indicates a local lookup miss.
var ErrItemNotFound = fmt.Errorf("inventory: item %w", shared.ErrNotFound)
