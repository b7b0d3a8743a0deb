package stockmove

import (
	"fmt"
	"time"

	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// TableName is the backing table for stock movements.
const TableName = "stock_movements"

// MovementType distinguishes inbound from outbound stock.
type MovementType string

const (
	// StockIn is an inbound movement.
	StockIn MovementType = "stock_in"
	// StockOut is an outbound movement.
	StockOut MovementType = "stock_out"
)

// Movement is one append-only audit record of stock changing hands. Only the
// remark is mutable after creation. Unit is materialized client-side from the
// referenced item; the persisted row does not carry it.
type Movement struct {
	ID           string       `db:"id" json:"id"`
	ItemID       string       `db:"item_id" json:"item_id"`
	ItemName     string       `db:"item_name" json:"item_name"`
	Quantity     int64        `db:"quantity" json:"quantity"`
	MovementType MovementType `db:"movement_type" json:"movement_type"`
	Remark       string       `db:"remark" json:"remark"`
	Unit         string       `db:"-" json:"unit"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// NewMovement describes a movement to append.
type NewMovement struct {
	ItemID       string       `json:"item_id" validate:"required"`
	ItemName     string       `json:"item_name" validate:"required"`
	Quantity     int64        `json:"quantity" validate:"gt=0"`
	MovementType MovementType `json:"movement_type" validate:"oneof=stock_in stock_out"`
	Remark       string       `json:"remark"`
}

// ErrMovementNotFound indicates a local lookup miss.
var ErrMovementNotFound = fmt.Errorf("stockmove: movement %w", shared.ErrNotFound)
