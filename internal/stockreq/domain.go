package stockreq

import (
	"errors"
	"fmt"
	"time"

	"github.com/ngshijun/clinic-inventory-manager/internal/shared"
)

// TableName is the backing table for stock requests.
const TableName = "stock_requests"

// Status enumerates the request lifecycle. Approved and Cancelled are
// terminal; there is no way back to Pending.
type Status string

const (
	// StatusPending awaits a decision.
	StatusPending Status = "Pending"
	// StatusApproved is terminal; approval decrements inventory.
	StatusApproved Status = "Approved"
	// StatusCancelled is terminal.
	StatusCancelled Status = "Cancelled"
)

// Request mirrors one stock_requests row. Unit is materialized client-side
// from the referenced item.
type Request struct {
	ID        string    `db:"id" json:"id"`
	ItemID    string    `db:"item_id" json:"item_id"`
	ItemName  string    `db:"item_name" json:"item_name"`
	Quantity  int64     `db:"quantity" json:"quantity"`
	Remark    string    `db:"remark" json:"remark"`
	Status    Status    `db:"status" json:"status"`
	Unit      string    `db:"-" json:"unit"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewRequest describes a request to file; it always starts Pending.
type NewRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	ItemName string `json:"item_name" validate:"required"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
	Remark   string `json:"remark"`
}

// RequestUpdate carries a partial edit of a pending request.
type RequestUpdate struct {
	Quantity *int64  `json:"quantity"`
	Remark   *string `json:"remark"`
}

var (
	// ErrRequestNotFound indicates a local lookup miss.
	ErrRequestNotFound = fmt.Errorf("stockreq: request %w", shared.ErrNotFound)
	// ErrNotPending rejects a decision on a request already in a terminal
	// state.
	ErrNotPending = errors.New("stockreq: request is not pending")
)
