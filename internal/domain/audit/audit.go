// Package audit defines the append-only tracking trail for promotion usage.
package audit

import (
	"context"
	"time"
)

// ActionType classifies a tracking record.
type ActionType string

// ActionApplied records that a promotion was applied to an order.
const ActionApplied ActionType = "APPLIED"

// Record is one tracking entry. Records are append-only; nothing in the
// engine ever updates or deletes them.
type Record struct {
	ID          string
	PromotionID int64
	OrderID     *int64
	CustomerID  int64
	UserID      string
	Action      ActionType
	Comment     string
	CreatedAt   time.Time
}

// Repository persists tracking records.
type Repository interface {
	Record(ctx context.Context, rec *Record) error
}
