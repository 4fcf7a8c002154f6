// Package customer defines read access to customer master data consumed by
// the promotion engine.
package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is the slice of customer master data the engine needs.
type Customer struct {
	ID         int64
	Name       string
	CategoryID *int64
}

// Repository defines customer lookups.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Customer, error)
}

// CategoryResolver batch-resolves customer-category ids to their codes.
// One call replaces the per-category round trips the eligibility loop would
// otherwise make.
type CategoryResolver interface {
	Codes(ctx context.Context, ids []int64) (map[int64]string, error)
}
