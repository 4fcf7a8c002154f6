package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeforce/promo-engine/internal/domain/customer"
)

const (
	getCustomerByIDSQL = `SELECT id, name, category_id FROM customers WHERE id = $1`

	categoryCodesSQL = `SELECT id, code FROM customer_categories WHERE id = ANY($1)`
)

var (
	_ customer.Repository       = (*CustomerRepository)(nil)
	_ customer.CategoryResolver = (*CustomerRepository)(nil)
)

// CustomerRepository implements customer lookups and category-code resolution
// backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

// GetByID returns a single customer by id.
// Returns customer.ErrNotFound when no such customer exists.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	var c customer.Customer
	err := r.pool.QueryRow(ctx, getCustomerByIDSQL, id).Scan(&c.ID, &c.Name, &c.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	return &c, nil
}

// Codes resolves category ids to codes in a single query. Unknown ids are
// simply absent from the result map.
func (r *CustomerRepository) Codes(ctx context.Context, ids []int64) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx, categoryCodesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving category codes: %w", err)
	}

	codes := make(map[int64]string, len(ids))
	var (
		id   int64
		code string
	)
	if _, err := pgx.ForEachRow(rows, []any{&id, &code}, func() error {
		codes[id] = code
		return nil
	}); err != nil {
		return nil, fmt.Errorf("scanning category codes: %w", err)
	}
	return codes, nil
}
