package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tradeforce/promo-engine/internal/domain/audit"
)

const recordTrackingSQL = `INSERT INTO promotion_tracking
	(id, promotion_id, order_id, customer_id, user_id, action_type, comment, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

var _ audit.Repository = (*AuditRepository)(nil)

// AuditRepository implements audit.Repository backed by PostgreSQL.
// Tracking rows are append-only; there is no update or delete path.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository returns an AuditRepository that uses the given pool.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Record inserts one tracking record.
func (r *AuditRepository) Record(ctx context.Context, rec *audit.Record) error {
	_, err := r.pool.Exec(ctx, recordTrackingSQL,
		rec.ID, rec.PromotionID, rec.OrderID, rec.CustomerID,
		rec.UserID, string(rec.Action), rec.Comment, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording tracking %q: %w", rec.ID, err)
	}
	return nil
}
