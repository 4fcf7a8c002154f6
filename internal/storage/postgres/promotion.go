package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradeforce/promo-engine/internal/domain/promotion"
)

const (
	listActivePromotionsSQL = `SELECT id, code, name, start_date, end_date, active
		FROM promotions
		WHERE active AND start_date <= $1 AND end_date >= $1
		ORDER BY id`

	promotionExistsSQL = `SELECT EXISTS (SELECT 1 FROM promotions WHERE id = $1)`

	promotionChannelsSQL = `SELECT promotion_id, channel
		FROM promotion_channels WHERE promotion_id = ANY($1) ORDER BY channel`

	promotionDepotsSQL = `SELECT promotion_id, depot_id
		FROM promotion_depots WHERE promotion_id = ANY($1) ORDER BY depot_id`

	promotionSalesmenSQL = `SELECT promotion_id, salesman_id
		FROM promotion_salesmen WHERE promotion_id = ANY($1) ORDER BY salesman_id`

	promotionRoutesSQL = `SELECT promotion_id, route_id
		FROM promotion_routes WHERE promotion_id = ANY($1) ORDER BY route_id`

	promotionCategoriesSQL = `SELECT promotion_id, category_id
		FROM promotion_customer_categories WHERE promotion_id = ANY($1) ORDER BY category_id`

	promotionExclusionsSQL = `SELECT promotion_id, customer_id
		FROM promotion_exclusions WHERE promotion_id = ANY($1) AND is_excluded = 'Y'
		ORDER BY customer_id`

	promotionConditionsSQL = `SELECT id, promotion_id, min_value
		FROM promotion_conditions WHERE promotion_id = ANY($1) ORDER BY id`

	conditionProductsSQL = `SELECT condition_id, product_id, category_id, product_group
		FROM promotion_condition_products WHERE condition_id = ANY($1) ORDER BY id`

	promotionLevelsSQL = `SELECT id, promotion_id, level_number, threshold_value, discount_type, discount_value
		FROM promotion_levels WHERE promotion_id = ANY($1)
		ORDER BY threshold_value DESC, id`

	levelBenefitsSQL = `SELECT b.level_id, b.benefit_type, b.product_id, p.name, p.code, b.benefit_value, b.gift_limit
		FROM promotion_level_benefits b
		LEFT JOIN products p ON p.id = b.product_id
		WHERE b.level_id = ANY($1) ORDER BY b.id`
)

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by PostgreSQL.
// Child collections are loaded with one query per table across all candidate
// promotions rather than per promotion.
type PromotionRepository struct {
	pool *pgxpool.Pool
}

// NewPromotionRepository returns a PromotionRepository that uses the given pool.
func NewPromotionRepository(pool *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{pool: pool}
}

// ListActive returns active promotions whose window contains at, fully loaded.
func (r *PromotionRepository) ListActive(ctx context.Context, at time.Time) ([]promotion.Promotion, error) {
	rows, err := r.pool.Query(ctx, listActivePromotionsSQL, at)
	if err != nil {
		return nil, fmt.Errorf("listing active promotions: %w", err)
	}

	promos, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (promotion.Promotion, error) {
		var p promotion.Promotion
		err := row.Scan(&p.ID, &p.Code, &p.Name, &p.StartDate, &p.EndDate, &p.Active)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning promotions: %w", err)
	}
	if len(promos) == 0 {
		return promos, nil
	}

	byID := make(map[int64]*promotion.Promotion, len(promos))
	ids := make([]int64, len(promos))
	for i := range promos {
		byID[promos[i].ID] = &promos[i]
		ids[i] = promos[i].ID
	}

	if err := r.loadRestrictions(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadConditions(ctx, ids, byID); err != nil {
		return nil, err
	}
	if err := r.loadLevels(ctx, ids, byID); err != nil {
		return nil, err
	}

	return promos, nil
}

// Exists reports whether a promotion with the given id exists.
func (r *PromotionRepository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, promotionExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking promotion %d: %w", id, err)
	}
	return ok, nil
}

func (r *PromotionRepository) loadRestrictions(ctx context.Context, ids []int64, byID map[int64]*promotion.Promotion) error {
	if err := r.eachIDPair(ctx, promotionChannelsSQL, ids, "channels", func(promoID int64, channel string) {
		if p := byID[promoID]; p != nil {
			p.Channels = append(p.Channels, channel)
		}
	}); err != nil {
		return err
	}

	intLists := []struct {
		sql    string
		name   string
		assign func(p *promotion.Promotion, v int64)
	}{
		{promotionDepotsSQL, "depots", func(p *promotion.Promotion, v int64) { p.Depots = append(p.Depots, v) }},
		{promotionSalesmenSQL, "salesmen", func(p *promotion.Promotion, v int64) { p.Salesmen = append(p.Salesmen, v) }},
		{promotionRoutesSQL, "routes", func(p *promotion.Promotion, v int64) { p.Routes = append(p.Routes, v) }},
		{promotionCategoriesSQL, "categories", func(p *promotion.Promotion, v int64) { p.CategoryIDs = append(p.CategoryIDs, v) }},
		{promotionExclusionsSQL, "exclusions", func(p *promotion.Promotion, v int64) { p.ExcludedCustomers = append(p.ExcludedCustomers, v) }},
	}
	for _, l := range intLists {
		rows, err := r.pool.Query(ctx, l.sql, ids)
		if err != nil {
			return fmt.Errorf("loading promotion %s: %w", l.name, err)
		}
		var (
			promoID int64
			value   int64
		)
		if _, err := pgx.ForEachRow(rows, []any{&promoID, &value}, func() error {
			if p := byID[promoID]; p != nil {
				l.assign(p, value)
			}
			return nil
		}); err != nil {
			return fmt.Errorf("scanning promotion %s: %w", l.name, err)
		}
	}
	return nil
}

func (r *PromotionRepository) eachIDPair(ctx context.Context, sql string, ids []int64, name string, fn func(promoID int64, value string)) error {
	rows, err := r.pool.Query(ctx, sql, ids)
	if err != nil {
		return fmt.Errorf("loading promotion %s: %w", name, err)
	}
	var (
		promoID int64
		value   string
	)
	if _, err := pgx.ForEachRow(rows, []any{&promoID, &value}, func() error {
		fn(promoID, value)
		return nil
	}); err != nil {
		return fmt.Errorf("scanning promotion %s: %w", name, err)
	}
	return nil
}

func (r *PromotionRepository) loadConditions(ctx context.Context, ids []int64, byID map[int64]*promotion.Promotion) error {
	rows, err := r.pool.Query(ctx, promotionConditionsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading conditions: %w", err)
	}

	condOwner := make(map[int64]int64) // condition id -> promotion id
	var condIDs []int64
	var (
		condID   int64
		promoID  int64
		minValue decimal.Decimal
	)
	if _, err := pgx.ForEachRow(rows, []any{&condID, &promoID, &minValue}, func() error {
		if p := byID[promoID]; p != nil {
			p.Conditions = append(p.Conditions, promotion.Condition{ID: condID, MinValue: minValue})
			condOwner[condID] = promoID
			condIDs = append(condIDs, condID)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("scanning conditions: %w", err)
	}
	if len(condIDs) == 0 {
		return nil
	}

	prows, err := r.pool.Query(ctx, conditionProductsSQL, condIDs)
	if err != nil {
		return fmt.Errorf("loading condition products: %w", err)
	}
	var (
		ownerID      int64
		productID    *int64
		categoryID   *int64
		productGroup *string
	)
	if _, err := pgx.ForEachRow(prows, []any{&ownerID, &productID, &categoryID, &productGroup}, func() error {
		p := byID[condOwner[ownerID]]
		if p == nil {
			return nil
		}
		for i := range p.Conditions {
			if p.Conditions[i].ID == ownerID {
				cp := promotion.ConditionProduct{}
				if productID != nil {
					v := *productID
					cp.ProductID = &v
				}
				if categoryID != nil {
					v := *categoryID
					cp.CategoryID = &v
				}
				if productGroup != nil {
					cp.ProductGroup = *productGroup
				}
				p.Conditions[i].Products = append(p.Conditions[i].Products, cp)
				break
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("scanning condition products: %w", err)
	}
	return nil
}

func (r *PromotionRepository) loadLevels(ctx context.Context, ids []int64, byID map[int64]*promotion.Promotion) error {
	rows, err := r.pool.Query(ctx, promotionLevelsSQL, ids)
	if err != nil {
		return fmt.Errorf("loading levels: %w", err)
	}

	levelOwner := make(map[int64]int64) // level id -> promotion id
	var levelIDs []int64
	var (
		levelID       int64
		promoID       int64
		number        int
		threshold     decimal.Decimal
		discountType  string
		discountValue decimal.Decimal
	)
	if _, err := pgx.ForEachRow(rows, []any{&levelID, &promoID, &number, &threshold, &discountType, &discountValue}, func() error {
		if p := byID[promoID]; p != nil {
			p.Levels = append(p.Levels, promotion.Level{
				ID:            levelID,
				Number:        number,
				Threshold:     threshold,
				DiscountType:  promotion.DiscountType(discountType),
				DiscountValue: discountValue,
			})
			levelOwner[levelID] = promoID
			levelIDs = append(levelIDs, levelID)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("scanning levels: %w", err)
	}
	if len(levelIDs) == 0 {
		return nil
	}

	brows, err := r.pool.Query(ctx, levelBenefitsSQL, levelIDs)
	if err != nil {
		return fmt.Errorf("loading level benefits: %w", err)
	}
	var (
		ownerID      int64
		benefitType  string
		productID    *int64
		productName  *string
		productCode  *string
		benefitValue decimal.Decimal
		giftLimit    int
	)
	if _, err := pgx.ForEachRow(brows, []any{&ownerID, &benefitType, &productID, &productName, &productCode, &benefitValue, &giftLimit}, func() error {
		p := byID[levelOwner[ownerID]]
		if p == nil {
			return nil
		}
		b := promotion.Benefit{
			Type:      promotion.BenefitType(benefitType),
			Value:     benefitValue,
			GiftLimit: giftLimit,
		}
		if productID != nil {
			v := *productID
			b.ProductID = &v
		}
		if productName != nil {
			b.ProductName = *productName
		}
		if productCode != nil {
			b.ProductCode = *productCode
		}
		for i := range p.Levels {
			if p.Levels[i].ID == ownerID {
				p.Levels[i].Benefits = append(p.Levels[i].Benefits, b)
				break
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("scanning level benefits: %w", err)
	}
	return nil
}
