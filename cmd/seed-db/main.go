// Command seed-db loads demo master data and promotions into the database so
// a fresh environment can serve calculate/apply requests immediately.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/tradeforce/promo-engine/internal/storage/postgres"
)

type productJSON struct {
	ID         int64           `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	CategoryID int64           `json:"category_id"`
	Group      string          `json:"group"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or PROMO_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or PROMO_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("PROMO_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or PROMO_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("PROMO_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedMasterData(ctx, pool); err != nil {
		return errors.Wrap(err, "seed master data")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedPromotions(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promotions")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

// seedMasterData upserts customer categories and demo customers.
func seedMasterData(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding customer categories and customers")

	categories := []struct {
		id   int64
		code string
		name string
	}{
		{1, "RETAIL", "Retail outlets"},
		{2, "WHOLESALE", "Wholesale distributors"},
		{3, "HORECA", "Hotels, restaurants, catering"},
	}
	for _, c := range categories {
		if _, err := pool.Exec(ctx, `
			INSERT INTO customer_categories (id, code, name) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET code = excluded.code, name = excluded.name`,
			c.id, c.code, c.name,
		); err != nil {
			return errors.Wrapf(err, "upsert category %s", c.code)
		}
	}

	customers := []struct {
		id         int64
		name       string
		categoryID int64
	}{
		{1001, "Corner Mart", 1},
		{1002, "Metro Distribution", 2},
		{1003, "Seaside Bistro", 3},
	}
	for _, c := range customers {
		if _, err := pool.Exec(ctx, `
			INSERT INTO customers (id, name, category_id) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, category_id = excluded.category_id`,
			c.id, c.name, c.categoryID,
		); err != nil {
			return errors.Wrapf(err, "upsert customer %d", c.id)
		}

		slog.Info("upserted customer", slog.Int64("id", c.id), slog.String("name", c.name))
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, `
			INSERT INTO products (id, code, name, category_id, product_group, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				code = excluded.code, name = excluded.name,
				category_id = excluded.category_id,
				product_group = excluded.product_group,
				unit_price = excluded.unit_price`,
			p.ID, p.Code, p.Name, p.CategoryID, p.Group, p.UnitPrice,
		); err != nil {
			return errors.Wrapf(err, "upsert product %d", p.ID)
		}

		slog.Info("upserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

// demoPromotion describes one seeded promotion end to end.
type demoPromotion struct {
	code       string
	name       string
	startDate  string
	endDate    string
	channels   []string
	depots     []int64
	categories []int64
	conditions []demoCondition
	levels     []demoLevel
}

type demoCondition struct {
	minValue string
	products []demoConditionProduct
}

type demoConditionProduct struct {
	productID  *int64
	categoryID *int64
	group      *string
}

type demoLevel struct {
	number    int
	threshold string
	discType  string
	discValue string
	benefits  []demoBenefit
}

type demoBenefit struct {
	benefitType string
	productID   *int64
	value       string
	giftLimit   int
}

func seedPromotions(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo promotions")

	beverageGroup := "BEVERAGES"
	colaID := int64(5001)

	promos := []demoPromotion{
		{
			code:      "SUMMER10",
			name:      "Summer volume discount",
			startDate: "2026-06-01",
			endDate:   "2026-09-30",
			channels:  []string{"MOBILE", "WEB"},
			conditions: []demoCondition{
				{minValue: "100", products: []demoConditionProduct{{group: &beverageGroup}}},
			},
			levels: []demoLevel{
				{number: 1, threshold: "100", discType: "PERCENTAGE", discValue: "5"},
				{number: 2, threshold: "500", discType: "PERCENTAGE", discValue: "10"},
			},
		},
		{
			code:       "WHOLESALE25",
			name:       "Wholesale flat rebate",
			startDate:  "2026-01-01",
			endDate:    "2026-12-31",
			categories: []int64{2},
			conditions: []demoCondition{
				{minValue: "1000", products: []demoConditionProduct{{categoryID: ptr(int64(10))}}},
			},
			levels: []demoLevel{
				{
					number: 1, threshold: "1000",
					discType: "FIXED_AMOUNT", discValue: "25",
					benefits: []demoBenefit{
						{benefitType: "FREE_PRODUCT", productID: &colaID, value: "2", giftLimit: 2},
					},
				},
			},
		},
	}

	for _, p := range promos {
		if err := seedPromotion(ctx, pool, p); err != nil {
			return errors.Wrapf(err, "seed promotion %s", p.code)
		}

		slog.Info("seeded promotion", slog.String("code", p.code), slog.String("name", p.name))
	}

	return nil
}

// seedPromotion upserts the promotion head, then replaces its child rows so
// re-running the seeder never duplicates restrictions or levels.
func seedPromotion(ctx context.Context, pool *pgxpool.Pool, p demoPromotion) error {
	var id int64
	if err := pool.QueryRow(ctx, `
		INSERT INTO promotions (code, name, start_date, end_date, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (code) DO UPDATE SET
			name = excluded.name, start_date = excluded.start_date,
			end_date = excluded.end_date, active = TRUE
		RETURNING id`,
		p.code, p.name, p.startDate, p.endDate,
	).Scan(&id); err != nil {
		return errors.Wrap(err, "upsert promotion head")
	}

	for _, table := range []string{
		"promotion_channels", "promotion_depots", "promotion_customer_categories",
		"promotion_conditions", "promotion_levels",
	} {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table+" WHERE promotion_id = $1", id); err != nil {
			return errors.Wrapf(err, "clear %s", table)
		}
	}

	for _, ch := range p.channels {
		if _, err := pool.Exec(ctx,
			"INSERT INTO promotion_channels (promotion_id, channel) VALUES ($1, $2)", id, ch,
		); err != nil {
			return errors.Wrap(err, "insert channel")
		}
	}
	for _, d := range p.depots {
		if _, err := pool.Exec(ctx,
			"INSERT INTO promotion_depots (promotion_id, depot_id) VALUES ($1, $2)", id, d,
		); err != nil {
			return errors.Wrap(err, "insert depot")
		}
	}
	for _, c := range p.categories {
		if _, err := pool.Exec(ctx,
			"INSERT INTO promotion_customer_categories (promotion_id, category_id) VALUES ($1, $2)", id, c,
		); err != nil {
			return errors.Wrap(err, "insert customer category")
		}
	}

	for _, cond := range p.conditions {
		var condID int64
		if err := pool.QueryRow(ctx, `
			INSERT INTO promotion_conditions (promotion_id, min_value)
			VALUES ($1, $2) RETURNING id`,
			id, cond.minValue,
		).Scan(&condID); err != nil {
			return errors.Wrap(err, "insert condition")
		}

		for _, cp := range cond.products {
			if _, err := pool.Exec(ctx, `
				INSERT INTO promotion_condition_products (condition_id, product_id, category_id, product_group)
				VALUES ($1, $2, $3, $4)`,
				condID, cp.productID, cp.categoryID, cp.group,
			); err != nil {
				return errors.Wrap(err, "insert condition product")
			}
		}
	}

	for _, lvl := range p.levels {
		var levelID int64
		if err := pool.QueryRow(ctx, `
			INSERT INTO promotion_levels (promotion_id, level_number, threshold_value, discount_type, discount_value)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			id, lvl.number, lvl.threshold, lvl.discType, lvl.discValue,
		).Scan(&levelID); err != nil {
			return errors.Wrap(err, "insert level")
		}

		for _, b := range lvl.benefits {
			if _, err := pool.Exec(ctx, `
				INSERT INTO promotion_level_benefits (level_id, benefit_type, product_id, benefit_value, gift_limit)
				VALUES ($1, $2, $3, $4, $5)`,
				levelID, b.benefitType, b.productID, b.value, b.giftLimit,
			); err != nil {
				return errors.Wrap(err, "insert level benefit")
			}
		}
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	if _, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET
			key_hash = excluded.key_hash, name = excluded.name,
			scopes = excluded.scopes, active = TRUE`,
		"default", keyHash, "Default back-office key", []string{"promotions"},
	); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))

	return nil
}

func ptr[T any](v T) *T { return &v }
