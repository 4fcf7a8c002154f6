package promotion

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the discount strategies a level can carry.
type DiscountType string

const (
	// DiscountPercentage discounts a percentage of the qualified value.
	DiscountPercentage DiscountType = "PERCENTAGE"
	// DiscountFixedAmount discounts a flat amount independent of the qualified value.
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
)

// BenefitType enumerates the benefit kinds attached to a level.
type BenefitType string

// BenefitFreeProduct grants free units of a product.
const BenefitFreeProduct BenefitType = "FREE_PRODUCT"

// Sentinel errors for calculation and apply input validation.
var (
	ErrCustomerRequired  = errors.New("customer_id is required")
	ErrLinesRequired     = errors.New("order_lines must be a non-empty array")
	ErrPromotionRequired = errors.New("promotion_id is required")
	ErrPromotionNotFound = errors.New("promotion not found")
)

// Promotion is a time-bounded discount campaign with its restriction lists and
// child collections fully loaded. The engine only reads promotions; all
// mutation happens through back-office CRUD outside this service.
type Promotion struct {
	ID        int64
	Code      string
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Active    bool

	// Restriction dimensions. A promotion with no depot, salesman, route, or
	// customer-category entries is open to everyone in its window.
	Channels    []string
	Depots      []int64
	Salesmen    []int64
	Routes      []int64
	CategoryIDs []int64

	// ExcludedCustomers lists customer ids blacklisted for this promotion.
	ExcludedCustomers []int64

	Conditions []Condition
	Levels     []Level
}

// Condition is a qualifying rule: order lines matching any of its products
// must accumulate at least MinValue of purchase value.
type Condition struct {
	ID       int64
	MinValue decimal.Decimal
	Products []ConditionProduct
}

// ConditionProduct names what an order line can match on. Exactly one
// discriminator is expected to be set, but the matcher accepts a match on any.
type ConditionProduct struct {
	ProductID    *int64
	CategoryID   *int64
	ProductGroup string
}

// Level is a discount tier selected by qualified value against its threshold.
type Level struct {
	ID            int64
	Number        int
	Threshold     decimal.Decimal
	DiscountType  DiscountType
	DiscountValue decimal.Decimal
	Benefits      []Benefit
}

// Benefit is a reward attached to a level. For FREE_PRODUCT benefits the
// product name and code are resolved by the repository join.
type Benefit struct {
	Type        BenefitType
	ProductID   *int64
	ProductName string
	ProductCode string
	Value       decimal.Decimal
	GiftLimit   int
}

// OrderLine is a transient evaluation input; it is never persisted here.
// Quantities are decimals because weight-based SKUs order fractional units.
type OrderLine struct {
	ProductID    *int64
	CategoryID   *int64
	ProductGroup string
	Quantity     decimal.Decimal
	UnitPrice    decimal.Decimal
}

// Repository defines read access to promotions.
type Repository interface {
	// ListActive returns promotions whose active flag is set and whose window
	// contains at, with every child collection loaded. Levels are ordered by
	// threshold descending (id ascending for equal thresholds) and conditions
	// in stored order.
	ListActive(ctx context.Context, at time.Time) ([]Promotion, error)
	// Exists reports whether a promotion with the given id exists.
	Exists(ctx context.Context, id int64) (bool, error)
}
