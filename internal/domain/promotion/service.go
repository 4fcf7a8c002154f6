package promotion

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tradeforce/promo-engine/internal/domain/audit"
	"github.com/tradeforce/promo-engine/internal/domain/customer"
)

// FallbackUserID is recorded on tracking rows when no authenticated identity
// is present.
const FallbackUserID = "system"

// Eligible is one promotion that survived eligibility, condition matching,
// and level selection for a calculation call.
type Eligible struct {
	PromotionID    int64
	PromotionCode  string
	PromotionName  string
	LevelNumber    int
	DiscountType   DiscountType
	DiscountAmount decimal.Decimal
	FreeProducts   []FreeProduct

	QualifiedQuantity decimal.Decimal
	QualifiedValue    decimal.Decimal
}

// Summary aggregates a calculation result.
type Summary struct {
	TotalEligible int
	TotalDiscount decimal.Decimal
}

// CalculateRequest is the input for a promotion calculation.
type CalculateRequest struct {
	CustomerID int64
	Lines      []OrderLine
	DepotID    *int64
	SalesmanID *int64
	RouteID    *int64
	Date       time.Time // zero value means now
	Platform   string
}

// CalculateResult holds the eligible promotions and their summary.
type CalculateResult struct {
	Eligible []Eligible
	Summary  Summary
}

// ApplyRequest is the input for recording an applied promotion.
type ApplyRequest struct {
	PromotionID    int64
	OrderID        *int64
	CustomerID     int64
	DiscountAmount decimal.Decimal
	FreeProducts   []FreeProduct
	UserID         string
}

// ApplyResult echoes the applied promotion with the tracking timestamp.
type ApplyResult struct {
	PromotionID    int64
	OrderID        *int64
	CustomerID     int64
	DiscountAmount decimal.Decimal
	FreeProducts   []FreeProduct
	AppliedAt      time.Time
}

// Service evaluates promotions against order contexts and records applies.
// Calculation performs no writes; Apply performs exactly one audit insert.
type Service struct {
	promos     Repository
	customers  customer.Repository
	categories customer.CategoryResolver
	tracking   audit.Repository
	now        func() time.Time
}

// NewService creates a Service with the required dependencies.
func NewService(
	promos Repository,
	customers customer.Repository,
	categories customer.CategoryResolver,
	tracking audit.Repository,
) *Service {
	return &Service{
		promos:     promos,
		customers:  customers,
		categories: categories,
		tracking:   tracking,
		now:        time.Now,
	}
}

// Calculate returns every promotion the given context qualifies for, with
// resolved discounts and free-product grants. An unknown customer yields an
// empty result rather than an error.
func (s *Service) Calculate(ctx context.Context, req CalculateRequest) (*CalculateResult, error) {
	if req.CustomerID == 0 {
		return nil, ErrCustomerRequired
	}
	if len(req.Lines) == 0 {
		return nil, ErrLinesRequired
	}

	at := req.Date
	if at.IsZero() {
		at = s.now()
	}

	cust, err := s.customers.GetByID(ctx, req.CustomerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return &CalculateResult{Eligible: []Eligible{}}, nil
		}
		return nil, errors.Wrap(err, "get customer")
	}

	promos, err := s.promos.ListActive(ctx, at)
	if err != nil {
		return nil, errors.Wrap(err, "list active promotions")
	}

	// Batch-resolve category codes for the customer and every promotion's
	// category restrictions before the loop; the loop itself does no I/O.
	codes, err := s.resolveCategoryCodes(ctx, cust, promos)
	if err != nil {
		return nil, errors.Wrap(err, "resolve category codes")
	}

	customerCategory := ""
	if cust.CategoryID != nil {
		customerCategory = codes[*cust.CategoryID]
	}

	evalCtx := Context{
		CustomerID: req.CustomerID,
		DepotID:    req.DepotID,
		SalesmanID: req.SalesmanID,
		RouteID:    req.RouteID,
		Platform:   req.Platform,
		Date:       at,
	}

	result := &CalculateResult{Eligible: []Eligible{}}
	for i := range promos {
		p := &promos[i]
		if !eligible(p, evalCtx, customerCategory, codes) {
			continue
		}

		m, ok := matchConditions(p.Conditions, req.Lines)
		if !ok {
			continue
		}

		level, ok := selectLevel(p.Levels, m.Value)
		if !ok {
			continue
		}

		amount, free, err := resolveBenefits(level, m.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "promotion %d", p.ID)
		}

		result.Eligible = append(result.Eligible, Eligible{
			PromotionID:       p.ID,
			PromotionCode:     p.Code,
			PromotionName:     p.Name,
			LevelNumber:       level.Number,
			DiscountType:      level.DiscountType,
			DiscountAmount:    amount,
			FreeProducts:      free,
			QualifiedQuantity: m.Quantity,
			QualifiedValue:    m.Value,
		})
		result.Summary.TotalDiscount = result.Summary.TotalDiscount.Add(amount)
	}
	result.Summary.TotalEligible = len(result.Eligible)

	return result, nil
}

// Apply verifies the promotion exists and writes one APPLIED tracking record.
// No order mutation, ledger entry, or inventory decrement happens here, and
// concurrent applies for the same order append independent records.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*ApplyResult, error) {
	if req.PromotionID == 0 {
		return nil, ErrPromotionRequired
	}
	if req.CustomerID == 0 {
		return nil, ErrCustomerRequired
	}

	ok, err := s.promos.Exists(ctx, req.PromotionID)
	if err != nil {
		return nil, errors.Wrap(err, "check promotion")
	}
	if !ok {
		return nil, ErrPromotionNotFound
	}

	userID := req.UserID
	if userID == "" {
		userID = FallbackUserID
	}

	appliedAt := s.now()
	rec := &audit.Record{
		ID:          uuid.New().String(),
		PromotionID: req.PromotionID,
		OrderID:     req.OrderID,
		CustomerID:  req.CustomerID,
		UserID:      userID,
		Action:      audit.ActionApplied,
		Comment:     applyComment(req),
		CreatedAt:   appliedAt,
	}
	if err := s.tracking.Record(ctx, rec); err != nil {
		return nil, errors.Wrap(err, "record tracking")
	}

	return &ApplyResult{
		PromotionID:    req.PromotionID,
		OrderID:        req.OrderID,
		CustomerID:     req.CustomerID,
		DiscountAmount: req.DiscountAmount,
		FreeProducts:   req.FreeProducts,
		AppliedAt:      appliedAt,
	}, nil
}

// resolveCategoryCodes collects the customer's category id and every category
// restriction across the candidate promotions, then resolves codes in one
// batch call.
func (s *Service) resolveCategoryCodes(ctx context.Context, cust *customer.Customer, promos []Promotion) (map[int64]string, error) {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(id int64) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	if cust.CategoryID != nil {
		add(*cust.CategoryID)
	}
	for i := range promos {
		for _, id := range promos[i].CategoryIDs {
			add(id)
		}
	}

	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	return s.categories.Codes(ctx, ids)
}

// applyComment builds the free-text tracking comment embedding the order id,
// customer id, discount, and the serialized free-product list.
func applyComment(req ApplyRequest) string {
	orderID := int64(0)
	if req.OrderID != nil {
		orderID = *req.OrderID
	}
	return fmt.Sprintf("applied to order %d for customer %d: discount %s, free products %s",
		orderID, req.CustomerID, req.DiscountAmount.String(), encodeFreeProducts(req.FreeProducts))
}

// encodeFreeProducts serializes free-product grants as a JSON array.
func encodeFreeProducts(free []FreeProduct) string {
	var e jx.Encoder
	e.ArrStart()
	for _, fp := range free {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(fp.ProductID)
		e.FieldStart("quantity")
		e.Num(jx.Num(fp.Quantity.String()))
		e.FieldStart("gift_limit")
		e.Int(fp.GiftLimit)
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.String()
}
