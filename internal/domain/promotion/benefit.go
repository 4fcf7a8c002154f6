package promotion

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FreeProduct is a free-product grant emitted for a FREE_PRODUCT benefit.
type FreeProduct struct {
	ProductID   int64
	ProductName string
	ProductCode string
	Quantity    decimal.Decimal
	GiftLimit   int
}

// resolveBenefits computes the discount amount for the selected level and
// enumerates its free-product grants. Discounts are rounded to 2 decimal
// places at this boundary; the accumulated totals stay exact.
func resolveBenefits(level *Level, total decimal.Decimal) (decimal.Decimal, []FreeProduct, error) {
	var amount decimal.Decimal
	switch level.DiscountType {
	case DiscountPercentage:
		amount = total.Mul(level.DiscountValue).Div(hundred)
	case DiscountFixedAmount:
		amount = level.DiscountValue
	default:
		return decimal.Zero, nil, errors.Errorf("unsupported discount type: %q", level.DiscountType)
	}
	if amount.IsNegative() {
		amount = decimal.Zero
	}
	amount = amount.Round(2)

	var free []FreeProduct
	for _, b := range level.Benefits {
		if b.Type != BenefitFreeProduct || b.ProductID == nil {
			continue
		}
		free = append(free, FreeProduct{
			ProductID:   *b.ProductID,
			ProductName: b.ProductName,
			ProductCode: b.ProductCode,
			Quantity:    b.Value,
			GiftLimit:   b.GiftLimit,
		})
	}

	return amount, free, nil
}
