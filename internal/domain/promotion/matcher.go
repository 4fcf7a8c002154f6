package promotion

import "github.com/shopspring/decimal"

// matched holds the accumulated totals for the condition that qualified.
type matched struct {
	Quantity decimal.Decimal
	Value    decimal.Decimal
}

// matchConditions scans conditions in stored order and returns the totals for
// the first condition whose matched value reaches its MinValue. Later
// conditions are not evaluated once one is met; callers that need best-match
// semantics do not exist today and the stored order is part of the contract.
func matchConditions(conds []Condition, lines []OrderLine) (matched, bool) {
	for i := range conds {
		qty, value := accumulate(&conds[i], lines)
		if value.GreaterThanOrEqual(conds[i].MinValue) {
			return matched{Quantity: qty, Value: value}, true
		}
	}
	return matched{}, false
}

// accumulate sums quantity and quantity*unit_price over lines matching the
// condition.
func accumulate(cond *Condition, lines []OrderLine) (qty, value decimal.Decimal) {
	qty, value = decimal.Zero, decimal.Zero
	for i := range lines {
		if !lineMatches(cond.Products, &lines[i]) {
			continue
		}
		qty = qty.Add(lines[i].Quantity)
		value = value.Add(lines[i].Quantity.Mul(lines[i].UnitPrice))
	}
	return qty, value
}

// lineMatches reports whether the line matches any condition product on any
// of the three discriminators: product id, category id, or product group.
func lineMatches(products []ConditionProduct, line *OrderLine) bool {
	for i := range products {
		cp := &products[i]
		if cp.ProductID != nil && line.ProductID != nil && *cp.ProductID == *line.ProductID {
			return true
		}
		if cp.CategoryID != nil && line.CategoryID != nil && *cp.CategoryID == *line.CategoryID {
			return true
		}
		if cp.ProductGroup != "" && cp.ProductGroup == line.ProductGroup {
			return true
		}
	}
	return false
}
