package promotion

import (
	"sort"

	"github.com/shopspring/decimal"
)

// selectLevel picks the richest tier the qualified value still satisfies: the
// first level, in threshold-descending order, whose threshold is at or below
// total. Equal thresholds keep their incoming order (the repository orders by
// id, which reproduces insertion order). Returns false when total is below
// every threshold.
func selectLevel(levels []Level, total decimal.Decimal) (*Level, bool) {
	if len(levels) == 0 {
		return nil, false
	}

	sorted := make([]*Level, len(levels))
	for i := range levels {
		sorted[i] = &levels[i]
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Threshold.GreaterThan(sorted[j].Threshold)
	})

	for _, l := range sorted {
		if l.Threshold.LessThanOrEqual(total) {
			return l, true
		}
	}
	return nil, false
}
