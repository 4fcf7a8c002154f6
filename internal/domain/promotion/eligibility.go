package promotion

import "time"

// Context carries the order context a promotion is evaluated against.
type Context struct {
	CustomerID int64
	DepotID    *int64
	SalesmanID *int64
	RouteID    *int64
	Platform   string
	Date       time.Time
}

// eligible reports whether the promotion may be used in the given context.
// customerCategory is the requesting customer's category code ("" when the
// customer has none); categoryCodes maps category id to code for every
// category restriction across all candidate promotions, batch-resolved by the
// caller before the promotion loop.
//
// Semantics: an exclusion row always wins. A promotion with zero entries
// across all four restriction dimensions is open to everyone. Otherwise
// membership in any one populated dimension grants eligibility; empty
// dimensions grant nothing on their own.
func eligible(p *Promotion, c Context, customerCategory string, categoryCodes map[int64]string) bool {
	for _, id := range p.ExcludedCustomers {
		if id == c.CustomerID {
			return false
		}
	}

	// Channel lists restrict by platform independently of the OR dimensions.
	// A request without a platform passes through unrestricted.
	if len(p.Channels) > 0 && c.Platform != "" && !containsString(p.Channels, c.Platform) {
		return false
	}

	if len(p.Depots) == 0 && len(p.Salesmen) == 0 && len(p.Routes) == 0 && len(p.CategoryIDs) == 0 {
		return true
	}

	if c.DepotID != nil && containsID(p.Depots, *c.DepotID) {
		return true
	}
	if c.SalesmanID != nil && containsID(p.Salesmen, *c.SalesmanID) {
		return true
	}
	if c.RouteID != nil && containsID(p.Routes, *c.RouteID) {
		return true
	}
	if customerCategory != "" {
		for _, id := range p.CategoryIDs {
			if categoryCodes[id] == customerCategory {
				return true
			}
		}
	}

	return false
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsString(vals []string, v string) bool {
	for _, s := range vals {
		if s == v {
			return true
		}
	}
	return false
}
