package promotion

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helpers ---

func ptr[T any](v T) *T { return &v }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testContext() Context {
	return Context{
		CustomerID: 1001,
		Date:       time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC),
	}
}

// --- Eligibility ---

func TestEligible_ExclusionWinsOverMatchingDimensions(t *testing.T) {
	p := &Promotion{
		ID:                1,
		Depots:            []int64{5},
		ExcludedCustomers: []int64{1001},
	}
	c := testContext()
	c.DepotID = ptr(int64(5))

	assert.False(t, eligible(p, c, "", nil))
}

func TestEligible_OpenPromotion(t *testing.T) {
	p := &Promotion{ID: 1}

	contexts := []Context{
		testContext(),
		{CustomerID: 42, DepotID: ptr(int64(7))},
		{CustomerID: 7, SalesmanID: ptr(int64(3)), RouteID: ptr(int64(9))},
	}
	for _, c := range contexts {
		assert.True(t, eligible(p, c, "", nil))
	}
}

func TestEligible_AnyMatchingDimensionGrants(t *testing.T) {
	p := &Promotion{
		ID:          1,
		Depots:      []int64{5},
		Salesmen:    []int64{30},
		Routes:      []int64{200},
		CategoryIDs: []int64{2},
	}
	codes := map[int64]string{2: "WHOLESALE"}

	c := testContext()
	c.DepotID = ptr(int64(5))
	assert.True(t, eligible(p, c, "", codes), "depot match")

	c = testContext()
	c.SalesmanID = ptr(int64(30))
	assert.True(t, eligible(p, c, "", codes), "salesman match")

	c = testContext()
	c.RouteID = ptr(int64(200))
	assert.True(t, eligible(p, c, "", codes), "route match")

	c = testContext()
	assert.True(t, eligible(p, c, "WHOLESALE", codes), "category match")

	c = testContext()
	c.DepotID = ptr(int64(7))
	assert.False(t, eligible(p, c, "RETAIL", codes), "no dimension matches")
}

func TestEligible_DepotRestrictedRejectsOtherDepot(t *testing.T) {
	p := &Promotion{ID: 1, Depots: []int64{5}}
	c := testContext()
	c.DepotID = ptr(int64(7))

	assert.False(t, eligible(p, c, "", nil))
}

func TestEligible_ChannelFilter(t *testing.T) {
	p := &Promotion{ID: 1, Channels: []string{"MOBILE"}}

	c := testContext()
	c.Platform = "WEB"
	assert.False(t, eligible(p, c, "", nil))

	c.Platform = "MOBILE"
	assert.True(t, eligible(p, c, "", nil))

	// No platform supplied passes the channel filter.
	c.Platform = ""
	assert.True(t, eligible(p, c, "", nil))
}

// --- Condition matching ---

func TestMatchConditions_InclusiveBoundary(t *testing.T) {
	conds := []Condition{{
		MinValue: dec("100"),
		Products: []ConditionProduct{{ProductGroup: "BEVERAGES"}},
	}}
	lines := []OrderLine{{
		ProductGroup: "BEVERAGES",
		Quantity:     dec("100"),
		UnitPrice:    dec("1"),
	}}

	m, ok := matchConditions(conds, lines)
	require.True(t, ok)
	assert.True(t, dec("100").Equal(m.Value))
	assert.True(t, dec("100").Equal(m.Quantity))
}

func TestMatchConditions_BelowThreshold(t *testing.T) {
	conds := []Condition{{
		MinValue: dec("100"),
		Products: []ConditionProduct{{ProductGroup: "BEVERAGES"}},
	}}
	lines := []OrderLine{{
		ProductGroup: "BEVERAGES",
		Quantity:     dec("10"),
		UnitPrice:    dec("1.50"),
	}}

	_, ok := matchConditions(conds, lines)
	assert.False(t, ok)
}

func TestMatchConditions_FirstMetConditionWins(t *testing.T) {
	conds := []Condition{
		{
			MinValue: dec("50"),
			Products: []ConditionProduct{{ProductGroup: "BEVERAGES"}},
		},
		{
			MinValue: dec("10"),
			Products: []ConditionProduct{{ProductGroup: "SNACKS"}},
		},
	}
	lines := []OrderLine{
		{ProductGroup: "BEVERAGES", Quantity: dec("60"), UnitPrice: dec("1")},
		{ProductGroup: "SNACKS", Quantity: dec("200"), UnitPrice: dec("1")},
	}

	m, ok := matchConditions(conds, lines)
	require.True(t, ok)
	assert.True(t, dec("60").Equal(m.Value), "first condition's totals, not the richer second")
}

func TestMatchConditions_SkipsUnmetThenMatchesLater(t *testing.T) {
	conds := []Condition{
		{
			MinValue: dec("1000"),
			Products: []ConditionProduct{{ProductGroup: "BEVERAGES"}},
		},
		{
			MinValue: dec("10"),
			Products: []ConditionProduct{{ProductGroup: "SNACKS"}},
		},
	}
	lines := []OrderLine{
		{ProductGroup: "SNACKS", Quantity: dec("20"), UnitPrice: dec("1")},
	}

	m, ok := matchConditions(conds, lines)
	require.True(t, ok)
	assert.True(t, dec("20").Equal(m.Value))
}

func TestLineMatches_Discriminators(t *testing.T) {
	tests := []struct {
		name string
		cp   ConditionProduct
		line OrderLine
		want bool
	}{
		{
			name: "product id",
			cp:   ConditionProduct{ProductID: ptr(int64(42))},
			line: OrderLine{ProductID: ptr(int64(42))},
			want: true,
		},
		{
			name: "category id",
			cp:   ConditionProduct{CategoryID: ptr(int64(10))},
			line: OrderLine{CategoryID: ptr(int64(10))},
			want: true,
		},
		{
			name: "product group",
			cp:   ConditionProduct{ProductGroup: "BEVERAGES"},
			line: OrderLine{ProductGroup: "BEVERAGES"},
			want: true,
		},
		{
			name: "no discriminator matches",
			cp:   ConditionProduct{ProductID: ptr(int64(42))},
			line: OrderLine{ProductID: ptr(int64(43)), ProductGroup: "BEVERAGES"},
			want: false,
		},
		{
			name: "nil line product id never matches",
			cp:   ConditionProduct{ProductID: ptr(int64(42))},
			line: OrderLine{CategoryID: ptr(int64(10))},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lineMatches([]ConditionProduct{tt.cp}, &tt.line)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccumulate_FractionalQuantities(t *testing.T) {
	cond := Condition{Products: []ConditionProduct{{ProductGroup: "DRY_GOODS"}}}
	lines := []OrderLine{
		{ProductGroup: "DRY_GOODS", Quantity: dec("2.5"), UnitPrice: dec("1.95")},
		{ProductGroup: "DRY_GOODS", Quantity: dec("0.5"), UnitPrice: dec("1.95")},
		{ProductGroup: "SNACKS", Quantity: dec("100"), UnitPrice: dec("1")},
	}

	qty, value := accumulate(&cond, lines)
	assert.True(t, dec("3").Equal(qty))
	assert.True(t, dec("5.85").Equal(value))
}

// --- Level selection ---

func TestSelectLevel_GreatestThresholdAtOrBelowTotal(t *testing.T) {
	levels := []Level{
		{ID: 1, Number: 1, Threshold: dec("100")},
		{ID: 2, Number: 2, Threshold: dec("500")},
		{ID: 3, Number: 3, Threshold: dec("1000")},
	}

	tests := []struct {
		total      string
		wantNumber int
		wantOK     bool
	}{
		{"50", 0, false},
		{"100", 1, true},
		{"499.99", 1, true},
		{"500", 2, true},
		{"999", 2, true},
		{"1000", 3, true},
		{"250000", 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			l, ok := selectLevel(levels, dec(tt.total))
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantNumber, l.Number)
			}
		})
	}
}

func TestSelectLevel_EqualThresholdsKeepStoredOrder(t *testing.T) {
	levels := []Level{
		{ID: 10, Number: 1, Threshold: dec("100")},
		{ID: 11, Number: 2, Threshold: dec("100")},
	}

	l, ok := selectLevel(levels, dec("150"))
	require.True(t, ok)
	assert.Equal(t, int64(10), l.ID)
}

func TestSelectLevel_Empty(t *testing.T) {
	_, ok := selectLevel(nil, dec("100"))
	assert.False(t, ok)
}

// --- Benefit resolution ---

func TestResolveBenefits_Percentage(t *testing.T) {
	level := &Level{
		DiscountType:  DiscountPercentage,
		DiscountValue: dec("10"),
	}

	amount, free, err := resolveBenefits(level, dec("200"))
	require.NoError(t, err)
	assert.True(t, dec("20").Equal(amount))
	assert.Empty(t, free)
}

func TestResolveBenefits_PercentageRounding(t *testing.T) {
	level := &Level{
		DiscountType:  DiscountPercentage,
		DiscountValue: dec("15"),
	}

	amount, _, err := resolveBenefits(level, dec("33.33"))
	require.NoError(t, err)
	assert.True(t, dec("5.00").Equal(amount))
}

func TestResolveBenefits_FixedAmountIgnoresTotal(t *testing.T) {
	level := &Level{
		DiscountType:  DiscountFixedAmount,
		DiscountValue: dec("50"),
	}

	for _, total := range []string{"0", "100", "99999"} {
		amount, _, err := resolveBenefits(level, dec(total))
		require.NoError(t, err)
		assert.True(t, dec("50").Equal(amount))
	}
}

func TestResolveBenefits_FreeProducts(t *testing.T) {
	level := &Level{
		DiscountType:  DiscountFixedAmount,
		DiscountValue: dec("25"),
		Benefits: []Benefit{
			{
				Type:      BenefitFreeProduct,
				ProductID: ptr(int64(42)),
				Value:     dec("2"),
				GiftLimit: 2,
			},
			{Type: BenefitFreeProduct, ProductID: nil, Value: dec("1")},
			{Type: BenefitType("LOYALTY_POINTS"), ProductID: ptr(int64(9)), Value: dec("100")},
		},
	}

	_, free, err := resolveBenefits(level, dec("1000"))
	require.NoError(t, err)
	require.Len(t, free, 1, "benefits without a product id or of other kinds are skipped")
	assert.Equal(t, int64(42), free[0].ProductID)
	assert.True(t, dec("2").Equal(free[0].Quantity))
	assert.Equal(t, 2, free[0].GiftLimit)
}

func TestResolveBenefits_UnsupportedType(t *testing.T) {
	level := &Level{DiscountType: DiscountType("BOGOF")}

	_, _, err := resolveBenefits(level, dec("100"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported discount type")
}

func TestResolveBenefits_NegativeFloorsToZero(t *testing.T) {
	level := &Level{
		DiscountType:  DiscountFixedAmount,
		DiscountValue: dec("-5"),
	}

	amount, _, err := resolveBenefits(level, dec("100"))
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
}
