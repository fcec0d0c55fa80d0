// internal/facility/calculator_test.go
package facility

import (
	"testing"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() config.FacilityConfig {
	return config.FacilityConfig{
		AnnualRatePercent: 10,
		TermTiers: []config.TermTier{
			{MaxPrice: 15000, TermMonths: 18},
			{MaxPrice: 1000, TermMonths: 6},
			{MaxPrice: 5000, TermMonths: 12},
		},
		FallbackTerm: 24,
		Currency:     "USD",
	}
}

func fixedClock(y int, m time.Month, d int) func() time.Time {
	return func() time.Time { return time.Date(y, m, d, 14, 30, 0, 0, time.UTC) }
}

func newTestCalculator() *Calculator {
	return NewCalculator(createTestConfig(), fixedClock(2025, time.March, 15))
}

func TestLabel(t *testing.T) {
	tests := []struct {
		intent, business, want string
	}{
		{"hirePurchase", "Acme Furniture", "Hire Purchase Credit - Acme Furniture"},
		{"", "Acme Furniture", "Hire Purchase Credit - Acme Furniture"},
		{"microBiz", "Poultry", "Micro Biz Loan - Poultry"},
		{"microBizLoan", "Poultry", "Micro Biz Loan - Poultry"},
		{"personalLoan", "Solar", "Credit Facility - Solar"},
		{"hirePurchase", "  ", "Credit Facility"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.intent, tt.business))
		})
	}
}

func TestTermFor_Tiers(t *testing.T) {
	calc := newTestCalculator()

	tests := []struct {
		price string
		want  int
	}{
		{"0", 6},
		{"1000", 6},
		{"1000.01", 12},
		{"5000", 12},
		{"15000", 18},
		{"15000.01", 24},
		{"250000", 24},
	}
	for _, tt := range tests {
		t.Run(tt.price, func(t *testing.T) {
			assert.Equal(t, tt.want, calc.TermFor(decimal.RequireFromString(tt.price)))
		})
	}
}

func TestTermFor_Monotonic(t *testing.T) {
	calc := newTestCalculator()

	prev := 0
	for p := int64(0); p <= 30000; p += 250 {
		term := calc.TermFor(decimal.NewFromInt(p))
		assert.GreaterOrEqual(t, term, prev, "price %d", p)
		prev = term
	}
}

func TestMonthlyPayment(t *testing.T) {
	calc := newTestCalculator()

	assert.Equal(t, "439.58", calc.MonthlyPayment(decimal.NewFromInt(5000), 12).StringFixed(2))
	assert.True(t, calc.MonthlyPayment(decimal.Zero, 12).IsZero())
	assert.True(t, calc.MonthlyPayment(decimal.NewFromInt(-5), 12).IsZero())
	assert.True(t, calc.MonthlyPayment(decimal.NewFromInt(5000), 0).IsZero())

	zeroRate := NewCalculator(config.FacilityConfig{FallbackTerm: 24}, nil)
	assert.Equal(t, "100.00", zeroRate.MonthlyPayment(decimal.NewFromInt(1200), 12).StringFixed(2))
}

func TestCompute_Defaults(t *testing.T) {
	calc := newTestCalculator()

	f := calc.Compute(models.ProductSelection{
		BusinessName: "Acme Furniture",
		BasePrice:    decimal.NewFromInt(5000),
	}, Overrides{Variant: models.VariantAccountHolder})

	assert.Equal(t, "Hire Purchase Credit - Acme Furniture", f.Type)
	assert.Equal(t, 12, f.TermMonths)
	assert.Equal(t, "439.58", f.MonthlyPayment.StringFixed(2))
	assert.True(t, f.InterestRatePercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, "USD", f.Currency)
	assert.Nil(t, f.StartDate, "undated variant")
	assert.Nil(t, f.EndDate)
}

func TestCompute_ExplicitTerms(t *testing.T) {
	calc := newTestCalculator()

	sel := models.ProductSelection{
		BusinessName:           "Solar",
		BasePrice:              decimal.NewFromInt(5000),
		ExplicitTermMonths:     3,
		ExplicitMonthlyPayment: decimal.NewNullDecimal(decimal.RequireFromString("1700.5")),
	}

	f := calc.Compute(sel, Overrides{})
	assert.Equal(t, 3, f.TermMonths)
	assert.Equal(t, "1700.50", f.MonthlyPayment.StringFixed(2))

	// overrides win over the selection
	f = calc.Compute(sel, Overrides{TermMonths: 9, MonthlyPayment: decimal.NewNullDecimal(decimal.NewFromInt(600))})
	assert.Equal(t, 9, f.TermMonths)
	assert.Equal(t, "600.00", f.MonthlyPayment.StringFixed(2))

	// a zero explicit payment falls back to amortization
	sel.ExplicitMonthlyPayment = decimal.NewNullDecimal(decimal.Zero)
	sel.ExplicitTermMonths = 12
	f = calc.Compute(sel, Overrides{})
	assert.Equal(t, "439.58", f.MonthlyPayment.StringFixed(2))
}

func TestCompute_NegativePrice(t *testing.T) {
	calc := newTestCalculator()

	f := calc.Compute(models.ProductSelection{BusinessName: "X", BasePrice: decimal.NewFromInt(-100)}, Overrides{})
	assert.True(t, f.Amount.IsZero())
	assert.True(t, f.MonthlyPayment.IsZero())
	assert.Equal(t, 6, f.TermMonths)
}

func TestCompute_DatedVariant(t *testing.T) {
	for _, variant := range []models.Variant{models.VariantSSB, models.VariantRDC} {
		t.Run(string(variant), func(t *testing.T) {
			calc := newTestCalculator()
			f := calc.Compute(models.ProductSelection{
				BusinessName: "Acme",
				BasePrice:    decimal.NewFromInt(900),
			}, Overrides{Variant: variant})

			require.NotNil(t, f.StartDate)
			require.NotNil(t, f.EndDate)
			assert.Equal(t, 6, f.TermMonths)
			assert.Equal(t, "2025-04-01", f.StartDate.String())
			assert.Equal(t, "2025-09-30", f.EndDate.String())
		})
	}
}

func TestCompute_Cash(t *testing.T) {
	calc := newTestCalculator()

	f := calc.Compute(models.ProductSelection{BusinessName: "Fridge", BasePrice: decimal.RequireFromString("799.99")},
		Overrides{Variant: models.VariantCash})

	assert.Equal(t, "Cash Purchase - Fridge", f.Type)
	assert.Equal(t, 0, f.TermMonths)
	assert.Equal(t, "799.99", f.MonthlyPayment.StringFixed(2))
	assert.Nil(t, f.StartDate)
}

func TestSchedule(t *testing.T) {
	tests := []struct {
		name      string
		now       time.Time
		term      int
		offset    int
		wantStart string
		wantEnd   string
	}{
		{"mid march", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 6, 0, "2025-04-01", "2025-09-30"},
		{"end of march", time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC), 6, 0, "2025-04-01", "2025-09-30"},
		{"first of march", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 6, 0, "2025-04-01", "2025-09-30"},
		{"december rollover", time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC), 12, 0, "2026-01-01", "2026-12-31"},
		{"leap february end", time.Date(2023, 12, 5, 0, 0, 0, 0, time.UTC), 2, 0, "2024-01-01", "2024-02-29"},
		{"offset", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 1, 1, "2025-05-01", "2025-05-31"},
		{"zero term", time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), 0, 0, "2025-04-01", "2025-04-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Schedule(tt.now, tt.term, tt.offset)
			assert.Equal(t, tt.wantStart, start.String())
			assert.Equal(t, tt.wantEnd, end.String())
		})
	}
}
