// internal/facility/calculator.go

// Package facility derives credit facility terms from a product selection.
package facility

import (
	"sort"
	"strings"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/models"

	"github.com/shopspring/decimal"
)

const (
	IntentHirePurchase = "hirePurchase"
	IntentMicroBiz     = "microBiz"
	IntentMicroBizLoan = "microBizLoan"

	defaultLabel = "Credit Facility"
)

var (
	one           = decimal.NewFromInt(1)
	monthsPercent = decimal.NewFromInt(1200)
)

// Overrides carries values chosen on later steps that win over the
// selection's own explicit terms.
type Overrides struct {
	Variant           models.Variant
	TermMonths        int
	MonthlyPayment    decimal.NullDecimal
	StartOffsetMonths int
}

type tier struct {
	maxPrice decimal.Decimal
	term     int
}

// Calculator is safe for concurrent use; it holds only immutable settings.
type Calculator struct {
	rate         decimal.Decimal
	tiers        []tier
	fallbackTerm int
	currency     string
	now          func() time.Time
}

// NewCalculator builds a calculator. A nil clock uses time.Now.
func NewCalculator(cfg config.FacilityConfig, clock func() time.Time) *Calculator {
	if clock == nil {
		clock = time.Now
	}

	tiers := make([]tier, 0, len(cfg.TermTiers))
	for _, t := range cfg.TermTiers {
		tiers = append(tiers, tier{maxPrice: decimal.NewFromFloat(t.MaxPrice), term: t.TermMonths})
	}
	sort.SliceStable(tiers, func(i, j int) bool { return tiers[i].maxPrice.LessThan(tiers[j].maxPrice) })

	return &Calculator{
		rate:         decimal.NewFromFloat(cfg.AnnualRatePercent),
		tiers:        tiers,
		fallbackTerm: cfg.FallbackTerm,
		currency:     cfg.Currency,
		now:          clock,
	}
}

// Compute derives the facility for sel. It never fails: a missing or
// negative price is treated as zero.
func (c *Calculator) Compute(sel models.ProductSelection, ov Overrides) models.Facility {
	price := sel.BasePrice
	if price.IsNegative() {
		price = decimal.Zero
	}

	currency := sel.Currency
	if currency == "" {
		currency = c.currency
	}

	params, _ := ov.Variant.Params()
	if ov.Variant == models.VariantCash {
		return models.Facility{
			Type:                CashLabel(sel.BusinessName),
			Amount:              price.Round(2),
			MonthlyPayment:      price.Round(2),
			InterestRatePercent: decimal.Zero,
			Currency:            currency,
		}
	}

	term := c.resolveTerm(sel, ov, price)
	payment := c.resolvePayment(sel, ov, price, term)

	f := models.Facility{
		Type:                Label(sel.Intent, sel.BusinessName),
		Amount:              price.Round(2),
		TermMonths:          term,
		MonthlyPayment:      payment,
		InterestRatePercent: c.rate,
		Currency:            currency,
	}

	if params.Dated {
		start, end := Schedule(c.now(), term, ov.StartOffsetMonths)
		f.StartDate = &start
		f.EndDate = &end
	}
	return f
}

// TermFor returns the tiered term for price.
func (c *Calculator) TermFor(price decimal.Decimal) int {
	for _, t := range c.tiers {
		if price.LessThanOrEqual(t.maxPrice) {
			return t.term
		}
	}
	return c.fallbackTerm
}

// MonthlyPayment is the level payment that retires principal over n months
// at the calculator's nominal annual rate, rounded to cents.
func (c *Calculator) MonthlyPayment(principal decimal.Decimal, n int) decimal.Decimal {
	if !principal.IsPositive() || n <= 0 {
		return decimal.Zero
	}
	months := decimal.NewFromInt(int64(n))

	r := c.rate.Div(monthsPercent)
	if !r.IsPositive() {
		return principal.Div(months).Round(2)
	}

	growth := one.Add(r).Pow(months)
	return principal.Mul(r).Mul(growth).Div(growth.Sub(one)).Round(2)
}

func (c *Calculator) resolveTerm(sel models.ProductSelection, ov Overrides, price decimal.Decimal) int {
	if ov.TermMonths > 0 {
		return ov.TermMonths
	}
	if sel.ExplicitTermMonths > 0 {
		return sel.ExplicitTermMonths
	}
	return c.TermFor(price)
}

func (c *Calculator) resolvePayment(sel models.ProductSelection, ov Overrides, price decimal.Decimal, term int) decimal.Decimal {
	if ov.MonthlyPayment.Valid && ov.MonthlyPayment.Decimal.IsPositive() {
		return ov.MonthlyPayment.Decimal.Round(2)
	}
	if sel.ExplicitMonthlyPayment.Valid && sel.ExplicitMonthlyPayment.Decimal.IsPositive() {
		return sel.ExplicitMonthlyPayment.Decimal.Round(2)
	}
	return c.MonthlyPayment(price, term)
}

// Label names the facility after the selection's intent and business.
func Label(intent, business string) string {
	business = strings.TrimSpace(business)
	if business == "" {
		return defaultLabel
	}
	switch intent {
	case "", IntentHirePurchase:
		return "Hire Purchase Credit - " + business
	case IntentMicroBiz, IntentMicroBizLoan:
		return "Micro Biz Loan - " + business
	default:
		return defaultLabel + " - " + business
	}
}

// CashLabel names a cash purchase.
func CashLabel(business string) string {
	business = strings.TrimSpace(business)
	if business == "" {
		return "Cash Purchase"
	}
	return "Cash Purchase - " + business
}

// Schedule returns the first day of the month after now (shifted by offset
// months) and the last day of the month term-1 months after that.
func Schedule(now time.Time, term, offset int) (models.Date, models.Date) {
	if term < 1 {
		term = 1
	}
	y, m, _ := now.Date()
	start := time.Date(y, m+1+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	// day 0 of the following month is the last day of the target month
	end := time.Date(start.Year(), start.Month()+time.Month(term), 0, 0, 0, 0, 0, time.UTC)
	return models.Date{Time: start}, models.Date{Time: end}
}
