// internal/models/facility.go
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// Date is a calendar day serialized as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

// Facility holds the loan terms derived from a product selection.
// It is recomputed whenever the selection changes and never edited by hand.
type Facility struct {
	Type                string          `json:"type"`
	Amount              decimal.Decimal `json:"amount"`
	TermMonths          int             `json:"termMonths"`
	MonthlyPayment      decimal.Decimal `json:"monthlyPayment"`
	InterestRatePercent decimal.Decimal `json:"interestRatePercent"`
	Currency            string          `json:"currency,omitempty"`
	StartDate           *Date           `json:"startDate,omitempty"`
	EndDate             *Date           `json:"endDate,omitempty"`
}
