// internal/workers/application/compute-facility/models.go
package computefacility

import (
	"application-wizard/internal/common/validation"
	"application-wizard/internal/models"

	"github.com/shopspring/decimal"
)

type Input struct {
	ProductSelection models.ProductSelection `json:"productSelection"`
	Variant          models.Variant          `json:"variant"`
	CreditTermMonths int                     `json:"creditTermMonths"`
	MonthlyPayment   decimal.NullDecimal     `json:"monthlyPayment"`
}

type Output struct {
	Facility models.Facility `json:"facility"`
	Financed bool            `json:"financed"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["productSelection"],
  "properties": {
    "productSelection": {
      "type": "object",
      "required": ["basePrice"],
      "properties": {
        "basePrice": {"type": ["number", "string"]},
        "explicitTermMonths": {"type": ["integer", "null"], "minimum": 0}
      }
    },
    "variant": {"type": ["string", "null"]},
    "creditTermMonths": {"type": ["integer", "null"], "minimum": 0, "maximum": 120},
    "monthlyPayment": {"type": ["number", "string", "null"]}
  }
}`)
