// internal/models/variant.go
package models

// Variant names a product-specific application form flow.
type Variant string

const (
	VariantSSB              Variant = "ssb"
	VariantRDC              Variant = "rdc"
	VariantAccountHolder    Variant = "account_holder"
	VariantSME              Variant = "sme_business"
	VariantZBAccountOpening Variant = "zb_account_opening"
	VariantCash             Variant = "cash"
)

// VariantParams is the per-variant parameter table shared by the facility
// calculator, the ruleset and submission assembly.
type VariantParams struct {
	FormType string
	FormID   string

	// EmploymentCodeDigits is the digit count before the trailing letter.
	// Zero disables the employment number check.
	EmploymentCodeDigits   int
	EmploymentCodeRequired bool

	// BothNextOfKinRequired makes entry 1 mandatory as well as entry 0.
	BothNextOfKinRequired bool
	RequiresNextOfKin     bool
	ValidatesBankAccount  bool

	// Dated variants carry facility start/end dates (salary deduction).
	Dated    bool
	Financed bool

	DocumentTypes []string
}

var variantParams = map[Variant]VariantParams{
	VariantSSB: {
		FormType:               "ssb",
		FormID:                 "ssb_account_opening_form.json",
		EmploymentCodeDigits:   7,
		EmploymentCodeRequired: true,
		BothNextOfKinRequired:  true,
		RequiresNextOfKin:      true,
		Dated:                  true,
		Financed:               true,
		DocumentTypes:          []string{"national_id", "payslip", "employment_letter"},
	},
	VariantRDC: {
		FormType:               "rdc",
		FormID:                 "rdc_loan_application.json",
		EmploymentCodeDigits:   6,
		EmploymentCodeRequired: true,
		BothNextOfKinRequired:  true,
		RequiresNextOfKin:      true,
		Dated:                  true,
		Financed:               true,
		DocumentTypes:          []string{"national_id", "payslip", "employment_letter"},
	},
	VariantAccountHolder: {
		FormType:             "account_holder_loan_application",
		FormID:               "account_holder_loan_application.json",
		EmploymentCodeDigits: 7,
		RequiresNextOfKin:    true,
		ValidatesBankAccount: true,
		Financed:             true,
		DocumentTypes:        []string{"national_id", "payslip", "employment_letter", "bank_statement"},
	},
	VariantSME: {
		FormType:          "sme_business",
		FormID:            "smes_business_account_opening.json",
		RequiresNextOfKin: true,
		Financed:          true,
		DocumentTypes:     []string{"national_id", "business_registration", "financial_statements", "director_id"},
	},
	VariantZBAccountOpening: {
		FormType:          "zb_account_opening",
		FormID:            "individual_account_opening.json",
		RequiresNextOfKin: true,
		Financed:          true,
		DocumentTypes:     []string{"national_id", "passport_photo"},
	},
	VariantCash: {
		FormType:      "cash_purchase",
		FormID:        "cash_purchase.json",
		DocumentTypes: []string{},
	},
}

// Params returns the parameter table for v and whether v is known.
func (v Variant) Params() (VariantParams, bool) {
	p, ok := variantParams[v]
	return p, ok
}

// Variants lists every known variant.
func Variants() []Variant {
	return []Variant{VariantSSB, VariantRDC, VariantAccountHolder, VariantSME, VariantZBAccountOpening, VariantCash}
}
