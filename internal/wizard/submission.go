// internal/wizard/submission.go
package wizard

import (
	"strings"
	"time"

	"application-wizard/internal/common/errors"
	"application-wizard/internal/facility"
	"application-wizard/internal/models"
	"application-wizard/internal/rules"

	"github.com/shopspring/decimal"
)

// Answer keys that feed the facility calculator.
const (
	AnswerCreditTermMonths = "creditTermMonths"
	AnswerMonthlyPayment   = "monthlyPayment"
)

// Assembler turns a finished draft into a Submission.
type Assembler struct {
	calc  *facility.Calculator
	rules *rules.Ruleset
	now   func() time.Time
}

func NewAssembler(calc *facility.Calculator, rs *rules.Ruleset, clock func() time.Time) *Assembler {
	if clock == nil {
		clock = time.Now
	}
	return &Assembler{calc: calc, rules: rs, now: clock}
}

// Assemble validates financed variants and attaches the facility and the
// document manifest skeleton for the variant.
func (a *Assembler) Assemble(d *models.ApplicationDraft) (*models.Submission, error) {
	params, ok := d.Variant.Params()
	if !ok {
		return nil, errors.NewUnknownVariantError(string(d.Variant))
	}

	if params.Financed {
		if res := a.rules.Validate(d); !res.Valid {
			v := res.FirstViolation
			return nil, errors.NewApplicationValidationFailedError(string(v.Rule), v.Message).
				WithMetadata("section", v.Section)
		}
	}

	fac := d.Facility
	if fac == nil && !d.Selection.IsZero() {
		f := a.Facility(d)
		fac = &f
	}

	docs := d.Documents
	if docs == nil {
		docs = models.NewDocumentManifest(params.DocumentTypes, a.now())
	}

	return &models.Submission{
		SessionID:   d.SessionID,
		FormType:    params.FormType,
		FormID:      params.FormID,
		Variant:     d.Variant,
		Draft:       d,
		Facility:    fac,
		Documents:   docs,
		SubmittedAt: a.now().UTC(),
	}, nil
}

// Facility computes the draft's facility from its selection and answers.
func (a *Assembler) Facility(d *models.ApplicationDraft) models.Facility {
	return a.calc.Compute(d.Selection, Overrides(d))
}

// Overrides reads the facility overrides captured on later steps.
func Overrides(d *models.ApplicationDraft) facility.Overrides {
	ov := facility.Overrides{Variant: d.Variant}
	if n, ok := numberAnswer(d.Answers, AnswerCreditTermMonths); ok {
		ov.TermMonths = int(n.IntPart())
	}
	if n, ok := numberAnswer(d.Answers, AnswerMonthlyPayment); ok {
		ov.MonthlyPayment = decimal.NewNullDecimal(n)
	}
	return ov
}

func numberAnswer(answers map[string]interface{}, key string) (decimal.Decimal, bool) {
	switch v := answers[key].(type) {
	case float64:
		return decimal.NewFromFloat(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	}
	return decimal.Zero, false
}
