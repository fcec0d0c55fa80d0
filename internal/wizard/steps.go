// internal/wizard/steps.go
package wizard

import (
	"application-wizard/internal/models"
	"application-wizard/internal/rules"
)

// RuleStepInput marks a step whose own answer is missing.
const RuleStepInput rules.RuleID = "step_input_required"

const (
	CreditTypeZDC = "ZDC"
	CreditTypePDC = "PDC"
)

type stepCheck func(d *models.ApplicationDraft, out StepOutput) *rules.Violation

var stepChecks = map[models.StepName]stepCheck{
	models.StepEmployer:   checkEmployerStep,
	models.StepProduct:    checkProductStep,
	models.StepCatalogue:  checkCatalogueStep,
	models.StepCreditType: checkCreditTypeStep,
	models.StepAccount:    checkAccountStep,
}

func missing(section, message string) *rules.Violation {
	return &rules.Violation{Rule: RuleStepInput, Message: message, Section: section}
}

func checkEmployerStep(d *models.ApplicationDraft, _ StepOutput) *rules.Violation {
	if d.Employer == "" {
		return missing("employer", "Please select your employer to continue")
	}
	return nil
}

// Company registration and course fees are priced on their own steps.
func pricedLater(sel models.ProductSelection) bool {
	switch {
	case sel.Subcategory == "Fees and Licensing", sel.BusinessName == "Company Registration":
		return true
	case sel.Subcategory == "Driving School", sel.Subcategory == "License Courses", sel.BusinessName == "License Courses":
		return true
	}
	return false
}

func checkProductStep(d *models.ApplicationDraft, _ StepOutput) *rules.Violation {
	sel := d.Selection
	if sel.Category == "" {
		return missing("product", "Please select a product category")
	}
	if sel.BusinessName == "" {
		return missing("product", "Please select a business")
	}
	if !pricedLater(sel) && !sel.BasePrice.IsPositive() {
		return missing("product", "Amount must be greater than 0")
	}
	return nil
}

func checkCatalogueStep(d *models.ApplicationDraft, _ StepOutput) *rules.Violation {
	if d.Selection.BusinessName == "" || !d.Selection.BasePrice.IsPositive() {
		return missing("catalogue", "Please select a product to continue")
	}
	return nil
}

func checkCreditTypeStep(d *models.ApplicationDraft, _ StepOutput) *rules.Violation {
	if d.CreditType != CreditTypeZDC && d.CreditType != CreditTypePDC {
		return missing("creditType", "Please select a credit type")
	}
	return nil
}

// hasAccount is a plain bool on the draft, so the answer is read from the
// step output itself.
func checkAccountStep(_ *models.ApplicationDraft, out StepOutput) *rules.Violation {
	if _, ok := out["hasAccount"]; !ok {
		return missing("account", "Please indicate whether you have an account")
	}
	return nil
}
