// internal/models/step.go
package models

// StepName identifies one wizard step. The set is closed.
type StepName string

const (
	StepLanguage            StepName = "language"
	StepIntent              StepName = "intent"
	StepEmployer            StepName = "employer"
	StepProduct             StepName = "product"
	StepAccount             StepName = "account"
	StepSummary             StepName = "summary"
	StepForm                StepName = "form"
	StepDocuments           StepName = "documents"
	StepCompleted           StepName = "completed"
	StepInReview            StepName = "in_review"
	StepApproved            StepName = "approved"
	StepRejected            StepName = "rejected"
	StepPendingDocuments    StepName = "pending_documents"
	StepProcessing          StepName = "processing"
	StepHousePlanApproval   StepName = "housePlanApproval"
	StepConstructionDetails StepName = "constructionDetails"
	StepCompanyRegistration StepName = "companyRegistration"
	StepLicenseCourses      StepName = "licenseCourses"
	StepZimparksHoliday     StepName = "zimparksHoliday"
	StepCreditTerm          StepName = "creditTerm"
	StepCreditType          StepName = "creditType"
	StepDelivery            StepName = "delivery"
	StepRegistration        StepName = "registration"
	StepDepositPayment      StepName = "depositPayment"
	StepCatalogue           StepName = "catalogue"
	StepCheckout            StepName = "checkout"
)

// DefaultStep is substituted for any unrecognized step identifier.
const DefaultStep = StepProduct

var knownSteps = map[StepName]struct{}{
	StepLanguage: {}, StepIntent: {}, StepEmployer: {}, StepProduct: {},
	StepAccount: {}, StepSummary: {}, StepForm: {}, StepDocuments: {},
	StepCompleted: {}, StepInReview: {}, StepApproved: {}, StepRejected: {},
	StepPendingDocuments: {}, StepProcessing: {}, StepHousePlanApproval: {},
	StepConstructionDetails: {}, StepCompanyRegistration: {}, StepLicenseCourses: {},
	StepZimparksHoliday: {}, StepCreditTerm: {}, StepCreditType: {}, StepDelivery: {},
	StepRegistration: {}, StepDepositPayment: {}, StepCatalogue: {}, StepCheckout: {},
}

// IsKnownStep reports whether s belongs to the step allow-list.
func IsKnownStep(s string) bool {
	_, ok := knownSteps[StepName(s)]
	return ok
}

// NormalizeStep coerces s into the allow-list, falling back to DefaultStep.
func NormalizeStep(s string) StepName {
	if IsKnownStep(s) {
		return StepName(s)
	}
	return DefaultStep
}
