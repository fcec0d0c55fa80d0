// internal/rules/ruleset.go

// Package rules holds the cross-field validation applied to an application
// draft before it leaves the form step.
package rules

import (
	"application-wizard/internal/common/logger"
	"application-wizard/internal/common/metrics"
	"application-wizard/internal/models"
	"application-wizard/internal/phone"
)

type RuleID string

const (
	RuleEmploymentNumberFormat  RuleID = "employment_number_format"
	RuleNationalIDFormat        RuleID = "national_id_format"
	RuleBankAccountFormat       RuleID = "bank_account_format"
	RuleNextOfKinRequired       RuleID = "next_of_kin_required"
	RuleNextOfKinIncomplete     RuleID = "next_of_kin_incomplete"
	RuleNextOfKinDuplicateName  RuleID = "next_of_kin_duplicate_name"
	RuleNextOfKinDuplicatePhone RuleID = "next_of_kin_duplicate_phone"
	RuleSupervisorPhoneConflict RuleID = "supervisor_phone_conflict"
	RuleApplicantPhoneConflict  RuleID = "applicant_phone_conflict"
)

// Form sections a violation points the applicant back to.
const (
	SectionEmployment = "employment"
	SectionPersonal   = "personal"
	SectionBanking    = "banking"
	SectionNextOfKin  = "nextOfKin"
)

// Violation is the first rule a draft failed.
type Violation struct {
	Rule    RuleID `json:"rule"`
	Message string `json:"message"`
	Section string `json:"section"`
}

// Result is the outcome of Validate. Failing validation is not an error.
type Result struct {
	Valid          bool       `json:"valid"`
	FirstViolation *Violation `json:"firstViolation,omitempty"`
}

// checkContext is what every rule sees.
type checkContext struct {
	draft  *models.ApplicationDraft
	params models.VariantParams
	phones *phone.Canonicalizer
}

type rule struct {
	id      RuleID
	applies func(p models.VariantParams) bool
	check   func(c checkContext) *Violation
}

// Ruleset evaluates rules in priority order and stops at the first failure.
type Ruleset struct {
	registry map[models.Variant][]rule
	baseline []rule
	phones   *phone.Canonicalizer
	log      logger.Logger
}

// NewRuleset builds the per-variant rule registry.
func NewRuleset(phones *phone.Canonicalizer, log logger.Logger) *Ruleset {
	if phones == nil {
		phones = phone.NewCanonicalizer("")
	}
	r := &Ruleset{
		registry: make(map[models.Variant][]rule),
		phones:   phones,
		log:      log.WithFields(map[string]interface{}{"component": "rules"}),
	}

	all := orderedRules()
	for _, v := range models.Variants() {
		params, _ := v.Params()
		r.registry[v] = filter(all, params)
	}
	// unknown variants get the checks that need no parameters
	r.baseline = filter(all, models.VariantParams{})
	return r
}

func filter(all []rule, params models.VariantParams) []rule {
	out := make([]rule, 0, len(all))
	for _, rl := range all {
		if rl.applies == nil || rl.applies(params) {
			out = append(out, rl)
		}
	}
	return out
}

// Validate runs the draft's variant rules. The first violation wins.
func (r *Ruleset) Validate(draft *models.ApplicationDraft) Result {
	params, ok := draft.Variant.Params()
	rules := r.registry[draft.Variant]
	if !ok {
		rules = r.baseline
	}

	c := checkContext{draft: draft, params: params, phones: r.phones}
	for _, rl := range rules {
		v := rl.check(c)
		if v == nil {
			continue
		}
		variant := string(draft.Variant)
		if variant == "" {
			variant = "unknown"
		}
		metrics.ValidationFailures.WithLabelValues(variant, string(v.Rule)).Inc()
		r.log.Debug("Draft failed validation", map[string]interface{}{
			"sessionId": draft.SessionID,
			"variant":   variant,
			"rule":      v.Rule,
		})
		return Result{Valid: false, FirstViolation: v}
	}
	return Result{Valid: true}
}

// Rules lists the rule ids applied to variant, in evaluation order.
func (r *Ruleset) Rules(variant models.Variant) []RuleID {
	rules, ok := r.registry[variant]
	if !ok {
		rules = r.baseline
	}
	ids := make([]RuleID, 0, len(rules))
	for _, rl := range rules {
		ids = append(ids, rl.id)
	}
	return ids
}
