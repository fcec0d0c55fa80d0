// internal/rules/checks.go
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"application-wizard/internal/identifier"
	"application-wizard/internal/models"
)

const (
	zbBankName          = "ZB Bank"
	zbAccountDigits     = 13
	zbAccountLeadDigit  = "4"
	msgBothNextOfKin    = "Both Spouse/Next of Kin entries are required. Please fill in all fields for both contacts."
	msgNextOfKin        = "Spouse/Next of Kin details are required. Please fill in all fields."
	msgSecondIncomplete = "Please complete all fields for the second Spouse/Next of Kin or leave it empty."
	msgDuplicateName    = "Both Spouse/Next of Kin cannot have the same name. Please provide different contacts."
	msgDuplicatePhone   = "Both Spouse/Next of Kin cannot have the same phone number. Please provide different contacts."
	msgSupervisorPhone  = "Supervisor phone number cannot be the same as Next of Kin phone numbers."
	msgApplicantPhone   = "Your personal phone number cannot be the same as Next of Kin phone numbers."
)

var (
	accountDigits = regexp.MustCompile(`^\d+$`)

	employmentPatterns = map[int]*regexp.Regexp{
		6: regexp.MustCompile(`^\d{6}[A-Z]$`),
		7: regexp.MustCompile(`^\d{7}[A-Z]$`),
	}
)

// orderedRules is the evaluation order: formats, presence, duplicates, conflicts.
func orderedRules() []rule {
	return []rule{
		{
			id:      RuleEmploymentNumberFormat,
			applies: func(p models.VariantParams) bool { return p.EmploymentCodeDigits > 0 },
			check:   checkEmploymentNumber,
		},
		{id: RuleNationalIDFormat, check: checkNationalID},
		{
			id:      RuleBankAccountFormat,
			applies: func(p models.VariantParams) bool { return p.ValidatesBankAccount },
			check:   checkBankAccount,
		},
		{
			id:      RuleNextOfKinRequired,
			applies: func(p models.VariantParams) bool { return p.RequiresNextOfKin },
			check:   checkNextOfKinRequired,
		},
		{
			id:      RuleNextOfKinIncomplete,
			applies: func(p models.VariantParams) bool { return p.RequiresNextOfKin && !p.BothNextOfKinRequired },
			check:   checkNextOfKinIncomplete,
		},
		{id: RuleNextOfKinDuplicateName, check: checkDuplicateName},
		{id: RuleNextOfKinDuplicatePhone, check: checkDuplicatePhone},
		{id: RuleSupervisorPhoneConflict, check: checkSupervisorPhone},
		{id: RuleApplicantPhoneConflict, check: checkApplicantPhone},
	}
}

func employmentPattern(digits int) *regexp.Regexp {
	if re, ok := employmentPatterns[digits]; ok {
		return re
	}
	return regexp.MustCompile(fmt.Sprintf(`^\d{%d}[A-Z]$`, digits))
}

// EmploymentNumberMessage is the product copy for a malformed employment number.
func EmploymentNumberMessage(digits int) string {
	example := strings.Repeat("1234567890", digits/10+1)[:digits]
	return fmt.Sprintf("Employment Number must be %d digits followed by a letter (e.g. %sA)", digits, example)
}

func checkEmploymentNumber(c checkContext) *Violation {
	digits := c.params.EmploymentCodeDigits
	value := strings.TrimSpace(c.draft.Employment.EmploymentNumber)
	if value == "" && !c.params.EmploymentCodeRequired {
		return nil
	}
	if employmentPattern(digits).MatchString(value) {
		return nil
	}
	return &Violation{Rule: RuleEmploymentNumberFormat, Message: EmploymentNumberMessage(digits), Section: SectionEmployment}
}

func checkNationalID(c checkContext) *Violation {
	raw := strings.TrimSpace(c.draft.Personal.NationalIDNumber)
	if raw == "" {
		return nil
	}
	res := identifier.Validate(raw)
	if res.Valid {
		return nil
	}
	return &Violation{Rule: RuleNationalIDFormat, Message: res.Message, Section: SectionPersonal}
}

func checkBankAccount(c checkContext) *Violation {
	b := c.draft.Banking
	account := strings.TrimSpace(b.AccountNumber)
	if !strings.EqualFold(strings.TrimSpace(b.BankName), zbBankName) || account == "" {
		return nil
	}
	if len(account) != zbAccountDigits || !accountDigits.MatchString(account) {
		return &Violation{Rule: RuleBankAccountFormat, Message: "Account number must be exactly 13 digits", Section: SectionBanking}
	}
	if !strings.HasPrefix(account, zbAccountLeadDigit) {
		return &Violation{Rule: RuleBankAccountFormat, Message: "ZB Bank account number must start with 4", Section: SectionBanking}
	}
	return nil
}

func checkNextOfKinRequired(c checkContext) *Violation {
	kin := c.draft.NextOfKin
	if c.params.BothNextOfKinRequired {
		if kin[0].IsComplete() && kin[1].IsComplete() {
			return nil
		}
		return &Violation{Rule: RuleNextOfKinRequired, Message: msgBothNextOfKin, Section: SectionNextOfKin}
	}
	if kin[0].IsComplete() {
		return nil
	}
	return &Violation{Rule: RuleNextOfKinRequired, Message: msgNextOfKin, Section: SectionNextOfKin}
}

func checkNextOfKinIncomplete(c checkContext) *Violation {
	second := c.draft.NextOfKin[1]
	if second.IsEmpty() || second.IsComplete() {
		return nil
	}
	return &Violation{Rule: RuleNextOfKinIncomplete, Message: msgSecondIncomplete, Section: SectionNextOfKin}
}

func checkDuplicateName(c checkContext) *Violation {
	a := strings.ToLower(strings.TrimSpace(c.draft.NextOfKin[0].FullName))
	b := strings.ToLower(strings.TrimSpace(c.draft.NextOfKin[1].FullName))
	if a == "" || a != b {
		return nil
	}
	return &Violation{Rule: RuleNextOfKinDuplicateName, Message: msgDuplicateName, Section: SectionNextOfKin}
}

func checkDuplicatePhone(c checkContext) *Violation {
	if !c.phones.Same(c.draft.NextOfKin[0].PhoneNumber, c.draft.NextOfKin[1].PhoneNumber) {
		return nil
	}
	return &Violation{Rule: RuleNextOfKinDuplicatePhone, Message: msgDuplicatePhone, Section: SectionNextOfKin}
}

func matchesNextOfKin(c checkContext, number string) bool {
	for _, kin := range c.draft.NextOfKin {
		if c.phones.Same(number, kin.PhoneNumber) {
			return true
		}
	}
	return false
}

func checkSupervisorPhone(c checkContext) *Violation {
	if !matchesNextOfKin(c, c.draft.Employment.Supervisor.Phone) {
		return nil
	}
	return &Violation{Rule: RuleSupervisorPhoneConflict, Message: msgSupervisorPhone, Section: SectionEmployment}
}

// WhatsApp is exempt; only the mobile number is compared.
func checkApplicantPhone(c checkContext) *Violation {
	if !matchesNextOfKin(c, c.draft.Personal.Mobile) {
		return nil
	}
	return &Violation{Rule: RuleApplicantPhoneConflict, Message: msgApplicantPhone, Section: SectionPersonal}
}
