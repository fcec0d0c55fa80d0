// internal/models/application.go
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ApplicationDraft is the working record for one in-progress application.
type ApplicationDraft struct {
	SessionID   string   `json:"sessionId"`
	CurrentStep StepName `json:"currentStep"`
	Flow        string   `json:"flow,omitempty"`
	Variant     Variant  `json:"variant,omitempty"`
	Language    string   `json:"language,omitempty"`
	Intent      string   `json:"intent,omitempty"`
	Employer    string   `json:"employer,omitempty"`
	HasAccount  bool     `json:"hasAccount"`
	CreditType  string   `json:"creditType,omitempty"`

	Selection  ProductSelection  `json:"productSelection"`
	Facility   *Facility         `json:"facility,omitempty"`
	Personal   PersonalDetails   `json:"personal"`
	Employment EmploymentDetails `json:"employment"`
	NextOfKin  [2]NextOfKin      `json:"nextOfKin"`
	Banking    BankingDetails    `json:"banking"`
	OtherLoans []OtherLoan       `json:"otherLoans,omitempty"`
	Business   *BusinessDetails  `json:"business,omitempty"`
	Documents  *DocumentManifest `json:"documents,omitempty"`

	// Answers holds step outputs with no typed home (delivery choice,
	// holiday package details, course selection).
	Answers map[string]interface{} `json:"answers,omitempty"`
}

// ProductSelection is supplied by the product catalogue and is read-only to the core.
type ProductSelection struct {
	BusinessName           string              `json:"businessName,omitempty"`
	Category               string              `json:"category,omitempty"`
	Subcategory            string              `json:"subcategory,omitempty"`
	BasePrice              decimal.Decimal     `json:"basePrice"`
	Intent                 string              `json:"intent,omitempty"`
	Currency               string              `json:"currency,omitempty"`
	ExplicitTermMonths     int                 `json:"explicitTermMonths,omitempty"`
	ExplicitMonthlyPayment decimal.NullDecimal `json:"explicitMonthlyPayment"`
}

// IsZero reports whether no product has been chosen yet.
func (p ProductSelection) IsZero() bool {
	return p.BusinessName == "" && p.BasePrice.IsZero() && p.Category == ""
}

type Address struct {
	Street   string `json:"street,omitempty"`
	Suburb   string `json:"suburb,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
}

func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street+a.Suburb+a.City+a.Province) == ""
}

// String renders the address on one line for comparisons and exports.
func (a Address) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.Street, a.Suburb, a.City, a.Province} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type PersonalDetails struct {
	Title            string  `json:"title,omitempty"`
	FirstName        string  `json:"firstName,omitempty"`
	Surname          string  `json:"surname,omitempty"`
	NationalIDNumber string  `json:"nationalIdNumber,omitempty"`
	DateOfBirth      string  `json:"dateOfBirth,omitempty"`
	Gender           string  `json:"gender,omitempty"`
	MaritalStatus    string  `json:"maritalStatus,omitempty"`
	Email            string  `json:"email,omitempty"`
	Mobile           string  `json:"mobile,omitempty"`
	WhatsApp         string  `json:"whatsApp,omitempty"`
	Address          Address `json:"address"`
}

func (p PersonalDetails) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.Surname)
}

type Supervisor struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type EmploymentDetails struct {
	EmployerName     string              `json:"employerName,omitempty"`
	EmploymentNumber string              `json:"employmentNumber,omitempty"`
	Department       string              `json:"department,omitempty"`
	JobTitle         string              `json:"jobTitle,omitempty"`
	NetSalary        decimal.NullDecimal `json:"netSalary"`
	Supervisor       Supervisor          `json:"supervisor"`
}

// NextOfKin is a contact person recorded against the application.
type NextOfKin struct {
	FullName     string `json:"fullName,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Address      string `json:"address,omitempty"`
}

// IsEmpty reports whether no field has been filled.
func (n NextOfKin) IsEmpty() bool {
	return strings.TrimSpace(n.FullName+n.Relationship+n.PhoneNumber+n.Address) == ""
}

// IsComplete reports whether every field has been filled.
func (n NextOfKin) IsComplete() bool {
	return strings.TrimSpace(n.FullName) != "" &&
		strings.TrimSpace(n.Relationship) != "" &&
		strings.TrimSpace(n.PhoneNumber) != "" &&
		strings.TrimSpace(n.Address) != ""
}

type BankingDetails struct {
	BankName      string `json:"bankName,omitempty"`
	Branch        string `json:"branch,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
}

type OtherLoan struct {
	Institution        string          `json:"institution,omitempty"`
	MonthlyInstallment decimal.Decimal `json:"monthlyInstallment"`
	Balance            decimal.Decimal `json:"balance"`
}

type BusinessDetails struct {
	BusinessName       string `json:"businessName,omitempty"`
	RegistrationNumber string `json:"registrationNumber,omitempty"`
	BusinessType       string `json:"businessType,omitempty"`
	YearsTrading       int    `json:"yearsTrading,omitempty"`
}

// NewDraft returns an empty draft bound to sessionID.
func NewDraft(sessionID string) *ApplicationDraft {
	return &ApplicationDraft{
		SessionID:   sessionID,
		CurrentStep: DefaultStep,
		Answers:     map[string]interface{}{},
	}
}

// FormData renders the draft as the open record persisted by the session tiers.
func (d *ApplicationDraft) FormData() (map[string]interface{}, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal draft: %w", err)
	}
	out := map[string]interface{}{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return out, nil
}

// DraftFromFormData rebuilds a draft from a persisted form record.
func DraftFromFormData(formData map[string]interface{}) (*ApplicationDraft, error) {
	raw, err := json.Marshal(formData)
	if err != nil {
		return nil, fmt.Errorf("marshal form data: %w", err)
	}
	draft := NewDraft("")
	if err := json.Unmarshal(raw, draft); err != nil {
		return nil, fmt.Errorf("decode form data: %w", err)
	}
	if draft.Answers == nil {
		draft.Answers = map[string]interface{}{}
	}
	return draft, nil
}

// Merge deep-merges a step's output into the draft. Nested objects merge
// key by key; every other value replaces what was there. Session id and
// derived facility are never taken from step output.
func (d *ApplicationDraft) Merge(updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	current, err := d.FormData()
	if err != nil {
		return err
	}
	for k, v := range updates {
		if k == "sessionId" || k == "facility" {
			continue
		}
		current[k] = mergeValue(current[k], v)
	}

	merged, err := DraftFromFormData(current)
	if err != nil {
		return err
	}
	merged.SessionID = d.SessionID
	merged.Facility = d.Facility
	*d = *merged
	return nil
}

func mergeValue(dst, src interface{}) interface{} {
	dstMap, ok1 := dst.(map[string]interface{})
	srcMap, ok2 := src.(map[string]interface{})
	if !ok1 || !ok2 {
		return src
	}
	for k, v := range srcMap {
		dstMap[k] = mergeValue(dstMap[k], v)
	}
	return dstMap
}

// Attributes exposes the fields flow conditions are evaluated against.
func (d *ApplicationDraft) Attributes() map[string]string {
	hasAccount := "false"
	if d.HasAccount {
		hasAccount = "true"
	}
	return map[string]string{
		"employer":    d.Employer,
		"intent":      d.Intent,
		"variant":     string(d.Variant),
		"category":    d.Selection.Category,
		"subcategory": d.Selection.Subcategory,
		"business":    d.Selection.BusinessName,
		"creditType":  d.CreditType,
		"hasAccount":  hasAccount,
	}
}
