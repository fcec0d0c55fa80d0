// internal/models/application_test.go
package models

import (
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationDraft_Merge(t *testing.T) {
	draft := NewDraft("web_1_abc")
	draft.Personal.FirstName = "Tariro"
	draft.Personal.Address.City = "Harare"
	draft.Facility = &Facility{Type: "Credit Facility", TermMonths: 6}

	err := draft.Merge(map[string]interface{}{
		"sessionId": "hijack",
		"facility":  map[string]interface{}{"type": "tampered"},
		"employer":  "government-ssb",
		"personal": map[string]interface{}{
			"surname": "Moyo",
			"address": map[string]interface{}{"suburb": "Avondale"},
		},
		"productSelection": map[string]interface{}{
			"businessName": "Solar Kits",
			"basePrice":    1200.5,
		},
		"nextOfKin": []interface{}{
			map[string]interface{}{"fullName": "Rudo Moyo", "phoneNumber": "0771234567"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "web_1_abc", draft.SessionID)
	assert.Equal(t, "Credit Facility", draft.Facility.Type)
	assert.Equal(t, "government-ssb", draft.Employer)
	assert.Equal(t, "Tariro", draft.Personal.FirstName)
	assert.Equal(t, "Moyo", draft.Personal.Surname)
	assert.Equal(t, "Harare", draft.Personal.Address.City)
	assert.Equal(t, "Avondale", draft.Personal.Address.Suburb)
	assert.Equal(t, "Solar Kits", draft.Selection.BusinessName)
	assert.True(t, draft.Selection.BasePrice.Equal(decimal.RequireFromString("1200.5")))
	assert.Equal(t, "Rudo Moyo", draft.NextOfKin[0].FullName)
	assert.True(t, draft.NextOfKin[1].IsEmpty())
}

func TestApplicationDraft_FormDataRoundTrip(t *testing.T) {
	draft := NewDraft("web_1_abc")
	draft.Variant = VariantSSB
	draft.Selection.ExplicitMonthlyPayment = decimal.NewNullDecimal(decimal.NewFromInt(120))
	start := NewDate(2026, time.April, 1)
	draft.Facility = &Facility{Type: "x", StartDate: &start}

	formData, err := draft.FormData()
	require.NoError(t, err)

	back, err := DraftFromFormData(formData)
	require.NoError(t, err)
	assert.Equal(t, VariantSSB, back.Variant)
	assert.True(t, back.Selection.ExplicitMonthlyPayment.Valid)
	assert.Equal(t, "2026-04-01", back.Facility.StartDate.String())
	assert.NotNil(t, back.Answers)
}

func TestNextOfKin_Completeness(t *testing.T) {
	tests := []struct {
		name     string
		kin      NextOfKin
		empty    bool
		complete bool
	}{
		{name: "empty", kin: NextOfKin{}, empty: true},
		{name: "whitespace only", kin: NextOfKin{FullName: "  "}, empty: true},
		{name: "partial", kin: NextOfKin{FullName: "A"}, empty: false},
		{
			name:     "complete",
			kin:      NextOfKin{FullName: "A", Relationship: "Sister", PhoneNumber: "077", Address: "Harare"},
			complete: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.empty, tt.kin.IsEmpty())
			assert.Equal(t, tt.complete, tt.kin.IsComplete())
		})
	}
}

func TestNormalizeStep(t *testing.T) {
	assert.Equal(t, StepForm, NormalizeStep("form"))
	assert.Equal(t, StepDepositPayment, NormalizeStep("depositPayment"))
	assert.Equal(t, DefaultStep, NormalizeStep("<script>"))
	assert.Equal(t, DefaultStep, NormalizeStep(""))
	assert.False(t, IsKnownStep("FORM"))
}

func TestNewSessionID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewSessionID("web", now)

	assert.Regexp(t, regexp.MustCompile(`^web_1700000000123_[a-f0-9]{9}$`), id)
	assert.NotEqual(t, id, NewSessionID("web", now))
}

func TestDate_JSON(t *testing.T) {
	d := NewDate(2026, time.September, 30)
	raw, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2026-09-30"`, string(raw))

	var back Date
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.True(t, back.Equal(d.Time))

	assert.Error(t, json.Unmarshal([]byte(`"30/09/2026"`), &back))
}

func TestVariantParams(t *testing.T) {
	for _, v := range Variants() {
		p, ok := v.Params()
		require.True(t, ok, string(v))
		assert.NotEmpty(t, p.FormType)
		assert.NotEmpty(t, p.FormID)
	}

	ssb, _ := VariantSSB.Params()
	rdc, _ := VariantRDC.Params()
	assert.Equal(t, 7, ssb.EmploymentCodeDigits)
	assert.Equal(t, 6, rdc.EmploymentCodeDigits)

	_, ok := Variant("pensioner").Params()
	assert.False(t, ok)
}

func TestNewDocumentManifest(t *testing.T) {
	now := time.Date(2026, time.March, 10, 8, 0, 0, 0, time.UTC)
	m := NewDocumentManifest([]string{"national_id", "payslip"}, now)

	assert.Len(t, m.UploadedDocuments, 2)
	assert.Empty(t, m.UploadedDocuments["payslip"])
	assert.Equal(t, "2026-03-10T08:00:00Z", m.UploadedAt)
	assert.False(t, m.ValidationSummary.AllDocumentsValid)
	assert.Equal(t, 0, m.ValidationSummary.TotalDocuments)
	assert.Equal(t, []string{"national_id", "payslip"}, m.ValidationSummary.DocumentTypes)
}
