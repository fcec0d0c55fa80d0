// internal/workers/application/assemble-submission/handler_test.go
package assemblesubmission

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/facility"
	"application-wizard/internal/models"
	"application-wizard/internal/phone"
	"application-wizard/internal/rules"
	"application-wizard/internal/wizard"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var testNow = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

func createTestHandler(t *testing.T) *Handler {
	clock := func() time.Time { return testNow }
	calc := facility.NewCalculator(config.FacilityConfig{
		AnnualRatePercent: 10,
		TermTiers: []config.TermTier{
			{MaxPrice: 1000, TermMonths: 6},
			{MaxPrice: 5000, TermMonths: 12},
			{MaxPrice: 15000, TermMonths: 18},
		},
		FallbackTerm: 24,
		Currency:     "USD",
	}, clock)
	rs := rules.NewRuleset(phone.NewCanonicalizer("263"), logger.NewTestLogger(t))
	return NewHandler(LoadConfig(config.WorkerConfig{}), wizard.NewAssembler(calc, rs, clock), logger.NewTestLogger(t))
}

func createTestDraft(variant models.Variant) *models.ApplicationDraft {
	d := models.NewDraft("web_1700000000000_abc123def")
	d.Variant = variant
	d.Selection = models.ProductSelection{
		BusinessName: "Samsung 55in TV",
		BasePrice:    decimal.NewFromInt(5000),
		Intent:       "hirePurchase",
	}
	d.Personal = models.PersonalDetails{
		FirstName:        "Tendai",
		Surname:          "Moyo",
		NationalIDNumber: "08-2047823-Q-29",
		Mobile:           "0772000001",
	}
	d.Employment = models.EmploymentDetails{
		EmploymentNumber: "1234567A",
		Supervisor:       models.Supervisor{Name: "R. Ncube", Phone: "0772000002"},
	}
	d.NextOfKin = [2]models.NextOfKin{
		{FullName: "Rudo Moyo", Relationship: "Spouse", PhoneNumber: "0772000003", Address: "12 Main St, Harare"},
		{FullName: "Farai Moyo", Relationship: "Brother", PhoneNumber: "0772000004", Address: "4 Second Ave, Bulawayo"},
	}
	return d
}

func parse(t *testing.T, h *Handler, d *models.ApplicationDraft) *Input {
	raw, err := json.Marshal(map[string]interface{}{"draft": d})
	require.NoError(t, err)
	input, err := h.parseInput(raw)
	require.NoError(t, err)
	return input
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_SSB(t *testing.T) {
	h := createTestHandler(t)

	out, err := h.execute(context.Background(), parse(t, h, createTestDraft(models.VariantSSB)))
	require.NoError(t, err)

	assert.Equal(t, "ssb", out.FormType)
	assert.Equal(t, "ssb_account_opening_form.json", out.FormID)
	assert.Equal(t, []string{"national_id", "payslip", "employment_letter"}, out.DocumentTypes)

	sub := out.Submission
	require.NotNil(t, sub.Facility)
	assert.Equal(t, "439.58", sub.Facility.MonthlyPayment.StringFixed(2))
	assert.Equal(t, "2025-04-01", sub.Facility.StartDate.String())
	assert.Equal(t, testNow, sub.SubmittedAt)
	assert.Len(t, sub.Documents.UploadedDocuments, 3)
}

func TestHandler_Execute_CashSkipsRules(t *testing.T) {
	h := createTestHandler(t)
	d := models.NewDraft("web_1700000000000_cash01")
	d.Variant = models.VariantCash
	d.Selection = models.ProductSelection{BusinessName: "Solar Kit", BasePrice: decimal.NewFromInt(850)}

	out, err := h.execute(context.Background(), parse(t, h, d))
	require.NoError(t, err)
	assert.Equal(t, "cash_purchase", out.FormType)
	assert.Equal(t, "Cash Purchase - Solar Kit", out.Submission.Facility.Type)
	assert.Empty(t, out.DocumentTypes)
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_ValidationFailure(t *testing.T) {
	h := createTestHandler(t)
	d := createTestDraft(models.VariantSSB)
	d.NextOfKin[1] = models.NextOfKin{}

	_, err := h.execute(context.Background(), parse(t, h, d))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeApplicationValidationFailed))

	stdErr, _ := errors.AsStandardError(err)
	assert.Equal(t, rules.SectionNextOfKin, stdErr.Metadata["section"])
}

func TestHandler_Execute_UnknownVariant(t *testing.T) {
	h := createTestHandler(t)

	_, err := h.execute(context.Background(), parse(t, h, createTestDraft("gold_card")))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownVariant))
}

func TestHandler_ParseInput_Invalid(t *testing.T) {
	h := createTestHandler(t)

	for _, raw := range []string{
		`{}`,
		`{"draft": {"variant": "ssb"}}`,
		`{"draft": {"sessionId": "", "variant": "ssb"}}`,
		`{"draft": {"sessionId": "web_1", "variant": "ssb", "answers": []}}`,
	} {
		_, err := h.parseInput([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), raw)
	}
}
