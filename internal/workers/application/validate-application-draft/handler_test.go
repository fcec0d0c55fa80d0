// internal/workers/application/validate-application-draft/handler_test.go
package validateapplicationdraft

import (
	"context"
	"encoding/json"
	"testing"

	"application-wizard/internal/common/config"
	"application-wizard/internal/common/errors"
	"application-wizard/internal/common/logger"
	"application-wizard/internal/models"
	"application-wizard/internal/phone"
	"application-wizard/internal/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T) *Handler {
	rs := rules.NewRuleset(phone.NewCanonicalizer("263"), logger.NewTestLogger(t))
	return NewHandler(LoadConfig(config.WorkerConfig{}), rs, logger.NewTestLogger(t))
}

func createTestDraft(variant models.Variant) *models.ApplicationDraft {
	d := models.NewDraft("web_1700000000000_abc123def")
	d.Variant = variant
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
	d.Banking = models.BankingDetails{BankName: "ZB Bank", AccountNumber: "4123456789012"}
	return d
}

func jobVariables(t *testing.T, d *models.ApplicationDraft) []byte {
	raw, err := json.Marshal(map[string]interface{}{"draft": d})
	require.NoError(t, err)
	return raw
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Valid(t *testing.T) {
	h := createTestHandler(t)

	input, err := h.parseInput(jobVariables(t, createTestDraft(models.VariantSSB)))
	require.NoError(t, err)

	out, err := h.execute(context.Background(), input)
	require.NoError(t, err)
	assert.True(t, out.IsValid)
	assert.Equal(t, models.VariantSSB, out.Variant)
	assert.Empty(t, out.Rule)
	assert.Contains(t, out.Checked, rules.RuleEmploymentNumberFormat)
}

func TestHandler_Execute_FirstViolation(t *testing.T) {
	h := createTestHandler(t)
	d := createTestDraft(models.VariantSSB)
	d.Employment.EmploymentNumber = "1234567a"
	d.NextOfKin[1] = models.NextOfKin{}

	input, err := h.parseInput(jobVariables(t, d))
	require.NoError(t, err)

	out, err := h.execute(context.Background(), input)
	require.NoError(t, err)
	assert.False(t, out.IsValid)
	assert.Equal(t, rules.RuleEmploymentNumberFormat, out.Rule)
	assert.Equal(t, rules.SectionEmployment, out.Section)
	assert.NotEmpty(t, out.Message)
}

func TestViolationError(t *testing.T) {
	err := violationError(&Output{
		Variant: models.VariantAccountHolder,
		Rule:    rules.RuleBankAccountFormat,
		Message: "Account number must be exactly 13 digits",
		Section: rules.SectionBanking,
	})

	require.True(t, errors.HasCode(err, errors.ErrCodeApplicationValidationFailed))
	stdErr, _ := errors.AsStandardError(err)
	bpmn := errors.ConvertToBPMNError(stdErr)
	assert.Equal(t, 0, bpmn.Retries)
	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "bank_account_format", vars["rule"])
	assert.Equal(t, "banking", vars["section"])
	assert.Equal(t, "account_holder", vars["variant"])
}

// ==========================
// Error Handling Tests
// ==========================

func TestHandler_Execute_UnknownVariant(t *testing.T) {
	h := createTestHandler(t)

	_, err := h.execute(context.Background(), &Input{Draft: *createTestDraft("gold_card")})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnknownVariant))
}

func TestHandler_ParseInput_Invalid(t *testing.T) {
	h := createTestHandler(t)

	tests := []struct {
		name string
		raw  string
	}{
		{"missing draft", `{}`},
		{"missing variant", `{"draft": {"sessionId": "web_1"}}`},
		{"too many next of kin", `{"draft": {"variant": "ssb", "nextOfKin": [{}, {}, {}]}}`},
		{"malformed", `{"draft": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.parseInput([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput))
		})
	}
}
