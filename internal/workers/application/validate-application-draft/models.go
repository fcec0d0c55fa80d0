// internal/workers/application/validate-application-draft/models.go
package validateapplicationdraft

import (
	"application-wizard/internal/common/validation"
	"application-wizard/internal/models"
	"application-wizard/internal/rules"
)

type Input struct {
	Draft models.ApplicationDraft `json:"draft"`
}

type Output struct {
	IsValid bool           `json:"isValid"`
	Variant models.Variant `json:"variant"`
	Rule    rules.RuleID   `json:"rule,omitempty"`
	Message string         `json:"message,omitempty"`
	Section string         `json:"section,omitempty"`
	Checked []rules.RuleID `json:"checkedRules"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["draft"],
  "properties": {
    "draft": {
      "type": "object",
      "required": ["variant"],
      "properties": {
        "sessionId": {"type": ["string", "null"], "maxLength": 255},
        "variant": {"type": "string", "minLength": 1},
        "personal": {"type": ["object", "null"]},
        "employment": {"type": ["object", "null"]},
        "nextOfKin": {"type": ["array", "null"], "maxItems": 2},
        "banking": {"type": ["object", "null"]}
      }
    }
  }
}`)
