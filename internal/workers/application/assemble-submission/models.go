// internal/workers/application/assemble-submission/models.go
package assemblesubmission

import (
	"application-wizard/internal/common/validation"
	"application-wizard/internal/models"
)

type Input struct {
	Draft models.ApplicationDraft `json:"draft"`
}

type Output struct {
	Submission    *models.Submission `json:"submission"`
	FormType      string             `json:"formType"`
	FormID        string             `json:"formId"`
	DocumentTypes []string           `json:"documentTypes"`
}

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["draft"],
  "properties": {
    "draft": {
      "type": "object",
      "required": ["sessionId", "variant"],
      "properties": {
        "sessionId": {"type": "string", "minLength": 1, "maxLength": 255},
        "variant": {"type": "string", "minLength": 1},
        "productSelection": {"type": ["object", "null"]},
        "answers": {"type": ["object", "null"]}
      }
    }
  }
}`)
