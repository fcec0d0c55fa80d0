// internal/workers/application/create-application-record/models.go
package createapplicationrecord

import (
	"application-wizard/internal/common/validation"
	"application-wizard/internal/models"
)

type Input struct {
	Submission models.Submission `json:"submission"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	ReferenceCode     string `json:"referenceCode"`
	ApplicationStatus string `json:"applicationStatus"`
	CreatedAt         string `json:"createdAt"` // ISO 8601
}

const StatusSubmitted = "submitted"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["submission"],
  "properties": {
    "submission": {
      "type": "object",
      "required": ["sessionId", "formType", "formId", "variant", "formResponses"],
      "properties": {
        "sessionId": {"type": "string", "minLength": 1, "maxLength": 255},
        "formType": {"type": "string", "minLength": 1},
        "formId": {"type": "string", "minLength": 1},
        "variant": {"type": "string", "minLength": 1},
        "formResponses": {"type": "object"}
      }
    }
  }
}`)
