// internal/stateserver/schema.go
package stateserver

import "application-wizard/internal/common/validation"

var saveRequestSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["session_id", "channel", "user_identifier", "current_step", "form_data"],
  "properties": {
    "session_id": {"type": "string", "minLength": 1, "maxLength": 255, "pattern": "^[a-zA-Z0-9_-]+$"},
    "channel": {"type": "string", "enum": ["web", "whatsapp", "ussd", "mobile_app"]},
    "user_identifier": {"type": "string", "minLength": 1, "maxLength": 255, "pattern": "^[a-zA-Z0-9@._+-]+$"},
    "current_step": {"type": "string", "minLength": 1, "maxLength": 100},
    "form_data": {
      "type": "object",
      "properties": {
        "language": {"type": ["string", "null"], "enum": ["en", "sn", "nd", null]},
        "intent": {
          "type": ["string", "null"],
          "enum": [
            "hirePurchase", "microBiz", "microBizLoan", "checkStatus", "trackDelivery",
            "loan", "account", "personalServices", "cashPurchase", "cashPurchasePersonal",
            "cashPurchaseMicroBiz", "cash", "ssbLoan", "zbLoan", "accountOpening", "rdcLoan",
            "houseConstruction", "agentApplication", "agentLogin", "homeConstruction",
            "personalGadgets", null
          ]
        },
        "employer": {"type": ["string", "null"], "maxLength": 255},
        "amount": {"type": ["number", "null"], "minimum": 0, "maximum": 1000000},
        "formResponses": {
          "type": ["object", "null"],
          "properties": {
            "firstName": {"type": ["string", "null"], "maxLength": 100, "pattern": "^[a-zA-Z\\s'-]+$"},
            "lastName": {"type": ["string", "null"], "maxLength": 100, "pattern": "^[a-zA-Z\\s'-]+$"},
            "emailAddress": {"type": ["string", "null"], "maxLength": 255, "format": "email"},
            "mobile": {"type": ["string", "null"], "pattern": "^(\\+263|0)?[0-9\\s\\-\\(\\)]{7,15}$"},
            "nationalIdNumber": {"type": ["string", "null"], "maxLength": 50, "pattern": "^[a-zA-Z0-9-]+$"}
          }
        }
      }
    },
    "metadata": {
      "type": ["object", "null"],
      "properties": {
        "user_agent": {"type": ["string", "null"], "maxLength": 4096}
      }
    }
  }
}`)

var retrieveRequestSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["user"],
  "properties": {
    "user": {"type": "string", "minLength": 1, "maxLength": 255},
    "channel": {"type": ["string", "null"], "enum": ["web", "whatsapp", "ussd", "mobile_app", "", null]}
  }
}`)

var resumeRequestSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["reference_code"],
  "properties": {
    "reference_code": {"type": "string", "minLength": 1, "maxLength": 50, "pattern": "^[a-zA-Z0-9 -]+$"}
  }
}`)
