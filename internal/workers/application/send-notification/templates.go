// internal/workers/application/send-notification/templates.go
package sendnotification

import "strings"

type messageTemplate struct {
	subject string
	body    string
	// needsNumber marks templates that cannot be sent without an application number.
	needsNumber bool
}

var templates = map[string]messageTemplate{
	TypeApplicationSubmitted: {
		subject:     "Application {{applicationNumber}} received",
		body:        "Thank you for your application. Your application number is {{applicationNumber}}. You can use it to track the progress of your application",
		needsNumber: true,
	},
	TypeAccountOpeningSubmitted: {
		subject: "Your ZB individual account application",
		body: "Thank you for applying for your ZB individual Account. We will inform you of your account number when its open, " +
			"at which time you will then be able to apply for a credit facility after your salary has been deposited at least once.",
	},
	TypeStatusUpdate: {
		subject:     "Application {{applicationNumber}} update",
		needsNumber: true,
	},
	TypeAgentNewApplication: {
		subject:     "New application {{applicationNumber}}",
		body:        "New application received: {{applicationNumber}} from {{applicantName}}. Please check your dashboard for details.",
		needsNumber: true,
	},
}

var statusMessages = map[string]string{
	"approved":          "Great news! Your application {{applicationNumber}} has been approved. We will contact you soon with next steps.",
	"rejected":          "We regret to inform you that your application {{applicationNumber}} was not approved at this time. Please contact us for more details.",
	"pending_documents": "Your application {{applicationNumber}} is pending additional documents. Please check your email or contact us for details.",
	"processing":        "Your application {{applicationNumber}} is being processed. We will update you on the progress soon.",
	"delivered":         "Your order for application {{applicationNumber}} has been delivered. Thank you for choosing us!",
}

const defaultStatusMessage = "Your application {{applicationNumber}} status has been updated to: {{status}}"

// render builds the subject and body for input.
func render(t messageTemplate, input *Input) (string, string) {
	body := t.body
	if input.NotificationType == TypeStatusUpdate {
		body = defaultStatusMessage
		if msg, ok := statusMessages[input.Status]; ok {
			body = msg
		}
	}

	name := input.ApplicantName
	if name == "" {
		name = "a client"
	}
	r := strings.NewReplacer(
		"{{applicationNumber}}", input.ApplicationNumber,
		"{{applicantName}}", name,
		"{{status}}", input.Status,
	)
	return r.Replace(t.subject), r.Replace(body)
}
