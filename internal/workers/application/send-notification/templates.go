// internal/workers/application/send-notification/templates.go
package sendnotification

import (
	"fmt"
	"strings"
)

type template struct {
	Subject string
	Body    string
	// SMS is the short text; empty means the type is never sent by SMS.
	SMS string
}

var templates = map[string]template{
	TypeApplicationSubmitted: {
		Subject: "Your financing application has been received",
		Body: "Hi {{applicantName}},\n\nThanks for applying. Your application {{applicationId}} " +
			"was submitted and our team is reviewing it.\n\nTrack its progress at {{portalUrl}}.",
		SMS: "Application {{applicationId}} received. Track it at {{portalUrl}}",
	},
	TypeDocumentsRequired: {
		Subject: "Documents needed for your application",
		Body: "Hi {{applicantName}},\n\nTo continue with application {{applicationId}} please upload: " +
			"{{documents}}.\n\nUpload them at {{portalUrl}}.",
		SMS: "Documents needed for application {{applicationId}}: {{documents}}",
	},
	TypeSignatureCompleted: {
		Subject: "Application signed",
		Body: "Hi {{applicantName}},\n\nWe received your signature for application {{applicationId}}. " +
			"A lending specialist will be in touch shortly.",
	},
}

// renderTemplate replaces {{key}} placeholders. Lists are joined with ", "
// and placeholders without a value are removed.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		result = strings.ReplaceAll(result, "{{"+k+"}}", templateValue(v))
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func templateValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, templateValue(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}
