package notify

import (
	"fmt"
	"strings"
)

const (
	receiptSubject = "Admission application received for {{studentName}}"
	receiptEmail   = `Dear {{parentName}},

We have received the admission application for {{studentName}} into {{classOfAdmission}} for the {{academicYear}} academic year.

Application ID: {{applicationId}}
Reference: {{reference}}

The admissions office will contact you about the next steps.

{{schoolName}}`
	receiptSMS = "{{schoolName}}: application for {{studentName}} received. Ref {{reference}}."
)

// renderTemplate replaces {{key}} placeholders and drops the ones without data.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl
	for k, v := range data {
		value := ""
		if s, ok := v.(string); ok {
			value = s
		} else if v != nil {
			value = fmt.Sprintf("%v", v)
		}
		result = strings.ReplaceAll(result, "{{"+k+"}}", value)
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
