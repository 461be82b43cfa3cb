// internal/engine/sequence/template.go
package sequence

import (
	"strings"

	"outreach-engine/internal/models"
)

// RenderTemplate substitutes contact fields into a message template.
// Unknown placeholders are left untouched; empty fields collapse with
// the surrounding whitespace cleaned up.
func RenderTemplate(template string, contact *models.Contact) string {
	replacer := strings.NewReplacer(
		"{first_name}", contact.FirstName,
		"{last_name}", contact.LastName,
		"{company_name}", contact.CompanyName,
		"{title}", contact.Title,
	)
	rendered := replacer.Replace(template)

	// Empty fields leave doubled spaces behind.
	for strings.Contains(rendered, "  ") {
		rendered = strings.ReplaceAll(rendered, "  ", " ")
	}
	return strings.TrimSpace(rendered)
}
