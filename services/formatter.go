package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"senha-system/models"
)

var customNumberPattern = regexp.MustCompile(`\{number(?::(\d+))?\}`)

// Format renders the external text of a ticket under the given policy:
// standard P001, compact P1, extended P0001, or a custom pattern with
// {category} and {number:N} placeholders. It is deterministic and
// side-effect free so the settings screens can reuse it for previews.
func Format(t *models.Ticket, p *models.SystemPolicy) string {
	letter := models.CategoryLetter(t.Category)

	switch p.FormattingTemplate {
	case models.TemplateCompact:
		return letter + strconv.Itoa(t.SequenceNumber)
	case models.TemplateExtended:
		return fmt.Sprintf("%s%04d", letter, t.SequenceNumber)
	case models.TemplateCustom:
		return formatCustom(p.CustomPattern, letter, t.SequenceNumber)
	default:
		return fmt.Sprintf("%s%03d", letter, t.SequenceNumber)
	}
}

func formatCustom(pattern, letter string, number int) string {
	if pattern == "" {
		// An empty custom pattern renders like the standard template
		return fmt.Sprintf("%s%03d", letter, number)
	}

	out := strings.ReplaceAll(pattern, "{category}", letter)
	out = customNumberPattern.ReplaceAllStringFunc(out, func(match string) string {
		sub := customNumberPattern.FindStringSubmatch(match)
		if sub[1] == "" {
			return strconv.Itoa(number)
		}
		width, _ := strconv.Atoi(sub[1])
		return fmt.Sprintf("%0*d", width, number)
	})
	return out
}
