package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"senha-system/models"
)

func TestFormat_Templates(t *testing.T) {
	tests := []struct {
		name     string
		template string
		category string
		sequence int
		expected string
	}{
		{"standard preferential", models.TemplateStandard, models.CategoryPreferential, 1, "P001"},
		{"standard standard", models.TemplateStandard, models.CategoryStandard, 42, "C042"},
		{"standard three digits", models.TemplateStandard, models.CategoryStandard, 123, "C123"},
		{"standard overflow keeps digits", models.TemplateStandard, models.CategoryStandard, 1234, "C1234"},
		{"compact", models.TemplateCompact, models.CategoryPreferential, 7, "P7"},
		{"compact large", models.TemplateCompact, models.CategoryStandard, 105, "C105"},
		{"extended", models.TemplateExtended, models.CategoryPreferential, 9, "P0009"},
		{"extended standard", models.TemplateExtended, models.CategoryStandard, 42, "C0042"},
		{"unknown template falls back to standard", "bogus", models.CategoryStandard, 5, "C005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := &models.Ticket{Category: tt.category, SequenceNumber: tt.sequence}
			policy := &models.SystemPolicy{FormattingTemplate: tt.template}

			assert.Equal(t, tt.expected, Format(ticket, policy))
		})
	}
}

func TestFormat_CustomPattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		category string
		sequence int
		expected string
	}{
		{"category and padded number", "{category}-{number:4}", models.CategoryPreferential, 12, "P-0012"},
		{"unpadded number", "Senha {number}", models.CategoryStandard, 3, "Senha 3"},
		{"number wider than padding", "{number:2}", models.CategoryStandard, 105, "105"},
		{"repeated placeholders", "{category}{number:3}/{category}", models.CategoryStandard, 8, "C008/C"},
		{"literal text only", "guiche", models.CategoryPreferential, 1, "guiche"},
		{"empty pattern renders standard", "", models.CategoryPreferential, 1, "P001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket := &models.Ticket{Category: tt.category, SequenceNumber: tt.sequence}
			policy := &models.SystemPolicy{
				FormattingTemplate: models.TemplateCustom,
				CustomPattern:      tt.pattern,
			}

			assert.Equal(t, tt.expected, Format(ticket, policy))
		})
	}
}
