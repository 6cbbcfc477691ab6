package models

import (
	"strconv"
	"time"
)

// Formatting templates for ticket text.
const (
	TemplateStandard = "standard" // P001
	TemplateCompact  = "compact"  // P1
	TemplateExtended = "extended" // P0001
	TemplateCustom   = "custom"   // user pattern with {category} / {number:N}
)

// Announcement modes. The queue core only decides whether an announcement
// fires; the mode and its sub-parameters are passed through to the notifier.
const (
	AnnounceVoice = "voice"
	AnnounceTone  = "tone"
	AnnounceBoth  = "both"
	AnnounceNone  = "none"
)

type FairnessPolicy struct {
	Enabled             bool          `json:"enabled"`
	MaxPreferentialWait time.Duration `json:"max_preferential_wait"`
}

// SystemPolicy is the configuration the admission gate and formatter read.
// The queue core treats it as read-only input; the settings screens own it.
type SystemPolicy struct {
	FormattingTemplate string         `json:"formatting_template"`
	CustomPattern      string         `json:"custom_pattern,omitempty"`
	DailyResetTime     string         `json:"daily_reset_time,omitempty"` // "HH:MM", empty disables the daily rollover
	Fairness           FairnessPolicy `json:"fairness"`
	AnnouncementMode   string         `json:"announcement_mode"`
	VoiceName          string         `json:"voice_name,omitempty"`
	VoiceRate          float64        `json:"voice_rate,omitempty"`
	ToneName           string         `json:"tone_name,omitempty"`
}

func DefaultPolicy() SystemPolicy {
	return SystemPolicy{
		FormattingTemplate: TemplateStandard,
		DailyResetTime:     "00:00",
		Fairness: FairnessPolicy{
			Enabled:             true,
			MaxPreferentialWait: 10 * time.Minute,
		},
		AnnouncementMode: AnnounceBoth,
		VoiceRate:        1.0,
	}
}

func ValidTemplate(name string) bool {
	switch name {
	case TemplateStandard, TemplateCompact, TemplateExtended, TemplateCustom:
		return true
	}
	return false
}

func ValidAnnouncementMode(mode string) bool {
	switch mode {
	case AnnounceVoice, AnnounceTone, AnnounceBoth, AnnounceNone:
		return true
	}
	return false
}

func (p *SystemPolicy) ToRedisArgs() []any {
	return []any{
		"formatting_template", p.FormattingTemplate,
		"custom_pattern", p.CustomPattern,
		"daily_reset_time", p.DailyResetTime,
		"fairness_enabled", strconv.FormatBool(p.Fairness.Enabled),
		"max_preferential_wait_ms", p.Fairness.MaxPreferentialWait.Milliseconds(),
		"announcement_mode", p.AnnouncementMode,
		"voice_name", p.VoiceName,
		"voice_rate", strconv.FormatFloat(p.VoiceRate, 'f', -1, 64),
		"tone_name", p.ToneName,
	}
}

func PolicyFromRedisMap(fields map[string]string) *SystemPolicy {
	p := DefaultPolicy()
	if v := fields["formatting_template"]; v != "" {
		p.FormattingTemplate = v
	}
	p.CustomPattern = fields["custom_pattern"]
	if _, ok := fields["daily_reset_time"]; ok {
		p.DailyResetTime = fields["daily_reset_time"]
	}
	if v, err := strconv.ParseBool(fields["fairness_enabled"]); err == nil {
		p.Fairness.Enabled = v
	}
	if ms, err := strconv.ParseInt(fields["max_preferential_wait_ms"], 10, 64); err == nil {
		p.Fairness.MaxPreferentialWait = time.Duration(ms) * time.Millisecond
	}
	if v := fields["announcement_mode"]; v != "" {
		p.AnnouncementMode = v
	}
	p.VoiceName = fields["voice_name"]
	if v, err := strconv.ParseFloat(fields["voice_rate"], 64); err == nil {
		p.VoiceRate = v
	}
	p.ToneName = fields["tone_name"]
	return &p
}
