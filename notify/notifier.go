package notify

import "context"

// Announcement carries everything an output device needs to play one call.
// Mode and the voice/tone parameters come straight from the system policy
// and are opaque to the queue core.
type Announcement struct {
	Text          string  `json:"text"`
	CounterNumber int     `json:"counter_number"`
	Mode          string  `json:"mode"`
	VoiceName     string  `json:"voice_name,omitempty"`
	VoiceRate     float64 `json:"voice_rate,omitempty"`
	ToneName      string  `json:"tone_name,omitempty"`
	Recall        bool    `json:"recall,omitempty"`
}

// Notifier delivers announcements to whatever plays them. The queue core
// decides whether an announcement fires; adapters decide how.
type Notifier interface {
	Announce(ctx context.Context, a Announcement) error
}
