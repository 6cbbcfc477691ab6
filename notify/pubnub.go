package notify

import (
	"context"

	pubnub "github.com/pubnub/go"
)

// PubNubNotifier publishes announcements on the shared display channel.
// Display boards and clerk screens subscribe to the channel and play the
// voice/tone locally.
type PubNubNotifier struct {
	pn      *pubnub.PubNub
	channel string
}

func NewPubNubNotifier(pn *pubnub.PubNub, channel string) *PubNubNotifier {
	return &PubNubNotifier{pn: pn, channel: channel}
}

func (n *PubNubNotifier) Announce(ctx context.Context, a Announcement) error {
	_, _, err := n.pn.Publish().
		Channel(n.channel).
		Message(map[string]any{
			"type":           "announcement",
			"text":           a.Text,
			"counter_number": a.CounterNumber,
			"mode":           a.Mode,
			"voice_name":     a.VoiceName,
			"voice_rate":     a.VoiceRate,
			"tone_name":      a.ToneName,
			"recall":         a.Recall,
		}).
		Execute()
	return err
}
