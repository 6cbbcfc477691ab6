package notify

import (
	"context"
	"log/slog"

	pubnub "github.com/pubnub/go"

	"senha-system/config"
)

// New picks the notifier adapter for the current deployment. Without PubNub
// credentials (development, tests) announcements are only logged.
func New(cfg *config.Config) Notifier {
	if cfg.PubNubPublishKey == "" || cfg.PubNubSubscribeKey == "" {
		slog.Info("pubnub keys missing, announcements will be logged only")
		return &LogNotifier{}
	}

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	return NewPubNubNotifier(pubnub.NewPubNub(pnConfig), cfg.DisplayChannel)
}

// LogNotifier is the fallback adapter used when no push transport is
// configured.
type LogNotifier struct{}

func (n *LogNotifier) Announce(_ context.Context, a Announcement) error {
	slog.Info("announcement", "text", a.Text, "counter", a.CounterNumber, "mode", a.Mode, "recall", a.Recall)
	return nil
}
