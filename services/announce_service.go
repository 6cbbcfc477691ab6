package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"senha-system/config"
	"senha-system/models"
	"senha-system/monitoring"
	"senha-system/notify"
	"senha-system/utils"
)

// AnnounceService plays the audible announcement for ticket_called events.
// Every running instance receives the event; a short-lived lease on the
// shared store decides which single instance actually announces. The lease
// is advisory and self-expires, so a crashed holder heals on its own.
type AnnounceService struct {
	Redis    *redis.Client
	Bus      *BusService
	Policy   *PolicyService
	Monitor  *monitoring.Monitor
	Notifier notify.Notifier
	config   *config.Config

	breaker *utils.Breaker
	unsub   func()
}

func NewAnnounceService(
	redisClient *redis.Client,
	bus *BusService,
	policy *PolicyService,
	monitor *monitoring.Monitor,
	notifier notify.Notifier,
	cfg *config.Config,
) *AnnounceService {
	return &AnnounceService{
		Redis:    redisClient,
		Bus:      bus,
		Policy:   policy,
		Monitor:  monitor,
		Notifier: notifier,
		config:   cfg,
		breaker:  utils.NewBreaker("announcer", 5, 30*time.Second),
	}
}

// Start subscribes the announcer to ticket_called.
func (s *AnnounceService) Start() {
	s.unsub = s.Bus.Subscribe(models.EventTicketCalled, s.onTicketCalled)
}

func (s *AnnounceService) Stop() {
	if s.unsub != nil {
		s.unsub()
	}
}

// TryAcquire takes the announcement lease for key if no unexpired lease
// exists. The first acquirer wins; everyone else skips the announcement.
func (s *AnnounceService) TryAcquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	return s.Redis.SetNX(ctx, announceLockKey(key), s.Bus.InstanceID(), window).Result()
}

func (s *AnnounceService) onTicketCalled(evt models.Event) {
	var payload models.TicketEventPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		slog.Warn("announce: bad ticket_called payload", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	policy, err := s.Policy.Get(ctx)
	if err != nil {
		slog.Warn("announce: load policy", "error", err)
		return
	}
	if policy.AnnouncementMode == models.AnnounceNone {
		return
	}

	acquired, err := s.TryAcquire(ctx, payload.Ticket.ID, s.config.AnnounceLockWindow)
	if err != nil {
		slog.Warn("announce: acquire lease", "ticket", payload.Ticket.ID, "error", err)
		return
	}
	if !acquired {
		// Another instance announced this call already
		s.Monitor.TrackAnnouncement("suppressed")
		return
	}

	text := payload.Text
	if text == "" {
		text = Format(&payload.Ticket, policy)
	}

	announcement := notify.Announcement{
		Text:          text,
		CounterNumber: payload.CounterNumber,
		Mode:          policy.AnnouncementMode,
		VoiceName:     policy.VoiceName,
		VoiceRate:     policy.VoiceRate,
		ToneName:      policy.ToneName,
		Recall:        payload.Recall,
	}

	err = s.breaker.Do(ctx, func(ctx context.Context) error {
		return s.Notifier.Announce(ctx, announcement)
	})
	if err != nil {
		s.Monitor.TrackAnnouncement("failed")
		slog.Warn("announce: deliver", "ticket", payload.Ticket.ID, "error", err)
		return
	}
	s.Monitor.TrackAnnouncement("played")
}
