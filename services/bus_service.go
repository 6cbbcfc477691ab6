package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"senha-system/config"
	"senha-system/models"
	"senha-system/utils"
)

// busLogDepth caps the shared event log. The log only needs to cover the
// window between two poll ticks on the slowest instance.
const busLogDepth = 256

type EventHandler func(evt models.Event)

// BusService is the cross-instance publish/subscribe channel. A publish is
// dispatched to same-instance subscribers immediately, written to a capped
// event log on the shared store and pushed over redis pub/sub; Run pumps
// remote events in from the pub/sub subscription with a periodic poll of the
// log as fallback for missed notifications.
//
// Delivery is at-least-once: the same store write can arrive through both
// paths, so handlers must be idempotent. Ordering is preserved per event
// name per writing instance, nothing more.
type BusService struct {
	Redis      *redis.Client
	config     *config.Config
	instanceID string

	mu     sync.RWMutex
	subs   map[string]map[int]EventHandler
	nextID int

	seenMu  sync.Mutex
	seen    map[int64]bool
	maxSeen int64
}

func NewBusService(redisClient *redis.Client, cfg *config.Config) *BusService {
	id, _ := utils.GenerateCode(4)
	return &BusService{
		Redis:      redisClient,
		config:     cfg,
		instanceID: id,
		subs:       make(map[string]map[int]EventHandler),
		seen:       make(map[int64]bool),
	}
}

func (s *BusService) InstanceID() string {
	return s.instanceID
}

// Subscribe registers a handler for one event name and returns its
// unsubscribe function.
func (s *BusService) Subscribe(name string, h EventHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subs[name] == nil {
		s.subs[name] = make(map[int]EventHandler)
	}
	s.nextID++
	id := s.nextID
	s.subs[name][id] = h

	return func() {
		s.mu.Lock()
		delete(s.subs[name], id)
		s.mu.Unlock()
	}
}

// Publish dispatches the event to local subscribers and writes it to the
// shared store for every other instance. Local delivery happens even when
// the store write fails; the returned error covers the remote half.
func (s *BusService) Publish(ctx context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	evt := models.Event{
		Name:    name,
		Origin:  s.instanceID,
		At:      time.Now(),
		Payload: data,
	}

	seq, seqErr := s.Redis.Incr(ctx, busSeqKey).Result()
	evt.Seq = seq
	if seqErr == nil {
		// Own writes count as delivered, the poll must not replay them
		s.markSeen(seq)
	}

	s.dispatch(evt)

	if seqErr != nil {
		return seqErr
	}

	entry, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	pipe := s.Redis.TxPipeline()
	pipe.RPush(ctx, busLogKey, entry)
	pipe.LTrim(ctx, busLogKey, -busLogDepth, -1)
	pipe.Publish(ctx, busChannel, entry)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *BusService) dispatch(evt models.Event) {
	s.mu.RLock()
	handlers := make([]EventHandler, 0, len(s.subs[evt.Name]))
	for _, h := range s.subs[evt.Name] {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(evt)
	}
}

// Run pumps remote events into local subscribers until ctx is cancelled.
func (s *BusService) Run(ctx context.Context) {
	sub := s.Redis.Subscribe(ctx, busChannel)
	defer sub.Close()
	ch := sub.Channel()

	ticker := time.NewTicker(s.config.BusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				ch = nil // keep polling
				continue
			}
			s.handleNotification(msg.Payload)
		case <-ticker.C:
			s.pollLog(ctx)
		}
	}
}

func (s *BusService) handleNotification(raw string) {
	var evt models.Event
	if err := json.Unmarshal([]byte(raw), &evt); err != nil {
		return
	}
	if !s.markSeen(evt.Seq) {
		return
	}
	if evt.Origin == s.instanceID {
		return
	}
	s.dispatch(evt)
}

// pollLog re-reads the shared event log and delivers every entry this
// instance has not delivered yet. Seqs can arrive out of order across
// writers, so a single high-watermark is not enough: a gap below the newest
// seen seq is exactly the missed notification the poll exists to cover.
func (s *BusService) pollLog(ctx context.Context) {
	entries, err := s.Redis.LRange(ctx, busLogKey, -busLogDepth, -1).Result()
	if err != nil {
		slog.Warn("bus poll", "error", err)
		return
	}

	for _, raw := range entries {
		var evt models.Event
		if err := json.Unmarshal([]byte(raw), &evt); err != nil {
			continue
		}
		if !s.markSeen(evt.Seq) {
			continue
		}
		if evt.Origin == s.instanceID {
			continue
		}
		s.dispatch(evt)
	}
}

// markSeen records seq as delivered and reports whether it was new. Seqs
// that have fallen out of the capped log window cannot reappear in a poll,
// so they are pruned to keep the set bounded.
func (s *BusService) markSeen(seq int64) bool {
	s.seenMu.Lock()
	defer s.seenMu.Unlock()

	if s.seen == nil {
		s.seen = make(map[int64]bool)
	}
	if seq <= s.maxSeen-busLogDepth || s.seen[seq] {
		return false
	}
	s.seen[seq] = true
	if seq > s.maxSeen {
		s.maxSeen = seq
		for old := range s.seen {
			if old <= s.maxSeen-busLogDepth {
				delete(s.seen, old)
			}
		}
	}
	return true
}
