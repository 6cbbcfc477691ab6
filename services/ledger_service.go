package services

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"senha-system/internal/status"
	"senha-system/models"
	"senha-system/monitoring"
	"senha-system/utils"
)

// LedgerService owns ticket issuance and lookup. Sequence numbers are
// allocated with a shared INCR per (category, partition) counter, so they
// are unique and strictly increasing even with several instances issuing
// at once.
type LedgerService struct {
	Redis   *redis.Client
	Policy  *PolicyService
	Bus     *BusService
	Monitor *monitoring.Monitor
	Now     func() time.Time
}

func NewLedgerService(redisClient *redis.Client, policy *PolicyService, bus *BusService, monitor *monitoring.Monitor) *LedgerService {
	return &LedgerService{
		Redis:   redisClient,
		Policy:  policy,
		Bus:     bus,
		Monitor: monitor,
		Now:     time.Now,
	}
}

// PartitionKey returns the sequence partition that now falls into. The
// partition rolls over at the configured reset time of day; an empty reset
// time keeps one unbounded partition so sequences run indefinitely.
func PartitionKey(now time.Time, resetTime string) string {
	if resetTime == "" {
		return "all"
	}
	t, err := time.Parse("15:04", resetTime)
	if err != nil {
		return now.Format("2006-01-02")
	}
	boundary := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if now.Before(boundary) {
		boundary = boundary.AddDate(0, 0, -1)
	}
	return boundary.Format("2006-01-02")
}

// Issue allocates the next sequence number for the category in the current
// partition, persists the ticket in waiting status and broadcasts
// ticket_issued.
func (s *LedgerService) Issue(ctx context.Context, category, serviceType string) (*models.Ticket, error) {
	if !models.ValidCategory(category) {
		return nil, status.ErrInvalidCategory
	}

	policy, err := s.Policy.Get(ctx)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	partition := PartitionKey(now, policy.DailyResetTime)

	seq, err := s.Redis.Incr(ctx, seqKey(category, partition)).Result()
	if err != nil {
		return nil, err
	}

	id, err := utils.GenerateCode(8)
	if err != nil {
		return nil, err
	}

	t := &models.Ticket{
		ID:             id,
		SequenceNumber: int(seq),
		Category:       category,
		ServiceType:    serviceType,
		Status:         models.StatusWaiting,
		Partition:      partition,
		IssuedAt:       now,
	}

	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, ticketKey(id), t.ToRedisArgs()...)
	pipe.RPush(ctx, queueKey(category), id)
	pipe.RPush(ctx, ticketIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	s.Monitor.TrackOperation("issue", "success")

	payload := models.TicketEventPayload{Ticket: *t, Text: Format(t, policy)}
	if err := s.Bus.Publish(ctx, models.EventTicketIssued, payload); err != nil {
		slog.Warn("publish ticket issued", "ticket", id, "error", err)
	}

	return t, nil
}

// Get loads one ticket by id.
func (s *LedgerService) Get(ctx context.Context, id string) (*models.Ticket, error) {
	fields, err := s.Redis.HGetAll(ctx, ticketKey(id)).Result()
	if err != nil {
		return nil, err
	}
	t := models.TicketFromRedisMap(fields)
	if t == nil {
		return nil, status.ErrTicketNotFound
	}
	return t, nil
}

// ListWaiting returns the waiting tickets, oldest first. An empty category
// merges both categories; within a category the order is strict FIFO.
func (s *LedgerService) ListWaiting(ctx context.Context, category string) ([]models.Ticket, error) {
	categories := []string{models.CategoryPreferential, models.CategoryStandard}
	if category != "" {
		if !models.ValidCategory(category) {
			return nil, status.ErrInvalidCategory
		}
		categories = []string{category}
	}

	var out []models.Ticket
	for _, c := range categories {
		ids, err := s.Redis.LRange(ctx, queueKey(c), 0, -1).Result()
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			t, err := s.Get(ctx, id)
			if err != nil {
				continue
			}
			if t.Status == models.StatusWaiting {
				out = append(out, *t)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].IssuedAt.Before(out[j].IssuedAt)
	})
	return out, nil
}

// FindBySequenceText resolves a rendered ticket text (e.g. "P001") back to
// its ticket, case-insensitively. Newer tickets win over same-numbered
// tickets from earlier partitions.
func (s *LedgerService) FindBySequenceText(ctx context.Context, text string) (*models.Ticket, error) {
	policy, err := s.Policy.Get(ctx)
	if err != nil {
		return nil, err
	}

	want := strings.TrimSpace(text)
	if want == "" {
		return nil, status.ErrTicketNotFound
	}

	ids, err := s.Redis.LRange(ctx, ticketIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	for i := len(ids) - 1; i >= 0; i-- {
		t, err := s.Get(ctx, ids[i])
		if err != nil {
			continue
		}
		if strings.EqualFold(Format(t, policy), want) {
			return t, nil
		}
	}
	return nil, status.ErrTicketNotFound
}
