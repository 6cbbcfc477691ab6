package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"senha-system/config"
	"senha-system/models"
)

// ArchiveService copies terminal tickets from the hot store into the durable
// ticket_history collection, keeping the audit and wait-time history after
// the hot partition rolls over. Tickets are never deleted, only archived.
type ArchiveService struct {
	Redis  *redis.Client
	DB     dbx.Builder
	config *config.Config
	Now    func() time.Time
}

func NewArchiveService(redisClient *redis.Client, db dbx.Builder, cfg *config.Config) *ArchiveService {
	return &ArchiveService{
		Redis:  redisClient,
		DB:     db,
		config: cfg,
		Now:    time.Now,
	}
}

// Run archives terminal tickets on a fixed cadence until ctx is cancelled.
func (s *ArchiveService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.ArchiveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ArchiveOnce(ctx); err != nil {
				slog.Warn("archive pass", "error", err)
			} else if n > 0 {
				slog.Info("archived tickets", "count", n)
			}
		}
	}
}

// ArchiveOnce copies every terminal, not-yet-archived ticket to the durable
// store and marks it archived. Returns the number of tickets copied.
func (s *ArchiveService) ArchiveOnce(ctx context.Context) (int, error) {
	ids, err := s.Redis.LRange(ctx, ticketIndexKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}

	archived := 0
	for _, id := range ids {
		fields, err := s.Redis.HGetAll(ctx, ticketKey(id)).Result()
		if err != nil {
			return archived, err
		}
		t := models.TicketFromRedisMap(fields)
		if t == nil || !t.Terminal() || fields["archived"] == "1" {
			continue
		}

		if err := s.insertHistory(t); err != nil {
			return archived, err
		}
		if err := s.Redis.HSet(ctx, ticketKey(id), "archived", "1").Err(); err != nil {
			return archived, err
		}
		archived++
	}
	return archived, nil
}

func (s *ArchiveService) insertHistory(t *models.Ticket) error {
	now := s.Now().UTC().Format(types.DefaultDateLayout)
	params := dbx.Params{
		"id":              t.ID,
		"ticket_id":       t.ID,
		"sequence_number": t.SequenceNumber,
		"category":        t.Category,
		"service_type":    t.ServiceType,
		"status":          t.Status,
		"partition":       t.Partition,
		"issued_at":       t.IssuedAt.UTC().Format(types.DefaultDateLayout),
		"created":         now,
		"updated":         now,
	}
	if t.CalledAt != nil {
		params["called_at"] = t.CalledAt.UTC().Format(types.DefaultDateLayout)
		params["wait_seconds"] = int(t.CalledAt.Sub(t.IssuedAt).Seconds())
	}
	if t.FinishedAt != nil {
		params["finished_at"] = t.FinishedAt.UTC().Format(types.DefaultDateLayout)
	}

	_, err := s.DB.Insert("ticket_history", params).Execute()
	return err
}

// CategoryWaitStats summarises how long called tickets of one category
// waited. Values are fixed-point seconds for display.
type CategoryWaitStats struct {
	Category           string          `json:"category"`
	CalledTickets      int             `json:"called_tickets"`
	AverageWaitSeconds decimal.Decimal `json:"average_wait_seconds"`
	LongestWaitSeconds decimal.Decimal `json:"longest_wait_seconds"`
}

// WaitStats computes per-category wait summaries over the hot ticket index.
func (s *ArchiveService) WaitStats(ctx context.Context) ([]CategoryWaitStats, error) {
	ids, err := s.Redis.LRange(ctx, ticketIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	tickets := make([]models.Ticket, 0, len(ids))
	for _, id := range ids {
		fields, err := s.Redis.HGetAll(ctx, ticketKey(id)).Result()
		if err != nil {
			continue
		}
		if t := models.TicketFromRedisMap(fields); t != nil {
			tickets = append(tickets, *t)
		}
	}

	return ComputeWaitStats(tickets), nil
}

// ComputeWaitStats is the pure aggregation behind WaitStats.
func ComputeWaitStats(tickets []models.Ticket) []CategoryWaitStats {
	out := make([]CategoryWaitStats, 0, 2)
	for _, category := range []string{models.CategoryPreferential, models.CategoryStandard} {
		stats := CategoryWaitStats{
			Category:           category,
			AverageWaitSeconds: decimal.Zero,
			LongestWaitSeconds: decimal.Zero,
		}
		sum := decimal.Zero
		for _, t := range tickets {
			if t.Category != category || t.CalledAt == nil {
				continue
			}
			waited := decimal.NewFromInt(t.CalledAt.Sub(t.IssuedAt).Milliseconds()).
				Div(decimal.NewFromInt(1000))
			sum = sum.Add(waited)
			if waited.GreaterThan(stats.LongestWaitSeconds) {
				stats.LongestWaitSeconds = waited
			}
			stats.CalledTickets++
		}
		if stats.CalledTickets > 0 {
			stats.AverageWaitSeconds = sum.
				Div(decimal.NewFromInt(int64(stats.CalledTickets))).
				Round(1)
		}
		stats.LongestWaitSeconds = stats.LongestWaitSeconds.Round(1)
		out = append(out, stats)
	}
	return out
}
