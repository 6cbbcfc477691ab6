package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"senha-system/config"
	"senha-system/internal/status"
	"senha-system/models"
	"senha-system/monitoring"
)

// callTicketScript transitions waiting -> calling and binds the counter in
// one atomic step. Under the shared-store race the first writer wins and the
// second caller gets a rejection.
var callTicketScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'waiting' then
	return {0, status or 'missing'}
end
local cstate = redis.call('HGET', KEYS[2], 'state')
if cstate ~= 'free' then
	return {0, 'counter_' .. (cstate or 'missing')}
end
redis.call('HSET', KEYS[1], 'status', 'calling', 'counter_id', ARGV[2], 'called_at', ARGV[3])
redis.call('HSET', KEYS[2], 'state', 'busy', 'current_ticket', ARGV[1])
redis.call('LREM', KEYS[3], 1, ARGV[1])
return {1, 'ok'}
`

// beginServiceScript transitions calling -> serving.
var beginServiceScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'calling' then
	return {0, status or 'missing'}
end
redis.call('HSET', KEYS[1], 'status', 'serving')
return {1, 'ok'}
`

// finishTicketScript moves a calling/serving ticket to a terminal status and
// frees its counter.
var finishTicketScript = `
local status = redis.call('HGET', KEYS[1], 'status')
if status ~= 'calling' and status ~= 'serving' then
	return {0, status or 'missing'}
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'counter_id', '', 'finished_at', ARGV[2])
if KEYS[2] ~= '' then
	redis.call('HSET', KEYS[2], 'state', 'free', 'current_ticket', '')
end
return {1, status}
`

// DispatcherService drives the ticket state machine:
// waiting -> calling -> serving -> done, with calling|serving -> no_show.
// Every transition is guarded by a precondition on the current status, so a
// misuse (finish twice, call a served ticket) yields a rejection and leaves
// state untouched.
type DispatcherService struct {
	Redis    *redis.Client
	Ledger   *LedgerService
	Policy   *PolicyService
	Registry *RegistryService
	Bus      *BusService
	Monitor  *monitoring.Monitor
	config   *config.Config

	Now   func() time.Time
	After func(d time.Duration, f func()) *time.Timer
}

func NewDispatcherService(
	redisClient *redis.Client,
	ledger *LedgerService,
	policy *PolicyService,
	registry *RegistryService,
	bus *BusService,
	monitor *monitoring.Monitor,
	cfg *config.Config,
) *DispatcherService {
	return &DispatcherService{
		Redis:    redisClient,
		Ledger:   ledger,
		Policy:   policy,
		Registry: registry,
		Bus:      bus,
		Monitor:  monitor,
		config:   cfg,
		Now:      time.Now,
		After:    time.AfterFunc,
	}
}

// Call transitions a waiting ticket to calling on a free counter, after the
// admission gate allows it. On success the counter becomes busy,
// ticket_called is broadcast and the calling -> serving transition is
// scheduled after the configured confirmation delay.
func (s *DispatcherService) Call(ctx context.Context, ticketID, counterID string) (*models.Ticket, error) {
	t, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return nil, s.asRejection(err, ticketID)
	}

	policy, err := s.Policy.Get(ctx)
	if err != nil {
		return nil, err
	}

	waiting, err := s.Ledger.ListWaiting(ctx, models.CategoryPreferential)
	if err != nil {
		return nil, err
	}

	if dec := Decide(t, waiting, policy, s.Now()); !dec.Allowed {
		s.Monitor.TrackOperation("call", "rejected")
		return nil, status.StarvationRejection(dec.BlockingTicket, dec.WaitedFor)
	}

	keys := []string{ticketKey(ticketID), counterKey(counterID), queueKey(t.Category)}
	res, err := s.Redis.Eval(ctx, callTicketScript, keys, ticketID, counterID, s.Now().UnixMilli()).Result()
	if err != nil {
		return nil, err
	}
	if ok, detail := scriptResult(res); !ok {
		s.Monitor.TrackOperation("call", "rejected")
		return nil, callRejection(ticketID, detail)
	}

	updated, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.Monitor.TrackOperation("call", "success")
	s.Monitor.ObserveWait(updated.Category, s.Now().Sub(updated.IssuedAt))
	s.publishCalled(ctx, updated, policy, false)

	if s.config.ServiceStartDelay > 0 {
		s.After(s.config.ServiceStartDelay, func() {
			beginCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if _, err := s.BeginService(beginCtx, ticketID); err != nil {
				if _, isRejection := status.AsRejection(err); !isRejection {
					slog.Warn("auto begin service", "ticket", ticketID, "error", err)
				}
			}
		})
	}

	return updated, nil
}

// BeginService moves a calling ticket to serving. It normally fires from the
// timer Call schedules, modelling the operator confirming the call; calling
// it directly is also valid.
func (s *DispatcherService) BeginService(ctx context.Context, ticketID string) (*models.Ticket, error) {
	res, err := s.Redis.Eval(ctx, beginServiceScript, []string{ticketKey(ticketID)}).Result()
	if err != nil {
		return nil, err
	}
	if ok, detail := scriptResult(res); !ok {
		if detail == "missing" {
			return nil, notFoundRejection(ticketID)
		}
		return nil, status.InvalidStatusRejection(ticketID, detail, models.StatusCalling)
	}

	updated, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.Monitor.TrackOperation("begin_service", "success")
	s.publishTicket(ctx, models.EventServiceStarted, updated)
	return updated, nil
}

// Finish completes a calling/serving ticket and frees its counter.
func (s *DispatcherService) Finish(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.close(ctx, ticketID, models.StatusDone, models.EventServiceFinished, "finish")
}

// MarkNoShow closes a calling/serving ticket whose holder never appeared.
func (s *DispatcherService) MarkNoShow(ctx context.Context, ticketID string) (*models.Ticket, error) {
	return s.close(ctx, ticketID, models.StatusNoShow, models.EventTicketNoShow, "no_show")
}

func (s *DispatcherService) close(ctx context.Context, ticketID, terminal, eventName, operation string) (*models.Ticket, error) {
	t, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return nil, s.asRejection(err, ticketID)
	}

	counterHash := ""
	if t.CounterID != "" {
		counterHash = counterKey(t.CounterID)
	}

	keys := []string{ticketKey(ticketID), counterHash}
	res, err := s.Redis.Eval(ctx, finishTicketScript, keys, terminal, s.Now().UnixMilli()).Result()
	if err != nil {
		return nil, err
	}
	if ok, detail := scriptResult(res); !ok {
		s.Monitor.TrackOperation(operation, "rejected")
		return nil, status.InvalidStatusRejection(ticketID, detail, "calling or serving")
	}

	updated, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	s.Monitor.TrackOperation(operation, "success")
	s.publishTicket(ctx, eventName, updated)

	if t.CounterID != "" {
		if counter, err := s.Registry.Get(ctx, t.CounterID); err == nil {
			if err := s.Bus.Publish(ctx, models.EventCounterUpdated, counter); err != nil {
				slog.Warn("publish counter update", "counter", t.CounterID, "error", err)
			}
		}
	}

	return updated, nil
}

// Recall re-broadcasts ticket_called for a ticket already in calling or
// serving, so the announcement fires again. The ticket itself is untouched;
// this is the one operation allowed to repeat an applied transition.
func (s *DispatcherService) Recall(ctx context.Context, ticketID string) (*models.Ticket, error) {
	t, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return nil, s.asRejection(err, ticketID)
	}
	if t.Status != models.StatusCalling && t.Status != models.StatusServing {
		s.Monitor.TrackOperation("recall", "rejected")
		return nil, status.InvalidStatusRejection(ticketID, t.Status, "calling or serving")
	}

	policy, err := s.Policy.Get(ctx)
	if err != nil {
		return nil, err
	}

	s.Monitor.TrackOperation("recall", "success")
	s.publishCalled(ctx, t, policy, true)
	return t, nil
}

func (s *DispatcherService) publishCalled(ctx context.Context, t *models.Ticket, policy *models.SystemPolicy, recall bool) {
	payload := models.TicketEventPayload{
		Ticket: *t,
		Text:   Format(t, policy),
		Recall: recall,
	}
	if t.CounterID != "" {
		if counter, err := s.Registry.Get(ctx, t.CounterID); err == nil {
			payload.CounterNumber = counter.DisplayNumber
		}
	}
	if err := s.Bus.Publish(ctx, models.EventTicketCalled, payload); err != nil {
		slog.Warn("publish ticket called", "ticket", t.ID, "error", err)
	}
}

func (s *DispatcherService) publishTicket(ctx context.Context, eventName string, t *models.Ticket) {
	if err := s.Bus.Publish(ctx, eventName, models.TicketEventPayload{Ticket: *t}); err != nil {
		slog.Warn("publish ticket event", "event", eventName, "ticket", t.ID, "error", err)
	}
}

func (s *DispatcherService) asRejection(err error, ticketID string) error {
	if errors.Is(err, status.ErrTicketNotFound) {
		return notFoundRejection(ticketID)
	}
	return err
}

func notFoundRejection(ticketID string) *status.Rejection {
	return &status.Rejection{
		Code:     status.CodeTicketNotFound,
		Message:  "ticket not found",
		TicketID: ticketID,
	}
}

// scriptResult parses the {ok, detail} pair every transition script returns.
func scriptResult(res any) (bool, string) {
	arr, ok := res.([]interface{})
	if !ok || len(arr) < 2 {
		return false, "missing"
	}
	code, _ := arr[0].(int64)
	detail, _ := arr[1].(string)
	return code == 1, detail
}

func callRejection(ticketID, detail string) *status.Rejection {
	switch detail {
	case "missing":
		return notFoundRejection(ticketID)
	case "counter_missing":
		return &status.Rejection{
			Code:     status.CodeCounterNotFound,
			Message:  "counter not found",
			TicketID: ticketID,
		}
	case "counter_busy":
		return &status.Rejection{
			Code:     status.CodeCounterBusy,
			Message:  "counter already has a ticket in calling or serving",
			TicketID: ticketID,
		}
	default:
		return status.InvalidStatusRejection(ticketID, detail, models.StatusWaiting)
	}
}
