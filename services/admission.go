package services

import (
	"context"
	"time"

	"senha-system/models"
)

// Decision is the admission gate's answer for one ticket. A blocked
// decision names the preferential ticket that triggered the guard and how
// long it has been waiting, so the UI can explain the veto.
type Decision struct {
	Allowed          bool           `json:"allowed"`
	Reason           string         `json:"reason,omitempty"`
	BlockingTicket   *models.Ticket `json:"blocking_ticket,omitempty"`
	WaitedFor        time.Duration  `json:"-"`
	WaitedForSeconds float64        `json:"waited_for_seconds,omitempty"`
}

// Decide is the pure admission gate. It is a starvation guard, not a
// priority queue: tickets are otherwise called in plain FIFO order, and the
// only rule is a time-boxed veto on standard calls while some preferential
// ticket has waited past the configured threshold. Preferential tickets are
// never blocked.
func Decide(t *models.Ticket, waitingPreferential []models.Ticket, policy *models.SystemPolicy, now time.Time) Decision {
	if !policy.Fairness.Enabled || t.Category == models.CategoryPreferential {
		return Decision{Allowed: true}
	}

	var blocking *models.Ticket
	var worst time.Duration
	for i := range waitingPreferential {
		w := &waitingPreferential[i]
		if w.Status != models.StatusWaiting {
			continue
		}
		waited := now.Sub(w.IssuedAt)
		if waited >= policy.Fairness.MaxPreferentialWait && waited > worst {
			blocking = w
			worst = waited
		}
	}

	if blocking == nil {
		return Decision{Allowed: true}
	}
	return Decision{
		Allowed:          false,
		Reason:           "preferential starvation guard",
		BlockingTicket:   blocking,
		WaitedFor:        worst,
		WaitedForSeconds: worst.Seconds(),
	}
}

// AdmissionService wraps Decide with a snapshot load so the UI can gray out
// call buttons before attempting the call.
type AdmissionService struct {
	Ledger *LedgerService
	Policy *PolicyService
	Now    func() time.Time
}

func NewAdmissionService(ledger *LedgerService, policy *PolicyService) *AdmissionService {
	return &AdmissionService{
		Ledger: ledger,
		Policy: policy,
		Now:    time.Now,
	}
}

func (s *AdmissionService) CanCall(ctx context.Context, ticketID string) (Decision, error) {
	t, err := s.Ledger.Get(ctx, ticketID)
	if err != nil {
		return Decision{}, err
	}
	policy, err := s.Policy.Get(ctx)
	if err != nil {
		return Decision{}, err
	}
	waiting, err := s.Ledger.ListWaiting(ctx, models.CategoryPreferential)
	if err != nil {
		return Decision{}, err
	}
	return Decide(t, waiting, policy, s.Now()), nil
}
