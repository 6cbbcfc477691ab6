package status

import (
	"errors"
	"fmt"
	"time"

	"senha-system/models"
)

var (
	ErrTicketNotFound  = errors.New("ticket: ticket not found")
	ErrCounterNotFound = errors.New("counter: counter not found")
	ErrInvalidCategory = errors.New("ticket: invalid category")
	ErrInvalidPolicy   = errors.New("policy: invalid policy")
	ErrBadPIN          = errors.New("policy: admin pin mismatch")
)

// Rejection codes. Validation rejections come from transition preconditions;
// the starvation guard is a policy rejection and carries the blocking ticket.
const (
	CodeTicketNotFound  = "ticket_not_found"
	CodeCounterNotFound = "counter_not_found"
	CodeCounterBusy     = "counter_busy"
	CodeInvalidStatus   = "invalid_status"
	CodeStarvationGuard = "starvation_guard"
)

// Rejection is a structured refusal of a dispatcher or admission request.
// It is returned in place of a generic error so the UI can explain to the
// operator exactly why the operation was refused.
type Rejection struct {
	Code             string         `json:"code"`
	Message          string         `json:"message"`
	TicketID         string         `json:"ticket_id,omitempty"`
	CurrentStatus    string         `json:"current_status,omitempty"`
	BlockingTicket   *models.Ticket `json:"blocking_ticket,omitempty"`
	WaitedForSeconds float64        `json:"waited_for_seconds,omitempty"`
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.Code, r.Message)
}

// AsRejection unwraps err into a Rejection when it carries one.
func AsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// StarvationRejection builds the policy rejection raised when a standard
// ticket may not be called because a preferential ticket waited past the
// configured threshold.
func StarvationRejection(blocking *models.Ticket, waited time.Duration) *Rejection {
	return &Rejection{
		Code:             CodeStarvationGuard,
		Message:          fmt.Sprintf("preferential ticket %s has been waiting %s", blocking.ID, waited.Round(time.Second)),
		BlockingTicket:   blocking,
		WaitedForSeconds: waited.Seconds(),
	}
}

func InvalidStatusRejection(ticketID, current, wanted string) *Rejection {
	return &Rejection{
		Code:          CodeInvalidStatus,
		Message:       fmt.Sprintf("ticket is %s, operation requires %s", current, wanted),
		TicketID:      ticketID,
		CurrentStatus: current,
	}
}
