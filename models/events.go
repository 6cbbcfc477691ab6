package models

import (
	"encoding/json"
	"time"
)

// Event names carried on the cross-instance bus.
const (
	EventTicketIssued    = "ticket_issued"
	EventTicketCalled    = "ticket_called"
	EventServiceStarted  = "service_started"
	EventServiceFinished = "service_finished"
	EventTicketNoShow    = "ticket_no_show"
	EventCounterUpdated  = "counter_updated"
	EventPolicyUpdated   = "policy_updated"
)

// Event is one bus entry. Seq is allocated from a shared counter so pollers
// can skip entries they already delivered; Origin identifies the writing
// instance so it can ignore its own echoes.
type Event struct {
	Seq     int64           `json:"seq"`
	Name    string          `json:"name"`
	Origin  string          `json:"origin"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload"`
}

// TicketEventPayload is the payload of every ticket lifecycle event.
type TicketEventPayload struct {
	Ticket        Ticket `json:"ticket"`
	Text          string `json:"text,omitempty"`
	CounterNumber int    `json:"counter_number,omitempty"`
	Recall        bool   `json:"recall,omitempty"`
}
