package models

import (
	"strconv"
	"time"
)

// Ticket categories. The letter printed on the ticket is fixed per category
// and does not depend on the formatting template.
const (
	CategoryPreferential = "preferential"
	CategoryStandard     = "standard"
)

// Ticket lifecycle statuses.
const (
	StatusWaiting = "waiting"
	StatusCalling = "calling"
	StatusServing = "serving"
	StatusDone    = "done"
	StatusNoShow  = "no_show"
)

type Ticket struct {
	ID             string     `json:"id"`
	SequenceNumber int        `json:"sequence_number"`
	Category       string     `json:"category"`
	ServiceType    string     `json:"service_type,omitempty"`
	Status         string     `json:"status"`
	Partition      string     `json:"partition"`
	IssuedAt       time.Time  `json:"issued_at"`
	CalledAt       *time.Time `json:"called_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CounterID      string     `json:"counter_id,omitempty"`
}

func ValidCategory(category string) bool {
	return category == CategoryPreferential || category == CategoryStandard
}

// CategoryLetter maps a category to its ticket letter: preferential tickets
// print as P, standard tickets as C.
func CategoryLetter(category string) string {
	if category == CategoryPreferential {
		return "P"
	}
	return "C"
}

// Terminal reports whether the ticket reached a final status. Terminal
// tickets are never deleted, only archived.
func (t *Ticket) Terminal() bool {
	return t.Status == StatusDone || t.Status == StatusNoShow
}

// ToRedisArgs flattens the ticket into field/value pairs for its redis hash.
func (t *Ticket) ToRedisArgs() []any {
	args := []any{
		"id", t.ID,
		"sequence_number", t.SequenceNumber,
		"category", t.Category,
		"service_type", t.ServiceType,
		"status", t.Status,
		"partition", t.Partition,
		"issued_at", t.IssuedAt.UnixMilli(),
		"counter_id", t.CounterID,
	}
	if t.CalledAt != nil {
		args = append(args, "called_at", t.CalledAt.UnixMilli())
	}
	if t.FinishedAt != nil {
		args = append(args, "finished_at", t.FinishedAt.UnixMilli())
	}
	return args
}

// TicketFromRedisMap rebuilds a ticket from its hash fields. Returns nil for
// an empty hash (missing key).
func TicketFromRedisMap(fields map[string]string) *Ticket {
	if fields["id"] == "" {
		return nil
	}
	seq, _ := strconv.Atoi(fields["sequence_number"])
	t := &Ticket{
		ID:             fields["id"],
		SequenceNumber: seq,
		Category:       fields["category"],
		ServiceType:    fields["service_type"],
		Status:         fields["status"],
		Partition:      fields["partition"],
		CounterID:      fields["counter_id"],
	}
	if ms := parseMilli(fields["issued_at"]); ms != nil {
		t.IssuedAt = *ms
	}
	t.CalledAt = parseMilli(fields["called_at"])
	t.FinishedAt = parseMilli(fields["finished_at"])
	return t
}

func parseMilli(s string) *time.Time {
	if s == "" {
		return nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return nil
	}
	t := time.UnixMilli(ms)
	return &t
}
