package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Counter states. A busy counter has exactly one ticket in calling or
// serving bound to it.
const (
	CounterFree = "free"
	CounterBusy = "busy"
)

type Counter struct {
	ID            string   `json:"id"`
	DisplayNumber int      `json:"display_number"`
	OperatorID    string   `json:"operator_id,omitempty"`
	ServiceTypes  []string `json:"service_types"`
	State         string   `json:"state"`
	CurrentTicket string   `json:"current_ticket,omitempty"`
}

func (c *Counter) ToRedisArgs() []any {
	return []any{
		"id", c.ID,
		"display_number", c.DisplayNumber,
		"operator_id", c.OperatorID,
		"service_types", strings.Join(c.ServiceTypes, ","),
		"state", c.State,
		"current_ticket", c.CurrentTicket,
	}
}

func CounterFromRedisMap(fields map[string]string) *Counter {
	if fields["id"] == "" {
		return nil
	}
	num, _ := strconv.Atoi(fields["display_number"])
	c := &Counter{
		ID:            fields["id"],
		DisplayNumber: num,
		OperatorID:    fields["operator_id"],
		State:         fields["state"],
		CurrentTicket: fields["current_ticket"],
	}
	if raw := fields["service_types"]; raw != "" {
		c.ServiceTypes = strings.Split(raw, ",")
	}
	return c
}

// ServiceType describes one kind of service a counter can handle.
type ServiceType struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	ExpectedDuration time.Duration `json:"expected_duration"`
}

func (s *ServiceType) Marshal() (string, error) {
	data, err := json.Marshal(s)
	return string(data), err
}

func ServiceTypeFromJSON(raw string) (*ServiceType, error) {
	var st ServiceType
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, err
	}
	return &st, nil
}
