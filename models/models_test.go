package models

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryLetter(t *testing.T) {
	assert.Equal(t, "P", CategoryLetter(CategoryPreferential))
	assert.Equal(t, "C", CategoryLetter(CategoryStandard))
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryPreferential))
	assert.True(t, ValidCategory(CategoryStandard))
	assert.False(t, ValidCategory("vip"))
	assert.False(t, ValidCategory(""))
}

func TestTicket_Terminal(t *testing.T) {
	for status, terminal := range map[string]bool{
		StatusWaiting: false,
		StatusCalling: false,
		StatusServing: false,
		StatusDone:    true,
		StatusNoShow:  true,
	} {
		ticket := Ticket{Status: status}
		assert.Equal(t, terminal, ticket.Terminal(), status)
	}
}

func TestTicketFromRedisMap(t *testing.T) {
	issued := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	called := issued.Add(2 * time.Minute)

	ticket := TicketFromRedisMap(map[string]string{
		"id":              "T1",
		"sequence_number": "42",
		"category":        CategoryStandard,
		"service_type":    "deposits",
		"status":          StatusCalling,
		"partition":       "2026-08-29",
		"issued_at":       strconv.FormatInt(issued.UnixMilli(), 10),
		"called_at":       strconv.FormatInt(called.UnixMilli(), 10),
		"counter_id":      "C1",
	})

	require.NotNil(t, ticket)
	assert.Equal(t, "T1", ticket.ID)
	assert.Equal(t, 42, ticket.SequenceNumber)
	assert.Equal(t, StatusCalling, ticket.Status)
	assert.True(t, ticket.IssuedAt.Equal(issued))
	require.NotNil(t, ticket.CalledAt)
	assert.True(t, ticket.CalledAt.Equal(called))
	assert.Nil(t, ticket.FinishedAt)
	assert.Equal(t, "C1", ticket.CounterID)
}

func TestTicketFromRedisMap_EmptyHash(t *testing.T) {
	assert.Nil(t, TicketFromRedisMap(map[string]string{}))
}

func TestCounterRedisRoundTrip(t *testing.T) {
	counter := Counter{
		ID:            "C1",
		DisplayNumber: 3,
		OperatorID:    "op-7",
		ServiceTypes:  []string{"deposits", "loans"},
		State:         CounterBusy,
		CurrentTicket: "T1",
	}

	args := counter.ToRedisArgs()
	fields := make(map[string]string, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		switch v := args[i+1].(type) {
		case string:
			fields[args[i].(string)] = v
		case int:
			fields[args[i].(string)] = strconv.Itoa(v)
		}
	}

	restored := CounterFromRedisMap(fields)
	require.NotNil(t, restored)
	assert.Equal(t, counter, *restored)
}

func TestPolicyFromRedisMap_Defaults(t *testing.T) {
	policy := PolicyFromRedisMap(map[string]string{})

	assert.Equal(t, TemplateStandard, policy.FormattingTemplate)
	assert.Equal(t, "00:00", policy.DailyResetTime)
	assert.True(t, policy.Fairness.Enabled)
	assert.Equal(t, 10*time.Minute, policy.Fairness.MaxPreferentialWait)
	assert.Equal(t, AnnounceBoth, policy.AnnouncementMode)
}

func TestPolicyFromRedisMap_ExplicitEmptyResetDisablesRollover(t *testing.T) {
	policy := PolicyFromRedisMap(map[string]string{"daily_reset_time": ""})

	assert.Empty(t, policy.DailyResetTime)
}

func TestValidTemplate(t *testing.T) {
	for _, template := range []string{TemplateStandard, TemplateCompact, TemplateExtended, TemplateCustom} {
		assert.True(t, ValidTemplate(template), template)
	}
	assert.False(t, ValidTemplate("roman-numerals"))
}

func TestValidAnnouncementMode(t *testing.T) {
	for _, mode := range []string{AnnounceVoice, AnnounceTone, AnnounceBoth, AnnounceNone} {
		assert.True(t, ValidAnnouncementMode(mode), mode)
	}
	assert.False(t, ValidAnnouncementMode("shout"))
}
