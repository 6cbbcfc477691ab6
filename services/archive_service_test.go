package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"senha-system/config"
	"senha-system/models"
)

func calledTicket(id, category string, issuedAt time.Time, waited time.Duration) models.Ticket {
	calledAt := issuedAt.Add(waited)
	return models.Ticket{
		ID:       id,
		Category: category,
		Status:   models.StatusServing,
		IssuedAt: issuedAt,
		CalledAt: &calledAt,
	}
}

func TestComputeWaitStats(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{
		calledTicket("P1", models.CategoryPreferential, base, 60*time.Second),
		calledTicket("P2", models.CategoryPreferential, base, 120*time.Second),
		calledTicket("S1", models.CategoryStandard, base, 45*time.Second),
		// Never called, excluded from wait stats
		{ID: "S2", Category: models.CategoryStandard, Status: models.StatusWaiting, IssuedAt: base},
	}

	stats := ComputeWaitStats(tickets)

	require.Len(t, stats, 2)

	preferential := stats[0]
	assert.Equal(t, models.CategoryPreferential, preferential.Category)
	assert.Equal(t, 2, preferential.CalledTickets)
	assert.Equal(t, "90", preferential.AverageWaitSeconds.String())
	assert.Equal(t, "120", preferential.LongestWaitSeconds.String())

	standard := stats[1]
	assert.Equal(t, models.CategoryStandard, standard.Category)
	assert.Equal(t, 1, standard.CalledTickets)
	assert.Equal(t, "45", standard.AverageWaitSeconds.String())
}

func TestComputeWaitStats_Empty(t *testing.T) {
	stats := ComputeWaitStats(nil)

	require.Len(t, stats, 2)
	for _, s := range stats {
		assert.Zero(t, s.CalledTickets)
		assert.True(t, s.AverageWaitSeconds.IsZero())
		assert.True(t, s.LongestWaitSeconds.IsZero())
	}
}

func TestComputeWaitStats_RoundsToTenths(t *testing.T) {
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	tickets := []models.Ticket{
		calledTicket("S1", models.CategoryStandard, base, 10*time.Second),
		calledTicket("S2", models.CategoryStandard, base, 15*time.Second),
		calledTicket("S3", models.CategoryStandard, base, 20*time.Second),
	}

	stats := ComputeWaitStats(tickets)

	assert.Equal(t, "15", stats[1].AverageWaitSeconds.String())

	tickets = append(tickets, calledTicket("S4", models.CategoryStandard, base, 11*time.Second))
	stats = ComputeWaitStats(tickets)
	assert.Equal(t, "14", stats[1].AverageWaitSeconds.String())
}

func TestArchiveService_WaitStats_LoadsHotTickets(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	service := NewArchiveService(db, nil, &config.Config{ArchiveInterval: time.Minute})

	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	fields := ticketFields("S1", 1, models.CategoryStandard, models.StatusDone, base)
	fields["called_at"] = strconv.FormatInt(base.Add(30*time.Second).UnixMilli(), 10)

	mock.ExpectLRange(ticketIndexKey, 0, -1).SetVal([]string{"S1"})
	mock.ExpectHGetAll("senha:ticket:S1").SetVal(fields)

	stats, err := service.WaitStats(context.Background())

	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, 1, stats[1].CalledTickets)
	assert.Equal(t, "30", stats[1].AverageWaitSeconds.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveService_ArchiveOnce_SkipsActiveAndArchived(t *testing.T) {
	db, mock := redismock.NewClientMock()
	defer mock.ClearExpect()

	service := NewArchiveService(db, nil, &config.Config{ArchiveInterval: time.Minute})

	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	waiting := ticketFields("S1", 1, models.CategoryStandard, models.StatusWaiting, base)
	alreadyArchived := ticketFields("S2", 2, models.CategoryStandard, models.StatusDone, base)
	alreadyArchived["archived"] = "1"

	mock.ExpectLRange(ticketIndexKey, 0, -1).SetVal([]string{"S1", "S2"})
	mock.ExpectHGetAll("senha:ticket:S1").SetVal(waiting)
	mock.ExpectHGetAll("senha:ticket:S2").SetVal(alreadyArchived)

	archived, err := service.ArchiveOnce(context.Background())

	require.NoError(t, err)
	assert.Zero(t, archived)
	assert.NoError(t, mock.ExpectationsWereMet())
}
