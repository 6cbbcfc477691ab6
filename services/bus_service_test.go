package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"senha-system/config"
	"senha-system/models"
)

func setupTestBus() (*BusService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	bus := &BusService{
		Redis:      db,
		config:     &config.Config{BusPollInterval: time.Second},
		instanceID: "LOCAL",
		subs:       make(map[string]map[int]EventHandler),
	}
	return bus, mock
}

func busEntry(t *testing.T, seq int64, name, origin string) string {
	t.Helper()
	data, err := json.Marshal(models.Event{
		Seq:     seq,
		Name:    name,
		Origin:  origin,
		At:      time.Now(),
		Payload: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return string(data)
}

func TestBusService_Publish_DispatchesLocally(t *testing.T) {
	bus, mock := setupTestBus()
	defer mock.ClearExpect()

	var got []models.Event
	bus.Subscribe("ticket_issued", func(evt models.Event) {
		got = append(got, evt)
	})

	anyArgs := func(expected, actual []interface{}) error { return nil }
	mock.ExpectIncr(busSeqKey).SetVal(9)
	mock.ExpectTxPipeline()
	mock.CustomMatch(anyArgs).ExpectRPush(busLogKey, "entry").SetVal(1)
	mock.ExpectLTrim(busLogKey, -busLogDepth, -1).SetVal("OK")
	mock.CustomMatch(anyArgs).ExpectPublish(busChannel, "entry").SetVal(1)
	mock.ExpectTxPipelineExec()

	err := bus.Publish(context.Background(), "ticket_issued", map[string]string{"id": "T1"})

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(9), got[0].Seq)
	assert.Equal(t, "LOCAL", got[0].Origin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusService_Publish_LocalDeliveryDespiteStoreFailure(t *testing.T) {
	bus, mock := setupTestBus()
	defer mock.ClearExpect()

	delivered := 0
	bus.Subscribe("ticket_issued", func(models.Event) { delivered++ })

	mock.ExpectIncr(busSeqKey).SetErr(errors.New("store down"))

	err := bus.Publish(context.Background(), "ticket_issued", map[string]string{"id": "T1"})

	assert.Error(t, err)
	assert.Equal(t, 1, delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusService_Unsubscribe(t *testing.T) {
	bus, _ := setupTestBus()

	delivered := 0
	unsub := bus.Subscribe("ticket_called", func(models.Event) { delivered++ })

	bus.handleNotification(busEntry(t, 1, "ticket_called", "REMOTE"))
	unsub()
	bus.handleNotification(busEntry(t, 2, "ticket_called", "REMOTE"))

	assert.Equal(t, 1, delivered)
}

func TestBusService_SkipsOwnEcho(t *testing.T) {
	bus, _ := setupTestBus()

	delivered := 0
	bus.Subscribe("ticket_called", func(models.Event) { delivered++ })

	bus.handleNotification(busEntry(t, 1, "ticket_called", "LOCAL"))
	bus.handleNotification(busEntry(t, 2, "ticket_called", "REMOTE"))

	assert.Equal(t, 1, delivered)
}

func TestBusService_PollLog_RecoversMissedSeq(t *testing.T) {
	bus, mock := setupTestBus()
	defer mock.ClearExpect()

	var seqs []int64
	bus.Subscribe("ticket_called", func(evt models.Event) {
		seqs = append(seqs, evt.Seq)
	})

	// The notification for seq 1 was lost; seq 2 arrived over pub/sub
	bus.handleNotification(busEntry(t, 2, "ticket_called", "REMOTE"))

	log := []string{
		busEntry(t, 1, "ticket_called", "REMOTE"),
		busEntry(t, 2, "ticket_called", "REMOTE"),
		busEntry(t, 3, "ticket_called", "LOCAL"),
		busEntry(t, 4, "ticket_called", "REMOTE"),
	}
	mock.ExpectLRange(busLogKey, -busLogDepth, -1).SetVal(log)

	bus.pollLog(context.Background())

	// Seq 1 is recovered despite seq 2 having been seen first; own seq 3 is
	// skipped
	assert.Equal(t, []int64{2, 1, 4}, seqs)

	// A second poll over the same log redelivers nothing
	mock.ExpectLRange(busLogKey, -busLogDepth, -1).SetVal(log)
	bus.pollLog(context.Background())

	assert.Equal(t, []int64{2, 1, 4}, seqs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusService_PollLog_SkipsOwnPublishedEvents(t *testing.T) {
	bus, mock := setupTestBus()
	defer mock.ClearExpect()

	delivered := 0
	bus.Subscribe("ticket_issued", func(models.Event) { delivered++ })

	anyArgs := func(expected, actual []interface{}) error { return nil }
	mock.ExpectIncr(busSeqKey).SetVal(5)
	mock.ExpectTxPipeline()
	mock.CustomMatch(anyArgs).ExpectRPush(busLogKey, "entry").SetVal(1)
	mock.ExpectLTrim(busLogKey, -busLogDepth, -1).SetVal("OK")
	mock.CustomMatch(anyArgs).ExpectPublish(busChannel, "entry").SetVal(1)
	mock.ExpectTxPipelineExec()

	require.NoError(t, bus.Publish(context.Background(), "ticket_issued", map[string]string{"id": "T1"}))
	require.Equal(t, 1, delivered)

	// The poll finds the instance's own write in the shared log
	mock.ExpectLRange(busLogKey, -busLogDepth, -1).SetVal([]string{
		busEntry(t, 5, "ticket_issued", "LOCAL"),
	})
	bus.pollLog(context.Background())

	assert.Equal(t, 1, delivered)
	assert.NoError(t, mock.ExpectationsWereMet())
}
