package services

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"senha-system/config"
	"senha-system/internal/status"
	"senha-system/models"
)

func setupTestRegistry() (*RegistryService, redismock.ClientMock) {
	db, mock := redismock.NewClientMock()
	bus := &BusService{
		Redis:      db,
		config:     &config.Config{BusPollInterval: time.Second},
		instanceID: "TESTINST",
		subs:       make(map[string]map[int]EventHandler),
	}
	return NewRegistryService(db, bus), mock
}

func TestRegistryService_Get_NotFound(t *testing.T) {
	service, mock := setupTestRegistry()
	defer mock.ClearExpect()

	mock.ExpectHGetAll("senha:counter:NOPE").SetVal(map[string]string{})

	_, err := service.Get(context.Background(), "NOPE")

	assert.ErrorIs(t, err, status.ErrCounterNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryService_List_SortedByDisplayNumber(t *testing.T) {
	service, mock := setupTestRegistry()
	defer mock.ClearExpect()

	mock.ExpectSMembers(countersKey).SetVal([]string{"C2", "C1"})
	mock.ExpectHGetAll("senha:counter:C2").SetVal(counterFields("C2", 5, models.CounterFree, ""))
	mock.ExpectHGetAll("senha:counter:C1").SetVal(counterFields("C1", 2, models.CounterBusy, "T1"))

	counters, err := service.List(context.Background())

	require.NoError(t, err)
	require.Len(t, counters, 2)
	assert.Equal(t, "C1", counters[0].ID)
	assert.Equal(t, "C2", counters[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryService_Bind_ReplacesOperator(t *testing.T) {
	service, mock := setupTestRegistry()
	defer mock.ClearExpect()

	fields := counterFields("C1", 2, models.CounterFree, "")
	fields["operator_id"] = "old-op"
	mock.ExpectHGetAll("senha:counter:C1").SetVal(fields)

	anyArgs := func(expected, actual []interface{}) error { return nil }
	mock.CustomMatch(anyArgs).ExpectHSet("senha:counter:C1", (&models.Counter{}).ToRedisArgs()...).SetVal(1)
	expectBusPublish(mock) // counter_updated

	counter, err := service.Bind(context.Background(), "C1", "new-op")

	require.NoError(t, err)
	assert.Equal(t, "new-op", counter.OperatorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryService_EnsureCounterForOperator_ReturnsExisting(t *testing.T) {
	service, mock := setupTestRegistry()
	defer mock.ClearExpect()

	fields := counterFields("C1", 2, models.CounterFree, "")
	fields["operator_id"] = "op-7"
	mock.ExpectSMembers(countersKey).SetVal([]string{"C1"})
	mock.ExpectHGetAll("senha:counter:C1").SetVal(fields)

	counter, err := service.EnsureCounterForOperator(context.Background(), "op-7")

	require.NoError(t, err)
	assert.Equal(t, "C1", counter.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryService_EnsureCounterForOperator_ProvisionsNew(t *testing.T) {
	service, mock := setupTestRegistry()
	defer mock.ClearExpect()

	existing := counterFields("C1", 2, models.CounterFree, "")
	existing["operator_id"] = "someone-else"
	mock.ExpectSMembers(countersKey).SetVal([]string{"C1"})
	mock.ExpectHGetAll("senha:counter:C1").SetVal(existing)
	mock.ExpectHKeys(serviceTypesKey).SetVal([]string{"deposits", "loans"})

	// Create: next display number above the current maximum
	mock.ExpectSMembers(countersKey).SetVal([]string{"C1"})
	mock.ExpectHGetAll("senha:counter:C1").SetVal(existing)

	anyArgs := func(expected, actual []interface{}) error { return nil }
	mock.ExpectTxPipeline()
	mock.CustomMatch(anyArgs).ExpectHSet("senha:counter:", (&models.Counter{}).ToRedisArgs()...).SetVal(1)
	mock.CustomMatch(anyArgs).ExpectSAdd(countersKey, "id").SetVal(1)
	mock.ExpectTxPipelineExec()
	expectBusPublish(mock)

	counter, err := service.EnsureCounterForOperator(context.Background(), "op-7")

	require.NoError(t, err)
	assert.Equal(t, "op-7", counter.OperatorID)
	assert.Equal(t, 3, counter.DisplayNumber)
	assert.Equal(t, []string{"deposits", "loans"}, counter.ServiceTypes)
	assert.Equal(t, models.CounterFree, counter.State)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistryService_ServiceTypes_SortedByName(t *testing.T) {
	service, mock := setupTestRegistry()
	defer mock.ClearExpect()

	mock.ExpectHGetAll(serviceTypesKey).SetVal(map[string]string{
		"loans":    `{"id":"loans","name":"Loans","expected_duration":600000000000}`,
		"deposits": `{"id":"deposits","name":"Deposits","expected_duration":300000000000}`,
	})

	types, err := service.ServiceTypes(context.Background())

	require.NoError(t, err)
	require.Len(t, types, 2)
	assert.Equal(t, "Deposits", types[0].Name)
	assert.Equal(t, 5*time.Minute, types[0].ExpectedDuration)
	assert.Equal(t, "Loans", types[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
