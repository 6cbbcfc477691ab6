package services

// Redis key layout shared by every running instance.
const (
	ticketIndexKey  = "senha:tickets:index"
	countersKey     = "senha:counters"
	serviceTypesKey = "senha:service_types"
	policyKey       = "senha:policy"

	busChannel = "senha:events"
	busLogKey  = "senha:events:log"
	busSeqKey  = "senha:events:seq"
)

func ticketKey(id string) string {
	return "senha:ticket:" + id
}

func queueKey(category string) string {
	return "senha:queue:" + category
}

func counterKey(id string) string {
	return "senha:counter:" + id
}

func seqKey(category, partition string) string {
	return "senha:seq:" + category + ":" + partition
}

func announceLockKey(ticketID string) string {
	return "senha:announce:" + ticketID
}
