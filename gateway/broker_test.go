package gateway

import (
	"testing"

	"github.com/stretchr/testify/require"

	"countingchain/core/events"
	"countingchain/core/types"
)

func TestBrokerFiltersByContract(t *testing.T) {
	broker := NewBroker(nil)
	all, cancelAll := broker.Subscribe("")
	defer cancelAll()
	only, cancelOnly := broker.Subscribe("count1parent")
	defer cancelOnly()

	broker.Emit(events.CallCompleted{CallID: "a", Contract: "count1other"})
	broker.Emit(events.CallCompleted{
		CallID:   "b",
		Contract: "count1child",
		Events:   []*types.Event{types.NewEvent("wasm", "_contract_address", "count1parent")},
	})

	require.Equal(t, "a", (<-all).CallID)
	require.Equal(t, "b", (<-all).CallID)
	require.Equal(t, "b", (<-only).CallID)
	require.Len(t, only, 0)
}

func TestBrokerNeverBlocksAndCancels(t *testing.T) {
	broker := NewBroker(nil)
	ch, cancel := broker.Subscribe("")
	for i := 0; i < subscriberBufferSize+10; i++ {
		broker.Emit(events.CallCompleted{CallID: "x"})
	}
	require.Len(t, ch, subscriberBufferSize)

	cancel()
	cancel()
	require.Equal(t, 0, broker.Subscribers())
	broker.Emit(events.Transfer{})
}
