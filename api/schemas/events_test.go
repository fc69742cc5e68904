package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_MarshalTupleOrder(t *testing.T) {
	data, err := json.Marshal(Event{Kind: EventProgress, Payload: "downloading logs"})
	require.NoError(t, err)
	assert.Equal(t, `["downloading logs","progress"]`, string(data))
}

func TestEvent_MarshalStructPayload(t *testing.T) {
	data, err := json.Marshal(Event{Kind: EventUsage, Payload: Usage{Input: 10, Output: 3}})
	require.NoError(t, err)
	assert.Equal(t, `[{"input":10,"output":3},"usage"]`, string(data))
}

func TestEvent_UnmarshalTuple(t *testing.T) {
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(`["completed","status"]`), &ev))
	assert.Equal(t, EventStatus, ev.Kind)
	assert.Equal(t, "completed", ev.Payload)
}

func TestEvent_UnmarshalRejectsNonTuple(t *testing.T) {
	var ev Event
	assert.Error(t, json.Unmarshal([]byte(`{"kind":"status"}`), &ev))
	assert.Error(t, json.Unmarshal([]byte(`["payload",42]`), &ev))
}
