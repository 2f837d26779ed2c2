package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishCountsReceivers(t *testing.T) {
	h := NewHub()
	assert.Equal(t, 0, h.Publish("nobody"))

	a, cancelA := h.Subscribe()
	defer cancelA()
	b, cancelB := h.Subscribe()
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 2, h.Publish("hello"))
	assert.Equal(t, "hello", <-a)
	assert.Equal(t, "hello", <-b)

	cancelB()
	cancelB()
	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 1, h.Publish("again"))
	_, open := <-b
	assert.False(t, open)
}

func TestHub_FullSubscriberMissesEvents(t *testing.T) {
	h := NewHubSize(2)
	ch, cancel := h.Subscribe()
	defer cancel()
	require.Equal(t, 2, cap(ch))

	require.Equal(t, 1, h.Publish("one"))
	require.Equal(t, 1, h.Publish("two"))
	assert.Equal(t, 0, h.Publish("overflow"))
	assert.EqualValues(t, 1, h.Dropped())
	assert.Equal(t, "one", <-ch)
}

func TestMakeEvent(t *testing.T) {
	s := MakeEvent("req-1", TypeOADetected, 1, map[string]string{"id": "t1"})

	var e Event
	require.NoError(t, json.Unmarshal([]byte(s), &e))
	assert.Equal(t, TypeOADetected, e.Type)
	assert.Equal(t, 1, e.Version)
	assert.Equal(t, "req-1", e.RequestID)
	assert.JSONEq(t, `{"id":"t1"}`, string(e.Data))
	assert.False(t, e.At.IsZero())
}

func TestMakeEvent_NoData(t *testing.T) {
	var e Event
	require.NoError(t, json.Unmarshal([]byte(MakeEvent("", TypePing, 1, nil)), &e))
	assert.Equal(t, TypePing, e.Type)
	assert.Empty(t, e.Data)
	assert.Empty(t, e.RequestID)
}
