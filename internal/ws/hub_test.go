package ws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	payload := LivePayload{
		Timestamp:   "2025-01-15T12:00:00Z",
		TotalUsageW: 3200.5,
		Circuits:    []CircuitWatts{{Name: "Heat Pump", Watts: 1500}},
	}

	msg, err := NewEnvelope(TypeLiveUpdate, payload)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeLiveUpdate, env.Type)

	var parsed LivePayload
	require.NoError(t, json.Unmarshal(env.Payload, &parsed))
	assert.Equal(t, "2025-01-15T12:00:00Z", parsed.Timestamp)
	assert.Equal(t, 3200.5, parsed.TotalUsageW)
	require.Len(t, parsed.Circuits, 1)
	assert.Equal(t, "Heat Pump", parsed.Circuits[0].Name)
}

func TestNewEnvelope_NoPayload(t *testing.T) {
	msg, err := NewEnvelope(TypeRefresh, nil)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg, &env))
	assert.Equal(t, TypeRefresh, env.Type)
	assert.Empty(t, env.Payload)
}

func TestHub_BroadcastToRegisteredClients(t *testing.T) {
	hub := NewHub()

	c1 := &Client{hub: hub, send: make(chan []byte, 4)}
	c2 := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.Register(c1)
	hub.Register(c2)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Broadcast(TypeLiveUpdate, []byte("update"))
	assert.Equal(t, "update", string(<-c1.send))
	assert.Equal(t, "update", string(<-c2.send))

	hub.Unregister(c1)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Broadcast(TypeLiveUpdate, []byte("second"))
	assert.Equal(t, "second", string(<-c2.send))
}

func TestHub_LateJoinerGetsLatest(t *testing.T) {
	hub := NewHub()
	hub.Broadcast(TypeLiveUpdate, []byte("live"))
	hub.Broadcast(TypeTodayUpdate, []byte("today"))
	hub.Broadcast(TypeLiveUpdate, []byte("live-2"))

	c := &Client{hub: hub, send: make(chan []byte, 4)}
	hub.Register(c)

	got := map[string]bool{}
	got[string(<-c.send)] = true
	got[string(<-c.send)] = true
	assert.True(t, got["live-2"])
	assert.True(t, got["today"])
}

func TestHub_FullBufferDoesNotBlock(t *testing.T) {
	hub := NewHub()
	c := &Client{hub: hub, send: make(chan []byte)} // unbuffered, nobody reading
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(TypeLiveUpdate, []byte("dropped"))
		close(done)
	}()
	<-done
}
