package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterSendUnregister(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{
		ID:     "ws_1",
		UserID: "driver-1",
		Role:   "driver",
		send:   make(chan []byte, 4),
		hub:    hub,
	}
	hub.register <- client

	require.Eventually(t, func() bool { return hub.IsUserConnected("driver-1") },
		time.Second, 10*time.Millisecond)
	assert.False(t, hub.IsUserConnected("driver-2"))

	err := hub.SendToUserJSON("driver-1", map[string]string{
		"type":    "ride_assigned",
		"ride_id": "ride-1",
	})
	require.NoError(t, err)

	select {
	case msg := <-client.send:
		var got map[string]string
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, "ride_assigned", got["type"])
		assert.Equal(t, "ride-1", got["ride_id"])
	case <-time.After(time.Second):
		t.Fatal("message was not delivered")
	}

	// Сообщение несуществующему пользователю просто теряется.
	hub.SendToUser("ghost", []byte("ignored"))

	hub.unregister <- client
	require.Eventually(t, func() bool { return !hub.IsUserConnected("driver-1") },
		time.Second, 10*time.Millisecond)

	_, open := <-client.send
	assert.False(t, open, "send channel must be closed on unregister")
}

func TestHub_FullBufferDropsMessage(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{
		ID:     "ws_2",
		UserID: "admin-1",
		Role:   "admin",
		send:   make(chan []byte, 1),
		hub:    hub,
	}
	hub.register <- client

	require.Eventually(t, func() bool { return hub.IsUserConnected("admin-1") },
		time.Second, 10*time.Millisecond)

	hub.SendToUser("admin-1", []byte("first"))
	hub.SendToUser("admin-1", []byte("dropped"))

	assert.Equal(t, []byte("first"), <-client.send)
	select {
	case extra := <-client.send:
		t.Fatalf("unexpected extra message: %s", extra)
	default:
	}
}
