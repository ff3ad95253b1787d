package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.GetConnectedClients() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, hub.GetConnectedClients())
}

func TestNotifyUserReachesConnectedClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{ID: 7, UserType: "driver", Send: make(chan []byte, 4), Hub: hub}
	hub.Register(client)
	waitForClients(t, hub, 1)

	hub.NotifyUser(7, "booking_request", map[string]interface{}{"bookingId": 1})
	hub.NotifyUser(99, "booking_request", map[string]interface{}{"bookingId": 1})

	select {
	case msg := <-client.Send:
		assert.Contains(t, string(msg), "booking_request")
	case <-time.After(time.Second):
		t.Fatal("expected a message for the connected client")
	}
	assert.Empty(t, client.Send, "message for another user must not arrive here")
}

func TestConcurrentNotifyUserDropsSlowClientOnce(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Unbuffered channel with no reader: every send takes the slow-client
	// branch. Concurrent notifications must drop the client exactly once,
	// not close its channel twice.
	client := &Client{ID: 7, UserType: "driver", Send: make(chan []byte), Hub: hub}
	hub.Register(client)
	waitForClients(t, hub, 1)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.NotifyUser(7, "offer_made", map[string]interface{}{"bookingId": 3})
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.GetConnectedClients())
}
