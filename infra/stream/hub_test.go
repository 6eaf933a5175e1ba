package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/shopflow/core/events"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.JobEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev events.JobEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubStreamsEvents(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hub.WaitClients(ctx, 2))

	ch := make(chan events.JobEvent, 2)
	ch <- events.JobEvent{Type: events.Dispatched, JobID: "j1", Time: 0}
	ch <- events.JobEvent{Type: events.Arrived, JobID: "j1", Station: "s1", Time: 3}
	close(ch)
	hub.Run(ctx, ch)

	for _, conn := range []*websocket.Conn{a, b} {
		first := readEvent(t, conn)
		assert.Equal(t, events.Dispatched, first.Type)
		second := readEvent(t, conn)
		assert.Equal(t, "s1", second.Station)
		assert.Equal(t, 3.0, second.Time)
	}
	assert.Zero(t, hub.Dropped())
}

func TestHubCloseDisconnectsClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hub.WaitClients(ctx, 1))

	hub.Close()
	assert.Zero(t, hub.Clients())
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestHubForgetsDisconnectedClients(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn := dial(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, hub.WaitClients(ctx, 1))
	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestWaitClientsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, NewHub().WaitClients(ctx, 1), context.DeadlineExceeded)
}
