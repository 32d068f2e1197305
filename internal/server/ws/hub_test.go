package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lasource18/options-price-calculator/internal/domain"
)

type chanBus struct {
	ch      chan []byte
	pattern chan string
}

func (b *chanBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, pattern string) (<-chan []byte, error) {
	b.pattern <- pattern
	return b.ch, nil
}

func TestHubRelaysEvents(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 4), pattern: make(chan string, 1)}
	hub := NewHub(bus, "pricing:*", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	select {
	case p := <-bus.pattern:
		assert.Equal(t, "pricing:*", p)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not subscribe")
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var hello Envelope
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Type)

	evt := domain.PricingEvent{ID: "e1", Engine: "fdm", Side: domain.SideCall, Price: 10.26}
	payload, err := json.Marshal(evt)
	require.NoError(t, err)
	require.NoError(t, bus.Publish(ctx, "pricing:fdm", payload))

	var got struct {
		Type    string              `json:"type"`
		Payload domain.PricingEvent `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "pricing_event", got.Type)
	assert.Equal(t, "e1", got.Payload.ID)
	assert.Equal(t, 10.26, got.Payload.Price)
}

func TestClientFilter(t *testing.T) {
	c := &client{engines: map[string]bool{}}
	assert.True(t, c.wants("analytic"))

	c.applyFilter(filterMsg{Action: "subscribe", Engines: []string{"fdm", "montecarlo"}})
	assert.True(t, c.wants("fdm"))
	assert.False(t, c.wants("analytic"))

	c.applyFilter(filterMsg{Action: "unsubscribe", Engines: []string{"fdm"}})
	assert.False(t, c.wants("fdm"))
	assert.True(t, c.wants("montecarlo"))

	c.applyFilter(filterMsg{Action: "reset"})
	assert.True(t, c.wants("analytic"))
}

func TestHubStopped(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte), pattern: make(chan string, 1)}
	hub := NewHub(bus, "pricing:*", slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan error, 1)
	go func() { stopped <- hub.Run(ctx) }()
	cancel()

	select {
	case err := <-stopped:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	t.Run("late registration is refused", func(t *testing.T) {
		joined := make(chan bool, 1)
		go func() { joined <- hub.join(&client{send: make(chan []byte, 1)}) }()
		select {
		case ok := <-joined:
			assert.False(t, ok)
		case <-time.After(time.Second):
			t.Fatal("join blocked after shutdown")
		}
	})

	t.Run("disconnect after shutdown returns", func(t *testing.T) {
		left := make(chan struct{})
		go func() {
			hub.leave(&client{send: make(chan []byte, 1)})
			close(left)
		}()
		select {
		case <-left:
		case <-time.After(time.Second):
			t.Fatal("leave blocked after shutdown")
		}
	})

	t.Run("upgrade after shutdown closes the connection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
		defer srv.Close()

		conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
		require.NoError(t, err)
		defer conn.Close()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

		_, _, err = conn.ReadMessage()
		require.Error(t, err)
		var netErr net.Error
		if errors.As(err, &netErr) {
			assert.False(t, netErr.Timeout(), "handler should close the connection, not hang")
		}
	})
}
