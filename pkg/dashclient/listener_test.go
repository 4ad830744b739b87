package dashclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/logs"
}

func TestListenerAppliesPushedEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		conn.WriteJSON(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusRunning, Progress: 50})
		conn.WriteJSON(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusCompleted, Progress: 100})

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	view := NewView("wink-sync")
	view.Track("wink-sync", "job-1", domain.JobStatusPending)

	terminal := make(chan struct{})
	listener := NewListener(wsURL(srv), view).WithRetryDelay(10 * time.Millisecond)
	listener.OnEvent = func(event domain.StatusEvent) {
		if event.Status.IsTerminal() {
			close(terminal)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	select {
	case <-terminal:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}

	row, _ := view.Row("wink-sync")
	assert.Equal(t, domain.JobStatusCompleted, row.Status)
	assert.Equal(t, 100, row.Progress)
}

func TestListenerReconnectsAfterDrop(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		n := connections.Add(1)
		if n == 1 {
			// First connection dies immediately, simulating a backend restart.
			conn.Close()
			return
		}
		defer conn.Close()
		conn.WriteJSON(domain.StatusEvent{JobID: "job-1", Status: domain.JobStatusRunning, Progress: 25})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	view := NewView("wink-sync")
	view.Track("wink-sync", "job-1", domain.JobStatusPending)

	got := make(chan struct{})
	listener := NewListener(wsURL(srv), view).WithRetryDelay(10 * time.Millisecond)
	listener.OnEvent = func(domain.StatusEvent) { close(got) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go listener.Run(ctx)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event after reconnect")
	}

	assert.GreaterOrEqual(t, connections.Load(), int32(2))
	row, _ := view.Row("wink-sync")
	assert.Equal(t, 25, row.Progress)
}

func TestListenerKeepsRetryingWhileUnreachable(t *testing.T) {
	// No server at all; Run must keep retrying until cancelled instead of
	// returning an error.
	view := NewView("wink-sync")
	listener := NewListener("ws://127.0.0.1:1/ws/logs", view).WithRetryDelay(5 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := listener.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
