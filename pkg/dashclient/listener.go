package dashclient

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eyewearops/syncdeck/internal/core/domain"
)

// DefaultRetryDelay is the fixed pause between reconnection attempts.
const DefaultRetryDelay = 3 * time.Second

// Listener consumes the backend's status stream and reconciles each event
// into the View. A dropped connection is retried forever at a fixed delay;
// the dashboard stays up through backend restarts and catches up when the
// stream returns.
type Listener struct {
	url        string
	view       *View
	dialer     *websocket.Dialer
	retryDelay time.Duration

	// OnEvent, when set, observes every applied event.
	OnEvent func(domain.StatusEvent)
}

// NewListener builds a listener for the ws/logs endpoint,
// e.g. "ws://localhost:8080/ws/logs".
func NewListener(url string, view *View) *Listener {
	return &Listener{
		url:        url,
		view:       view,
		dialer:     websocket.DefaultDialer,
		retryDelay: DefaultRetryDelay,
	}
}

// WithRetryDelay overrides the fixed reconnect delay.
func (l *Listener) WithRetryDelay(d time.Duration) *Listener {
	l.retryDelay = d
	return l
}

// Run connects and consumes events until the context is cancelled. Dial and
// read failures both fall through to the same fixed-delay retry.
func (l *Listener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
		if err != nil {
			if !l.wait(ctx) {
				return ctx.Err()
			}
			continue
		}

		l.consume(ctx, conn)
		conn.Close()

		if !l.wait(ctx) {
			return ctx.Err()
		}
	}
}

// consume reads events until the connection or context dies.
func (l *Listener) consume(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	for {
		var event domain.StatusEvent
		if err := conn.ReadJSON(&event); err != nil {
			return
		}
		if l.view.Apply(event) && l.OnEvent != nil {
			l.OnEvent(event)
		}
	}
}

func (l *Listener) wait(ctx context.Context) bool {
	select {
	case <-time.After(l.retryDelay):
		return true
	case <-ctx.Done():
		return false
	}
}
