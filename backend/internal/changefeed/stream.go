package changefeed

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

const (
	streamInitialBackoff = time.Second
	streamMaxBackoff     = 30 * time.Second
)

// StreamSource is the push-based change transport: a long-lived websocket
// carrying JSON ChangeNotification frames. Consumers on the sync bus see
// exactly the same fan-out as with the poller.
type StreamSource struct {
	url string
	bus Publisher
	log *zap.Logger
}

// NewStreamSource creates a websocket change source for the given ws:// or
// wss:// URL.
func NewStreamSource(url string, bus Publisher, log *zap.Logger) *StreamSource {
	if log == nil {
		log = zap.NewNop()
	}
	return &StreamSource{url: url, bus: bus, log: log}
}

// Run maintains the websocket until ctx is cancelled, reconnecting with a
// capped backoff after any connection or read failure.
func (s *StreamSource) Run(ctx context.Context) error {
	s.log.Info("change feed stream started", zap.String("url", s.url))

	backoff := streamInitialBackoff
	for {
		if err := ctx.Err(); err != nil {
			s.log.Info("change feed stream stopped")
			return err
		}

		if s.readLoop(ctx) {
			// Clean read cycle before disconnect; reset the backoff.
			backoff = streamInitialBackoff
		}

		select {
		case <-ctx.Done():
			s.log.Info("change feed stream stopped")
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamMaxBackoff {
			backoff = streamMaxBackoff
		}
	}
}

// readLoop dials once and reads frames until the connection drops. It
// reports whether at least one frame was delivered on this connection.
func (s *StreamSource) readLoop(ctx context.Context) bool {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.log.Warn("change feed stream dial failed", zap.Error(err))
		return false
	}
	defer conn.Close()

	// Unblock ReadJSON when ctx is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	delivered := false
	for {
		var note shared.ChangeNotification
		if err := conn.ReadJSON(&note); err != nil {
			if ctx.Err() == nil {
				s.log.Warn("change feed stream read failed", zap.Error(err))
			}
			return delivered
		}
		if !shared.IsValidAction(note.Action) {
			s.log.Debug("dropping stream notification with unknown action", zap.String("action", note.Action))
			continue
		}
		s.bus.Fanout(syncbus.FanoutChannels(), note)
		delivered = true
	}
}
