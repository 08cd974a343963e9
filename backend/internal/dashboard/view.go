// ============================================================================
// backend/internal/dashboard/view.go
// Generic view binding: fetch-and-aggregate on open, re-run on sync bus
// notifications, discard late results after close.
// ============================================================================

package dashboard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

// Status is a view's presentation state.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// RefreshFunc runs one fetch-and-aggregate cycle and returns the view's
// derived state.
type RefreshFunc[T any] func(ctx context.Context) (T, error)

// Snapshot is the externally visible state of a view at one instant.
type Snapshot[T any] struct {
	Status    Status    `json:"status"`
	Data      T         `json:"data"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// View binds a derived dashboard state to the sync bus. On Open it runs an
// initial refresh and subscribes to its channel; every notification re-runs
// the fetch-and-aggregate cycle; Close unsubscribes and causes any still
// outstanding refresh to be discarded.
//
// Refreshes triggered by concurrent notifications may complete in any order;
// a generation counter makes the view keep only the newest cycle's result, so
// a render may be transiently stale but converges on the next successful
// fetch.
type View[T any] struct {
	name    string
	channel string
	bus     *syncbus.Bus
	refresh RefreshFunc[T]
	log     *zap.Logger

	mu          sync.Mutex
	generation  uint64
	closed      bool
	unsubscribe func()

	data      T
	hasData   bool
	loading   bool
	lastErr   error
	updatedAt time.Time
}

// NewView creates an unopened view.
func NewView[T any](name, channel string, bus *syncbus.Bus, log *zap.Logger, refresh RefreshFunc[T]) *View[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &View[T]{
		name:    name,
		channel: channel,
		bus:     bus,
		refresh: refresh,
		log:     log.With(zap.String("view", name)),
	}
}

// Open subscribes the view to its sync channel and runs the initial refresh
// synchronously.
func (v *View[T]) Open(ctx context.Context) {
	v.mu.Lock()
	if v.closed || v.unsubscribe != nil {
		v.mu.Unlock()
		return
	}
	v.unsubscribe = v.bus.Subscribe(v.channel, v.onNotification)
	v.mu.Unlock()

	v.Refresh(ctx)
}

// onNotification re-runs the fetch-and-aggregate cycle. The bus invokes
// handlers synchronously, so the actual work moves to a goroutine; the
// resulting network requests from different notifications run concurrently
// with no completion-order guarantee, which the generation counter absorbs.
func (v *View[T]) onNotification(note shared.ChangeNotification) {
	v.log.Debug("change notification received",
		zap.String("action", note.Action),
		zap.String("student_id", note.StudentID),
		zap.String("subject", note.SubjectName),
	)
	go v.Refresh(context.Background())
}

// Refresh runs one fetch-and-aggregate cycle. A cycle that finishes after the
// view closed, or after a newer cycle started, is silently discarded: its
// result is never applied and never surfaces as an error. On failure the
// previous data is kept (stale but renderable) alongside the error state.
func (v *View[T]) Refresh(ctx context.Context) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.generation++
	gen := v.generation
	v.loading = true
	v.mu.Unlock()

	data, err := v.refresh(ctx)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.generation {
		return
	}
	v.loading = false
	v.updatedAt = time.Now().UTC()
	if err != nil {
		v.lastErr = err
		v.log.Warn("view refresh failed", zap.Error(err))
		return
	}
	v.lastErr = nil
	v.data = data
	v.hasData = true
}

// Snapshot returns the view's current presentation state.
func (v *View[T]) Snapshot() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()

	snap := Snapshot[T]{
		Data:      v.data,
		UpdatedAt: v.updatedAt,
	}
	switch {
	case v.lastErr != nil:
		snap.Status = StatusError
		snap.Error = v.lastErr.Error()
	case v.loading && !v.hasData:
		snap.Status = StatusLoading
	case v.hasData:
		snap.Status = StatusReady
	default:
		snap.Status = StatusLoading
	}
	return snap
}

// Close unsubscribes the view. Any refresh still in flight is discarded when
// it resolves; no state is applied after Close returns.
func (v *View[T]) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	unsub := v.unsubscribe
	v.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
