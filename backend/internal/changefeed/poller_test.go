package changefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradepulse/backend/internal/shared"
)

// fakeFetcher returns one queued batch per call, then empty batches.
type fakeFetcher struct {
	mu      sync.Mutex
	batches [][]shared.ChangeNotification
	errs    []error
	calls   int
	active  int
	overlap bool
}

func (f *fakeFetcher) FetchChanges(ctx context.Context) ([]shared.ChangeNotification, error) {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	f.calls++
	var batch []shared.ChangeNotification
	var err error
	if len(f.batches) > 0 {
		batch = f.batches[0]
		f.batches = f.batches[1:]
	}
	if len(f.errs) > 0 {
		err = f.errs[0]
		f.errs = f.errs[1:]
	}
	f.mu.Unlock()

	// Hold the attempt open briefly so an overlapping tick would be caught.
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.active--
	f.mu.Unlock()
	return batch, err
}

type recordingPublisher struct {
	mu    sync.Mutex
	notes []shared.ChangeNotification
}

func (p *recordingPublisher) Fanout(channels []string, note shared.ChangeNotification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, note)
}

func (p *recordingPublisher) snapshot() []shared.ChangeNotification {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]shared.ChangeNotification, len(p.notes))
	copy(out, p.notes)
	return out
}

func pollerConfig() shared.ChangeFeedConfig {
	return shared.ChangeFeedConfig{
		Transport:    "poll",
		PollInterval: 10 * time.Millisecond,
		PollTimeout:  50 * time.Millisecond,
	}
}

func TestPollerDeliversNotifications(t *testing.T) {
	fetcher := &fakeFetcher{
		batches: [][]shared.ChangeNotification{
			{
				{StudentID: "s1", SubjectName: "Math", Action: shared.ActionUpdate},
				{StudentID: "s2", SubjectName: "Science", Action: shared.ActionCreate},
			},
		},
	}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, pollerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)

	notes := pub.snapshot()
	assert.Equal(t, "s1", notes[0].StudentID)
	assert.Equal(t, "s2", notes[1].StudentID)
}

func TestPollerSurvivesFetchFailure(t *testing.T) {
	fetcher := &fakeFetcher{
		errs: []error{errors.New("upstream down")},
		batches: [][]shared.ChangeNotification{
			nil, // consumed alongside the error
			{{StudentID: "s1", SubjectName: "Math", Action: shared.ActionUpdate}},
		},
	}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, pollerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = poller.Run(ctx) }()

	// The failed first attempt must not stop the loop; the second batch
	// still arrives.
	require.Eventually(t, func() bool {
		return len(pub.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPollerAttemptsNeverOverlap(t *testing.T) {
	fetcher := &fakeFetcher{}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, pollerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = poller.Run(ctx) }()

	require.Eventually(t, func() bool {
		fetcher.mu.Lock()
		defer fetcher.mu.Unlock()
		return fetcher.calls >= 5
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.False(t, fetcher.overlap, "poll attempts must run one at a time")
}

func TestPollerStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{}
	pub := &recordingPublisher{}
	poller := NewPoller(fetcher, pub, pollerConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop after cancel")
	}
}
