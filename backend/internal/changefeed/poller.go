package changefeed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"gradepulse/backend/internal/shared"
	"gradepulse/backend/internal/syncbus"
)

// ChangeFetcher is the slice of the upstream API client the poller needs.
type ChangeFetcher interface {
	FetchChanges(ctx context.Context) ([]shared.ChangeNotification, error)
}

// Poller reads the upstream change feed on a fixed interval and fans each
// returned notification out on the sync bus. It is the fallback path for
// mutations the service did not submit itself.
type Poller struct {
	fetcher  ChangeFetcher
	bus      Publisher
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger
}

// NewPoller creates a change-feed poller. Each poll attempt is bounded by
// timeout; expiry is treated the same as any other network failure.
func NewPoller(fetcher ChangeFetcher, bus Publisher, cfg shared.ChangeFeedConfig, log *zap.Logger) *Poller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{
		fetcher:  fetcher,
		bus:      bus,
		interval: cfg.PollInterval,
		timeout:  cfg.PollTimeout,
		log:      log,
	}
}

// Run polls until ctx is cancelled. Polls never overlap: the next tick is not
// consumed until the previous attempt has finished, so a slow network cannot
// pile up concurrent requests. A failed attempt is logged and simply means no
// notifications this cycle; it never stops the loop.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("change feed poller started", zap.Duration("interval", p.interval))

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("change feed poller stopped")
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	notes, err := p.fetcher.FetchChanges(attemptCtx)
	if err != nil {
		p.log.Warn("change feed poll failed", zap.Error(err))
		return
	}

	for _, note := range notes {
		p.bus.Fanout(syncbus.FanoutChannels(), note)
	}

	if len(notes) > 0 {
		p.log.Debug("change feed poll delivered notifications", zap.Int("count", len(notes)))
	}
}
