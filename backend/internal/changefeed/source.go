// Package changefeed delivers upstream grade mutations to the sync bus.
//
// The bus contract is transport-agnostic: consumers subscribe to channels and
// never learn whether a notification came from a local mutation, the polled
// change feed, or a push stream. Source is the seam that lets the transport
// be upgraded without touching consumers.
package changefeed

import (
	"context"

	"gradepulse/backend/internal/shared"
)

// Source feeds ChangeNotifications to the sync bus until ctx is cancelled.
// Run only returns the ctx error; transport failures are handled internally
// and never terminate the source.
type Source interface {
	Run(ctx context.Context) error
}

// Publisher is the slice of the sync bus a source needs.
type Publisher interface {
	Fanout(channels []string, note shared.ChangeNotification)
}
