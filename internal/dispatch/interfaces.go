package dispatch

//go:generate mockgen -source=interfaces.go -destination=../mock/syncer_mock.go -package=mock

import (
	"context"

	"github.com/dshills/lspbridge/internal/session"
)

// Syncer pushes buffer snapshots to the language backend.
type Syncer interface {
	FullSync(ctx context.Context, snap session.Snapshot) error

	// PartialSync sends only the snapshot's current line. It returns
	// session.ErrFullSyncRequired when the backend needs the whole buffer.
	PartialSync(ctx context.Context, snap session.Snapshot) error
}
