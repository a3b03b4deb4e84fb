package engine

import (
	"context"

	"achievekit/core"
)

// SnapshotStore persists full per-save snapshots. Save must write the
// document atomically; Load returns ok=false when the save has no state yet.
// Implementations are expected to isolate per-entry corruption: a snapshot
// with some entries dropped is preferable to a failed load.
type SnapshotStore interface {
	Save(ctx context.Context, save core.SaveID, snap core.Snapshot) error
	Load(ctx context.Context, save core.SaveID) (core.Snapshot, bool, error)
}

// RewardGranter applies a reward manifest. The engine decides what and when
// to grant; how balances are stored is the granter's concern. Grants may be
// retried after a crash, keyed by source, so granters should be idempotent
// per (save, source).
type RewardGranter interface {
	Grant(ctx context.Context, save core.SaveID, source string, m core.Manifest) error
}

// GranterFunc adapts a function to the RewardGranter interface.
type GranterFunc func(ctx context.Context, save core.SaveID, source string, m core.Manifest) error

func (f GranterFunc) Grant(ctx context.Context, save core.SaveID, source string, m core.Manifest) error {
	return f(ctx, save, source, m)
}
