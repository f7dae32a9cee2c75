package state

import "context"

// Store is a small durable key/value surface used for the command journal
// and operational bookkeeping. Engine state never lives here; every tick
// rebuilds from fresh snapshots.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
