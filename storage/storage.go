// Package storage provides the response stores the enforcement middleware
// persists response snapshots to and replays them from.
package storage

import (
	"context"
	"net/http"
)

// Snapshot is the stored copy of a response, carrying everything needed for
// an exact replay.
type Snapshot struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Storage is the contract for response store backends.
//
// Implementations must be safe for concurrent use. A key is meaningfully
// written at most once per logical operation: concurrent writers are
// serialized by the middleware's single-flight lock, not by the store.
// Backends only need to guarantee read-after-write visibility within the
// process holding the lock. Lifecycle and eviction of entries is entirely
// the backend's business.
type Storage interface {
	// Retrieve returns the snapshot stored under key, if one exists.
	Retrieve(ctx context.Context, key string) (*Snapshot, bool, error)
	// Store persists the snapshot under key.
	Store(ctx context.Context, key string, snap *Snapshot) error
}
