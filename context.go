package idemkey

import (
	"context"

	"github.com/idemkey/idemkey/storage"
)

type contextKey string

// stateContextKey defines which key to use for context.Context.
var stateContextKey contextKey = "idemkey-state"

// requestState is the per-request bag of derived enforcement state. It is
// created by the outer middleware stage and mutated in place by the routed
// stage, so its lifetime is exactly the request's.
type requestState struct {
	// key is the raw client-supplied token, empty if the header was absent.
	key        string
	encodedKey string

	exempt bool
	manual bool
	// done records that the routed stage ran. The outer stage checks it
	// after the handler returns and panics if it is still false.
	done bool

	// exists and prior are populated before a manual-mode handler runs so
	// it can decide about duplicates itself.
	exists bool
	prior  *storage.Snapshot
}

func newStateContext(ctx context.Context, st *requestState) context.Context {
	return context.WithValue(ctx, stateContextKey, st)
}

func stateFromContext(ctx context.Context) (*requestState, bool) {
	st, ok := ctx.Value(stateContextKey).(*requestState)
	return st, ok
}

// KeyFromContext returns the raw Idempotency-Key header value captured for
// the request, if any.
func KeyFromContext(ctx context.Context) (string, bool) {
	st, ok := stateFromContext(ctx)
	if !ok || st.key == "" {
		return "", false
	}
	return st.key, true
}

// EncodedKeyFromContext returns the encoded storage key computed for the
// request. It is only set once the routed stage has decided the request is
// enforced.
func EncodedKeyFromContext(ctx context.Context) (string, bool) {
	st, ok := stateFromContext(ctx)
	if !ok || st.encodedKey == "" {
		return "", false
	}
	return st.encodedKey, true
}

// StoredFromContext returns the previously stored response for the request's
// encoded key, along with whether one exists. It is populated before
// manual-mode handlers run, handing the duplicate decision to them.
func StoredFromContext(ctx context.Context) (*storage.Snapshot, bool) {
	st, ok := stateFromContext(ctx)
	if !ok {
		return nil, false
	}
	return st.prior, st.exists
}
