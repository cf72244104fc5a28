package idemkey

import (
	"context"
	"net/http"
	"testing"

	"github.com/idemkey/idemkey/storage"
)

func TestContextAccessors(t *testing.T) {
	snap := &storage.Snapshot{StatusCode: http.StatusCreated, Body: []byte("created")}
	st := &requestState{
		key:        "b2ab44c6-ed51-4453-ab00-90779453f2b3",
		encodedKey: "deadbeef",
		exists:     true,
		prior:      snap,
	}
	ctx := newStateContext(context.Background(), st)

	if key, ok := KeyFromContext(ctx); !ok || key != st.key {
		t.Errorf("want key %q, got %q (ok %v)", st.key, key, ok)
	}
	if encoded, ok := EncodedKeyFromContext(ctx); !ok || encoded != "deadbeef" {
		t.Errorf("want encoded key %q, got %q (ok %v)", "deadbeef", encoded, ok)
	}
	if prior, exists := StoredFromContext(ctx); !exists || prior != snap {
		t.Errorf("want stored snapshot %v, got %v (exists %v)", snap, prior, exists)
	}
}

func TestContextAccessorsEmpty(t *testing.T) {
	ctx := context.Background()

	if _, ok := KeyFromContext(ctx); ok {
		t.Error("want no key on empty context")
	}
	if _, ok := EncodedKeyFromContext(ctx); ok {
		t.Error("want no encoded key on empty context")
	}
	if _, exists := StoredFromContext(ctx); exists {
		t.Error("want no stored response on empty context")
	}
}
