package storage

import (
	"context"
	"net/http"
	"testing"
)

func TestMemoryRetrieveMiss(t *testing.T) {
	store := NewMemory()

	snap, exists, err := store.Retrieve(context.Background(), "nope")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if exists || snap != nil {
		t.Errorf("want miss, got exists %v snapshot %v", exists, snap)
	}
}

func TestMemoryStoreRetrieve(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	in := &Snapshot{
		StatusCode: http.StatusCreated,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       []byte(`{"id":1}`),
	}

	if err := store.Store(ctx, "key-1", in); err != nil {
		t.Fatalf("store: %v", err)
	}

	out, exists, err := store.Retrieve(ctx, "key-1")
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if !exists {
		t.Fatal("want stored snapshot to exist")
	}
	if out.StatusCode != in.StatusCode {
		t.Errorf("want status %d, got %d", in.StatusCode, out.StatusCode)
	}
	if string(out.Body) != string(in.Body) {
		t.Errorf("want body %q, got %q", in.Body, out.Body)
	}
	if ct := out.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("want content type preserved, got %q", ct)
	}
}
