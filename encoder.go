package idemkey

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
)

// Encoder derives the storage key for a request from the raw client token.
//
// Contract:
//   - Determinism: identical inputs must produce the identical key.
//   - The key must not depend on response content.
//   - Implementations must be safe for concurrent use.
//
// Encoder errors are treated as internal errors, they are not expected to be
// recoverable.
type Encoder interface {
	Encode(r *http.Request, key string) (string, error)
}

// DefaultEncoder derives keys by hashing the request method, the request
// URI and the client token with SHA-256. Two clients sending the same token
// to different endpoints therefore get distinct storage keys.
type DefaultEncoder struct{}

func (DefaultEncoder) Encode(r *http.Request, key string) (string, error) {
	h := sha256.New()
	io.WriteString(h, r.Method)
	io.WriteString(h, ":")
	io.WriteString(h, r.URL.RequestURI())
	io.WriteString(h, ":")
	io.WriteString(h, key)
	return hex.EncodeToString(h.Sum(nil)), nil
}
