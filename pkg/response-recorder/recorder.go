// Package recorder provides a http.ResponseWriter wrapper that streams the
// response to the client while keeping a copy for the enforcement middleware
// to persist after the handler returns.
package recorder

import (
	"bytes"
	"net/http"

	"github.com/idemkey/idemkey/storage"
)

// Recorder wraps a http.ResponseWriter and records status and body as they
// are written through to the client.
type Recorder struct {
	rw          http.ResponseWriter
	body        *bytes.Buffer
	status      int
	wroteHeader bool
}

// New returns a Recorder writing through to w.
func New(w http.ResponseWriter) *Recorder {
	return &Recorder{
		rw:   w,
		body: &bytes.Buffer{},
	}
}

// Implementation of http.ResponseWriter
func (t *Recorder) Header() http.Header {
	return t.rw.Header()
}

// Implementation of http.ResponseWriter
func (t *Recorder) WriteHeader(statusCode int) {
	t.wroteHeader = true
	t.status = statusCode
	t.rw.WriteHeader(statusCode)
}

// Implementation of http.ResponseWriter
func (t *Recorder) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	t.rw.Write(b)
	return t.body.Write(b)
}

// Flush forwards to the underlying writer when it supports flushing, so
// streaming responses keep working through the recorder.
func (t *Recorder) Flush() {
	if f, ok := t.rw.(http.Flusher); ok {
		f.Flush()
	}
}

// StatusCode returns the status code of the recorded response. If the
// handler never wrote one, it reports http.StatusOK like net/http does.
func (t *Recorder) StatusCode() int {
	if !t.wroteHeader {
		return http.StatusOK
	}
	return t.status
}

// Snapshot returns the recorded response as a storage snapshot. Headers are
// cloned so later mutation of the writer does not leak into the snapshot.
func (t *Recorder) Snapshot() *storage.Snapshot {
	body := make([]byte, t.body.Len())
	copy(body, t.body.Bytes())
	return &storage.Snapshot{
		StatusCode: t.StatusCode(),
		Header:     t.rw.Header().Clone(),
		Body:       body,
	}
}
