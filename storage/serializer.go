package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// snapshotToBytes serializes a snapshot using the HTTP/1.1 response wire
// format, so stored entries stay readable with standard tooling.
func snapshotToBytes(snap *Snapshot) ([]byte, error) {
	res := &http.Response{
		StatusCode:    snap.StatusCode,
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        snap.Header,
		Body:          io.NopCloser(bytes.NewReader(snap.Body)),
		ContentLength: int64(len(snap.Body)),
	}
	buf := &bytes.Buffer{}
	if err := res.Write(buf); err != nil {
		return nil, fmt.Errorf("could not serialize response snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// bytesToSnapshot reads a snapshot back from its wire format.
func bytesToSnapshot(b []byte) (*Snapshot, error) {
	res, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(b)), nil)
	if err != nil {
		return nil, fmt.Errorf("could not read stored response: %w", err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read stored response body: %w", err)
	}
	return &Snapshot{
		StatusCode: res.StatusCode,
		Header:     res.Header,
		Body:       body,
	}, nil
}
