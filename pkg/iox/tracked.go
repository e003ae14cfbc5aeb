// Package iox holds small reader helpers shared by the storage backends.
package iox

import (
	"context"
	"io"
)

// TrackedReader records the first error returned by the wrapped reader, so a
// failed copy can be blamed on the source or on the destination. Reads fail
// with the context error once ctx is done.
type TrackedReader struct {
	ctx context.Context
	r   io.Reader
	err error
}

func NewTrackedReader(ctx context.Context, r io.Reader) *TrackedReader {
	return &TrackedReader{ctx: ctx, r: r}
}

func (t *TrackedReader) Read(p []byte) (int, error) {
	if t.err != nil {
		return 0, t.err
	}
	if err := t.ctx.Err(); err != nil {
		t.err = err
		return 0, err
	}
	n, err := t.r.Read(p)
	if err != nil && err != io.EOF {
		t.err = err
	}
	return n, err
}

// Err is the source failure, or nil if the source only ever returned data or EOF.
func (t *TrackedReader) Err() error { return t.err }

type readCloser struct {
	io.Reader
	io.Closer
}

// WithCloser pairs r with the closer of the stream it was derived from.
func WithCloser(r io.Reader, c io.Closer) io.ReadCloser {
	return readCloser{Reader: r, Closer: c}
}
