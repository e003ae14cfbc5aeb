package iox

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrShortBody is returned when a stream ends before its declared length.
	ErrShortBody = errors.New("iox: body ended before the declared length")

	// ErrLongBody is returned when a stream continues past its declared length.
	ErrLongBody = errors.New("iox: body exceeds the declared length")
)

type exactReader struct {
	r         io.Reader
	declared  int64
	remaining int64
	// tail is the outcome of reading past the declared length, once known.
	tail error
}

// RequireLength returns a reader yielding exactly n bytes of r. It fails with
// ErrShortBody if r ends early and with ErrLongBody if r holds more than n
// bytes. The overflow is detected on the read that completes the n bytes, so
// consumers that stop at n still see the error.
func RequireLength(r io.Reader, n int64) io.Reader {
	return &exactReader{r: r, declared: n, remaining: n}
}

func (e *exactReader) Read(p []byte) (int, error) {
	if e.remaining <= 0 {
		return 0, e.checkEnd()
	}
	if int64(len(p)) > e.remaining {
		p = p[:e.remaining]
	}
	n, err := e.r.Read(p)
	e.remaining -= int64(n)
	switch {
	case err == io.EOF && e.remaining > 0:
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortBody, e.declared-e.remaining, e.declared)
	case err == nil && e.remaining == 0:
		if end := e.checkEnd(); end != io.EOF {
			return n, end
		}
	}
	return n, err
}

// checkEnd reads one byte past the declared length. io.EOF means the body
// ended where it should.
func (e *exactReader) checkEnd() error {
	if e.tail != nil {
		return e.tail
	}
	var b [1]byte
	_, err := io.ReadAtLeast(e.r, b[:], 1)
	switch {
	case err == nil:
		e.tail = fmt.Errorf("%w: more than %d bytes", ErrLongBody, e.declared)
	case errors.Is(err, io.EOF):
		e.tail = io.EOF
	default:
		e.tail = err
	}
	return e.tail
}
