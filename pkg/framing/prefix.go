package framing

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

const bufferSize = 32 * 1024

// SplitPrefix reads exactly n bytes from r and returns them together with a
// reader positioned right after them. The source may deliver bytes in chunks of
// any size; whatever was buffered beyond the prefix is replayed as the head of
// rest. If r is already a *bufio.Reader it is reused rather than wrapped again.
func SplitPrefix(r io.Reader, n int64) (prefix []byte, rest io.Reader, err error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReaderSize(r, bufferSize)
	}

	prefix, err = readPrefix(br, n)
	if err != nil {
		return nil, nil, err
	}
	return prefix, br, nil
}

// readPrefix reads exactly n bytes without reading past them. The buffer grows
// with the bytes actually received, so a corrupt length cannot force a large
// allocation on its own.
func readPrefix(r io.Reader, n int64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}

	var buf bytes.Buffer
	if n <= bufferSize {
		buf.Grow(int(n))
	}

	copied, err := io.CopyN(&buf, r, n)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, copied, n)
		}
		return nil, err
	}
	return buf.Bytes(), nil
}
