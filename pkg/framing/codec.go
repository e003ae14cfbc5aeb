// Package framing implements the self-describing envelope used for stored files:
// an 8-byte big-endian name length, the UTF-8 file name, then the raw content.
package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// HeaderSize is the size of the length prefix.
const HeaderSize = 8

var (
	// ErrTruncated means the stream ended before the header was complete.
	ErrTruncated = errors.New("framing: stream ended inside the envelope header")
	// ErrInvalidName means the stored file name is not valid UTF-8.
	ErrInvalidName = errors.New("framing: file name is not valid UTF-8")
	// ErrInvalidLength means the length prefix cannot describe a real name.
	ErrInvalidLength = errors.New("framing: file name length out of range")
)

// Encode returns a lazy reader producing the envelope for name followed by every
// byte of content, in order. Only the header is held in memory.
func Encode(name string, content io.Reader) io.Reader {
	header := make([]byte, HeaderSize+len(name))
	binary.BigEndian.PutUint64(header, uint64(len(name)))
	copy(header[HeaderSize:], name)
	return io.MultiReader(bytes.NewReader(header), content)
}

// EncodedLength is the envelope size for a content of contentLength bytes, or -1
// when the content length is unknown.
func EncodedLength(name string, contentLength int64) int64 {
	if contentLength < 0 {
		return -1
	}
	return contentLength + HeaderLength(name)
}

// HeaderLength is the number of bytes preceding the content for name.
func HeaderLength(name string) int64 {
	return HeaderSize + int64(len(name))
}

// Decode consumes the envelope header from r and returns the file name and the
// content stream. Bytes read ahead while parsing the header are part of content.
func Decode(r io.Reader) (string, io.Reader, error) {
	lengthBytes, rest, err := SplitPrefix(r, HeaderSize)
	if err != nil {
		return "", nil, err
	}

	n, err := nameLength(lengthBytes)
	if err != nil {
		return "", nil, err
	}

	nameBytes, rest, err := SplitPrefix(rest, n)
	if err != nil {
		return "", nil, err
	}
	if !utf8.Valid(nameBytes) {
		return "", nil, ErrInvalidName
	}
	return string(nameBytes), rest, nil
}

// ReadHeader reads the envelope header from r without consuming any content,
// leaving r positioned at the first content byte. It returns the file name and
// the header size.
func ReadHeader(r io.Reader) (string, int64, error) {
	lengthBytes, err := readPrefix(r, HeaderSize)
	if err != nil {
		return "", 0, err
	}

	n, err := nameLength(lengthBytes)
	if err != nil {
		return "", 0, err
	}

	nameBytes, err := readPrefix(r, n)
	if err != nil {
		return "", 0, err
	}
	if !utf8.Valid(nameBytes) {
		return "", 0, ErrInvalidName
	}
	return string(nameBytes), HeaderSize + n, nil
}

func nameLength(b []byte) (int64, error) {
	n := binary.BigEndian.Uint64(b)
	if n > math.MaxInt64-HeaderSize {
		return 0, fmt.Errorf("%w: %d", ErrInvalidLength, n)
	}
	return int64(n), nil
}

// IsMalformed reports whether err describes a broken envelope rather than a
// failure of the underlying reader.
func IsMalformed(err error) bool {
	return errors.Is(err, ErrTruncated) ||
		errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidLength)
}
