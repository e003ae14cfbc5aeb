package framing

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader hands out data in chunks whose sizes cycle through sizes.
type chunkedReader struct {
	data  []byte
	sizes []int
	next  int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	size := r.sizes[r.next%len(r.sizes)]
	r.next++
	if size > len(p) {
		size = len(p)
	}
	if size > len(r.data) {
		size = len(r.data)
	}
	n := copy(p, r.data[:size])
	r.data = r.data[n:]
	return n, nil
}

func encodeAll(t *testing.T, name string, content io.Reader) []byte {
	t.Helper()
	out, err := io.ReadAll(Encode(name, content))
	require.NoError(t, err)
	return out
}

func TestEncodeLayout(t *testing.T) {
	out := encodeAll(t, "a.txt", strings.NewReader("hello"))

	require.Len(t, out, 8+5+5)
	assert.Equal(t, uint64(5), binary.BigEndian.Uint64(out[:8]))
	assert.Equal(t, "a.txt", string(out[8:13]))
	assert.Equal(t, "hello", string(out[13:]))
	assert.Equal(t, int64(len(out)), EncodedLength("a.txt", 5))
	assert.Equal(t, int64(-1), EncodedLength("a.txt", -1))
}

func TestEncodeKeepsContentChunksInOrder(t *testing.T) {
	content := &chunkedReader{data: []byte("0123456789abcdef"), sizes: []int{1, 3, 7}}
	out := encodeAll(t, "n", content)
	assert.Equal(t, "0123456789abcdef", string(out[HeaderLength("n"):]))
}

func TestDecodeRoundTripAcrossChunkBoundaries(t *testing.T) {
	names := []string{"", "x", "report.pdf", "päivää 日本.txt", strings.Repeat("n", 5000)}
	contents := [][]byte{
		{},
		[]byte("z"),
		[]byte("hello world"),
		bytes.Repeat([]byte{0, 1, 2, 3, 255}, 20000),
	}
	chunkings := [][]int{{1}, {2, 3}, {7}, {8}, {9}, {4096}, {1, 1000, 13}, {100000}}

	for _, name := range names {
		for _, content := range contents {
			encoded := encodeAll(t, name, bytes.NewReader(content))
			for _, sizes := range chunkings {
				src := &chunkedReader{data: append([]byte(nil), encoded...), sizes: sizes}

				gotName, body, err := Decode(src)
				require.NoError(t, err)
				gotContent, err := io.ReadAll(body)
				require.NoError(t, err)

				assert.Equal(t, name, gotName)
				assert.True(t, bytes.Equal(content, gotContent), "content mismatch for name len %d, chunking %v", len(name), sizes)
			}
		}
	}
}

func TestDecodeWithStdlibTestReaders(t *testing.T) {
	encoded := encodeAll(t, "file.bin", strings.NewReader("payload-bytes"))

	readers := map[string]io.Reader{
		"one byte": iotest.OneByteReader(bytes.NewReader(encoded)),
		"half":     iotest.HalfReader(bytes.NewReader(encoded)),
		"data+EOF": iotest.DataErrReader(bytes.NewReader(encoded)),
	}
	for name, r := range readers {
		t.Run(name, func(t *testing.T) {
			gotName, body, err := Decode(r)
			require.NoError(t, err)
			content, err := io.ReadAll(body)
			require.NoError(t, err)
			assert.Equal(t, "file.bin", gotName)
			assert.Equal(t, "payload-bytes", string(content))
		})
	}
}

func TestDecodeReplaysReadAheadBytes(t *testing.T) {
	// The whole envelope arrives in one chunk, so the content is entirely
	// read ahead while parsing the header.
	encoded := encodeAll(t, "n.txt", strings.NewReader("over-read content"))
	src := &chunkedReader{data: encoded, sizes: []int{len(encoded)}}

	_, body, err := Decode(src)
	require.NoError(t, err)
	content, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "over-read content", string(content))
}

func TestDecodeTruncated(t *testing.T) {
	encoded := encodeAll(t, "name.txt", strings.NewReader(""))

	for _, cut := range []int{0, 1, 7, 8, 9, len(encoded) - 1} {
		_, _, err := Decode(bytes.NewReader(encoded[:cut]))
		assert.ErrorIs(t, err, ErrTruncated, "cut at %d", cut)
	}
}

func TestDecodeHugeLengthDoesNotAllocateUpFront(t *testing.T) {
	header := make([]byte, 8)
	binary.BigEndian.PutUint64(header, 1<<40)
	_, _, err := Decode(bytes.NewReader(append(header, "short"...)))
	assert.ErrorIs(t, err, ErrTruncated)

	binary.BigEndian.PutUint64(header, ^uint64(0))
	_, _, err = Decode(bytes.NewReader(header))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestDecodeInvalidUTF8Name(t *testing.T) {
	header := make([]byte, 8)
	binary.BigEndian.PutUint64(header, 2)
	raw := append(header, 0xff, 0xfe)
	raw = append(raw, "content"...)

	_, _, err := Decode(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidName)

	_, _, err = ReadHeader(bytes.NewReader(raw))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestDecodePropagatesSourceErrors(t *testing.T) {
	boom := errors.New("connection reset")
	_, _, err := Decode(iotest.ErrReader(boom))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTruncated)
}

func TestReadHeaderLeavesReaderAtContent(t *testing.T) {
	encoded := encodeAll(t, "doc.md", strings.NewReader("# title"))
	r := bytes.NewReader(encoded)

	name, size, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, "doc.md", name)
	assert.Equal(t, HeaderLength("doc.md"), size)

	rest, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "# title", string(rest))
}

func TestSplitPrefixReusesBufferedReader(t *testing.T) {
	src := &chunkedReader{data: []byte("abcdefgh"), sizes: []int{3}}

	first, rest, err := SplitPrefix(src, 2)
	require.NoError(t, err)
	second, rest2, err := SplitPrefix(rest, 2)
	require.NoError(t, err)
	tail, err := io.ReadAll(rest2)
	require.NoError(t, err)

	assert.Equal(t, "ab", string(first))
	assert.Equal(t, "cd", string(second))
	assert.Equal(t, "efgh", string(tail))
	assert.Same(t, rest, rest2)
}

func TestIsMalformed(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte{0, 0}))
	assert.True(t, IsMalformed(err))
	assert.True(t, IsMalformed(fmt.Errorf("read: %w", ErrInvalidName)))
	assert.False(t, IsMalformed(errors.New("connection reset")))
	assert.False(t, IsMalformed(nil))
}
