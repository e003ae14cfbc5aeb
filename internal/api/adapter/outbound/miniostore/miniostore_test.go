package miniostore

import (
	"bufio"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/pkg/framing"
	"github.com/anthanhphan/go-file-relay/pkg/iox"
	"github.com/anthanhphan/go-file-relay/pkg/resilience"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBucket = "relay"

// fakeMinIO serves the path-style object API of a single bucket, including
// multipart uploads and aws-chunked request bodies.
type fakeMinIO struct {
	mu       sync.Mutex
	objects  map[string][]byte
	uploads  map[string]map[int][]byte
	nextID   int
	modified time.Time
}

func newFakeMinIO() *fakeMinIO {
	return &fakeMinIO{
		objects:  map[string][]byte{},
		uploads:  map[string]map[int][]byte{},
		modified: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func (f *fakeMinIO) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeMinIO) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeMinIO) pendingUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func etag(data []byte) string {
	sum := md5.Sum(data)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

func writeXML(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_ = xml.NewEncoder(w).Encode(v)
}

type errorBody struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

type initiateResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

type completeResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

// readBody returns the payload of r, decoding aws-chunked framing when the
// client streamed it.
func readBody(r *http.Request) ([]byte, error) {
	if r.Header.Get("X-Amz-Decoded-Content-Length") == "" &&
		!strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}

	br := bufio.NewReader(r.Body)
	var out bytes.Buffer
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, err
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(line, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			return out.Bytes(), nil
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, err
		}
		if _, err := br.Discard(2); err != nil {
			return nil, err
		}
	}
}

func (f *fakeMinIO) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/"+testBucket+"/")
	q := r.URL.Query()

	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && q.Has("uploads"):
		f.nextID++
		id := strconv.Itoa(f.nextID)
		f.uploads[id] = map[int][]byte{}
		writeXML(w, http.StatusOK, initiateResult{Bucket: testBucket, Key: key, UploadID: id})

	case r.Method == http.MethodPut && q.Has("uploadId"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			writeXML(w, http.StatusNotFound, errorBody{Code: "NoSuchUpload"})
			return
		}
		data, err := readBody(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		n, _ := strconv.Atoi(q.Get("partNumber"))
		parts[n] = data
		w.Header().Set("ETag", etag(data))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodPost && q.Has("uploadId"):
		parts, ok := f.uploads[q.Get("uploadId")]
		if !ok {
			writeXML(w, http.StatusNotFound, errorBody{Code: "NoSuchUpload"})
			return
		}
		_, _ = io.Copy(io.Discard, r.Body)
		numbers := make([]int, 0, len(parts))
		for n := range parts {
			numbers = append(numbers, n)
		}
		sort.Ints(numbers)
		var data []byte
		for _, n := range numbers {
			data = append(data, parts[n]...)
		}
		delete(f.uploads, q.Get("uploadId"))
		f.objects[key] = data
		writeXML(w, http.StatusOK, completeResult{Bucket: testBucket, Key: key, ETag: etag(data)})

	case r.Method == http.MethodDelete && q.Has("uploadId"):
		delete(f.uploads, q.Get("uploadId"))
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodPut:
		data, err := readBody(r)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.objects[key] = data
		w.Header().Set("ETag", etag(data))
		w.WriteHeader(http.StatusOK)

	case r.Method == http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodHead, r.Method == http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			writeXML(w, http.StatusNotFound, errorBody{Code: "NoSuchKey", Message: "The specified key does not exist."})
			return
		}
		w.Header().Set("ETag", etag(data))
		w.Header().Set("Last-Modified", f.modified.Format(http.TimeFormat))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Accept-Ranges", "bytes")

		status := http.StatusOK
		body := data
		if start, end, ok := parseRange(r.Header.Get("Range"), len(data)); ok {
			status = http.StatusPartialContent
			body = data[start : end+1]
			w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// parseRange understands the "bytes=a-b" and "bytes=a-" forms.
func parseRange(header string, size int) (int, int, bool) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok || size == 0 {
		return 0, 0, false
	}
	from, to, _ := strings.Cut(spec, "-")
	start, err := strconv.Atoi(from)
	if err != nil || start >= size {
		return 0, 0, false
	}
	end := size - 1
	if to != "" {
		if e, err := strconv.Atoi(to); err == nil && e < end {
			end = e
		}
	}
	return start, end, true
}

func newFakeStorage(t *testing.T) (*Storage, *fakeMinIO) {
	t.Helper()
	fake := newFakeMinIO()
	srv := httptest.NewTLSServer(fake)
	t.Cleanup(srv.Close)

	client, err := minio.New(srv.Listener.Addr().String(), &minio.Options{
		Creds:        credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure:       true,
		Transport:    srv.Client().Transport,
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	require.NoError(t, err)
	return NewWithClient(client, Config{Bucket: testBucket, PartSize: 5 << 20, URLTTL: 30 * time.Minute}), fake
}

func TestWriteReadRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		length  func(content string) int64
		content string
	}{
		{name: "known length", length: func(c string) int64 { return int64(len(c)) }, content: strings.Repeat("minio-bytes ", 1000)},
		{name: "unknown length", length: func(string) int64 { return domain.UnknownLength }, content: strings.Repeat("streamed ", 1000)},
		{name: "empty", length: func(string) int64 { return 0 }, content: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, fake := newFakeStorage(t)
			id := uuid.New()

			require.NoError(t, store.Write(context.Background(), id, "report.csv", tt.length(tt.content), strings.NewReader(tt.content)))

			raw, ok := fake.object(id.String())
			require.True(t, ok)
			assert.Equal(t, framing.EncodedLength("report.csv", int64(len(tt.content))), int64(len(raw)))

			stream, err := store.Read(context.Background(), id)
			require.NoError(t, err)
			defer stream.Body.Close()
			assert.Equal(t, "report.csv", stream.Name)
			assert.Equal(t, int64(len(tt.content)), stream.Length)
			data, err := io.ReadAll(stream.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))

			exists, err := store.Exists(context.Background(), id)
			require.NoError(t, err)
			assert.True(t, exists)
			assert.Zero(t, fake.pendingUploads())
		})
	}
}

func TestReadUnicodeName(t *testing.T) {
	store, fake := newFakeStorage(t)
	id := uuid.New()

	var envelope bytes.Buffer
	_, err := io.Copy(&envelope, framing.Encode("ünïcode name.txt", strings.NewReader("payload")))
	require.NoError(t, err)
	fake.put(id.String(), envelope.Bytes())

	stream, err := store.Read(context.Background(), id)
	require.NoError(t, err)
	defer stream.Body.Close()
	assert.Equal(t, "ünïcode name.txt", stream.Name)
	assert.Equal(t, int64(len("payload")), stream.Length)
	data, err := io.ReadAll(stream.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestWriteLongBodyIsContentRead(t *testing.T) {
	store, fake := newFakeStorage(t)
	id := uuid.New()

	err := store.Write(context.Background(), id, "a.txt", 5, strings.NewReader("hello world"))
	assert.ErrorIs(t, err, domain.ErrContentRead)
	assert.ErrorIs(t, err, iox.ErrLongBody)
	_, stored := fake.object(id.String())
	assert.False(t, stored)
}

func TestWriteShortBodyIsContentRead(t *testing.T) {
	store, fake := newFakeStorage(t)
	id := uuid.New()

	err := store.Write(context.Background(), id, "a.txt", 10, strings.NewReader("abc"))
	assert.ErrorIs(t, err, domain.ErrContentRead)
	assert.ErrorIs(t, err, iox.ErrShortBody)
	_, stored := fake.object(id.String())
	assert.False(t, stored)
}

func TestReadMissing(t *testing.T) {
	store, _ := newFakeStorage(t)

	_, err := store.Read(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	exists, err := store.Exists(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReadCorruptedObject(t *testing.T) {
	store, fake := newFakeStorage(t)
	id := uuid.New()
	fake.put(id.String(), []byte{0, 0, 0})

	_, err := store.Read(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrCorrupted)
}

func TestNotFoundAndBodyErrorsDoNotTripBreaker(t *testing.T) {
	store, _ := newFakeStorage(t)

	for range 10 {
		_, err := store.Read(context.Background(), uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
		err = store.Write(context.Background(), uuid.New(), "a", 1, strings.NewReader("ab"))
		assert.ErrorIs(t, err, domain.ErrContentRead)
	}
	assert.Equal(t, resilience.CircuitClosed, store.breaker.State())
}

func newPresignStorage(t *testing.T) *Storage {
	t.Helper()
	client, err := minio.New("127.0.0.1:9000", &minio.Options{
		Creds:        credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Region:       "us-east-1",
		BucketLookup: minio.BucketLookupPath,
	})
	require.NoError(t, err)
	return NewWithClient(client, Config{Bucket: testBucket, URLTTL: 30 * time.Minute})
}

func TestNewWithClientDefaultsPartSize(t *testing.T) {
	s := newPresignStorage(t)
	assert.Equal(t, uint64(DefaultPartSize), s.partSize)
}

func TestUploadURL(t *testing.T) {
	s := newPresignStorage(t)
	id := uuid.New()

	raw, err := s.UploadURL(context.Background(), id, 2048)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/relay/"+id.String(), u.Path)
	q := u.Query()
	assert.Equal(t, "1800", q.Get("X-Amz-Expires"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}

func TestDownloadURLAppliesHints(t *testing.T) {
	s := newPresignStorage(t)
	id := uuid.New()

	raw, err := s.DownloadURL(context.Background(), id, domain.DownloadHints{TypeHint: "application/pdf", ExtHint: ".pdf"})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "application/pdf", q.Get("response-content-type"))
	assert.Equal(t, fmt.Sprintf("attachment; filename=%q", id.String()+".pdf"), q.Get("response-content-disposition"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
}

func TestDownloadURLDefaultsToIDName(t *testing.T) {
	s := newPresignStorage(t)
	id := uuid.New()

	raw, err := s.DownloadURL(context.Background(), id, domain.DownloadHints{})
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("response-content-type"))
	assert.Equal(t, fmt.Sprintf("attachment; filename=%q", id.String()), u.Query().Get("response-content-disposition"))
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "no such key", err: minio.ErrorResponse{Code: "NoSuchKey", StatusCode: http.StatusNotFound}, want: domain.ErrNotFound},
		{name: "not found", err: minio.ErrorResponse{Code: "NotFound", StatusCode: http.StatusNotFound}, want: domain.ErrNotFound},
		{name: "missing bucket", err: minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: http.StatusNotFound}, want: domain.ErrStorageIO},
		{name: "access denied", err: minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}, want: domain.ErrStorageIO},
		{name: "transport", err: errors.New("connection refused"), want: domain.ErrStorageIO},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, classify("minio.test", tc.err), tc.want)
		})
	}
	assert.NoError(t, classify("minio.test", nil))
}
