// Package signedurl issues and verifies HMAC-authorized URLs that point back at
// this server's own endpoints.
package signedurl

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Query parameters appended by Sign.
const (
	ParamExpires   = "expires"
	ParamSignature = "signature"
)

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 16

var (
	ErrSecretTooShort     = fmt.Errorf("signedurl: secret must be at least %d bytes", MinSecretLength)
	ErrMissingSignature   = errors.New("signedurl: signature or expiry parameter missing")
	ErrMalformedSignature = errors.New("signedurl: signature or expiry parameter malformed")
	ErrInvalidSignature   = errors.New("signedurl: signature does not match")
	ErrExpired            = errors.New("signedurl: url has expired")
)

// Signer signs and verifies URLs with a process-wide secret. It is safe for
// concurrent use.
type Signer struct {
	key     []byte
	baseURL string
	now     func() time.Time
}

// Option customizes a Signer.
type Option func(*Signer)

// WithClock replaces the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a Signer. baseURL is prepended to signed paths, e.g.
// "https://files.example.com"; it may be empty for relative URLs.
func NewSigner(secret []byte, baseURL string, opts ...Option) (*Signer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}

	s := &Signer{
		key:     append([]byte(nil), secret...),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Sign returns baseURL+path with params, an expiry ttl from now and the
// signature appended as query parameters.
func (s *Signer) Sign(path string, params url.Values, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("signedurl: ttl must be positive, got %s", ttl)
	}
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("signedurl: path %q must be absolute", path)
	}

	query := url.Values{}
	for k, vs := range params {
		if k == ParamSignature || k == ParamExpires {
			return "", fmt.Errorf("signedurl: parameter %q is reserved", k)
		}
		query[k] = append([]string(nil), vs...)
	}
	query.Set(ParamExpires, strconv.FormatInt(s.now().Add(ttl).Unix(), 10))
	query.Set(ParamSignature, hex.EncodeToString(s.mac(path, query)))

	return s.baseURL + path + "?" + query.Encode(), nil
}

// Verify checks a request's path and query. Unsigned requests are rejected.
func (s *Signer) Verify(path string, query url.Values) error {
	sigValues, ok := query[ParamSignature]
	if !ok || len(sigValues) == 0 || sigValues[0] == "" {
		return ErrMissingSignature
	}
	expValues, ok := query[ParamExpires]
	if !ok || len(expValues) == 0 || expValues[0] == "" {
		return ErrMissingSignature
	}
	if len(sigValues) > 1 || len(expValues) > 1 {
		return ErrMalformedSignature
	}

	given, err := hex.DecodeString(sigValues[0])
	if err != nil || len(given) != sha256.Size {
		return ErrMalformedSignature
	}
	expires, err := strconv.ParseInt(expValues[0], 10, 64)
	if err != nil {
		return ErrMalformedSignature
	}

	if !hmac.Equal(given, s.mac(path, query)) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > expires {
		return ErrExpired
	}
	return nil
}

// mac covers the path and every query parameter except the signature itself.
// url.Values.Encode sorts by key, which makes the message canonical.
func (s *Signer) mac(path string, query url.Values) []byte {
	signed := url.Values{}
	for k, vs := range query {
		if k == ParamSignature {
			continue
		}
		signed[k] = vs
	}

	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(path))
	h.Write([]byte{'?'})
	h.Write([]byte(signed.Encode()))
	return h.Sum(nil)
}
