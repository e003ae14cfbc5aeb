package localfs

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/anthanhphan/go-file-relay/internal/api/domain"
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/anthanhphan/go-file-relay/pkg/signedurl"
	"github.com/google/uuid"
)

// Issuer hands out URLs pointing at this server's signed transfer endpoints.
type Issuer struct {
	signer *signedurl.Signer
	ttl    time.Duration
}

var _ port.Issuer = (*Issuer)(nil)

func NewIssuer(signer *signedurl.Signer, ttl time.Duration) *Issuer {
	return &Issuer{signer: signer, ttl: ttl}
}

// UploadURL signs the upload path together with the permitted length.
func (i *Issuer) UploadURL(_ context.Context, id uuid.UUID, length int64) (string, error) {
	params := url.Values{}
	params.Set(domain.ParamLength, strconv.FormatInt(length, 10))

	signed, err := i.signer.Sign(domain.SignedUploadPath(id), params, i.ttl)
	if err != nil {
		return "", domain.Access("localfs.upload_url", err)
	}
	return signed, nil
}

// DownloadURL signs the download path. Hints become signed parameters so the
// endpoint can trust them when building response headers.
func (i *Issuer) DownloadURL(_ context.Context, id uuid.UUID, hints domain.DownloadHints) (string, error) {
	params := url.Values{}
	if hints.TypeHint != "" {
		params.Set(domain.ParamTypeHint, hints.TypeHint)
	}
	if hints.ExtHint != "" {
		params.Set(domain.ParamExtHint, hints.ExtHint.String())
	}

	signed, err := i.signer.Sign(domain.SignedDownloadPath(id), params, i.ttl)
	if err != nil {
		return "", domain.Access("localfs.download_url", err)
	}
	return signed, nil
}
