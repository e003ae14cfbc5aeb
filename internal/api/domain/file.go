package domain

import (
	"io"

	"github.com/anthanhphan/go-file-relay/pkg/fileext"
	"github.com/google/uuid"
)

// UnknownLength marks a content length the backend could not report.
const UnknownLength int64 = -1

// FileStream is an opened stored file.
type FileStream struct {
	Name string
	// Length is the content length in bytes, or UnknownLength.
	Length int64
	Body   io.ReadCloser
}

// DownloadHints are advisory response overrides for issued download URLs.
type DownloadHints struct {
	// TypeHint is a validated MIME type, empty when absent.
	TypeHint string
	ExtHint  fileext.Ext
}

// UploadHandle is returned by the issuance model for uploads.
type UploadHandle struct {
	URL  string    `json:"url"`
	UUID uuid.UUID `json:"uuid"`
}

// DownloadHandle is returned by the issuance model for downloads.
type DownloadHandle struct {
	URL string `json:"url"`
}

// AttachmentName is the file name suggested to clients downloading id with the
// given extension hint.
func AttachmentName(id uuid.UUID, ext fileext.Ext) string {
	return id.String() + ext.String()
}
