package domain

import "github.com/google/uuid"

// Query parameters shared by the issuance routes and the local signed endpoints.
const (
	ParamLength   = "length"
	ParamTypeHint = "type_hint"
	ParamExtHint  = "ext_hint"
)

// Route prefixes served for locally signed transfers.
const (
	SignedUploadPrefix   = "/signed/upload/"
	SignedDownloadPrefix = "/signed/download/"
)

func SignedUploadPath(id uuid.UUID) string { return SignedUploadPrefix + id.String() }

func SignedDownloadPath(id uuid.UUID) string { return SignedDownloadPrefix + id.String() }
