package port

import "github.com/google/uuid"

//go:generate mockgen -destination=../service/mocks/ids_mock.go -package=mocks -source=ids.go

// IDGenerator mints identifiers for new files.
type IDGenerator interface {
	NewID() (uuid.UUID, error)
}
