package service

import (
	"github.com/anthanhphan/go-file-relay/internal/api/port"
	"github.com/google/uuid"
)

// RandomIDGenerator mints random (version 4) UUIDs.
type RandomIDGenerator struct{}

var _ port.IDGenerator = RandomIDGenerator{}

func (RandomIDGenerator) NewID() (uuid.UUID, error) {
	return uuid.NewRandom()
}
