package port

import "context"

// Blocklist decides whether a client address may use the service.
type Blocklist interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
}
