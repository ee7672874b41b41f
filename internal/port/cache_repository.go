package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
	// ReleaseIdempotency drops a claimed key so the request can be retried.
	ReleaseIdempotency(ctx context.Context, key string) error
}
