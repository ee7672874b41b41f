package port

import (
	"context"

	"github.com/rl1809/roomsync/internal/core/domain"
)

type IdentityRepository interface {
	// CreateIdentity persists a new identity
	CreateIdentity(ctx context.Context, identity domain.Identity) error

	// GetIdentity retrieves an identity by ID, returns nil if it does not exist
	GetIdentity(ctx context.Context, id string) (*domain.Identity, error)
}
