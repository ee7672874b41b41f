package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/port"
)

type IdentityService struct {
	identities port.IdentityRepository
	newID      func() string
	now        func() time.Time
}

func NewIdentityService(identities port.IdentityRepository) *IdentityService {
	return &IdentityService{
		identities: identities,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

func (s *IdentityService) CreateIdentity(ctx context.Context, info domain.ContactInfo) (domain.Identity, error) {
	identity, err := domain.NewIdentity(s.newID(), info, s.now().UTC())
	if err != nil {
		return domain.Identity{}, err
	}

	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return domain.Identity{}, fmt.Errorf("create identity: %w", err)
	}

	return identity, nil
}

func (s *IdentityService) GetIdentity(ctx context.Context, id string) (domain.Identity, error) {
	identity, err := s.lookup(ctx, id)
	if err != nil {
		return domain.Identity{}, err
	}
	if identity == nil {
		return domain.Identity{}, fmt.Errorf("identity %s: %w", id, domain.ErrNotFound)
	}
	return *identity, nil
}

// ResolveIdentity returns the stored identity for existingID when it still
// resolves, ignoring info. Otherwise a new identity is created from info.
func (s *IdentityService) ResolveIdentity(ctx context.Context, info domain.ContactInfo, existingID string) (domain.Identity, error) {
	if existingID != "" {
		identity, err := s.lookup(ctx, existingID)
		if err != nil {
			return domain.Identity{}, err
		}
		if identity != nil {
			return *identity, nil
		}
	}

	return s.CreateIdentity(ctx, info)
}

func (s *IdentityService) lookup(ctx context.Context, id string) (*domain.Identity, error) {
	if id == "" {
		return nil, nil
	}
	identity, err := s.identities.GetIdentity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}
