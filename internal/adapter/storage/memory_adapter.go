package storage

import (
	"context"
	"sync"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/port"
)

// MemoryAdapter keeps identities and listings in process. Reads hand out
// copies so callers never share state with the store.
type MemoryAdapter struct {
	mu          sync.RWMutex
	identities  map[string]domain.Identity
	housing     []domain.HousingListing
	marketplace []domain.MarketplaceListing
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{identities: make(map[string]domain.Identity)}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[identity.ID] = identity
	return nil
}

func (m *MemoryAdapter) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (m *MemoryAdapter) CreateHousing(ctx context.Context, listing domain.HousingListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.housing = append(m.housing, listing)
	return nil
}

func (m *MemoryAdapter) GetHousing(ctx context.Context, id string) (*domain.HousingListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.housing {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *MemoryAdapter) ListHousing(ctx context.Context) ([]domain.HousingListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.HousingListing(nil), m.housing...), nil
}

func (m *MemoryAdapter) CreateMarketplace(ctx context.Context, listing domain.MarketplaceListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marketplace = append(m.marketplace, listing)
	return nil
}

func (m *MemoryAdapter) GetMarketplace(ctx context.Context, id string) (*domain.MarketplaceListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, l := range m.marketplace {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *MemoryAdapter) ListMarketplace(ctx context.Context) ([]domain.MarketplaceListing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.MarketplaceListing(nil), m.marketplace...), nil
}

func (m *MemoryAdapter) UpdateStatus(ctx context.Context, listingType domain.ListingType, id string, from, to domain.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch listingType {
	case domain.ListingTypeHousing:
		for i := range m.housing {
			if m.housing[i].ID == id && m.housing[i].Status == from {
				m.housing[i].Status = to
				return nil
			}
		}
	case domain.ListingTypeMarketplace:
		for i := range m.marketplace {
			if m.marketplace[i].ID == id && m.marketplace[i].Status == from {
				m.marketplace[i].Status = to
				return nil
			}
		}
	}
	return port.ErrOptimisticLock
}
