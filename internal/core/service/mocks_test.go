package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/port"
)

// Mock IdentityRepository and ListingRepository
type mockStore struct {
	mu          sync.Mutex
	identities  map[string]domain.Identity
	housing     []domain.HousingListing
	marketplace []domain.MarketplaceListing

	identityCreates int
	statusWrites    int
	updateCalls     int
	forceConflicts  int
	failGet         error
	failCreates     int // number of upcoming listing creates to fail

	// beforeUpdate runs (unlocked) ahead of every status write, letting a test
	// slip in a competing change between the read and the write.
	beforeUpdate func()
}

func newMockStore() *mockStore {
	return &mockStore{identities: make(map[string]domain.Identity)}
}

func (m *mockStore) addIdentity(id string) domain.Identity {
	m.mu.Lock()
	defer m.mu.Unlock()
	identity := domain.Identity{ID: id, Name: "user " + id, Email: id + "@example.com", Contact: "555-" + id}
	m.identities[id] = identity
	return identity
}

func (m *mockStore) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identityCreates++
	m.identities[identity.ID] = identity
	return nil
}

func (m *mockStore) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet != nil {
		return nil, m.failGet
	}
	identity, ok := m.identities[id]
	if !ok {
		return nil, nil
	}
	return &identity, nil
}

func (m *mockStore) CreateHousing(ctx context.Context, listing domain.HousingListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates > 0 {
		m.failCreates--
		return errStoreDown
	}
	m.housing = append(m.housing, listing)
	return nil
}

func (m *mockStore) GetHousing(ctx context.Context, id string) (*domain.HousingListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.housing {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListHousing(ctx context.Context) ([]domain.HousingListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HousingListing(nil), m.housing...), nil
}

func (m *mockStore) CreateMarketplace(ctx context.Context, listing domain.MarketplaceListing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreates > 0 {
		m.failCreates--
		return errStoreDown
	}
	m.marketplace = append(m.marketplace, listing)
	return nil
}

func (m *mockStore) GetMarketplace(ctx context.Context, id string) (*domain.MarketplaceListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.marketplace {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListMarketplace(ctx context.Context) ([]domain.MarketplaceListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MarketplaceListing(nil), m.marketplace...), nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, listingType domain.ListingType, id string, from, to domain.Status) error {
	if m.beforeUpdate != nil {
		m.beforeUpdate()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.forceConflicts > 0 {
		m.forceConflicts--
		return port.ErrOptimisticLock
	}
	switch listingType {
	case domain.ListingTypeHousing:
		for i := range m.housing {
			if m.housing[i].ID == id && m.housing[i].Status == from {
				m.housing[i].Status = to
				m.statusWrites++
				return nil
			}
		}
	case domain.ListingTypeMarketplace:
		for i := range m.marketplace {
			if m.marketplace[i].ID == id && m.marketplace[i].Status == from {
				m.marketplace[i].Status = to
				m.statusWrites++
				return nil
			}
		}
	}
	return port.ErrOptimisticLock
}

// Mock CacheRepository
type mockCacheRepo struct {
	idempotencySet map[string]bool
	err            error
	mu             sync.Mutex
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{idempotencySet: make(map[string]bool)}
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return false, m.err
	}
	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) ReleaseIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

var errStoreDown = errors.New("connection refused")
