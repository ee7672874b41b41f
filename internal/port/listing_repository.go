package port

import (
	"context"
	"errors"

	"github.com/rl1809/roomsync/internal/core/domain"
)

var (
	// ErrOptimisticLock is returned when a conditional write finds the row
	// changed (or gone) since it was read.
	ErrOptimisticLock = errors.New("optimistic lock conflict")

	// ErrUnavailable is returned when the store is refusing calls.
	ErrUnavailable = errors.New("store unavailable")
)

type ListingRepository interface {
	// CreateHousing persists a new housing listing
	CreateHousing(ctx context.Context, listing domain.HousingListing) error

	// GetHousing retrieves a housing listing by ID, returns nil if it does not exist
	GetHousing(ctx context.Context, id string) (*domain.HousingListing, error)

	// ListHousing returns every housing listing in creation order
	ListHousing(ctx context.Context) ([]domain.HousingListing, error)

	CreateMarketplace(ctx context.Context, listing domain.MarketplaceListing) error
	GetMarketplace(ctx context.Context, id string) (*domain.MarketplaceListing, error)
	ListMarketplace(ctx context.Context) ([]domain.MarketplaceListing, error)

	// UpdateStatus moves a listing from one status to another only if it is
	// still at from; otherwise it returns ErrOptimisticLock
	UpdateStatus(ctx context.Context, listingType domain.ListingType, id string, from, to domain.Status) error
}
