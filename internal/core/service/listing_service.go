package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/port"
)

const (
	idempotencyKeyPrefix = "listing:"

	// maxStatusAttempts bounds re-reads after losing a status write race.
	maxStatusAttempts = 3
)

type ListingService struct {
	listings   port.ListingRepository
	identities port.IdentityRepository
	cache      port.CacheRepository
	newID      func() string
	now        func() time.Time
}

func NewListingService(listings port.ListingRepository, identities port.IdentityRepository, cache port.CacheRepository) *ListingService {
	return &ListingService{
		listings:   listings,
		identities: identities,
		cache:      cache,
		newID:      uuid.NewString,
		now:        time.Now,
	}
}

// CreateHousing posts a housing listing for ownerID. A non-empty requestID
// makes the call idempotent: a replay fails with ErrDuplicateRequest.
func (s *ListingService) CreateHousing(ctx context.Context, requestID, ownerID string, in domain.HousingInput) (domain.HousingListing, error) {
	listing, err := domain.NewHousingListing(s.newID(), ownerID, in, s.now().UTC())
	if err != nil {
		return domain.HousingListing{}, err
	}
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return domain.HousingListing{}, err
	}
	if err := s.claimRequest(ctx, requestID); err != nil {
		return domain.HousingListing{}, err
	}

	if err := s.listings.CreateHousing(ctx, listing); err != nil {
		return domain.HousingListing{}, s.releaseRequest(ctx, requestID, fmt.Errorf("create housing listing: %w", err))
	}
	return listing, nil
}

func (s *ListingService) CreateMarketplace(ctx context.Context, requestID, ownerID string, in domain.MarketplaceInput) (domain.MarketplaceListing, error) {
	listing, err := domain.NewMarketplaceListing(s.newID(), ownerID, in, s.now().UTC())
	if err != nil {
		return domain.MarketplaceListing{}, err
	}
	if err := s.checkOwner(ctx, ownerID); err != nil {
		return domain.MarketplaceListing{}, err
	}
	if err := s.claimRequest(ctx, requestID); err != nil {
		return domain.MarketplaceListing{}, err
	}

	if err := s.listings.CreateMarketplace(ctx, listing); err != nil {
		return domain.MarketplaceListing{}, s.releaseRequest(ctx, requestID, fmt.Errorf("create marketplace listing: %w", err))
	}
	return listing, nil
}

func (s *ListingService) GetHousing(ctx context.Context, id string) (domain.HousingListing, error) {
	listing, err := s.listings.GetHousing(ctx, id)
	if err != nil {
		return domain.HousingListing{}, fmt.Errorf("get housing listing: %w", err)
	}
	if listing == nil {
		return domain.HousingListing{}, fmt.Errorf("housing listing %s: %w", id, domain.ErrNotFound)
	}
	return *listing, nil
}

func (s *ListingService) GetMarketplace(ctx context.Context, id string) (domain.MarketplaceListing, error) {
	listing, err := s.listings.GetMarketplace(ctx, id)
	if err != nil {
		return domain.MarketplaceListing{}, fmt.Errorf("get marketplace listing: %w", err)
	}
	if listing == nil {
		return domain.MarketplaceListing{}, fmt.Errorf("marketplace listing %s: %w", id, domain.ErrNotFound)
	}
	return *listing, nil
}

func (s *ListingService) GetListing(ctx context.Context, listingType domain.ListingType, id string) (domain.Listing, error) {
	switch listingType {
	case domain.ListingTypeHousing:
		listing, err := s.GetHousing(ctx, id)
		if err != nil {
			return nil, err
		}
		return listing, nil
	case domain.ListingTypeMarketplace:
		listing, err := s.GetMarketplace(ctx, id)
		if err != nil {
			return nil, err
		}
		return listing, nil
	}
	return nil, domain.NewValidationError(fmt.Sprintf("unknown listing type %q", listingType))
}

func (s *ListingService) GetHousingView(ctx context.Context, id, viewerID string) (domain.HousingView, error) {
	listing, err := s.GetHousing(ctx, id)
	if err != nil {
		return domain.HousingView{}, err
	}
	owner, err := s.GetOwner(ctx, listing)
	if err != nil {
		return domain.HousingView{}, err
	}
	return domain.NewHousingView(listing, owner, viewerID), nil
}

func (s *ListingService) GetMarketplaceView(ctx context.Context, id, viewerID string) (domain.MarketplaceView, error) {
	listing, err := s.GetMarketplace(ctx, id)
	if err != nil {
		return domain.MarketplaceView{}, err
	}
	owner, err := s.GetOwner(ctx, listing)
	if err != nil {
		return domain.MarketplaceView{}, err
	}
	return domain.NewMarketplaceView(listing, owner, viewerID), nil
}

// GetOwner returns the identity a listing is attributed to.
func (s *ListingService) GetOwner(ctx context.Context, listing domain.Listing) (domain.Identity, error) {
	owner, err := s.identities.GetIdentity(ctx, listing.Owner())
	if err != nil {
		return domain.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	if owner == nil {
		return domain.Identity{}, fmt.Errorf("owner %s of %s listing %s: %w",
			listing.Owner(), listing.Type(), listing.ListingID(), domain.ErrNotFound)
	}
	return *owner, nil
}

// ListHousing returns the housing listings matching criteria. Listings whose
// owner no longer resolves are left out.
func (s *ListingService) ListHousing(ctx context.Context, criteria domain.HousingCriteria, viewerID string) ([]domain.HousingView, error) {
	all, err := s.listings.ListHousing(ctx)
	if err != nil {
		return nil, fmt.Errorf("list housing listings: %w", err)
	}

	authors := s.authorLookup()
	matched := FilterHousing(all, criteria)
	views := make([]domain.HousingView, 0, len(matched))
	for _, listing := range matched {
		owner, err := authors(ctx, listing.OwnerID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			continue
		}
		views = append(views, domain.NewHousingView(listing, *owner, viewerID))
	}
	return views, nil
}

func (s *ListingService) ListMarketplace(ctx context.Context, criteria domain.MarketplaceCriteria, viewerID string) ([]domain.MarketplaceView, error) {
	all, err := s.listings.ListMarketplace(ctx)
	if err != nil {
		return nil, fmt.Errorf("list marketplace listings: %w", err)
	}

	authors := s.authorLookup()
	matched := FilterMarketplace(all, criteria)
	views := make([]domain.MarketplaceView, 0, len(matched))
	for _, listing := range matched {
		owner, err := authors(ctx, listing.OwnerID)
		if err != nil {
			return nil, err
		}
		if owner == nil {
			continue
		}
		views = append(views, domain.NewMarketplaceView(listing, *owner, viewerID))
	}
	return views, nil
}

// SetListingStatus moves a listing to requested on behalf of requesterID.
// The write only lands if the listing is still at the status the change was
// validated against; after a lost race the listing is re-read and the change
// validated again.
func (s *ListingService) SetListingStatus(ctx context.Context, listingType domain.ListingType, id string, requested domain.Status, requesterID string) (domain.Listing, error) {
	verified := false
	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		current, err := s.GetListing(ctx, listingType, id)
		if err != nil {
			return nil, err
		}

		if !verified {
			if err := s.verifyRequester(ctx, current, requesterID); err != nil {
				return nil, err
			}
			verified = true
		}

		updated, err := ApplyStatusChange(current, requested, requesterID)
		if err != nil {
			return nil, err
		}

		err = s.listings.UpdateStatus(ctx, listingType, id, current.CurrentStatus(), requested)
		if errors.Is(err, port.ErrOptimisticLock) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		return updated, nil
	}

	return nil, fmt.Errorf("%s listing %s: %w", listingType, id, port.ErrOptimisticLock)
}

// verifyRequester looks the requester up instead of trusting the caller's
// token; an identity that does not resolve cannot own anything.
func (s *ListingService) verifyRequester(ctx context.Context, listing domain.Listing, requesterID string) error {
	if requesterID == "" {
		return fmt.Errorf("%s listing %s: no requester identity: %w", listing.Type(), listing.ListingID(), domain.ErrUnauthorized)
	}
	requester, err := s.identities.GetIdentity(ctx, requesterID)
	if err != nil {
		return fmt.Errorf("get identity: %w", err)
	}
	if requester == nil {
		return fmt.Errorf("%s listing %s: identity %s does not resolve: %w",
			listing.Type(), listing.ListingID(), requesterID, domain.ErrUnauthorized)
	}
	return nil
}

func (s *ListingService) checkOwner(ctx context.Context, ownerID string) error {
	owner, err := s.identities.GetIdentity(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("get identity: %w", err)
	}
	if owner == nil {
		return fmt.Errorf("identity %s: %w", ownerID, domain.ErrNotFound)
	}
	return nil
}

func (s *ListingService) claimRequest(ctx context.Context, requestID string) error {
	if requestID == "" {
		return nil
	}

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKeyPrefix+requestID)
	if err != nil {
		return fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("request %s: %w", requestID, domain.ErrDuplicateRequest)
	}
	return nil
}

// releaseRequest frees the request id after a failed write, so a retry with
// the same id is not taken for a replay. cause is returned, joined with any
// release failure.
func (s *ListingService) releaseRequest(ctx context.Context, requestID string, cause error) error {
	if requestID == "" {
		return cause
	}
	if err := s.cache.ReleaseIdempotency(context.WithoutCancel(ctx), idempotencyKeyPrefix+requestID); err != nil {
		return errors.Join(cause, fmt.Errorf("release request %s: %w", requestID, err))
	}
	return cause
}

func (s *ListingService) authorLookup() func(context.Context, string) (*domain.Identity, error) {
	seen := make(map[string]*domain.Identity)
	return func(ctx context.Context, id string) (*domain.Identity, error) {
		if identity, ok := seen[id]; ok {
			return identity, nil
		}
		identity, err := s.identities.GetIdentity(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get identity: %w", err)
		}
		seen[id] = identity
		return identity, nil
	}
}
