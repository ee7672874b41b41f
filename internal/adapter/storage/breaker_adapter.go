package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/port"
)

type BreakerSettings struct {
	Name string
	// MaxRequests is how many trial calls reach the store while half-open.
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ConsecutiveFailures trips the breaker once exceeded.
	ConsecutiveFailures uint32
	OnStateChange       func(name string, from, to string)
}

// BreakerAdapter guards a store behind a circuit breaker. While the breaker is
// open, calls fail fast with port.ErrUnavailable.
type BreakerAdapter struct {
	name       string
	listings   port.ListingRepository
	identities port.IdentityRepository
	cb         *gobreaker.CircuitBreaker
}

func NewBreakerAdapter(listings port.ListingRepository, identities port.IdentityRepository, settings BreakerSettings) *BreakerAdapter {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        settings.Name,
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > settings.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if settings.OnStateChange != nil {
				settings.OnStateChange(name, from.String(), to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			// A lost status race or an abandoned request says nothing about
			// the store's health.
			return err == nil ||
				errors.Is(err, port.ErrOptimisticLock) ||
				errors.Is(err, context.Canceled)
		},
	})

	return &BreakerAdapter{name: settings.Name, listings: listings, identities: identities, cb: cb}
}

func (b *BreakerAdapter) State() string {
	return b.cb.State().String()
}

func guarded[T any](b *BreakerAdapter, fn func() (T, error)) (T, error) {
	var zero T
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return zero, fmt.Errorf("%s: %v: %w", b.name, err, port.ErrUnavailable)
	}
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}

func guardedExec(b *BreakerAdapter, fn func() error) error {
	_, err := guarded(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (b *BreakerAdapter) CreateIdentity(ctx context.Context, identity domain.Identity) error {
	return guardedExec(b, func() error { return b.identities.CreateIdentity(ctx, identity) })
}

func (b *BreakerAdapter) GetIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	return guarded(b, func() (*domain.Identity, error) { return b.identities.GetIdentity(ctx, id) })
}

func (b *BreakerAdapter) CreateHousing(ctx context.Context, listing domain.HousingListing) error {
	return guardedExec(b, func() error { return b.listings.CreateHousing(ctx, listing) })
}

func (b *BreakerAdapter) GetHousing(ctx context.Context, id string) (*domain.HousingListing, error) {
	return guarded(b, func() (*domain.HousingListing, error) { return b.listings.GetHousing(ctx, id) })
}

func (b *BreakerAdapter) ListHousing(ctx context.Context) ([]domain.HousingListing, error) {
	return guarded(b, func() ([]domain.HousingListing, error) { return b.listings.ListHousing(ctx) })
}

func (b *BreakerAdapter) CreateMarketplace(ctx context.Context, listing domain.MarketplaceListing) error {
	return guardedExec(b, func() error { return b.listings.CreateMarketplace(ctx, listing) })
}

func (b *BreakerAdapter) GetMarketplace(ctx context.Context, id string) (*domain.MarketplaceListing, error) {
	return guarded(b, func() (*domain.MarketplaceListing, error) { return b.listings.GetMarketplace(ctx, id) })
}

func (b *BreakerAdapter) ListMarketplace(ctx context.Context) ([]domain.MarketplaceListing, error) {
	return guarded(b, func() ([]domain.MarketplaceListing, error) { return b.listings.ListMarketplace(ctx) })
}

func (b *BreakerAdapter) UpdateStatus(ctx context.Context, listingType domain.ListingType, id string, from, to domain.Status) error {
	return guardedExec(b, func() error { return b.listings.UpdateStatus(ctx, listingType, id, from, to) })
}
