package service

import "github.com/rl1809/roomsync/internal/core/domain"

// Filter keeps the items for which keep returns true, in their original order.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func FilterHousing(listings []domain.HousingListing, criteria domain.HousingCriteria) []domain.HousingListing {
	return Filter(listings, criteria.Matches)
}

func FilterMarketplace(listings []domain.MarketplaceListing, criteria domain.MarketplaceCriteria) []domain.MarketplaceListing {
	return Filter(listings, criteria.Matches)
}
