package service

import (
	"fmt"

	"github.com/rl1809/roomsync/internal/core/domain"
)

// ApplyStatusChange validates a status change against the listing as read.
// Ownership is checked before the transition itself, so a non-owner is
// always told Unauthorized.
func ApplyStatusChange(listing domain.Listing, requested domain.Status, requesterID string) (domain.Listing, error) {
	if requesterID == "" || requesterID != listing.Owner() {
		return nil, fmt.Errorf("%s listing %s: %w", listing.Type(), listing.ListingID(), domain.ErrUnauthorized)
	}

	lifecycle := domain.LifecycleFor(listing.Type())
	if err := lifecycle.CheckTransition(listing.CurrentStatus(), requested); err != nil {
		return nil, err
	}

	return listing.WithStatus(requested), nil
}
