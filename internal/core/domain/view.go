package domain

// Author is the public part of an identity shown next to a listing.
type Author struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Contact string `json:"contact"`
}

type HousingView struct {
	HousingListing
	User     Author `json:"user"`
	IsAuthor bool   `json:"is_author"`
}

type MarketplaceView struct {
	MarketplaceListing
	User     Author `json:"user"`
	IsAuthor bool   `json:"is_author"`
}

// IsAuthor reports whether viewerID owns the listing. An empty viewer owns
// nothing.
func IsAuthor(l Listing, viewerID string) bool {
	return viewerID != "" && l.Owner() == viewerID
}

func NewHousingView(l HousingListing, owner Identity, viewerID string) HousingView {
	return HousingView{
		HousingListing: l,
		User: Author{
			ID:      owner.ID,
			Name:    owner.Name,
			Email:   owner.Email,
			Contact: owner.Contact,
		},
		IsAuthor: IsAuthor(l, viewerID),
	}
}

// NewMarketplaceView leaves out the seller's email; buyers reach sellers
// through the contact string.
func NewMarketplaceView(l MarketplaceListing, owner Identity, viewerID string) MarketplaceView {
	return MarketplaceView{
		MarketplaceListing: l,
		User: Author{
			ID:      owner.ID,
			Name:    owner.Name,
			Contact: owner.Contact,
		},
		IsAuthor: IsAuthor(l, viewerID),
	}
}
