package domain

import "fmt"

type ListingType string

const (
	ListingTypeHousing     ListingType = "housing"
	ListingTypeMarketplace ListingType = "marketplace"
)

func ParseListingType(s string) (ListingType, error) {
	switch t := ListingType(s); t {
	case ListingTypeHousing, ListingTypeMarketplace:
		return t, nil
	}
	return "", NewValidationError(fmt.Sprintf("type must be one of [housing marketplace], got %q", s))
}

type Status string

const (
	StatusAvailable   Status = "available"
	StatusBookingFast Status = "booking_fast"
	StatusFilledUp    Status = "filled_up"

	StatusActive Status = "active"
	StatusSold   Status = "sold"
)

// Lifecycle is the fixed forward-only order of statuses for one listing type.
type Lifecycle struct {
	Type   ListingType
	states []Status
}

var (
	housingLifecycle     = Lifecycle{Type: ListingTypeHousing, states: []Status{StatusAvailable, StatusBookingFast, StatusFilledUp}}
	marketplaceLifecycle = Lifecycle{Type: ListingTypeMarketplace, states: []Status{StatusActive, StatusSold}}
)

func LifecycleFor(t ListingType) Lifecycle {
	if t == ListingTypeMarketplace {
		return marketplaceLifecycle
	}
	return housingLifecycle
}

// Rank returns the position of s in the lifecycle. ok is false for statuses
// that do not belong to this listing type.
func (l Lifecycle) Rank(s Status) (rank int, ok bool) {
	for i, state := range l.states {
		if state == s {
			return i, true
		}
	}
	return -1, false
}

func (l Lifecycle) Initial() Status {
	return l.states[0]
}

func (l Lifecycle) Terminal(s Status) bool {
	return s == l.states[len(l.states)-1]
}

func (l Lifecycle) Valid(s Status) bool {
	_, ok := l.Rank(s)
	return ok
}

func (l Lifecycle) States() []Status {
	out := make([]Status, len(l.states))
	copy(out, l.states)
	return out
}

// CheckTransition accepts any move to a strictly later status. Skipping
// intermediate states is allowed; staying put or moving back is not.
func (l Lifecycle) CheckTransition(from, to Status) error {
	fromRank, fromOK := l.Rank(from)
	toRank, toOK := l.Rank(to)
	if !fromOK || !toOK || toRank <= fromRank {
		return &TransitionError{Type: l.Type, Current: from, Requested: to}
	}
	return nil
}
