package domain

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// HousingCriteria holds the optional constraints of a housing query. A nil
// field places no constraint on the result.
type HousingCriteria struct {
	PostType         *string
	HousingProperty  *string
	Community        *string
	GenderPreference *string
	LeaseTerm        *string
	ApartmentPlan    *string
	Status           *Status
	CostMax          *float64
	Roommates        *int // exact count
	RoommatesMin     *int
	CourseProgram    *string // case-insensitive substring
}

func (c HousingCriteria) Matches(l HousingListing) bool {
	switch {
	case !equals(c.PostType, l.PostType),
		!equals(c.HousingProperty, l.HousingProperty),
		!equals(c.Community, l.Community),
		!equals(c.GenderPreference, l.GenderPreference),
		!equals(c.LeaseTerm, l.LeaseTerm),
		!equals(c.ApartmentPlan, l.ApartmentPlan),
		!equals(c.Status, l.Status):
		return false
	case c.CostMax != nil && l.CostMax > *c.CostMax:
		return false
	case c.Roommates != nil && l.RoommatesPreferred != *c.Roommates:
		return false
	case c.RoommatesMin != nil && l.RoommatesPreferred < *c.RoommatesMin:
		return false
	case c.CourseProgram != nil && !containsFold(l.CourseProgram, *c.CourseProgram):
		return false
	}
	return true
}

type MarketplaceCriteria struct {
	Category  *string
	Condition *string
	Status    *Status
	PriceMax  *float64
}

func (c MarketplaceCriteria) Matches(l MarketplaceListing) bool {
	switch {
	case !equals(c.Category, l.Category),
		!equals(c.Condition, l.Condition),
		!equals(c.Status, l.Status):
		return false
	case c.PriceMax != nil && l.Price > *c.PriceMax:
		return false
	}
	return true
}

// ParseHousingCriteria reads criteria from query parameters. Unknown keys are
// ignored and malformed numbers count as absent.
func ParseHousingCriteria(q url.Values) HousingCriteria {
	return HousingCriteria{
		PostType:         stringParam(q, "post_type"),
		HousingProperty:  stringParam(q, "housing_property"),
		Community:        stringParam(q, "community"),
		GenderPreference: stringParam(q, "gender_preference"),
		LeaseTerm:        stringParam(q, "lease_term"),
		ApartmentPlan:    stringParam(q, "apartment_plan"),
		Status:           statusParam(q, "status"),
		CostMax:          floatParam(q, "cost_max"),
		Roommates:        intParam(q, "number_of_roommates"),
		RoommatesMin:     intParam(q, "roommates_min"),
		CourseProgram:    stringParam(q, "course_program"),
	}
}

func ParseMarketplaceCriteria(q url.Values) MarketplaceCriteria {
	return MarketplaceCriteria{
		Category:  stringParam(q, "category"),
		Condition: stringParam(q, "condition"),
		Status:    statusParam(q, "status"),
		PriceMax:  floatParam(q, "price_max"),
	}
}

func equals[T comparable](want *T, got T) bool {
	return want == nil || *want == got
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func stringParam(q url.Values, key string) *string {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	return &v
}

func statusParam(q url.Values, key string) *Status {
	v := stringParam(q, key)
	if v == nil {
		return nil
	}
	s := Status(*v)
	return &s
}

func floatParam(q url.Values, key string) *float64 {
	v := stringParam(q, key)
	if v == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil || math.IsNaN(f) {
		return nil
	}
	return &f
}

func intParam(q url.Values, key string) *int {
	v := stringParam(q, key)
	if v == nil {
		return nil
	}
	n, err := strconv.Atoi(*v)
	if err != nil {
		return nil
	}
	return &n
}
