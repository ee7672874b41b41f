package service

import (
	"math/rand"
	"net/url"
	"reflect"
	"testing"

	"github.com/rl1809/roomsync/internal/core/domain"
)

func housingWithCost(id string, costMax float64) domain.HousingListing {
	return domain.HousingListing{
		ID:                 id,
		OwnerID:            "7",
		PostType:           domain.PostTypeAvailability,
		HousingProperty:    "Patio Gardens",
		ApartmentPlan:      "2B1B",
		RoommatesPreferred: 1,
		GenderPreference:   "Any",
		CostMax:            costMax,
		LeaseTerm:          "12 months",
		Status:             domain.StatusAvailable,
	}
}

func TestFilterHousing_CostMax(t *testing.T) {
	listings := []domain.HousingListing{
		housingWithCost("a", 500),
		housingWithCost("b", 700),
		housingWithCost("c", 900),
	}

	got := FilterHousing(listings, domain.ParseHousingCriteria(url.Values{"cost_max": {"700"}}))

	if len(got) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("expected [a b] in input order, got [%s %s]", got[0].ID, got[1].ID)
	}
}

func TestFilterHousing_EmptyCriteria(t *testing.T) {
	listings := []domain.HousingListing{
		housingWithCost("c", 900),
		housingWithCost("a", 500),
		housingWithCost("a", 500),
	}

	got := FilterHousing(listings, domain.HousingCriteria{})

	if !reflect.DeepEqual(got, listings) {
		t.Errorf("expected input unchanged, got %+v", got)
	}
}

func TestFilterHousing_MalformedNumberIsNoConstraint(t *testing.T) {
	listings := []domain.HousingListing{housingWithCost("a", 500), housingWithCost("b", 5000)}

	got := FilterHousing(listings, domain.ParseHousingCriteria(url.Values{"cost_max": {"cheap"}, "mood": {"sunny"}}))

	if len(got) != 2 {
		t.Errorf("expected malformed and unknown criteria to be ignored, got %d listings", len(got))
	}
}

func TestFilterMarketplace(t *testing.T) {
	items := []domain.MarketplaceListing{
		{ID: "1", Category: "lamp", Price: 10, Status: domain.StatusActive},
		{ID: "2", Category: "chair", Price: 30, Status: domain.StatusActive},
		{ID: "3", Category: "lamp", Price: 25, Status: domain.StatusSold},
		{ID: "4", Category: "lamp", Price: 40, Status: domain.StatusActive},
	}

	got := FilterMarketplace(items, domain.ParseMarketplaceCriteria(url.Values{
		"category":  {"lamp"},
		"price_max": {"30"},
	}))

	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Errorf("expected items [1 3], got %+v", got)
	}
}

// randomHousing builds listings and criteria over small value sets so that
// matches and misses both occur often.
func randomHousing(r *rand.Rand, id string) domain.HousingListing {
	properties := []string{"Park Avenue", "Circles Apartments"}
	statuses := domain.LifecycleFor(domain.ListingTypeHousing).States()
	courses := []string{"MS Data Science", "MBA", ""}
	return domain.HousingListing{
		ID:                 id,
		HousingProperty:    properties[r.Intn(len(properties))],
		GenderPreference:   domain.GenderPreferences[r.Intn(len(domain.GenderPreferences))],
		LeaseTerm:          domain.LeaseTerms[r.Intn(len(domain.LeaseTerms))],
		RoommatesPreferred: 1 + r.Intn(3),
		CostMax:            float64(400 + 100*r.Intn(6)),
		CourseProgram:      courses[r.Intn(len(courses))],
		Status:             statuses[r.Intn(len(statuses))],
	}
}

func randomCriteria(r *rand.Rand) domain.HousingCriteria {
	q := url.Values{}
	if r.Intn(2) == 0 {
		q.Set("housing_property", "Park Avenue")
	}
	if r.Intn(3) == 0 {
		q.Set("gender_preference", domain.GenderPreferences[r.Intn(len(domain.GenderPreferences))])
	}
	if r.Intn(2) == 0 {
		q.Set("cost_max", []string{"500", "700", "oops"}[r.Intn(3)])
	}
	if r.Intn(3) == 0 {
		q.Set("roommates_min", "2")
	}
	if r.Intn(3) == 0 {
		q.Set("course_program", "data")
	}
	if r.Intn(3) == 0 {
		q.Set("status", string(domain.StatusAvailable))
	}
	return domain.ParseHousingCriteria(q)
}

func TestFilterHousing_Properties(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for round := 0; round < 200; round++ {
		listings := make([]domain.HousingListing, 8)
		for i := range listings {
			listings[i] = randomHousing(r, string(rune('a'+i)))
		}
		criteria := randomCriteria(r)
		got := FilterHousing(listings, criteria)

		// A single listing is kept iff it satisfies every present criterion.
		for _, l := range listings {
			single := FilterHousing([]domain.HousingListing{l}, criteria)
			if (len(single) == 1) != criteria.Matches(l) {
				t.Fatalf("round %d: listing %s kept=%v but matches=%v", round, l.ID, len(single) == 1, criteria.Matches(l))
			}
		}

		// Removing a listing from the input removes exactly it from the output.
		drop := r.Intn(len(listings))
		rest := append(append([]domain.HousingListing(nil), listings[:drop]...), listings[drop+1:]...)
		want := Filter(got, func(l domain.HousingListing) bool { return l.ID != listings[drop].ID })
		if after := FilterHousing(rest, criteria); !reflect.DeepEqual(after, want) {
			t.Fatalf("round %d: expected %v after dropping %s, got %v", round, ids(want), listings[drop].ID, ids(after))
		}
	}
}

func ids(listings []domain.HousingListing) []string {
	out := make([]string, len(listings))
	for i, l := range listings {
		out[i] = l.ID
	}
	return out
}
