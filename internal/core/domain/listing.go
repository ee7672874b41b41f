package domain

import (
	"strings"
	"time"
)

const PostTypeAvailability = "post_availability"

var (
	GenderPreferences = []string{"Any", "Male", "Female"}
	LeaseTerms        = []string{"6 months", "12 months", "18 months", "24 months"}
	Categories        = []string{"lamp", "chair", "study_table", "bed", "desk", "other"}
	Conditions        = []string{"new", "like_new", "good", "fair"}
)

// Listing is the part of a housing or marketplace record the status lifecycle
// works with.
type Listing interface {
	ListingID() string
	Owner() string
	Type() ListingType
	CurrentStatus() Status
	// WithStatus returns a copy of the listing at status s.
	WithStatus(s Status) Listing
}

type HousingListing struct {
	ID                  string    `json:"id"`
	OwnerID             string    `json:"user_id"`
	PostType            string    `json:"post_type"`
	HousingProperty     string    `json:"housing_property"`
	ApartmentPlan       string    `json:"apartment_plan"`
	RoommatesPreferred  int       `json:"number_of_roommates_preferred"`
	GenderPreference    string    `json:"gender_preference"`
	CostMin             float64   `json:"cost_preference_min"`
	CostMax             float64   `json:"cost_preference_max"`
	LeaseTerm           string    `json:"lease_term"`
	DietaryRestrictions string    `json:"dietary_restrictions"`
	CourseProgram       string    `json:"course_program"`
	Community           string    `json:"community"`
	Miscellaneous       string    `json:"miscellaneous"`
	Status              Status    `json:"status"`
	CreatedAt           time.Time `json:"created_at"`
}

func (l HousingListing) ListingID() string { return l.ID }
func (l HousingListing) Owner() string { return l.OwnerID }
func (l HousingListing) Type() ListingType { return ListingTypeHousing }
func (l HousingListing) CurrentStatus() Status { return l.Status }
func (l HousingListing) WithStatus(s Status) Listing {
	l.Status = s
	return l
}

// HousingInput is what a poster submits. Status may be left empty (available)
// or set to booking_fast; a listing is never created filled up.
type HousingInput struct {
	PostType            string  `json:"post_type" validate:"omitempty,eq=post_availability"`
	HousingProperty     string  `json:"housing_property" validate:"required,max=100"`
	ApartmentPlan       string  `json:"apartment_plan" validate:"required,max=50"`
	RoommatesPreferred  int     `json:"number_of_roommates_preferred" validate:"gt=0"`
	GenderPreference    string  `json:"gender_preference" validate:"required,oneof=Any Male Female"`
	CostMin             float64 `json:"cost_preference_min" validate:"gte=0"`
	CostMax             float64 `json:"cost_preference_max" validate:"gte=0,gtefield=CostMin"`
	LeaseTerm           string  `json:"lease_term" validate:"required,oneof='6 months' '12 months' '18 months' '24 months'"`
	DietaryRestrictions string  `json:"dietary_restrictions" validate:"max=200"`
	CourseProgram       string  `json:"course_program" validate:"max=100"`
	Community           string  `json:"community" validate:"max=100"`
	Miscellaneous       string  `json:"miscellaneous" validate:"max=16000"`
	Status              Status  `json:"status" validate:"omitempty,oneof=available booking_fast"`
}

func NewHousingListing(id, ownerID string, in HousingInput, now time.Time) (HousingListing, error) {
	in.HousingProperty = strings.TrimSpace(in.HousingProperty)
	in.ApartmentPlan = strings.TrimSpace(in.ApartmentPlan)
	if err := validateStruct(in); err != nil {
		return HousingListing{}, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return HousingListing{}, NewValidationError("user_id is required")
	}

	if in.PostType == "" {
		in.PostType = PostTypeAvailability
	}
	if in.Status == "" {
		in.Status = housingLifecycle.Initial()
	}

	return HousingListing{
		ID:                  id,
		OwnerID:             ownerID,
		PostType:            in.PostType,
		HousingProperty:     in.HousingProperty,
		ApartmentPlan:       in.ApartmentPlan,
		RoommatesPreferred:  in.RoommatesPreferred,
		GenderPreference:    in.GenderPreference,
		CostMin:             in.CostMin,
		CostMax:             in.CostMax,
		LeaseTerm:           in.LeaseTerm,
		DietaryRestrictions: in.DietaryRestrictions,
		CourseProgram:       in.CourseProgram,
		Community:           in.Community,
		Miscellaneous:       in.Miscellaneous,
		Status:              in.Status,
		CreatedAt:           now,
	}, nil
}

type MarketplaceListing struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Price       float64   `json:"price"`
	Condition   string    `json:"condition"`
	ImageURL    string    `json:"image_url"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

func (l MarketplaceListing) ListingID() string { return l.ID }
func (l MarketplaceListing) Owner() string { return l.OwnerID }
func (l MarketplaceListing) Type() ListingType { return ListingTypeMarketplace }
func (l MarketplaceListing) CurrentStatus() Status { return l.Status }
func (l MarketplaceListing) WithStatus(s Status) Listing {
	l.Status = s
	return l
}

type MarketplaceInput struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=16000"`
	Category    string  `json:"category" validate:"required,oneof=lamp chair study_table bed desk other"`
	Price       float64 `json:"price" validate:"gte=0"`
	Condition   string  `json:"condition" validate:"omitempty,oneof=new like_new good fair"`
	ImageURL    string  `json:"image_url" validate:"omitempty,url,max=500"`
}

func NewMarketplaceListing(id, ownerID string, in MarketplaceInput, now time.Time) (MarketplaceListing, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateStruct(in); err != nil {
		return MarketplaceListing{}, err
	}
	if strings.TrimSpace(ownerID) == "" {
		return MarketplaceListing{}, NewValidationError("user_id is required")
	}

	return MarketplaceListing{
		ID:          id,
		OwnerID:     ownerID,
		Title:       in.Title,
		Description: in.Description,
		Category:    in.Category,
		Price:       in.Price,
		Condition:   in.Condition,
		ImageURL:    in.ImageURL,
		Status:      marketplaceLifecycle.Initial(),
		CreatedAt:   now,
	}, nil
}
