package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/rl1809/roomsync/internal/adapter/storage"
	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/core/service"
)

type testServer struct {
	handler    http.Handler
	http       *HTTPHandler
	identities *service.IdentityService
	listings   *service.ListingService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer() *testServer {
	store := storage.NewMemoryAdapter()
	identities := service.NewIdentityService(store)
	listings := service.NewListingService(store, store, storage.NewMemoryCache())
	logger := quietLogger()

	h := NewHTTPHandler(identities, listings, logger)
	return &testServer{
		handler:    Wrap(h.Router(), logger, []string{"http://localhost:3000"}),
		http:       h,
		identities: identities,
		listings:   listings,
	}
}

func (s *testServer) identity(t *testing.T, name string) domain.Identity {
	identity, err := s.identities.CreateIdentity(context.Background(), domain.ContactInfo{
		Name:    name,
		Email:   name + "@example.com",
		Contact: "555-0100",
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return identity
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func housingBody(costMax float64) map[string]any {
	return map[string]any{
		"housing_property":              "Maple Court",
		"apartment_plan":                "2B2B",
		"number_of_roommates_preferred": 1,
		"gender_preference":             "Any",
		"cost_preference_min":           300,
		"cost_preference_max":           costMax,
		"lease_term":                    "12 months",
		"course_program":                "Computer Science",
	}
}

func TestHTTPCreateAndGetIdentity(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/api/users", domain.ContactInfo{
		Name: "Priya", Email: "priya@example.com", Contact: "555-0199",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody[domain.Identity](t, rec)

	rec = s.do(t, http.MethodGet, "/api/users/"+created.ID, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[domain.Identity](t, rec); got.Email != "priya@example.com" {
		t.Errorf("expected stored email, got %+v", got)
	}

	rec = s.do(t, http.MethodGet, "/api/users/unknown", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHTTPCreateIdentity_ValidationProblems(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodPost, "/api/users", domain.ContactInfo{Name: "Priya", Email: "not-an-email"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if len(resp.Problems) != 2 {
		t.Errorf("expected problems for email and contact, got %v", resp.Problems)
	}
}

func TestHTTPResolveIdentity_ExistingWins(t *testing.T) {
	s := newTestServer()
	existing := s.identity(t, "priya")

	rec := s.do(t, http.MethodPost, "/api/users/resolve", map[string]string{
		"existing_id": existing.ID,
		"name":        "Someone Else",
		"email":       "else@example.com",
		"contact":     "555-0000",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := decodeBody[domain.Identity](t, rec); got.ID != existing.ID || got.Name != existing.Name {
		t.Errorf("expected existing identity back, got %+v", got)
	}
}

func TestHTTPListHousing_FiltersAndAuthorship(t *testing.T) {
	s := newTestServer()
	owner := s.identity(t, "owner")
	other := s.identity(t, "other")

	for _, cost := range []float64{500, 700, 900} {
		rec := s.do(t, http.MethodPost, "/api/availabilities", housingBody(cost), map[string]string{identityHeader: owner.ID})
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
	}

	rec := s.do(t, http.MethodGet, "/api/availabilities?cost_max=700&course_program=science&bogus=1", nil, map[string]string{identityHeader: other.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	views := decodeBody[[]domain.HousingView](t, rec)
	if len(views) != 2 || views[0].CostMax != 500 || views[1].CostMax != 700 {
		t.Fatalf("expected listings at 500 and 700 in order, got %+v", views)
	}
	if views[0].IsAuthor {
		t.Error("expected is_author false for another identity")
	}
	if views[0].User.Name != "owner" {
		t.Errorf("expected owner summary, got %+v", views[0].User)
	}

	rec = s.do(t, http.MethodGet, "/api/availabilities?cost_max=abc", nil, map[string]string{identityHeader: owner.ID})
	views = decodeBody[[]domain.HousingView](t, rec)
	if len(views) != 3 || !views[0].IsAuthor {
		t.Errorf("expected malformed bound ignored and is_author for owner, got %+v", views)
	}
}

func TestHTTPSetStatus_Lifecycle(t *testing.T) {
	s := newTestServer()
	owner := s.identity(t, "owner")
	other := s.identity(t, "other")

	rec := s.do(t, http.MethodPost, "/api/availabilities", housingBody(700), map[string]string{identityHeader: owner.ID})
	listing := decodeBody[domain.HousingListing](t, rec)
	path := "/api/availabilities/" + listing.ID + "/status"

	rec = s.do(t, http.MethodPut, path, StatusRequest{Status: domain.StatusFilledUp}, map[string]string{identityHeader: other.ID})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-owner: expected 403, got %d", rec.Code)
	}

	rec = s.do(t, http.MethodPut, path, StatusRequest{Status: domain.StatusFilledUp}, map[string]string{identityHeader: owner.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[domain.HousingListing](t, rec); got.Status != domain.StatusFilledUp || got.CostMax != 700 {
		t.Errorf("expected filled_up with other fields unchanged, got %+v", got)
	}

	rec = s.do(t, http.MethodPut, path, StatusRequest{Status: domain.StatusAvailable}, map[string]string{identityHeader: owner.ID})
	if rec.Code != http.StatusConflict {
		t.Fatalf("backward move: expected 409, got %d", rec.Code)
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if resp.CurrentStatus != "filled_up" || resp.RequestedStatus != "available" {
		t.Errorf("expected current and requested status in body, got %+v", resp)
	}

	rec = s.do(t, http.MethodPut, "/api/availabilities/missing/status", StatusRequest{Status: domain.StatusFilledUp}, map[string]string{identityHeader: owner.ID})
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing listing: expected 404, got %d", rec.Code)
	}
}

func TestHTTPCreateMarketplace_DuplicateRequest(t *testing.T) {
	s := newTestServer()
	owner := s.identity(t, "seller")
	body := map[string]any{"title": "Desk lamp", "category": "lamp", "price": 15}
	headers := map[string]string{identityHeader: owner.ID, requestIDHeader: "req-1"}

	if rec := s.do(t, http.MethodPost, "/api/marketplace", body, headers); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/api/marketplace", body, headers); rec.Code != http.StatusConflict {
		t.Errorf("replay: expected 409, got %d", rec.Code)
	}

	rec := s.do(t, http.MethodGet, "/api/marketplace?category=lamp", nil, nil)
	views := decodeBody[[]domain.MarketplaceView](t, rec)
	if len(views) != 1 {
		t.Fatalf("expected exactly one listing, got %d", len(views))
	}
	if views[0].User.Email != "" {
		t.Error("expected seller email left out of marketplace view")
	}
}

func TestHTTPListMarketplace_HidesSoldByDefault(t *testing.T) {
	s := newTestServer()
	seller := s.identity(t, "seller")
	headers := map[string]string{identityHeader: seller.ID}

	var ids []string
	for _, title := range []string{"Desk lamp", "Floor lamp"} {
		rec := s.do(t, http.MethodPost, "/api/marketplace", map[string]any{"title": title, "category": "lamp", "price": 15}, headers)
		if rec.Code != http.StatusCreated {
			t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		ids = append(ids, decodeBody[domain.MarketplaceListing](t, rec).ID)
	}
	rec := s.do(t, http.MethodPut, "/api/marketplace/"+ids[0]+"/status", StatusRequest{Status: domain.StatusSold}, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark sold: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	views := decodeBody[[]domain.MarketplaceView](t, s.do(t, http.MethodGet, "/api/marketplace", nil, nil))
	if len(views) != 1 || views[0].ID != ids[1] {
		t.Errorf("expected only the unsold item by default, got %+v", views)
	}

	views = decodeBody[[]domain.MarketplaceView](t, s.do(t, http.MethodGet, "/api/marketplace?status=sold", nil, nil))
	if len(views) != 1 || views[0].ID != ids[0] || views[0].Status != domain.StatusSold {
		t.Errorf("expected the sold item with status=sold, got %+v", views)
	}
}

func TestHTTPCreateListing_BadInput(t *testing.T) {
	s := newTestServer()
	owner := s.identity(t, "owner")

	req := httptest.NewRequest(http.MethodPost, "/api/availabilities", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: expected 400, got %d", rec.Code)
	}

	body := housingBody(700)
	body["status"] = "filled_up"
	if rec := s.do(t, http.MethodPost, "/api/availabilities", body, map[string]string{identityHeader: owner.ID}); rec.Code != http.StatusBadRequest {
		t.Errorf("created filled_up: expected 400, got %d", rec.Code)
	}

	if rec := s.do(t, http.MethodPost, "/api/availabilities", housingBody(700), map[string]string{identityHeader: "ghost"}); rec.Code != http.StatusNotFound {
		t.Errorf("unknown owner: expected 404, got %d", rec.Code)
	}
}

func TestHTTPCreateListing_OverLongField(t *testing.T) {
	s := newTestServer()
	owner := s.identity(t, "owner")

	body := housingBody(700)
	body["housing_property"] = strings.Repeat("x", 500)
	rec := s.do(t, http.MethodPost, "/api/availabilities", body, map[string]string{identityHeader: owner.ID})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[ErrorResponse](t, rec)
	if len(resp.Problems) != 1 || !strings.HasPrefix(resp.Problems[0], "housing_property ") {
		t.Errorf("expected one problem naming housing_property, got %v", resp.Problems)
	}

	rec = s.do(t, http.MethodPost, "/api/users", domain.ContactInfo{
		Name: "Priya", Email: "priya@example.com", Contact: strings.Repeat("5", 80),
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("long contact: expected 400, got %d", rec.Code)
	}
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(ctx context.Context) error { return p.err }

func TestHTTPReady(t *testing.T) {
	s := newTestServer()
	s.http.AddReadinessCheck("store", stubPinger{})

	if rec := s.do(t, http.MethodGet, "/ready", nil, nil); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	s.http.AddReadinessCheck("cache", stubPinger{err: errors.New("connection refused")})
	rec := s.do(t, http.MethodGet, "/ready", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if got := decodeBody[map[string]string](t, rec); got["cache"] != "unavailable" || got["store"] != "ok" {
		t.Errorf("unexpected readiness body: %v", got)
	}
}

func TestHTTPOptionsAndCORS(t *testing.T) {
	s := newTestServer()

	rec := s.do(t, http.MethodGet, "/api/options", nil, map[string]string{"Origin": "http://localhost:3000"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("expected allowed origin echoed, got %q", got)
	}
	opts := decodeBody[OptionsResponse](t, rec)
	if len(opts.HousingStatuses) != 3 || opts.HousingStatuses[2] != domain.StatusFilledUp {
		t.Errorf("expected housing lifecycle in order, got %v", opts.HousingStatuses)
	}
}
