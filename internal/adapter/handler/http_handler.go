package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/core/service"
	"github.com/rl1809/roomsync/internal/port"
)

const (
	identityHeader  = "X-Identity-ID"
	requestIDHeader = "X-Request-ID"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	identities *service.IdentityService
	listings   *service.ListingService
	logger     *logrus.Logger
	readiness  map[string]Pinger
}

type ErrorResponse struct {
	Error           string   `json:"error"`
	Problems        []string `json:"problems,omitempty"`
	CurrentStatus   string   `json:"current_status,omitempty"`
	RequestedStatus string   `json:"requested_status,omitempty"`
}

type ResolveIdentityRequest struct {
	domain.ContactInfo
	ExistingID string `json:"existing_id"`
}

type StatusRequest struct {
	Status domain.Status `json:"status"`
}

type OptionsResponse struct {
	GenderPreferences []string        `json:"gender_preferences"`
	LeaseTerms        []string        `json:"lease_terms"`
	Categories        []string        `json:"categories"`
	Conditions        []string        `json:"conditions"`
	HousingStatuses   []domain.Status `json:"housing_statuses"`
	MarketStatuses    []domain.Status `json:"marketplace_statuses"`
}

func NewHTTPHandler(identities *service.IdentityService, listings *service.ListingService, logger *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{
		identities: identities,
		listings:   listings,
		logger:     logger,
		readiness:  make(map[string]Pinger),
	}
}

// AddReadinessCheck registers a dependency checked by the readiness endpoint.
func (h *HTTPHandler) AddReadinessCheck(name string, p Pinger) {
	h.readiness[name] = p
}

func (h *HTTPHandler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.Ready).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/options", h.Options).Methods(http.MethodGet)

	api.HandleFunc("/users", h.CreateIdentity).Methods(http.MethodPost)
	api.HandleFunc("/users/resolve", h.ResolveIdentity).Methods(http.MethodPost)
	api.HandleFunc("/users/{id}", h.GetIdentity).Methods(http.MethodGet)

	api.HandleFunc("/availabilities", h.CreateHousing).Methods(http.MethodPost)
	api.HandleFunc("/availabilities", h.ListHousing).Methods(http.MethodGet)
	api.HandleFunc("/availabilities/{id}", h.GetHousing).Methods(http.MethodGet)
	api.HandleFunc("/availabilities/{id}/status", h.setStatus(domain.ListingTypeHousing)).Methods(http.MethodPut)

	api.HandleFunc("/marketplace", h.CreateMarketplace).Methods(http.MethodPost)
	api.HandleFunc("/marketplace", h.ListMarketplace).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/{id}", h.GetMarketplace).Methods(http.MethodGet)
	api.HandleFunc("/marketplace/{id}/status", h.setStatus(domain.ListingTypeMarketplace)).Methods(http.MethodPut)

	return router
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.readiness))
	status := http.StatusOK
	for name, p := range h.readiness {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.WithError(err).WithField("dependency", name).Warn("readiness check failed")
			checks[name] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	writeJSON(w, status, checks)
}

func (h *HTTPHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OptionsResponse{
		GenderPreferences: domain.GenderPreferences,
		LeaseTerms:        domain.LeaseTerms,
		Categories:        domain.Categories,
		Conditions:        domain.Conditions,
		HousingStatuses:   domain.LifecycleFor(domain.ListingTypeHousing).States(),
		MarketStatuses:    domain.LifecycleFor(domain.ListingTypeMarketplace).States(),
	})
}

func (h *HTTPHandler) CreateIdentity(w http.ResponseWriter, r *http.Request) {
	var req domain.ContactInfo
	if !h.decode(w, r, &req) {
		return
	}

	identity, err := h.identities.CreateIdentity(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, identity)
}

func (h *HTTPHandler) ResolveIdentity(w http.ResponseWriter, r *http.Request) {
	var req ResolveIdentityRequest
	if !h.decode(w, r, &req) {
		return
	}

	identity, err := h.identities.ResolveIdentity(r.Context(), req.ContactInfo, strings.TrimSpace(req.ExistingID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *HTTPHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identities.GetIdentity(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *HTTPHandler) CreateHousing(w http.ResponseWriter, r *http.Request) {
	var req domain.HousingInput
	if !h.decode(w, r, &req) {
		return
	}

	listing, err := h.listings.CreateHousing(r.Context(), r.Header.Get(requestIDHeader), callerID(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *HTTPHandler) ListHousing(w http.ResponseWriter, r *http.Request) {
	criteria := domain.ParseHousingCriteria(r.URL.Query())

	views, err := h.listings.ListHousing(r.Context(), criteria, callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *HTTPHandler) GetHousing(w http.ResponseWriter, r *http.Request) {
	view, err := h.listings.GetHousingView(r.Context(), mux.Vars(r)["id"], callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) CreateMarketplace(w http.ResponseWriter, r *http.Request) {
	var req domain.MarketplaceInput
	if !h.decode(w, r, &req) {
		return
	}

	listing, err := h.listings.CreateMarketplace(r.Context(), r.Header.Get(requestIDHeader), callerID(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, listing)
}

func (h *HTTPHandler) ListMarketplace(w http.ResponseWriter, r *http.Request) {
	criteria := marketplaceCriteria(r.URL.Query())

	views, err := h.listings.ListMarketplace(r.Context(), criteria, callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// marketplaceCriteria parses q, showing only unsold items unless q names a
// status.
func marketplaceCriteria(q url.Values) domain.MarketplaceCriteria {
	criteria := domain.ParseMarketplaceCriteria(q)
	if criteria.Status == nil {
		active := domain.StatusActive
		criteria.Status = &active
	}
	return criteria
}

func (h *HTTPHandler) GetMarketplace(w http.ResponseWriter, r *http.Request) {
	view, err := h.listings.GetMarketplaceView(r.Context(), mux.Vars(r)["id"], callerID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *HTTPHandler) setStatus(listingType domain.ListingType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StatusRequest
		if !h.decode(w, r, &req) {
			return
		}

		listing, err := h.listings.SetListingStatus(r.Context(), listingType, mux.Vars(r)["id"], req.Status, callerID(r))
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listing)
	}
}

func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: "internal error"}

	var validationErr *domain.ValidationError
	var transitionErr *domain.TransitionError

	switch {
	case errors.As(err, &validationErr):
		status = http.StatusBadRequest
		resp.Error = domain.ErrValidation.Error()
		resp.Problems = validationErr.Problems
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
		resp.Error = "not found"
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
		resp.Error = "only the author can change this listing"
	case errors.As(err, &transitionErr):
		status = http.StatusConflict
		resp.Error = domain.ErrInvalidTransition.Error()
		resp.CurrentStatus = string(transitionErr.Current)
		resp.RequestedStatus = string(transitionErr.Requested)
	case errors.Is(err, domain.ErrDuplicateRequest):
		status = http.StatusConflict
		resp.Error = "duplicate request"
	case errors.Is(err, port.ErrOptimisticLock):
		status = http.StatusConflict
		resp.Error = "listing changed concurrently, retry"
	case errors.Is(err, port.ErrUnavailable):
		status = http.StatusServiceUnavailable
		resp.Error = "service unavailable"
	}

	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
		}).Error("request failed")
	}
	writeJSON(w, status, resp)
}

func callerID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(identityHeader))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
