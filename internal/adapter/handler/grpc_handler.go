package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rl1809/roomsync/internal/core/domain"
	"github.com/rl1809/roomsync/internal/core/service"
	"github.com/rl1809/roomsync/internal/port"
)

const (
	ServiceName = "roomsync.v1.ListingService"

	identityMetadataKey  = "x-identity-id"
	requestIDMetadataKey = "x-request-id"

	// ErrorDomain and ReasonInvalidTransition identify the ErrorInfo detail
	// attached to a rejected status change.
	ErrorDomain             = "roomsync.v1"
	ReasonInvalidTransition = "INVALID_TRANSITION"
)

// ListingServiceServer is the gRPC surface. Messages are free-form structs
// carrying the same JSON shapes the HTTP API uses.
type ListingServiceServer interface {
	ResolveIdentity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetIdentity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListListings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	SetListingStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(ListingServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ListingServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ListingServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ListingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ListingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ResolveIdentity", Handler: unaryHandler("ResolveIdentity", ListingServiceServer.ResolveIdentity)},
		{MethodName: "GetIdentity", Handler: unaryHandler("GetIdentity", ListingServiceServer.GetIdentity)},
		{MethodName: "CreateListing", Handler: unaryHandler("CreateListing", ListingServiceServer.CreateListing)},
		{MethodName: "ListListings", Handler: unaryHandler("ListListings", ListingServiceServer.ListListings)},
		{MethodName: "SetListingStatus", Handler: unaryHandler("SetListingStatus", ListingServiceServer.SetListingStatus)},
	},
	Streams: []grpc.StreamDesc{},
}

func RegisterListingServiceServer(s grpc.ServiceRegistrar, srv ListingServiceServer) {
	s.RegisterService(&ListingServiceDesc, srv)
}

type GRPCHandler struct {
	identities *service.IdentityService
	listings   *service.ListingService
	logger     *logrus.Logger
}

func NewGRPCHandler(identities *service.IdentityService, listings *service.ListingService, logger *logrus.Logger) *GRPCHandler {
	return &GRPCHandler{identities: identities, listings: listings, logger: logger}
}

type ListingRequest struct {
	Type     string          `json:"type"`
	ID       string          `json:"id,omitempty"`
	Status   domain.Status   `json:"status,omitempty"`
	Listing  json.RawMessage `json:"listing,omitempty"`
	Criteria map[string]any  `json:"criteria,omitempty"`
}

type ListingsResponse struct {
	Listings any `json:"listings"`
}

func (h *GRPCHandler) ResolveIdentity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in ResolveIdentityRequest
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}

	identity, err := h.identities.ResolveIdentity(ctx, in.ContactInfo, strings.TrimSpace(in.ExistingID))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toStruct(identity)
}

func (h *GRPCHandler) GetIdentity(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := fromStruct(req, &in); err != nil {
		return nil, err
	}

	identity, err := h.identities.GetIdentity(ctx, in.ID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toStruct(identity)
}

func (h *GRPCHandler) CreateListing(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, listingType, err := decodeListingRequest(req)
	if err != nil {
		return nil, err
	}
	requestID := incomingValue(ctx, requestIDMetadataKey)
	ownerID := incomingValue(ctx, identityMetadataKey)

	var created any
	switch listingType {
	case domain.ListingTypeHousing:
		var input domain.HousingInput
		if err := decodeListing(in.Listing, &input); err != nil {
			return nil, err
		}
		created, err = h.listings.CreateHousing(ctx, requestID, ownerID, input)
	case domain.ListingTypeMarketplace:
		var input domain.MarketplaceInput
		if err := decodeListing(in.Listing, &input); err != nil {
			return nil, err
		}
		created, err = h.listings.CreateMarketplace(ctx, requestID, ownerID, input)
	}
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toStruct(created)
}

func (h *GRPCHandler) ListListings(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, listingType, err := decodeListingRequest(req)
	if err != nil {
		return nil, err
	}
	query := criteriaValues(in.Criteria)
	viewerID := incomingValue(ctx, identityMetadataKey)

	var views any
	switch listingType {
	case domain.ListingTypeHousing:
		views, err = h.listings.ListHousing(ctx, domain.ParseHousingCriteria(query), viewerID)
	case domain.ListingTypeMarketplace:
		views, err = h.listings.ListMarketplace(ctx, marketplaceCriteria(query), viewerID)
	}
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toStruct(ListingsResponse{Listings: views})
}

func (h *GRPCHandler) SetListingStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	in, listingType, err := decodeListingRequest(req)
	if err != nil {
		return nil, err
	}

	listing, err := h.listings.SetListingStatus(ctx, listingType, in.ID, in.Status, incomingValue(ctx, identityMetadataKey))
	if err != nil {
		return nil, h.toStatus(err)
	}
	return toStruct(listing)
}

func (h *GRPCHandler) toStatus(err error) error {
	var validationErr *domain.ValidationError
	var transitionErr *domain.TransitionError

	switch {
	case errors.As(err, &validationErr):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.As(err, &transitionErr):
		return transitionStatus(transitionErr, err)
	case errors.Is(err, domain.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, port.ErrOptimisticLock):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, port.ErrUnavailable):
		return status.Error(codes.Unavailable, err.Error())
	}

	h.logger.WithError(err).Error("grpc request failed")
	return status.Error(codes.Internal, "internal error")
}

// transitionStatus carries both ends of a rejected move as ErrorInfo metadata,
// the fields the HTTP API returns in its error body.
func transitionStatus(transitionErr *domain.TransitionError, err error) error {
	st := status.New(codes.FailedPrecondition, err.Error())
	detailed, detailErr := st.WithDetails(&errdetails.ErrorInfo{
		Reason: ReasonInvalidTransition,
		Domain: ErrorDomain,
		Metadata: map[string]string{
			"listing_type":     string(transitionErr.Type),
			"current_status":   string(transitionErr.Current),
			"requested_status": string(transitionErr.Requested),
		},
	})
	if detailErr != nil {
		return st.Err()
	}
	return detailed.Err()
}

// UnaryLogger logs one line per call.
func UnaryLogger(logger *logrus.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		logger.WithFields(logrus.Fields{
			"method":   info.FullMethod,
			"code":     status.Code(err).String(),
			"duration": time.Since(start).String(),
		}).Info("grpc request")
		return resp, err
	}
}

func decodeListingRequest(req *structpb.Struct) (ListingRequest, domain.ListingType, error) {
	var in ListingRequest
	if err := fromStruct(req, &in); err != nil {
		return in, "", err
	}
	listingType, err := domain.ParseListingType(in.Type)
	if err != nil {
		return in, "", status.Error(codes.InvalidArgument, err.Error())
	}
	return in, listingType, nil
}

func decodeListing(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return status.Error(codes.InvalidArgument, "listing is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid listing: %v", err)
	}
	return nil
}

// criteriaValues flattens struct criteria into the query form the HTTP API
// accepts, so both transports parse criteria the same way.
func criteriaValues(criteria map[string]any) url.Values {
	query := make(url.Values, len(criteria))
	for key, v := range criteria {
		switch v := v.(type) {
		case string:
			query.Set(key, v)
		case float64:
			query.Set(key, strconv.FormatFloat(v, 'f', -1, 64))
		case bool:
			query.Set(key, strconv.FormatBool(v))
		}
	}
	return query
}

func incomingValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func fromStruct(s *structpb.Struct, dst any) error {
	raw, err := protojson.Marshal(s)
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return status.Errorf(codes.InvalidArgument, "invalid request: %v", err)
	}
	return nil
}

func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return out, nil
}
