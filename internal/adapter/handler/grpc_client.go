package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// ListingClient calls ListingService, converting Go values to and from the
// struct messages on the wire.
type ListingClient struct {
	conn grpc.ClientConnInterface
}

func NewListingClient(conn grpc.ClientConnInterface) *ListingClient {
	return &ListingClient{conn: conn}
}

// WithIdentity attaches the caller identity (and, when non-empty, a request
// id) to outgoing calls.
func WithIdentity(ctx context.Context, identityID, requestID string) context.Context {
	pairs := []string{identityMetadataKey, identityID}
	if requestID != "" {
		pairs = append(pairs, requestIDMetadataKey, requestID)
	}
	return metadata.AppendToOutgoingContext(ctx, pairs...)
}

// Call invokes method with req encoded as a struct and decodes the reply
// into resp. resp may be nil.
func (c *ListingClient) Call(ctx context.Context, method string, req, resp any) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}

	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return fromStruct(out, resp)
}
