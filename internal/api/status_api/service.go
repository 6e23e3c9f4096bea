package status_api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "tripwatch.v1.TripStatusService"

	getCurrentStatusMethod = "/" + ServiceName + "/GetCurrentStatus"
	listStatusEventsMethod = "/" + ServiceName + "/ListStatusEvents"
)

// TripStatusServiceServer is the server API for tripwatch.v1.TripStatusService.
// Messages are protobuf well-known types: the reference is a StringValue, records are Structs.
type TripStatusServiceServer interface {
	GetCurrentStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ListStatusEvents(ctx context.Context, req *structpb.Struct) (*structpb.ListValue, error)
}

var TripStatusServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TripStatusServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetCurrentStatus", Handler: getCurrentStatusHandler},
		{MethodName: "ListStatusEvents", Handler: listStatusEventsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tripwatch/v1/status.proto",
}

func RegisterTripStatusServiceServer(s grpc.ServiceRegistrar, srv TripStatusServiceServer) {
	s.RegisterService(&TripStatusServiceDesc, srv)
}

func getCurrentStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TripStatusServiceServer).GetCurrentStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getCurrentStatusMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TripStatusServiceServer).GetCurrentStatus(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func listStatusEventsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TripStatusServiceServer).ListStatusEvents(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listStatusEventsMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TripStatusServiceServer).ListStatusEvents(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client calls TripStatusService over a grpc connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) GetCurrentStatus(ctx context.Context, reference string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, getCurrentStatusMethod, wrapperspb.String(reference), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListStatusEvents(ctx context.Context, reference string, limit, offset int, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	in, err := structpb.NewStruct(map[string]any{
		"reference": reference,
		"limit":     limit,
		"offset":    offset,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, listStatusEventsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
