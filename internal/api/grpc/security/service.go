package security

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "catpoint.v1.SecurityService"

// Method names of the SecurityService.
const (
	MethodGetStatus              = "GetStatus"
	MethodSetArmingStatus        = "SetArmingStatus"
	MethodAddSensor              = "AddSensor"
	MethodRemoveSensor           = "RemoveSensor"
	MethodChangeSensorActivation = "ChangeSensorActivation"
	MethodProcessImage           = "ProcessImage"
)

// Metadata keys identifying who issued a call.
const (
	MetadataHostname = "x-catpoint-hostname"
	MetadataUsername = "x-catpoint-username"
)

// FullMethod returns the method path used on the wire.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// SecurityServiceServer is the server API of the SecurityService.
// Every method answers with the encoded panel snapshot.
type SecurityServiceServer interface {
	GetStatus(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	SetArmingStatus(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	AddSensor(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RemoveSensor(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	ChangeSensorActivation(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ProcessImage(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error)
}

// RegisterSecurityServiceServer attaches srv to registrar.
func RegisterSecurityServiceServer(registrar grpc.ServiceRegistrar, srv SecurityServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the SecurityService for grpc.Server.
//
//nolint:gochecknoglobals // grpc.Server keeps a pointer to the descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SecurityServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodGetStatus,
			Handler: unaryHandler(MethodGetStatus, newEmpty,
				SecurityServiceServer.GetStatus),
		},
		{
			MethodName: MethodSetArmingStatus,
			Handler: unaryHandler(MethodSetArmingStatus, newString,
				SecurityServiceServer.SetArmingStatus),
		},
		{
			MethodName: MethodAddSensor,
			Handler: unaryHandler(MethodAddSensor, newStruct,
				SecurityServiceServer.AddSensor),
		},
		{
			MethodName: MethodRemoveSensor,
			Handler: unaryHandler(MethodRemoveSensor, newString,
				SecurityServiceServer.RemoveSensor),
		},
		{
			MethodName: MethodChangeSensorActivation,
			Handler: unaryHandler(MethodChangeSensorActivation, newStruct,
				SecurityServiceServer.ChangeSensorActivation),
		},
		{
			MethodName: MethodProcessImage,
			Handler: unaryHandler(MethodProcessImage, newBytes,
				SecurityServiceServer.ProcessImage),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "catpoint/v1/security.proto",
}

// unaryHandler builds the grpc.MethodHandler for one method.
func unaryHandler[Req proto.Message](
	method string,
	newRequest func() Req,
	call func(SecurityServiceServer, context.Context, Req) (*structpb.Struct, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := newRequest()
		if err := dec(req); err != nil {
			return nil, err
		}

		//nolint:forcetypeassert // grpc.Server checks srv against HandlerType on registration.
		server := srv.(SecurityServiceServer)

		if interceptor == nil {
			return call(server, ctx, req)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(server, ctx, req.(Req)) //nolint:forcetypeassert // Interceptors pass the request through.
		}

		return interceptor(ctx, req, info, handler)
	}
}

func newEmpty() *emptypb.Empty           { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newBytes() *wrapperspb.BytesValue   { return new(wrapperspb.BytesValue) }
func newStruct() *structpb.Struct        { return new(structpb.Struct) }

// SecurityServiceClient is the client API of the SecurityService.
type SecurityServiceClient struct {
	// cc carries the calls.
	cc grpc.ClientConnInterface
}

// NewSecurityServiceClient creates a client over cc.
func NewSecurityServiceClient(cc grpc.ClientConnInterface) *SecurityServiceClient {
	return &SecurityServiceClient{cc: cc}
}

// GetStatus returns the panel snapshot.
func (c *SecurityServiceClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodGetStatus, new(emptypb.Empty), opts...)
}

// SetArmingStatus sets the arming status by name.
func (c *SecurityServiceClient) SetArmingStatus(
	ctx context.Context,
	status string,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSetArmingStatus, wrapperspb.String(status), opts...)
}

// AddSensor registers a sensor described by req.
func (c *SecurityServiceClient) AddSensor(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodAddSensor, req, opts...)
}

// RemoveSensor unregisters the sensor called name.
func (c *SecurityServiceClient) RemoveSensor(
	ctx context.Context,
	name string,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodRemoveSensor, wrapperspb.String(name), opts...)
}

// ChangeSensorActivation activates or deactivates the sensor described by req.
func (c *SecurityServiceClient) ChangeSensorActivation(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodChangeSensorActivation, req, opts...)
}

// ProcessImage sends an encoded camera image for classification.
func (c *SecurityServiceClient) ProcessImage(
	ctx context.Context,
	image []byte,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodProcessImage, wrapperspb.Bytes(image), opts...)
}

func (c *SecurityServiceClient) invoke(
	ctx context.Context,
	method string,
	req any,
	opts ...grpc.CallOption,
) (*structpb.Struct, error) {
	out := new(structpb.Struct)

	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
