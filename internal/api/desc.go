package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "wprelay.v1.RelayService"

// RelayServer is the server API of the relay service. Payloads use the
// well-known types: snapshots and chat results travel as Structs.
type RelayServer interface {
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Logout(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	SyncChats(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	EnsureChatSynced(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ShowBrowserWindow(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	PairingCode(context.Context, *emptypb.Empty) (*wrapperspb.StringValue, error)
	WatchStatus(*emptypb.Empty, grpc.ServerStream) error
	WatchLogs(*emptypb.Empty, grpc.ServerStream) error
}

// ServiceDesc describes RelayService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Status", Handler: unary("Status", newEmpty, RelayServer.Status)},
		{MethodName: "Start", Handler: unary("Start", newEmpty, RelayServer.Start)},
		{MethodName: "Stop", Handler: unary("Stop", newEmpty, RelayServer.Stop)},
		{MethodName: "Logout", Handler: unary("Logout", newEmpty, RelayServer.Logout)},
		{MethodName: "SyncChats", Handler: unary("SyncChats", newString, RelayServer.SyncChats)},
		{MethodName: "EnsureChatSynced", Handler: unary("EnsureChatSynced", newStruct, RelayServer.EnsureChatSynced)},
		{MethodName: "ShowBrowserWindow", Handler: unary("ShowBrowserWindow", newEmpty, RelayServer.ShowBrowserWindow)},
		{MethodName: "PairingCode", Handler: unary("PairingCode", newEmpty, RelayServer.PairingCode)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchStatus", Handler: serverStream(RelayServer.WatchStatus), ServerStreams: true},
		{StreamName: "WatchLogs", Handler: serverStream(RelayServer.WatchLogs), ServerStreams: true},
	},
	Metadata: "wprelay/v1/relay.proto",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func newEmpty() *emptypb.Empty { return new(emptypb.Empty) }
func newString() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }
func newStruct() *structpb.Struct { return new(structpb.Struct) }

func unary[Req, Resp proto.Message](name string, newReq func() Req, call func(RelayServer, context.Context, Req) (Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RelayServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(RelayServer), ctx, req.(Req))
		})
	}
}

func serverStream(call func(RelayServer, *emptypb.Empty, grpc.ServerStream) error) grpc.StreamHandler {
	return func(srv any, stream grpc.ServerStream) error {
		in := new(emptypb.Empty)
		if err := stream.RecvMsg(in); err != nil {
			return err
		}
		return call(srv.(RelayServer), in, stream)
	}
}
