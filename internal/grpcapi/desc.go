package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name. Every method takes
// and returns a google.protobuf.Struct whose fields mirror the JSON bodies
// of the HTTP API.
const ServiceName = "checkpoint.v1.Checkpoint"

// CheckpointServer is the server API for the checkpoint.v1.Checkpoint
// service.
type CheckpointServer interface {
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CurrentSession(context.Context, *structpb.Struct) (*structpb.Struct, error)

	SubmitEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListEntries(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEntry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	IssueBadge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitExit(context.Context, *structpb.Struct) (*structpb.Struct, error)

	RegisterBadge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetBadge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReportBadgeLost(context.Context, *structpb.Struct) (*structpb.Struct, error)

	ListAlerts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveAlert(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(CheckpointServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, call unaryFunc) grpc.MethodDesc {
	full := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CheckpointServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CheckpointServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for the checkpoint.v1.Checkpoint
// service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CheckpointServer)(nil),
	Methods: []grpc.MethodDesc{
		method("Login", CheckpointServer.Login),
		method("Logout", CheckpointServer.Logout),
		method("CurrentSession", CheckpointServer.CurrentSession),
		method("SubmitEntry", CheckpointServer.SubmitEntry),
		method("ListEntries", CheckpointServer.ListEntries),
		method("GetEntry", CheckpointServer.GetEntry),
		method("IssueBadge", CheckpointServer.IssueBadge),
		method("SubmitExit", CheckpointServer.SubmitExit),
		method("RegisterBadge", CheckpointServer.RegisterBadge),
		method("GetBadge", CheckpointServer.GetBadge),
		method("ReportBadgeLost", CheckpointServer.ReportBadgeLost),
		method("ListAlerts", CheckpointServer.ListAlerts),
		method("ResolveAlert", CheckpointServer.ResolveAlert),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "checkpoint/v1/checkpoint.proto",
}

// RegisterCheckpointServer registers srv on s.
func RegisterCheckpointServer(s grpc.ServiceRegistrar, srv CheckpointServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the invoke path of a method, e.g. for ClientConn.Invoke.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}
