// Package server exposes chat sessions over gRPC as the kelly.v1.Kelly service.
//
// Requests and responses are google.protobuf.Struct values:
//
//	NewSession {}                                -> {session_id}
//	Ask        {session_id, prompt}              -> {session_id, reply}
//	History    {session_id}                      -> {session_id, turns: [{role, content}]}
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "kelly.v1.Kelly"

// KellyServer is the server API for the Kelly service.
type KellyServer interface {
	NewSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ask(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the Kelly service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*KellyServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("NewSession", KellyServer.NewSession),
		unary("Ask", KellyServer.Ask),
		unary("History", KellyServer.History),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kelly/v1/kelly.proto",
}

// RegisterKellyServer registers srv on s.
func RegisterKellyServer(s grpc.ServiceRegistrar, srv KellyServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type unaryMethod func(KellyServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(KellyServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(KellyServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls the Kelly service over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// NewSession starts a session and returns its id.
func (c *Client) NewSession(ctx context.Context) (string, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/NewSession", &structpb.Struct{}, out); err != nil {
		return "", err
	}
	return out.GetFields()["session_id"].GetStringValue(), nil
}

// Ask sends prompt within the session and returns the reply.
func (c *Client) Ask(ctx context.Context, sessionID, prompt string) (string, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"session_id": sessionID, "prompt": prompt})
	if err != nil {
		return "", err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Ask", in, out); err != nil {
		return "", err
	}
	return out.GetFields()["reply"].GetStringValue(), nil
}

// History returns the session's turns as role/content pairs.
func (c *Client) History(ctx context.Context, sessionID string) ([]map[string]string, error) {
	in, err := structpb.NewStruct(map[string]interface{}{"session_id": sessionID})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/History", in, out); err != nil {
		return nil, err
	}

	values := out.GetFields()["turns"].GetListValue().GetValues()
	turns := make([]map[string]string, 0, len(values))
	for _, v := range values {
		f := v.GetStructValue().GetFields()
		turns = append(turns, map[string]string{
			"role":    f["role"].GetStringValue(),
			"content": f["content"].GetStringValue(),
		})
	}
	return turns, nil
}
