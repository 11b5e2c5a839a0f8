package server

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// NewGRPCServer returns a server with the Kelly service, the standard health
// service and reflection registered.
func NewGRPCServer(h *Handler) *grpc.Server {
	s := grpc.NewServer(
		grpc.MaxRecvMsgSize(4*1024*1024),  // 4MB
		grpc.MaxSendMsgSize(16*1024*1024), // 16MB
		grpc.ChainUnaryInterceptor(h.UnaryLogger),
	)
	RegisterKellyServer(s, h)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	reflection.Register(s)
	return s
}
