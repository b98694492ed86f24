// Package grpcconn carries broker connections over gRPC: one bidirectional stream of
// google.protobuf.BytesValue per connection, each value one frame of kind message, call or reply.
package grpcconn

import (
	"center/helpers"
	"center/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
)

// ConnectMethod is the full gRPC method name of the duplex stream.
const ConnectMethod = "/center.v1.Center/Connect"

// centerServer is the handler type registered in serviceDesc.
type centerServer interface {
	connect(stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "center.v1.Center",
	HandlerType: (*centerServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "center/v1/center.proto",
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(centerServer).connect(stream)
}

// Server accepts Connect streams and hands each one to the ConnHandler as an interfaces.Conn.
type Server struct {
	handler interfaces.ConnHandler
	logger  log.Logger
}

// NewServer creates the transport server. Panics on nil handler or logger.
//
// Called from cmd/main with the broker core as handler; Register then attaches it to the grpc.Server.
func NewServer(handler interfaces.ConnHandler, logger log.Logger) *Server {
	return &Server{
		handler: helpers.NilPanic(handler, "grpcconn.server.go: handler is required"),
		logger:  log.With(helpers.NilPanic(logger, "grpcconn.server.go: logger is required"), "component", "grpcconn"),
	}
}

// Register adds the Connect service to reg.
func (s *Server) Register(reg grpc.ServiceRegistrar) {
	reg.RegisterService(&serviceDesc, s)
}

// connect serves one stream for its whole life: OnConnected first, then frames until either side closes,
// then OnClosed. The RPC ends when this returns.
func (s *Server) connect(stream grpc.ServerStream) error {
	c := newStreamConn(stream, nil, s.handler, s.logger)
	level.Debug(s.logger).Log("msg", "stream opened", "conn", c.ID(), "remote", c.RemoteAddr())
	s.handler.OnConnected(c)
	c.run()
	return nil
}
