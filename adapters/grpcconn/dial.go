package grpcconn

import (
	"context"

	"center/helpers"
	"center/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
)

var connectDesc = grpc.StreamDesc{StreamName: "Connect", ServerStreams: true, ClientStreams: true}

// Connect opens a Connect stream on cc and serves it with handler until the connection closes or ctx
// ends. OnConnected fires once the stream is open; OnClosed fires before Connect returns.
//
// Returns: nil after a connection that was open has closed; the NewStream error when the stream could
// not be opened (no handler event fires then).
//
// Called from nodeclient.Client.Run on every (re)connect.
func Connect(ctx context.Context, cc grpc.ClientConnInterface, handler interfaces.ConnHandler, logger log.Logger) error {
	helpers.NilPanic(handler, "grpcconn.dial.go: handler is required")
	logger = log.With(helpers.NilPanic(logger, "grpcconn.dial.go: logger is required"), "component", "grpcconn")

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := cc.NewStream(streamCtx, &connectDesc, ConnectMethod)
	if err != nil {
		cancel()
		return err
	}
	c := newStreamConn(stream, cancel, handler, logger)
	if t, ok := cc.(interface{ Target() string }); ok {
		c.remote = t.Target()
	}
	level.Debug(logger).Log("msg", "stream opened", "conn", c.ID(), "remote", c.remote)
	handler.OnConnected(c)
	c.run()
	return nil
}
