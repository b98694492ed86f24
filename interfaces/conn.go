package interfaces

import "context"

// Conn is one duplex message connection between the broker and a peer (a node or a plain caller).
// It carries two independent channels: fire-and-forget messages (Send) and correlated calls (Call),
// whose replies are matched to requests by an id the transport assigns.
//
// Implemented by grpcconn.streamConn (server side and node side). Used by service.Core for the auth
// handshake and by service.Node for nested calls.
//
//go:generate moq -stub -out mock/conn.go -pkg mock . Conn
type Conn interface {
	// ID returns a process-unique identifier of the connection (stable for its lifetime).
	ID() string

	// RemoteAddr returns the peer address for logging; may be empty.
	RemoteAddr() string

	// Send writes one fire-and-forget message.
	// Returns: nil once the frame is queued on the wire; ErrConnClosed (from the transport) after Close.
	Send(ctx context.Context, payload []byte) error

	// Call writes a correlated call and blocks until the peer replies, ctx ends or the connection closes.
	// Returns: (reply, nil) on reply; (nil, ctx.Err()) on cancellation; (nil, ErrConnClosed) when the connection goes away.
	Call(ctx context.Context, payload []byte) ([]byte, error)

	// Close closes the connection. Idempotent; ConnHandler.OnClosed fires exactly once.
	Close() error
}

// ConnHandler receives the lifecycle events of connections accepted (or dialed) by a transport.
//
// OnConnected fires once before any other event of the connection; OnMessage is called in arrival order
// from the connection's receive loop; OnCall runs in its own goroutine per call and its return value is
// sent back as the reply; OnClosed fires exactly once when the connection ends for any reason.
//
// Implemented by service.Core (broker side) and nodeclient.Node (worker side).
type ConnHandler interface {
	OnConnected(conn Conn)
	OnMessage(conn Conn, payload []byte)
	OnCall(ctx context.Context, conn Conn, payload []byte) []byte
	OnClosed(conn Conn)
}
