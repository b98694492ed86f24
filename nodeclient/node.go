// Package nodeclient is the worker-side SDK: it keeps a node connected and authenticated to the broker,
// answers the broker's calls with registered handlers and lets the node issue its own broker calls.
package nodeclient

import (
	"context"
	"crypto"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"center/adapters/grpcconn"
	"center/domain"
	"center/helpers"
	"center/interfaces"
	"center/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"google.golang.org/grpc"
)

var _ interfaces.ConnHandler = (*Node)(nil)

// DefaultReconnectDelay is the pause between a closed connection and the next attempt.
const DefaultReconnectDelay = 2 * time.Second

// ErrNotReady is returned by Call while the node has no authenticated connection.
var ErrNotReady = errors.New("node is not connected to the broker")

// Handler answers one broker call. A nil reply is sent as null; so is an error, which is also logged.
type Handler func(ctx context.Context, data json.RawMessage) (json.RawMessage, error)

// Config describes the node to the broker.
type Config struct {
	// AuthID names the certificate the broker verifies the node with.
	AuthID string
	// Key signs the handshake.
	Key crypto.Signer
	// Method is the signature method; defaults to rsa-sha256.
	Method string
	// Service is the service the node provides; defaults to "none" (a plain caller).
	Service string
	// Apps are the applications a container node can host.
	Apps domain.AppConfigList
	// Capacity is the node's admission limit.
	Capacity int
	// Handlers maps a call function name (req-svc, Join, Create) to its handler.
	Handlers map[string]Handler
	// CenterKey, when set, is used to check the broker's signature on the auth reply.
	CenterKey crypto.PublicKey
	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
}

// Node keeps one broker connection alive. It is the interfaces.ConnHandler of that connection.
type Node struct {
	cfg          Config
	timeProvider interfaces.TimeProvider
	logger       log.Logger

	mu    sync.Mutex
	conn  interfaces.Conn
	authd bool
	ready chan struct{}
}

// New creates a node. Panics on a missing AuthID or Key, an unknown Method, or nil dependencies.
//
// Called by worker processes (and tests); Run then connects it.
func New(cfg Config, tp interfaces.TimeProvider, logger log.Logger) *Node {
	if cfg.AuthID == "" {
		panic("nodeclient.node.go: auth id is required")
	}
	helpers.NilPanic(cfg.Key, "nodeclient.node.go: key is required")
	if cfg.Method == "" {
		cfg.Method = service.SignMethodRSASHA256
	}
	if !service.ValidSignMethod(cfg.Method) {
		panic(fmt.Sprintf("nodeclient.node.go: unknown sign method %s", cfg.Method))
	}
	if cfg.Service == "" {
		cfg.Service = domain.ServiceNone
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	return &Node{
		cfg:          cfg,
		timeProvider: helpers.NilPanic(tp, "nodeclient.node.go: time provider is required"),
		logger:       log.With(helpers.NilPanic(logger, "nodeclient.node.go: logger is required"), "component", "nodeclient", "id", cfg.AuthID),
		ready:        make(chan struct{}),
	}
}

// Run connects to the broker over cc and reconnects ReconnectDelay after every close until ctx ends.
// Returns ctx.Err().
func (n *Node) Run(ctx context.Context, cc grpc.ClientConnInterface) error {
	for {
		if err := grpcconn.Connect(ctx, cc, n, n.logger); err != nil {
			level.Warn(n.logger).Log("msg", "cannot reach broker", "err", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.cfg.ReconnectDelay):
		}
	}
}

// Ready returns a channel that is closed once the current connection has been accepted by the broker.
// A new channel is handed out after the connection closes.
func (n *Node) Ready() <-chan struct{} {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.ready
}

// Call issues a broker call (req-svc, req-common-instance) on the authenticated connection.
//
// Returns: (reply, nil); (nil, ErrNotReady) when not authenticated; (nil, err) on encode or transport errors.
func (n *Node) Call(ctx context.Context, fn string, data any) (json.RawMessage, error) {
	n.mu.Lock()
	conn, authd := n.conn, n.authd
	n.mu.Unlock()
	if conn == nil || !authd {
		return nil, ErrNotReady
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s data: %w", fn, err)
	}
	payload, err := json.Marshal(domain.Call{Func: fn, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s call: %w", fn, err)
	}
	reply, err := conn.Call(ctx, payload)
	if err != nil {
		return nil, err
	}
	return reply, nil
}

// OnConnected sends the signed handshake.
func (n *Node) OnConnected(conn interfaces.Conn) {
	n.mu.Lock()
	n.conn = conn
	n.authd = false
	n.mu.Unlock()

	sig, err := service.MakeSignature(domain.AuthPayload, n.cfg.Key, n.cfg.Method, n.timeProvider.Now().UnixMilli())
	if err != nil {
		level.Error(n.logger).Log("msg", "cannot sign handshake", "err", err)
		_ = conn.Close()
		return
	}
	id := n.cfg.AuthID
	req := domain.AuthRequest{
		ID:        &id,
		Signature: sig,
		Service:   n.cfg.Service,
		Apps:      n.cfg.Apps,
		Capacity:  n.cfg.Capacity,
	}
	data, err := json.Marshal(req)
	if err != nil {
		level.Error(n.logger).Log("msg", "cannot encode handshake", "err", err)
		_ = conn.Close()
		return
	}
	payload, err := json.Marshal(domain.Message{Cmd: domain.CmdAuth, Data: data})
	if err != nil {
		_ = conn.Close()
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Send(ctx, payload); err != nil {
		level.Warn(n.logger).Log("msg", "handshake not sent", "err", err)
		_ = conn.Close()
	}
}

// OnMessage handles the broker's auth reply and pong. A message that does not decode closes the connection.
func (n *Node) OnMessage(conn interfaces.Conn, payload []byte) {
	var msg domain.Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		level.Warn(n.logger).Log("msg", "malformed broker message", "err", err)
		_ = conn.Close()
		return
	}
	switch msg.Cmd {
	case domain.CmdAuth:
		n.onAuthReply(conn, msg.Data)
	case domain.CmdPong:
		level.Debug(n.logger).Log("msg", "pong")
	default:
		level.Debug(n.logger).Log("msg", "ignored broker message", "cmd", msg.Cmd)
	}
}

func (n *Node) onAuthReply(conn interfaces.Conn, data json.RawMessage) {
	var reply domain.AuthReply
	if err := json.Unmarshal(data, &reply); err != nil || reply.Status != domain.AuthStatusOK {
		level.Warn(n.logger).Log("msg", "auth refused", "status", reply.Status)
		_ = conn.Close()
		return
	}
	if n.cfg.CenterKey != nil && !service.VerifySignature(domain.AuthPayload, n.cfg.CenterKey, n.cfg.Method, reply.Signature) {
		level.Warn(n.logger).Log("msg", "broker signature rejected")
		_ = conn.Close()
		return
	}
	n.mu.Lock()
	if n.conn == conn && !n.authd {
		n.authd = true
		close(n.ready)
	}
	n.mu.Unlock()
	level.Info(n.logger).Log("msg", "auth OK", "service", n.cfg.Service)
}

// OnCall dispatches a broker call to its handler. Unknown functions, handler errors and panics reply null.
func (n *Node) OnCall(ctx context.Context, _ interfaces.Conn, payload []byte) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(n.logger).Log("msg", "handler panic", "panic", r, "stack", string(debug.Stack()))
			reply = domain.Null
		}
	}()
	var call domain.Call
	if err := json.Unmarshal(payload, &call); err != nil {
		level.Warn(n.logger).Log("msg", "malformed broker call", "err", err)
		return domain.Null
	}
	handler, ok := n.cfg.Handlers[call.Func]
	if !ok {
		level.Debug(n.logger).Log("msg", "no handler", "func", call.Func)
		return domain.Null
	}
	out, err := handler(ctx, call.Data)
	if err != nil {
		level.Info(n.logger).Log("msg", "handler failed", "func", call.Func, "err", err)
		return domain.Null
	}
	if len(out) == 0 {
		return domain.Null
	}
	return out
}

// OnClosed forgets the connection; Run reconnects.
func (n *Node) OnClosed(conn interfaces.Conn) {
	n.mu.Lock()
	if n.conn == conn {
		n.conn = nil
		n.authd = false
		select {
		case <-n.ready:
			n.ready = make(chan struct{})
		default:
		}
	}
	n.mu.Unlock()
	level.Info(n.logger).Log("msg", "disconnected from broker")
}
