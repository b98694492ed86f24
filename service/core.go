package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"strings"
	"sync"
	"time"

	"center/domain"
	"center/helpers"
	"center/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

var (
	_ interfaces.ConnHandler = (*Core)(nil)
	_ interfaces.Broker      = (*Core)(nil)
)

// CoreConfig holds the timing parameters of the broker.
type CoreConfig struct {
	// AuthTick is the resolution of the auth timeout wheel.
	AuthTick time.Duration
	// AuthTimeoutTicks is the number of wheel slots; a pending connection is closed after
	// (AuthTimeoutTicks-1, AuthTimeoutTicks] ticks.
	AuthTimeoutTicks int
	// CallTimeout bounds every nested call to a node; 0 leaves it to the caller's context.
	CallTimeout time.Duration
}

// DefaultCoreConfig returns one-second ticks, five slots and a 30s nested call timeout.
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		AuthTick:         time.Second,
		AuthTimeoutTicks: 5,
		CallTimeout:      30 * time.Second,
	}
}

// cmdHandler handles a plain command of an authenticated connection and reports whether it was handled;
// an unhandled command closes the connection.
type cmdHandler func(ctx context.Context, st *connState, data json.RawMessage) bool

// funcHandler handles a call of an authenticated connection. A nil reply is sent as null.
type funcHandler func(ctx context.Context, st *connState, data json.RawMessage) (json.RawMessage, error)

// connState is the broker-side state of one connection. Guarded by Core.mu.
type connState struct {
	conn     interfaces.Conn
	handle   WheelHandle
	authID   string
	authInfo json.RawMessage
	node     *Node
	closed   bool
}

func (s *connState) authenticated() bool { return s.authInfo != nil }

// Core is the broker. It implements interfaces.ConnHandler for the transport (auth state machine, command
// and call routing, cleanup on close) and interfaces.Broker for in-process callers.
//
// Lock order: Core.mu, then pool and manager locks, then Node locks. Core.mu is never held across a
// nested call.
type Core struct {
	certs    interfaces.CertificateStore
	cfg      CoreConfig
	logger   log.Logger
	wheel    *TimeWheel[interfaces.Conn]
	services *ServicePool
	apps     *AppPool
	cmds     map[string]cmdHandler
	funcs    map[string]funcHandler
	newID    func() string

	mu    sync.Mutex
	conns map[string]*connState
	nodes []*Node
}

// NewCore creates the broker. Panics on nil certs or logger and on non-positive wheel parameters.
//
// Called from cmd/main; the transport is then given the Core as its ConnHandler and Run is started.
func NewCore(certs interfaces.CertificateStore, cfg CoreConfig, logger log.Logger) *Core {
	logger = log.With(helpers.NilPanic(logger, "service.core.go: logger is required"), "component", "core")
	if cfg.AuthTick <= 0 {
		panic("service.core.go: auth tick must be positive")
	}
	c := &Core{
		certs:    helpers.NilPanic(certs, "service.core.go: certificate store is required"),
		cfg:      cfg,
		logger:   logger,
		services: NewServicePool(logger),
		apps:     NewAppPool(logger),
		newID:    func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
		conns:    make(map[string]*connState),
	}
	c.wheel = NewTimeWheel(cfg.AuthTick, cfg.AuthTimeoutTicks, c.onAuthTimeout)
	c.cmds = map[string]cmdHandler{
		domain.CmdPing: c.cmdPing,
	}
	c.funcs = map[string]funcHandler{
		domain.FuncReqSvc:            c.funcReqSvc,
		domain.FuncReqCommonInstance: c.funcReqCommonInstance,
	}
	return c
}

// Run drives the auth timeout wheel until ctx is done.
func (c *Core) Run(ctx context.Context) {
	c.wheel.Run(ctx)
}

// OnConnected puts the new connection on the auth timeout wheel.
func (c *Core) OnConnected(conn interfaces.Conn) {
	st := &connState{conn: conn}
	c.mu.Lock()
	st.handle = c.wheel.Join(conn)
	c.conns[conn.ID()] = st
	c.mu.Unlock()
	level.Debug(c.logger).Log("msg", "connection accepted", "conn", conn.ID(), "remote", conn.RemoteAddr())
}

// onAuthTimeout closes a connection that is still pending when its wheel slot comes round.
func (c *Core) onAuthTimeout(conn interfaces.Conn) {
	c.mu.Lock()
	st, ok := c.conns[conn.ID()]
	pending := ok && !st.authenticated()
	c.mu.Unlock()
	if !pending {
		return
	}
	level.Info(c.logger).Log("msg", "auth timeout", "conn", conn.ID(), "remote", conn.RemoteAddr())
	_ = conn.Close()
}

// OnClosed forgets the connection: a pending one leaves the wheel, a node-backed one is removed from
// every registry.
func (c *Core) OnClosed(conn interfaces.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.conns[conn.ID()]
	if !ok {
		return
	}
	delete(c.conns, conn.ID())
	st.closed = true
	if !st.authenticated() {
		c.wheel.Remove(st.handle)
		return
	}
	if st.node != nil {
		c.removeNodeLocked(st.node)
		level.Info(c.logger).Log("msg", "node removed", "node", st.node.ID(), "service", st.node.Service())
	}
}

// OnMessage handles a plain message. Pending connections may only send auth; authenticated ones go
// through the command table. Anything else closes the connection without a reply.
func (c *Core) OnMessage(conn interfaces.Conn, payload []byte) {
	var msg domain.Message
	if err := json.Unmarshal(payload, &msg); err != nil || msg.Cmd == "" {
		c.reject(conn, "malformed message")
		return
	}
	c.mu.Lock()
	st, ok := c.conns[conn.ID()]
	c.mu.Unlock()
	if !ok {
		c.reject(conn, "unknown connection")
		return
	}

	ctx, cancel := c.messageContext()
	defer cancel()

	if !c.isAuthenticated(st) {
		if msg.Cmd != domain.CmdAuth {
			c.reject(conn, "unauthenticated command")
			return
		}
		c.authenticate(ctx, st, msg.Data)
		return
	}

	handler, ok := c.cmds[msg.Cmd]
	if !ok || !handler(ctx, st, msg.Data) {
		c.reject(conn, "unhandled command "+msg.Cmd)
	}
}

// OnCall handles a correlated call. The returned bytes are the reply; unknown functions, decode errors,
// handler errors and panics all reply null. A call from a pending connection closes it.
func (c *Core) OnCall(ctx context.Context, conn interfaces.Conn, payload []byte) (reply []byte) {
	defer func() {
		if r := recover(); r != nil {
			level.Error(c.logger).Log("msg", "call handler panic", "conn", conn.ID(), "panic", r, "stack", string(debug.Stack()))
			reply = domain.Null
		}
	}()

	c.mu.Lock()
	st, ok := c.conns[conn.ID()]
	c.mu.Unlock()
	if !ok || !c.isAuthenticated(st) {
		c.reject(conn, "call before auth")
		return domain.Null
	}

	var call domain.Call
	if err := json.Unmarshal(payload, &call); err != nil {
		level.Debug(c.logger).Log("msg", "malformed call", "conn", conn.ID(), "err", err)
		return domain.Null
	}
	handler, ok := c.funcs[call.Func]
	if !ok {
		level.Debug(c.logger).Log("msg", "unknown func", "conn", conn.ID(), "func", call.Func)
		return domain.Null
	}
	out, err := handler(ctx, st, call.Data)
	if err != nil {
		level.Info(c.logger).Log("msg", "call failed", "conn", conn.ID(), "func", call.Func, "err", err)
		return domain.Null
	}
	if len(out) == 0 {
		return domain.Null
	}
	return out
}

// authenticate runs the handshake of a pending connection; every failure closes it silently.
func (c *Core) authenticate(ctx context.Context, st *connState, data json.RawMessage) {
	conn := st.conn
	var req domain.AuthRequest
	if err := json.Unmarshal(data, &req); err != nil || !req.Complete() {
		c.reject(conn, "malformed auth")
		return
	}
	authID := *req.ID
	cfg, err := c.certs.Verify(ctx, authID, domain.AuthPayload, req.Signature)
	if err != nil {
		level.Info(c.logger).Log("msg", "auth rejected", "conn", conn.ID(), "id", authID, "err", err)
		c.reject(conn, "auth rejected")
		return
	}
	reply, err := c.certs.Sign(domain.AuthPayload)
	if err != nil {
		level.Error(c.logger).Log("msg", "cannot sign auth reply", "err", err)
		c.reject(conn, "auth reply not signed")
		return
	}
	payload, err := json.Marshal(domain.Message{Cmd: domain.CmdAuth, Data: mustMarshal(domain.AuthReply{Signature: reply, Status: domain.AuthStatusOK})})
	if err != nil {
		c.reject(conn, "auth reply not encoded")
		return
	}

	c.mu.Lock()
	if st.closed {
		c.mu.Unlock()
		return
	}
	st.authID = authID
	st.authInfo = cfg
	c.wheel.Remove(st.handle)
	node := c.nodeFor(st, authID, req, cfg)
	if node != nil {
		st.node = node
		c.addNodeLocked(node)
	}
	c.mu.Unlock()

	if err := conn.Send(ctx, payload); err != nil {
		level.Info(c.logger).Log("msg", "auth reply not delivered", "conn", conn.ID(), "err", err)
		_ = conn.Close()
		return
	}
	if node != nil {
		level.Info(c.logger).Log("msg", "node authenticated", "conn", conn.ID(), "id", authID, "node", node.ID(),
			"service", node.Service(), "capacity", node.Capacity(), "remote", conn.RemoteAddr())
	} else {
		level.Info(c.logger).Log("msg", "client authenticated", "conn", conn.ID(), "id", authID, "remote", conn.RemoteAddr())
	}
}

// nodeFor builds the Node of a verified connection, or returns nil when it declared no service or a
// service its identity is not configured for.
func (c *Core) nodeFor(st *connState, authID string, req domain.AuthRequest, cfg json.RawMessage) *Node {
	if req.Service == "" || req.Service == domain.ServiceNone {
		return nil
	}
	var permitted domain.CertConfig
	if err := json.Unmarshal(cfg, &permitted); err != nil || permitted.Service != req.Service {
		level.Warn(c.logger).Log("msg", "declared service not permitted", "id", authID, "declared", req.Service, "permitted", permitted.Service)
		return nil
	}
	return NewNode(c.newID(), authID, req, st.conn, c.cfg.CallTimeout, c.logger)
}

func (c *Core) addNodeLocked(n *Node) {
	c.nodes = append(c.nodes, n)
	if n.IsContainer() {
		c.apps.AddProvider(n)
	} else {
		c.services.AddProvider(n)
	}
}

func (c *Core) removeNodeLocked(n *Node) {
	if n.IsContainer() {
		c.apps.RemoveProvider(n)
	} else {
		c.services.RemoveProvider(n)
	}
	c.nodes = slices.DeleteFunc(c.nodes, func(x *Node) bool { return x == n })
}

func (c *Core) isAuthenticated(st *connState) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return st.authenticated()
}

func (c *Core) reject(conn interfaces.Conn, reason string) {
	level.Debug(c.logger).Log("msg", "closing connection", "conn", conn.ID(), "reason", reason)
	_ = conn.Close()
}

// messageContext bounds the work done for one plain message (certificate lookup, reply send).
func (c *Core) messageContext() (context.Context, context.CancelFunc) {
	if c.cfg.CallTimeout > 0 {
		return context.WithTimeout(context.Background(), c.cfg.CallTimeout)
	}
	return context.WithCancel(context.Background())
}

func (c *Core) cmdPing(ctx context.Context, st *connState, _ json.RawMessage) bool {
	payload := mustMarshal(domain.Message{Cmd: domain.CmdPong})
	return st.conn.Send(ctx, payload) == nil
}

func (c *Core) funcReqSvc(ctx context.Context, _ *connState, data json.RawMessage) (json.RawMessage, error) {
	var req domain.ServiceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, NewBadParameterError("req-svc data must be an object", err)
	}
	if req.Svc == "" {
		return nil, NewBadParameterError("svc is required", nil)
	}
	return c.RequestService(ctx, req.Svc, data)
}

func (c *Core) funcReqCommonInstance(ctx context.Context, _ *connState, data json.RawMessage) (json.RawMessage, error) {
	var req domain.CommonInstanceRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, NewBadParameterError("req-common-instance data must be an object", err)
	}
	if req.AppID == "" {
		return nil, NewBadParameterError("appid is required", nil)
	}
	return c.RequestCommonInstance(ctx, req.AppID, req.Data)
}

// RequestService forwards data to the first node of svc with spare capacity and returns its reply.
//
// Returns: (reply, nil); (nil, unavailable wrapping ErrNoProvider) when svc is unknown or every node is
// at capacity; (nil, error) when the nested call fails or times out.
func (c *Core) RequestService(ctx context.Context, svc string, data json.RawMessage) (json.RawMessage, error) {
	m := c.services.Query(svc)
	if m == nil {
		return nil, NewUnavailableError(fmt.Sprintf("no node offers service %q", svc), ErrNoProvider)
	}
	n := m.Query()
	if n == nil {
		return nil, NewUnavailableError(fmt.Sprintf("every node of service %q is at capacity", svc), ErrNoProvider)
	}
	reply, err := n.Request(ctx, data)
	if err != nil {
		if errors.Is(err, ErrCallTimeout) || errors.Is(err, ErrConnClosed) {
			return nil, NewUnavailableError("node did not answer", err)
		}
		return nil, NewInternalServerError("forward failed", err)
	}
	return reply, nil
}

// RequestCommonInstance joins or creates a common instance of appID for data.
//
// Returns: (join reply, nil); (nil, unavailable wrapping ErrNoProvider) when the app is unknown or no
// instance or provider admitted the request.
func (c *Core) RequestCommonInstance(ctx context.Context, appID string, data json.RawMessage) (json.RawMessage, error) {
	m := c.apps.Query(appID)
	if m == nil {
		return nil, NewUnavailableError(fmt.Sprintf("no node hosts app %q", appID), ErrNoProvider)
	}
	reply := m.RequestCommonInstance(ctx, data)
	if reply == nil {
		return nil, NewUnavailableError(fmt.Sprintf("no instance of app %q available", appID), ErrNoProvider)
	}
	return reply, nil
}

// Snapshot lists the registered nodes in registration order and the number of pending connections.
func (c *Core) Snapshot() domain.RegistrySnapshot {
	c.mu.Lock()
	nodes := slices.Clone(c.nodes)
	c.mu.Unlock()
	s := domain.RegistrySnapshot{
		Nodes:   make([]domain.NodeSnapshot, 0, len(nodes)),
		Pending: c.wheel.Len(),
	}
	for _, n := range nodes {
		s.Nodes = append(s.Nodes, n.Snapshot())
	}
	return s
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
