package nodeclient

import (
	"context"
	"crypto"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"center/adapters/grpcconn"
	"center/domain"
	"center/helpers"
	"center/interfaces"
	"center/interfaces/mock"
	"center/service"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// startBroker serves handler on a loopback listener and returns a client connection to it.
func startBroker(t *testing.T, handler interfaces.ConnHandler) *grpc.ClientConn {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	grpcconn.NewServer(handler, log.NewNopLogger()).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })
	return cc
}

func waitReady(t *testing.T, n *Node) {
	t.Helper()
	require.Eventually(t, func() bool { return isClosed(n.Ready()) }, 5*time.Second, 10*time.Millisecond)
}

func TestNode_RunAgainstCore(t *testing.T) {
	nodeKey, _, nodePub := helpers.TestRSAKey()
	brokerKey, _, brokerPub := helpers.TestRSAKey()
	centerKey, err := service.ParsePublicKey(brokerPub)
	require.NoError(t, err)

	configs := map[string]string{
		"echo-node": `{"service":"echo"}`,
		"caller":    `{}`,
	}
	source := &mock.CertSourceMock{
		FetchFunc: func(ctx context.Context, id string) (domain.Cert, error) {
			cfg, ok := configs[id]
			if !ok {
				return domain.Cert{}, service.NewEntityNotFoundError("no such identity", nil)
			}
			return domain.Cert{ID: id, PEM: nodePub, Config: json.RawMessage(cfg)}, nil
		},
	}
	tp := service.NewTimeProvider(time.Now)
	certs := service.NewCertificateStore(source, brokerKey, service.SignMethodRSASHA256, time.Minute, tp, log.NewNopLogger())
	core := service.NewCore(certs, service.CoreConfig{AuthTick: 100 * time.Millisecond, AuthTimeoutTicks: 20, CallTimeout: 5 * time.Second}, log.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go core.Run(ctx)
	cc := startBroker(t, core)

	echo := New(Config{
		AuthID:    "echo-node",
		Key:       nodeKey,
		Service:   "echo",
		Capacity:  2,
		CenterKey: centerKey,
		Handlers: map[string]Handler{
			domain.FuncReqSvc: func(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
				return json.RawMessage(`{"echo":` + string(data) + `}`), nil
			},
		},
	}, tp, log.NewNopLogger())
	caller := New(Config{AuthID: "caller", Key: crypto.Signer(nodeKey), CenterKey: centerKey}, tp, log.NewNopLogger())

	go func() { _ = echo.Run(ctx, cc) }()
	go func() { _ = caller.Run(ctx, cc) }()
	waitReady(t, echo)
	waitReady(t, caller)

	t.Run("in_process", func(t *testing.T) {
		reply, err := core.RequestService(ctx, "echo", json.RawMessage(`{"svc":"echo","x":1}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"echo":{"svc":"echo","x":1}}`, string(reply))
	})

	t.Run("through_broker_call", func(t *testing.T) {
		reply, err := caller.Call(ctx, domain.FuncReqSvc, map[string]any{"svc": "echo", "x": 2})
		require.NoError(t, err)
		assert.JSONEq(t, `{"echo":{"svc":"echo","x":2}}`, string(reply))
	})

	t.Run("unknown_service_is_null", func(t *testing.T) {
		reply, err := caller.Call(ctx, domain.FuncReqSvc, map[string]any{"svc": "nope"})
		require.NoError(t, err)
		assert.Equal(t, "null", string(reply))
	})

	t.Run("registry", func(t *testing.T) {
		snap := core.Snapshot()
		require.Len(t, snap.Nodes, 1)
		assert.Equal(t, "echo-node", snap.Nodes[0].AuthID)
		assert.Equal(t, "echo", snap.Nodes[0].Service)
		assert.Equal(t, 2, snap.Nodes[0].Capacity)
		assert.NotEmpty(t, snap.Nodes[0].RemoteAddr)
		assert.Zero(t, snap.Pending)
	})
}

// flakyBroker closes the first connection as soon as the handshake arrives and accepts the rest.
type flakyBroker struct {
	mu       sync.Mutex
	accepted int
	key      crypto.Signer
}

func (b *flakyBroker) OnConnected(interfaces.Conn) {}

func (b *flakyBroker) OnMessage(conn interfaces.Conn, _ []byte) {
	b.mu.Lock()
	b.accepted++
	first := b.accepted == 1
	b.mu.Unlock()
	if first {
		_ = conn.Close()
		return
	}
	sig, err := service.MakeSignature(domain.AuthPayload, b.key, service.SignMethodRSASHA256, 1)
	if err != nil {
		_ = conn.Close()
		return
	}
	data, _ := json.Marshal(domain.AuthReply{Signature: sig, Status: domain.AuthStatusOK})
	payload, _ := json.Marshal(domain.Message{Cmd: domain.CmdAuth, Data: data})
	_ = conn.Send(context.Background(), payload)
}

func (b *flakyBroker) OnCall(context.Context, interfaces.Conn, []byte) []byte { return nil }

func (b *flakyBroker) OnClosed(interfaces.Conn) {}

func (b *flakyBroker) handshakes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.accepted
}

func TestNode_Reconnects(t *testing.T) {
	key, _, _ := helpers.TestRSAKey()
	broker := &flakyBroker{key: key}
	cc := startBroker(t, broker)

	n := New(Config{AuthID: "n", Key: key, ReconnectDelay: 20 * time.Millisecond}, service.NewTimeProvider(time.Now), log.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx, cc) }()

	waitReady(t, n)
	assert.Equal(t, 2, broker.handshakes())

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
