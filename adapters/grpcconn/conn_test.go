package grpcconn

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"center/interfaces"
	"center/service"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// recorder is a ConnHandler that records events and answers calls with onCall (echo when nil).
type recorder struct {
	onCall func(ctx context.Context, payload []byte) []byte

	mu        sync.Mutex
	conn      interfaces.Conn
	messages  [][]byte
	closed    int
	connected chan struct{}
	done      chan struct{}
}

func newRecorder() *recorder {
	return &recorder{connected: make(chan struct{}), done: make(chan struct{})}
}

func (r *recorder) OnConnected(conn interfaces.Conn) {
	r.mu.Lock()
	r.conn = conn
	r.mu.Unlock()
	close(r.connected)
}

func (r *recorder) OnMessage(_ interfaces.Conn, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, append([]byte(nil), payload...))
}

func (r *recorder) OnCall(ctx context.Context, _ interfaces.Conn, payload []byte) []byte {
	if r.onCall != nil {
		return r.onCall(ctx, payload)
	}
	return payload
}

func (r *recorder) OnClosed(interfaces.Conn) {
	r.mu.Lock()
	r.closed++
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) received() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.messages...)
}

func (r *recorder) closedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recorder) waitConn(t *testing.T) interfaces.Conn {
	t.Helper()
	select {
	case <-r.connected:
	case <-time.After(2 * time.Second):
		t.Fatal("no connection")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conn
}

func (r *recorder) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not closed")
	}
}

// pair starts a server with srvHandler and connects a client with cliHandler. The returned channel
// yields Connect's result.
func pair(t *testing.T, srvHandler, cliHandler *recorder) <-chan error {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := grpc.NewServer()
	NewServer(srvHandler, log.NewNopLogger()).Register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cc.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	res := make(chan error, 1)
	go func() { res <- Connect(ctx, cc, cliHandler, log.NewNopLogger()) }()
	return res
}

func TestNewServer_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "grpcconn.server.go: handler is required", func() {
		NewServer(nil, log.NewNopLogger())
	})
	assert.PanicsWithValue(t, "grpcconn.server.go: logger is required", func() {
		NewServer(newRecorder(), nil)
	})
}

func TestStreamConn_Messages(t *testing.T) {
	srvH, cliH := newRecorder(), newRecorder()
	pair(t, srvH, cliH)
	cli := cliH.waitConn(t)
	srv := srvH.waitConn(t)
	assert.NotEmpty(t, srv.RemoteAddr())
	assert.NotEqual(t, cli.ID(), srv.ID())

	ctx := context.Background()
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, cli.Send(ctx, []byte(m)))
	}
	require.Eventually(t, func() bool { return len(srvH.received()) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, srvH.received())

	require.NoError(t, srv.Send(ctx, []byte("back")))
	require.Eventually(t, func() bool { return len(cliH.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamConn_Calls(t *testing.T) {
	srvH, cliH := newRecorder(), newRecorder()
	srvH.onCall = func(_ context.Context, payload []byte) []byte {
		return append([]byte("srv:"), payload...)
	}
	cliH.onCall = func(context.Context, []byte) []byte { return nil }
	pair(t, srvH, cliH)
	cli := cliH.waitConn(t)
	srv := srvH.waitConn(t)
	ctx := context.Background()

	t.Run("client_to_server_concurrent", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				payload := []byte{byte('a' + i)}
				reply, err := cli.Call(ctx, payload)
				assert.NoError(t, err)
				assert.Equal(t, append([]byte("srv:"), payload...), reply)
			}(i)
		}
		wg.Wait()
	})

	t.Run("empty_reply_is_null", func(t *testing.T) {
		reply, err := srv.Call(ctx, []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, []byte("null"), reply)
	})
}

func TestStreamConn_CallContextCancelled(t *testing.T) {
	srvH, cliH := newRecorder(), newRecorder()
	release := make(chan struct{})
	srvH.onCall = func(ctx context.Context, payload []byte) []byte {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return payload
	}
	pair(t, srvH, cliH)
	cli := cliH.waitConn(t)
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := cli.Call(ctx, []byte("slow"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStreamConn_Close(t *testing.T) {
	t.Run("pending_call_fails_and_both_sides_close_once", func(t *testing.T) {
		srvH, cliH := newRecorder(), newRecorder()
		started := make(chan struct{})
		srvH.onCall = func(ctx context.Context, _ []byte) []byte {
			close(started)
			<-ctx.Done()
			return nil
		}
		res := pair(t, srvH, cliH)
		cli := cliH.waitConn(t)
		srv := srvH.waitConn(t)

		callErr := make(chan error, 1)
		go func() {
			_, err := cli.Call(context.Background(), []byte("hang"))
			callErr <- err
		}()
		<-started
		require.NoError(t, srv.Close())
		require.NoError(t, srv.Close())

		select {
		case err := <-callErr:
			assert.ErrorIs(t, err, service.ErrConnClosed)
		case <-time.After(2 * time.Second):
			t.Fatal("pending call not resolved")
		}
		srvH.waitClosed(t)
		cliH.waitClosed(t)
		assert.NoError(t, <-res)
		assert.Equal(t, 1, srvH.closedCount())
		assert.Equal(t, 1, cliH.closedCount())

		assert.ErrorIs(t, cli.Send(context.Background(), []byte("late")), service.ErrConnClosed)
		_, err := cli.Call(context.Background(), []byte("late"))
		assert.ErrorIs(t, err, service.ErrConnClosed)
	})

	t.Run("client_close_reaches_server", func(t *testing.T) {
		srvH, cliH := newRecorder(), newRecorder()
		res := pair(t, srvH, cliH)
		cli := cliH.waitConn(t)
		srvH.waitConn(t)

		require.NoError(t, cli.Close())
		cliH.waitClosed(t)
		srvH.waitClosed(t)
		assert.NoError(t, <-res)
	})
}

func TestConnect_NoServer(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer cc.Close()

	h := newRecorder()
	err = Connect(context.Background(), cc, h, log.NewNopLogger())
	require.Error(t, err)
	select {
	case <-h.connected:
		t.Fatal("OnConnected fired without a stream")
	default:
	}
}
