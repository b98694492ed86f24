package grpcconn

import (
	"context"
	"sync"
	"sync/atomic"

	"center/domain"
	"center/interfaces"
	"center/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"google.golang.org/grpc/peer"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var _ interfaces.Conn = (*streamConn)(nil)

// frameStream is the part of grpc.ServerStream and grpc.ClientStream the connection needs.
type frameStream interface {
	Context() context.Context
	SendMsg(m any) error
	RecvMsg(m any) error
}

// streamConn is an interfaces.Conn over one bidirectional gRPC stream. Outgoing frames go through a
// single writer goroutine because a gRPC stream does not allow concurrent SendMsg calls; incoming
// messages are delivered in order from the receive loop and every incoming call gets its own goroutine.
type streamConn struct {
	id      string
	remote  string
	stream  frameStream
	handler interfaces.ConnHandler
	logger  log.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	closeFn func()
	once    sync.Once
	out     chan []byte
	writer  sync.WaitGroup

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan []byte
}

// newStreamConn wraps stream. closeFn, when set, tears down the underlying stream on Close (client
// side); on the server side returning from the handler does that.
func newStreamConn(stream frameStream, closeFn func(), handler interfaces.ConnHandler, logger log.Logger) *streamConn {
	ctx, cancel := context.WithCancel(stream.Context())
	c := &streamConn{
		id:      uuid.NewString(),
		remote:  remoteAddr(stream.Context()),
		stream:  stream,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		closeFn: closeFn,
		out:     make(chan []byte, 16),
		pending: make(map[uint64]chan []byte),
	}
	c.logger = log.With(logger, "conn", c.id)
	return c
}

func (c *streamConn) ID() string { return c.id }

func (c *streamConn) RemoteAddr() string { return c.remote }

// Send queues a message frame.
func (c *streamConn) Send(ctx context.Context, payload []byte) error {
	return c.enqueue(ctx, encodeFrame(kindMessage, 0, payload))
}

// Call sends a call frame and waits for the reply with the same id.
//
// Returns: (reply, nil); (nil, ctx.Err()) when ctx ends first; (nil, service.ErrConnClosed) when the
// connection closes before the reply arrives.
func (c *streamConn) Call(ctx context.Context, payload []byte) ([]byte, error) {
	id := c.nextID.Add(1)
	ch := make(chan []byte, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	if err := c.enqueue(ctx, encodeFrame(kindCall, id, payload)); err != nil {
		return nil, err
	}
	select {
	case reply := <-ch:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.ctx.Done():
		return nil, service.ErrConnClosed
	}
}

// Close ends the connection. Safe to call more than once and from any goroutine.
func (c *streamConn) Close() error {
	c.once.Do(func() {
		c.cancel()
		if c.closeFn != nil {
			c.closeFn()
		}
	})
	return nil
}

// run pumps the stream until the connection closes, then fires OnClosed. Blocks.
func (c *streamConn) run() {
	c.writer.Add(1)
	go c.writeLoop()
	go c.readLoop()
	<-c.ctx.Done()
	c.writer.Wait()
	c.handler.OnClosed(c)
	level.Debug(c.logger).Log("msg", "connection closed", "remote", c.remote)
}

func (c *streamConn) enqueue(ctx context.Context, frame []byte) error {
	if c.ctx.Err() != nil {
		return service.ErrConnClosed
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.ctx.Done():
		return service.ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *streamConn) writeLoop() {
	defer c.writer.Done()
	for {
		select {
		case frame := <-c.out:
			if err := c.stream.SendMsg(wrapperspb.Bytes(frame)); err != nil {
				level.Debug(c.logger).Log("msg", "send failed", "err", err)
				_ = c.Close()
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *streamConn) readLoop() {
	defer c.Close()
	for {
		var in wrapperspb.BytesValue
		if err := c.stream.RecvMsg(&in); err != nil {
			level.Debug(c.logger).Log("msg", "receive ended", "err", err)
			return
		}
		kind, id, payload, err := decodeFrame(in.GetValue())
		if err != nil {
			level.Warn(c.logger).Log("msg", "bad frame", "err", err)
			return
		}
		if c.ctx.Err() != nil {
			return
		}
		switch kind {
		case kindMessage:
			c.handler.OnMessage(c, payload)
		case kindCall:
			go c.answer(id, payload)
		case kindReply:
			c.resolve(id, payload)
		}
	}
}

// answer runs the handler of one incoming call and sends its reply.
func (c *streamConn) answer(id uint64, payload []byte) {
	reply := c.handler.OnCall(c.ctx, c, payload)
	if len(reply) == 0 {
		reply = domain.Null
	}
	if err := c.enqueue(c.ctx, encodeFrame(kindReply, id, reply)); err != nil {
		level.Debug(c.logger).Log("msg", "reply dropped", "id", id, "err", err)
	}
}

func (c *streamConn) resolve(id uint64, payload []byte) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()
	if !ok {
		level.Debug(c.logger).Log("msg", "late reply", "id", id)
		return
	}
	ch <- payload
}

func (c *streamConn) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func remoteAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}
