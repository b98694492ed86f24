package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"center/domain"
	"center/helpers"
	"center/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Node is the broker-side record of one authenticated worker connection. Its identity, declared service,
// apps and capacity never change after construction. Load counters (its own and those of its instances)
// and the instance map are guarded by mu; admission (check + increment) and refund are each one critical
// section and mu is never held across a nested call.
type Node struct {
	id          string
	authID      string
	service     string
	apps        domain.AppConfigList
	capacity    int
	conn        interfaces.Conn
	callTimeout time.Duration
	logger      log.Logger

	mu        sync.Mutex
	load      int
	instances map[string]*AppInstance
	order     []string
}

// NewNode builds a Node from an accepted auth request. Apps default to empty, capacity to 0.
// Panics on nil conn or logger.
//
// Parameters: id: fresh node id; authID: the identity that authenticated; callTimeout: bound for every
// nested call to the node (0 = only the caller's context bounds it).
//
// Called from Core after a successful handshake.
func NewNode(id string, authID string, req domain.AuthRequest, conn interfaces.Conn, callTimeout time.Duration, logger log.Logger) *Node {
	apps := req.Apps
	if apps == nil {
		apps = domain.AppConfigList{}
	}
	capacity := req.Capacity
	if capacity < 0 {
		capacity = 0
	}
	return &Node{
		id:          helpers.StrPanic(id, "service.node.go: id is required"),
		authID:      authID,
		service:     req.Service,
		apps:        apps,
		capacity:    capacity,
		conn:        helpers.NilPanic(conn, "service.node.go: conn is required"),
		callTimeout: callTimeout,
		logger:      log.With(helpers.NilPanic(logger, "service.node.go: logger is required"), "node", id),
		instances:   make(map[string]*AppInstance),
	}
}

func (n *Node) ID() string { return n.id }
func (n *Node) AuthID() string { return n.authID }
func (n *Node) Service() string { return n.service }
func (n *Node) Capacity() int { return n.capacity }
func (n *Node) Conn() interfaces.Conn { return n.conn }
func (n *Node) IsContainer() bool { return n.service == domain.ServiceContainer }
func (n *Node) AppIDs() []string { return slices.Sorted(maps.Keys(n.apps)) }

// Provides reports whether the node declared appID.
func (n *Node) Provides(appID string) bool {
	_, ok := n.apps[appID]
	return ok
}

// Load returns the node's current load.
func (n *Node) Load() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.load
}

// HasSpareCapacity reports load < capacity. Read-only; used for first-fit service selection.
func (n *Node) HasSpareCapacity() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.load < n.capacity
}

// Instance returns the instance iid hosted by this node, or nil.
func (n *Node) Instance(iid string) *AppInstance {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.instances[iid]
}

// Instances returns the node's instances in creation order.
func (n *Node) Instances() []*AppInstance {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]*AppInstance, 0, len(n.order))
	for _, iid := range n.order {
		out = append(out, n.instances[iid])
	}
	return out
}

// Request forwards a req-svc call with the caller's original data and returns the node's reply verbatim.
// Load is not touched.
//
// Called from Core.RequestService.
func (n *Node) Request(ctx context.Context, data json.RawMessage) (json.RawMessage, error) {
	return n.call(ctx, domain.FuncReqSvc, data)
}

// JoinInstance admits one joiner into instance iid: rejected when the instance is unknown or its
// load >= capacity; otherwise the load is taken, a Join call is made and the load is refunded unless the
// reply is truthy.
//
// Returns: the node's reply on success; nil when rejected or when the call failed or answered falsy.
//
// Called from AppManager.RequestCommonInstance.
func (n *Node) JoinInstance(ctx context.Context, iid string, data json.RawMessage) json.RawMessage {
	n.mu.Lock()
	inst := n.instances[iid]
	if inst == nil || inst.load >= inst.capacity {
		n.mu.Unlock()
		return nil
	}
	inst.load++
	n.mu.Unlock()

	reply, err := n.call(ctx, domain.FuncJoin, domain.JoinRequest{IID: iid, Data: data})
	if err == nil && domain.IsTruthy(reply) {
		return reply
	}
	if err != nil {
		level.Warn(n.logger).Log("msg", "join failed", "instance", iid, "err", err)
	}

	n.mu.Lock()
	inst.load--
	n.mu.Unlock()
	return nil
}

// CreateInstance asks the node to provision an instance of appID: rejected when the node's configuration
// for appID does not permit typ or the node's load >= capacity; otherwise the node load is taken, a Create
// call is made with options plus "type", and the load is refunded unless the reply is truthy and names a
// new instance id. The new instance is registered on the node with load 0.
//
// Returns: the new instance; nil when rejected or when creation failed.
//
// Called from AppManager.RequestCommonInstance.
func (n *Node) CreateInstance(ctx context.Context, appID string, typ domain.InstanceType, options map[string]any) *AppInstance {
	cfg, ok := n.apps[appID]
	if !ok || !cfg.Permits(typ) {
		return nil
	}

	n.mu.Lock()
	if n.load >= n.capacity {
		n.mu.Unlock()
		return nil
	}
	n.load++
	n.mu.Unlock()

	opts := make(map[string]any, len(options)+1)
	maps.Copy(opts, options)
	opts["type"] = typ

	inst, err := n.create(ctx, appID, typ, opts)
	if err == nil {
		n.mu.Lock()
		if _, dup := n.instances[inst.id]; !dup {
			n.instances[inst.id] = inst
			n.order = append(n.order, inst.id)
			n.mu.Unlock()
			level.Debug(n.logger).Log("msg", "instance created", "app", appID, "instance", inst.id, "capacity", inst.capacity)
			return inst
		}
		n.mu.Unlock()
		err = fmt.Errorf("instance id %q already registered", inst.id)
	}
	level.Warn(n.logger).Log("msg", "create failed", "app", appID, "err", err)

	n.mu.Lock()
	n.load--
	n.mu.Unlock()
	return nil
}

var errFalsyReply = errors.New("node declined")

func (n *Node) create(ctx context.Context, appID string, typ domain.InstanceType, opts map[string]any) (*AppInstance, error) {
	reply, err := n.call(ctx, domain.FuncCreate, domain.CreateRequest{AppID: appID, Options: opts})
	if err != nil {
		return nil, err
	}
	if !domain.IsTruthy(reply) {
		return nil, errFalsyReply
	}
	var created domain.CreateReply
	if err := json.Unmarshal(reply, &created); err != nil {
		return nil, fmt.Errorf("decode create reply: %w", err)
	}
	if created.UUID == "" {
		return nil, errors.New("create reply has no uuid")
	}
	return newAppInstance(n.id, appID, typ, created), nil
}

// call sends {"func": fn, "data": data} to the node and waits for the reply, bounded by callTimeout.
func (n *Node) call(ctx context.Context, fn string, data any) (json.RawMessage, error) {
	raw, ok := data.(json.RawMessage)
	if !ok {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s data: %w", fn, err)
		}
		raw = b
	}
	payload, err := json.Marshal(domain.Call{Func: fn, Data: raw})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", fn, err)
	}

	if n.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.callTimeout)
		defer cancel()
	}
	reply, err := n.conn.Call(ctx, payload)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", fn, ErrCallTimeout)
		}
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return reply, nil
}

// Snapshot copies the node's state for the registry listing.
func (n *Node) Snapshot() domain.NodeSnapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := domain.NodeSnapshot{
		ID:         n.id,
		AuthID:     n.authID,
		Service:    n.service,
		RemoteAddr: n.conn.RemoteAddr(),
		Apps:       slices.Sorted(maps.Keys(n.apps)),
		Load:       n.load,
		Capacity:   n.capacity,
		Instances:  make([]domain.InstanceSnapshot, 0, len(n.order)),
	}
	for _, iid := range n.order {
		inst := n.instances[iid]
		s.Instances = append(s.Instances, domain.InstanceSnapshot{
			ID:       inst.id,
			AppID:    inst.appID,
			Type:     inst.typ,
			Load:     inst.load,
			Capacity: inst.capacity,
		})
	}
	return s
}
