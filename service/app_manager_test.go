package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"center/domain"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedContainer is a container node whose Create and Join answers are decided by the test.
type scriptedContainer struct {
	node *Node

	mu       sync.Mutex
	created  int
	joins    []string
	creates  int
	deny     bool
	denyJoin bool
	capacity int
}

func newScriptedContainer(t *testing.T, id string, nodeCapacity int, instanceCapacity int, apps ...string) *scriptedContainer {
	t.Helper()
	sc := &scriptedContainer{capacity: instanceCapacity}
	conn := newNodeConn("conn-"+id, func(_ context.Context, call domain.Call) (json.RawMessage, error) {
		sc.mu.Lock()
		defer sc.mu.Unlock()
		switch call.Func {
		case domain.FuncCreate:
			sc.creates++
			if sc.deny {
				return domain.Null, nil
			}
			sc.created++
			return json.Marshal(domain.CreateReply{UUID: fmt.Sprintf("%s-i%d", id, sc.created), Capacity: sc.capacity})
		case domain.FuncJoin:
			var req domain.JoinRequest
			if err := json.Unmarshal(call.Data, &req); err != nil {
				return nil, err
			}
			sc.joins = append(sc.joins, req.IID)
			if sc.denyJoin {
				return json.RawMessage(`false`), nil
			}
			return json.Marshal(map[string]string{"iid": req.IID, "node": id})
		}
		return domain.Null, nil
	})
	list := domain.AppConfigList{}
	for _, a := range apps {
		list[a] = commonApp()
	}
	sc.node = NewNode(id, "auth-"+id, containerRequest(nodeCapacity, list), conn, time.Second, log.NewNopLogger())
	return sc
}

func (sc *scriptedContainer) joined() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return append([]string(nil), sc.joins...)
}

func (sc *scriptedContainer) createCalls() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.creates
}

func (sc *scriptedContainer) set(deny bool, denyJoin bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.deny = deny
	sc.denyJoin = denyJoin
}

func replyNode(t *testing.T, reply json.RawMessage) (string, string) {
	t.Helper()
	require.NotNil(t, reply)
	var out map[string]string
	require.NoError(t, json.Unmarshal(reply, &out))
	return out["node"], out["iid"]
}

func TestNewAppPool_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "service.app_manager.go: logger is required", func() {
		NewAppPool(nil)
	})
}

func TestAppPool_AddRemoveProvider(t *testing.T) {
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 1, 1, "chess", "go")
	b := newScriptedContainer(t, "b", 1, 1, "chess")

	p.AddProvider(a.node)
	p.AddProvider(b.node)
	require.NotNil(t, p.Query("chess"))
	require.NotNil(t, p.Query("go"))
	assert.Nil(t, p.Query("poker"))
	assert.Equal(t, []*Node{a.node, b.node}, p.Query("chess").Providers())
	assert.Equal(t, "chess", p.Query("chess").AppID())

	p.RemoveProvider(a.node)
	assert.Equal(t, []*Node{b.node}, p.Query("chess").Providers())
	require.NotNil(t, p.Query("go"), "emptied managers are kept")
	assert.Empty(t, p.Query("go").Providers())
}

func TestAppManager_JoinBeforeCreate(t *testing.T) {
	ctx := context.Background()
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 2, 2, "chess")
	p.AddProvider(a.node)
	m := p.Query("chess")

	node, iid := replyNode(t, m.RequestCommonInstance(ctx, json.RawMessage(`{"u":1}`)))
	assert.Equal(t, "a", node)
	assert.Equal(t, "a-i1", iid)
	require.Len(t, m.CommonInstances(), 1)

	_, iid = replyNode(t, m.RequestCommonInstance(ctx, json.RawMessage(`{"u":2}`)))
	assert.Equal(t, "a-i1", iid, "second joiner reuses the instance")
	assert.Equal(t, 1, a.createCalls())

	_, iid = replyNode(t, m.RequestCommonInstance(ctx, json.RawMessage(`{"u":3}`)))
	assert.Equal(t, "a-i2", iid, "full instance makes room for a new one")
	assert.Equal(t, 2, a.node.Load())
	assert.Len(t, m.CommonInstances(), 2)

	_, iid = replyNode(t, m.RequestCommonInstance(ctx, nil))
	assert.Equal(t, "a-i2", iid)

	assert.Nil(t, m.RequestCommonInstance(ctx, nil), "both instances full, node at capacity")
	assert.Equal(t, []string{"a-i1", "a-i1", "a-i2", "a-i2"}, a.joined())
}

func TestAppManager_CreateOrderAndFallthrough(t *testing.T) {
	ctx := context.Background()
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 1, 1, "chess")
	b := newScriptedContainer(t, "b", 1, 1, "chess")
	p.AddProvider(a.node)
	p.AddProvider(b.node)
	m := p.Query("chess")

	a.set(true, false)
	node, _ := replyNode(t, m.RequestCommonInstance(ctx, nil))
	assert.Equal(t, "b", node, "a declined Create, b is next in order")
	assert.Zero(t, a.node.Load(), "a's load rolled back")
	assert.Equal(t, 1, b.node.Load())

	a.set(false, false)
	node, _ = replyNode(t, m.RequestCommonInstance(ctx, nil))
	assert.Equal(t, "a", node)
}

func TestAppManager_JoinRejectedAfterCreate(t *testing.T) {
	ctx := context.Background()
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 1, 3, "chess")
	p.AddProvider(a.node)
	m := p.Query("chess")

	a.set(false, true)
	assert.Nil(t, m.RequestCommonInstance(ctx, nil))
	require.Len(t, m.CommonInstances(), 1, "created instance stays tracked")
	assert.Zero(t, a.node.Snapshot().Instances[0].Load, "join refunded")

	a.set(false, false)
	_, iid := replyNode(t, m.RequestCommonInstance(ctx, nil))
	assert.Equal(t, "a-i1", iid)
}

func TestAppManager_RemoveProvider_DropsItsInstances(t *testing.T) {
	ctx := context.Background()
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 1, 1, "chess")
	b := newScriptedContainer(t, "b", 1, 1, "chess")
	p.AddProvider(a.node)
	p.AddProvider(b.node)
	m := p.Query("chess")

	replyNode(t, m.RequestCommonInstance(ctx, nil))
	replyNode(t, m.RequestCommonInstance(ctx, nil))
	require.Len(t, m.CommonInstances(), 2)

	p.RemoveProvider(a.node)
	insts := m.CommonInstances()
	require.Len(t, insts, 1)
	assert.Equal(t, "b", insts[0].NodeID())
	assert.Equal(t, []*Node{b.node}, m.Providers())
}

func TestAppManager_ProviderLeavesDuringCreate(t *testing.T) {
	p := NewAppPool(log.NewNopLogger())
	var m *AppManager
	var leaving *Node
	conn := newNodeConn("conn-a", func(_ context.Context, call domain.Call) (json.RawMessage, error) {
		if call.Func == domain.FuncCreate {
			p.RemoveProvider(leaving)
			return json.RawMessage(`{"uuid":"a-i1"}`), nil
		}
		return json.RawMessage(`true`), nil
	})
	leaving = NewNode("a", "auth-a", containerRequest(1, domain.AppConfigList{"chess": commonApp()}), conn, time.Second, log.NewNopLogger())
	p.AddProvider(leaving)
	m = p.Query("chess")

	assert.Nil(t, m.RequestCommonInstance(context.Background(), nil))
	assert.Empty(t, m.CommonInstances())
}

func TestAppManager_CanceledContext(t *testing.T) {
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 1, 1, "chess")
	p.AddProvider(a.node)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Nil(t, p.Query("chess").RequestCommonInstance(ctx, nil))
	assert.Zero(t, a.createCalls())
}

func TestAppManager_ConcurrentRequestsRespectCapacity(t *testing.T) {
	p := NewAppPool(log.NewNopLogger())
	a := newScriptedContainer(t, "a", 2, 3, "chess")
	b := newScriptedContainer(t, "b", 1, 3, "chess")
	p.AddProvider(a.node)
	p.AddProvider(b.node)
	m := p.Query("chess")

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.RequestCommonInstance(context.Background(), nil) != nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, admitted)
	assert.LessOrEqual(t, admitted, 9, "at most three instances of capacity three")
	for _, sc := range []*scriptedContainer{a, b} {
		s := sc.node.Snapshot()
		assert.LessOrEqual(t, s.Load, s.Capacity)
		for _, inst := range s.Instances {
			assert.LessOrEqual(t, inst.Load, inst.Capacity)
		}
	}
}
