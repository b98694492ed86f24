package service

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"center/domain"
	"center/helpers"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// AppManager tracks, for one application, the container nodes able to host it and the live common
// instances of it, both in registration order. Every tracked instance belongs to a current provider.
// The lists are snapshotted under mu and iterated without it, so nested calls never run under the lock.
type AppManager struct {
	appID  string
	logger log.Logger

	mu        sync.Mutex
	providers []*Node
	common    []*AppInstance
}

func newAppManager(appID string, logger log.Logger) *AppManager {
	return &AppManager{appID: appID, logger: log.With(logger, "app", appID)}
}

// AppID returns the application id.
func (m *AppManager) AppID() string { return m.appID }

// AddProvider appends n to the providers unless it is already present.
func (m *AppManager) AddProvider(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.providers, n) {
		return
	}
	m.providers = append(m.providers, n)
}

// RemoveProvider drops every common instance of this app hosted by n, then n itself.
func (m *AppManager) RemoveProvider(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.common = slices.DeleteFunc(m.common, func(inst *AppInstance) bool { return inst.NodeID() == n.ID() })
	m.providers = slices.DeleteFunc(m.providers, func(x *Node) bool { return x == n })
}

// Providers returns a copy of the provider list.
func (m *AppManager) Providers() []*Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.providers)
}

// CommonInstances returns a copy of the common instance index.
func (m *AppManager) CommonInstances() []*AppInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.common)
}

// provider looks a node up by id among the current providers.
func (m *AppManager) provider(nodeID string) *Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.providers {
		if n.ID() == nodeID {
			return n
		}
	}
	return nil
}

// track adds inst to the common index if its node is still a provider. A node may disconnect while its
// Create call is in flight; its instance is then dropped.
func (m *AppManager) track(inst *AppInstance) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !slices.ContainsFunc(m.providers, func(n *Node) bool { return n.ID() == inst.NodeID() }) {
		return false
	}
	m.common = append(m.common, inst)
	return true
}

// RequestCommonInstance joins an existing common instance or creates one:
//  1. every tracked common instance in order: the hosting node's JoinInstance; the first truthy reply wins;
//  2. every provider in order: CreateInstance(common); on success the instance is tracked and joined with data;
//  3. nil.
//
// Called from Core.RequestCommonInstance.
func (m *AppManager) RequestCommonInstance(ctx context.Context, data json.RawMessage) json.RawMessage {
	for _, inst := range m.CommonInstances() {
		if ctx.Err() != nil {
			return nil
		}
		n := m.provider(inst.NodeID())
		if n == nil {
			continue
		}
		if reply := n.JoinInstance(ctx, inst.ID(), data); reply != nil {
			return reply
		}
	}

	for _, n := range m.Providers() {
		if ctx.Err() != nil {
			return nil
		}
		inst := n.CreateInstance(ctx, m.appID, domain.InstanceCommon, nil)
		if inst == nil {
			continue
		}
		if !m.track(inst) {
			level.Info(m.logger).Log("msg", "provider left during create", "node", n.ID(), "instance", inst.ID())
			continue
		}
		if reply := n.JoinInstance(ctx, inst.ID(), data); reply != nil {
			return reply
		}
	}
	return nil
}

// AppPool indexes AppManagers by application id. Managers are created lazily and kept when emptied.
type AppPool struct {
	logger log.Logger

	mu   sync.RWMutex
	apps map[string]*AppManager
}

// NewAppPool creates an empty pool. Panics on nil logger.
func NewAppPool(logger log.Logger) *AppPool {
	return &AppPool{
		logger: log.With(helpers.NilPanic(logger, "service.app_manager.go: logger is required"), "component", "app_pool"),
		apps:   make(map[string]*AppManager),
	}
}

// AddProvider registers n with the manager of every app it declared.
func (p *AppPool) AddProvider(n *Node) {
	for _, appID := range n.AppIDs() {
		p.mu.Lock()
		m, ok := p.apps[appID]
		if !ok {
			m = newAppManager(appID, p.logger)
			p.apps[appID] = m
		}
		p.mu.Unlock()
		m.AddProvider(n)
	}
	level.Debug(p.logger).Log("msg", "provider added", "node", n.ID(), "apps", len(n.AppIDs()))
}

// RemoveProvider mirrors AddProvider.
func (p *AppPool) RemoveProvider(n *Node) {
	for _, appID := range n.AppIDs() {
		if m := p.Query(appID); m != nil {
			m.RemoveProvider(n)
		}
	}
}

// Query returns the manager for appID, or nil.
func (p *AppPool) Query(appID string) *AppManager {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.apps[appID]
}
