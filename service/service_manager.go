package service

import (
	"slices"
	"sync"

	"center/domain"
	"center/helpers"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// ServiceManager holds the nodes offering one independent service, in registration order.
type ServiceManager struct {
	name string

	mu    sync.RWMutex
	nodes []*Node
}

func newServiceManager(name string) *ServiceManager {
	return &ServiceManager{name: name}
}

// Name returns the service name.
func (m *ServiceManager) Name() string { return m.name }

// AddProvider appends n unless it is already present.
func (m *ServiceManager) AddProvider(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slices.Contains(m.nodes, n) {
		return
	}
	m.nodes = append(m.nodes, n)
}

// RemoveProvider drops n; unknown nodes are ignored.
func (m *ServiceManager) RemoveProvider(n *Node) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes = slices.DeleteFunc(m.nodes, func(x *Node) bool { return x == n })
}

// Query returns the first node, in registration order, with load < capacity, or nil. It does not change
// any load.
//
// Called from Core.RequestService.
func (m *ServiceManager) Query() *Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, n := range m.nodes {
		if n.HasSpareCapacity() {
			return n
		}
	}
	return nil
}

// Len returns the number of providers.
func (m *ServiceManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}

// ServicePool indexes ServiceManagers by service name. Managers are created lazily and kept when emptied.
type ServicePool struct {
	logger log.Logger

	mu       sync.RWMutex
	services map[string]*ServiceManager
}

// NewServicePool creates an empty pool. Panics on nil logger.
func NewServicePool(logger log.Logger) *ServicePool {
	return &ServicePool{
		logger:   log.With(helpers.NilPanic(logger, "service.service_manager.go: logger is required"), "component", "service_pool"),
		services: make(map[string]*ServiceManager),
	}
}

// AddProvider registers n under its service name. Container nodes and nodes without a service are never
// independent-service providers and are ignored.
func (p *ServicePool) AddProvider(n *Node) {
	if n.IsContainer() || n.Service() == "" || n.Service() == domain.ServiceNone {
		return
	}
	p.mu.Lock()
	m, ok := p.services[n.Service()]
	if !ok {
		m = newServiceManager(n.Service())
		p.services[n.Service()] = m
	}
	p.mu.Unlock()
	m.AddProvider(n)
	level.Debug(p.logger).Log("msg", "provider added", "service", n.Service(), "node", n.ID())
}

// RemoveProvider removes n from the manager of its service, if any.
func (p *ServicePool) RemoveProvider(n *Node) {
	if m := p.Query(n.Service()); m != nil {
		m.RemoveProvider(n)
	}
}

// Query returns the manager for service name, or nil.
func (p *ServicePool) Query(name string) *ServiceManager {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.services[name]
}
