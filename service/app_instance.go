package service

import "center/domain"

// AppInstance is one running session of an application hosted by a node. It refers to its node by id;
// the node owns it and guards its load, so Load is only read through Node.
type AppInstance struct {
	id       string
	appID    string
	typ      domain.InstanceType
	nodeID   string
	capacity int

	// load is guarded by the hosting Node's mutex.
	load int
}

// newAppInstance wraps a successful Create reply. A missing or non-positive capacity becomes
// domain.DefaultInstanceCapacity.
func newAppInstance(nodeID string, appID string, typ domain.InstanceType, reply domain.CreateReply) *AppInstance {
	capacity := reply.Capacity
	if capacity <= 0 {
		capacity = domain.DefaultInstanceCapacity
	}
	return &AppInstance{
		id:       reply.UUID,
		appID:    appID,
		typ:      typ,
		nodeID:   nodeID,
		capacity: capacity,
	}
}

func (i *AppInstance) ID() string { return i.id }
func (i *AppInstance) AppID() string { return i.appID }
func (i *AppInstance) Type() domain.InstanceType { return i.typ }
func (i *AppInstance) NodeID() string { return i.nodeID }
func (i *AppInstance) Capacity() int { return i.capacity }
