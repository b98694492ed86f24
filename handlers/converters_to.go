package handlers

import (
	"center/domain"
)

// toNodesResponse converts the registry snapshot to the API response.
func toNodesResponse(s domain.RegistrySnapshot) NodesResponse {
	out := make([]NodeInfo, 0, len(s.Nodes))
	for _, n := range s.Nodes {
		out = append(out, toNodeInfo(n))
	}
	return NodesResponse{Nodes: out, Pending: s.Pending}
}

func toNodeInfo(n domain.NodeSnapshot) NodeInfo {
	info := NodeInfo{
		Id:         n.ID,
		AuthId:     n.AuthID,
		Service:    n.Service,
		RemoteAddr: n.RemoteAddr,
		Apps:       n.Apps,
		Load:       n.Load,
		Capacity:   n.Capacity,
	}
	for _, i := range n.Instances {
		info.Instances = append(info.Instances, InstanceInfo{
			Id:       i.ID,
			AppId:    i.AppID,
			Type:     string(i.Type),
			Load:     i.Load,
			Capacity: i.Capacity,
		})
	}
	return info
}
