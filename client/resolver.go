package client

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/olapmeta/proto"
)

// Resolver keeps the role nodes of a cluster and picks broker addresses
// round robin.
type Resolver struct {
	coordinator *CoordinatorClient
	next        uint32

	nodes map[proto.NodeRole][]proto.Node
	lock  sync.RWMutex
}

func NewResolver(coordinator *CoordinatorClient) *Resolver {
	return &Resolver{
		coordinator: coordinator,
		nodes:       make(map[proto.NodeRole][]proto.Node),
	}
}

// ResolveNow refreshes the role nodes from the coordinator. The previous
// node list is kept when the refresh fails.
func (r *Resolver) ResolveNow(ctx context.Context) error {
	span := trace.SpanFromContextSafe(ctx)
	nodes, err := r.coordinator.ListNodes(ctx)
	if err != nil {
		span.Warnf("list role nodes from coordinator failed: %s", err)
		return err
	}
	if len(nodes) == 0 {
		span.Warn("no role nodes found from coordinator")
	}

	byRole := make(map[proto.NodeRole][]proto.Node)
	for _, node := range nodes {
		byRole[node.Role] = append(byRole[node.Role], node)
	}

	r.lock.Lock()
	r.nodes = byRole
	r.lock.Unlock()
	return nil
}

// Pick returns the next node address of role, or "" if none is known.
func (r *Resolver) Pick(role proto.NodeRole) string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	nodes := r.nodes[role]
	if len(nodes) == 0 {
		return ""
	}
	idx := atomic.AddUint32(&r.next, 1) % uint32(len(nodes))
	return nodes[idx].Addr()
}

// Leader returns the leader node address of role, falling back to the first
// node of role.
func (r *Resolver) Leader(role proto.NodeRole) string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	nodes := r.nodes[role]
	for i := range nodes {
		if nodes[i].Leader {
			return nodes[i].Addr()
		}
	}
	if len(nodes) > 0 {
		return nodes[0].Addr()
	}
	return ""
}
