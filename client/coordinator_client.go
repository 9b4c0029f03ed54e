package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/proto"
)

type (
	CoordinatorConfig struct {
		// Addresses is a comma separated list of coordinator hosts.
		Addresses string     `json:"addresses"`
		RPCConfig rpc.Config `json:"rpc"`
	}

	// CoordinatorClient talks to whichever coordinator host answered last,
	// falling over to the next host on failure.
	CoordinatorClient struct {
		hosts   []string
		current uint32
		rpc     rpc.Client
	}
)

func NewCoordinatorClient(cfg *CoordinatorConfig) (*CoordinatorClient, error) {
	hosts := splitAddresses(cfg.Addresses)
	if len(hosts) == 0 {
		return nil, apierrors.ErrNoCoordinator
	}
	return &CoordinatorClient{
		hosts: hosts,
		rpc:   rpc.NewClient(&cfg.RPCConfig),
	}, nil
}

// Host returns the coordinator host that served the last request.
func (c *CoordinatorClient) Host() string {
	return c.hosts[atomic.LoadUint32(&c.current)%uint32(len(c.hosts))]
}

func (c *CoordinatorClient) ListNodes(ctx context.Context) ([]proto.Node, error) {
	ret := &proto.ListNodesResponse{}
	err := c.do(ctx, func(host string) error {
		return c.rpc.GetWith(ctx, httpURL(host, proto.NodesPath), ret)
	})
	if err != nil {
		return nil, err
	}
	return ret.Nodes, nil
}

// GetChanges returns the change items after counter. The coordinator may hold
// the request until new items arrive or timeoutMs passes.
func (c *CoordinatorClient) GetChanges(ctx context.Context, counter uint64, timeoutMs uint32) (*proto.GetChangesResponse, error) {
	ret := &proto.GetChangesResponse{}
	err := c.do(ctx, func(host string) error {
		url := fmt.Sprintf("%s?counter=%d&timeout=%d", httpURL(host, proto.ChangesPath), counter, timeoutMs)
		return c.rpc.GetWith(ctx, url, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (c *CoordinatorClient) Close() {
	c.rpc.Close()
}

func (c *CoordinatorClient) do(ctx context.Context, f func(host string) error) (err error) {
	span := trace.SpanFromContextSafe(ctx)
	start := atomic.LoadUint32(&c.current)
	for i := uint32(0); i < uint32(len(c.hosts)); i++ {
		idx := (start + i) % uint32(len(c.hosts))
		if err = f(c.hosts[idx]); err == nil {
			atomic.StoreUint32(&c.current, idx)
			return nil
		}
		span.Warnf("request coordinator[%s] failed: %s", c.hosts[idx], err)
	}
	return err
}
