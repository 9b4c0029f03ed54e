// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"golang.org/x/time/rate"

	"github.com/cubefs/olapmeta/client"
	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/proto"
)

// NotificationHandler receives the raw payload of a segment notification.
type NotificationHandler func(ctx context.Context, payload []byte)

// Connection is the watch subscription to one cluster.
type Connection interface {
	Endpoint() string
	CoordinatorAddress() string
	BrokerAddress() string
	OnNotification(h NotificationHandler)
	Close()
}

type connection struct {
	endpoint    string
	cfg         *Config
	coordinator *client.CoordinatorClient
	resolver    *client.Resolver
	limiter     *rate.Limiter

	counter  uint64
	handlers []NotificationHandler

	done      chan struct{}
	closeOnce sync.Once
	lock      sync.RWMutex
}

// Dial resolves the role nodes of the cluster behind endpoint and starts
// watching its change history. handler, if not nil, is registered before
// the first change is pulled.
func Dial(ctx context.Context, endpoint string, cfg *Config, handler NotificationHandler) (Connection, error) {
	span := trace.SpanFromContextSafe(ctx)
	conf := *cfg
	conf.fixDefaults()

	coordinator, err := client.NewCoordinatorClient(&client.CoordinatorConfig{
		Addresses: endpoint,
		RPCConfig: conf.RPCConfig,
	})
	if err != nil {
		return nil, &apierrors.ConnectionError{Endpoint: endpoint, Err: err}
	}
	resolver := client.NewResolver(coordinator)
	if err = resolver.ResolveNow(ctx); err != nil {
		coordinator.Close()
		return nil, &apierrors.ConnectionError{Endpoint: endpoint, Err: err}
	}

	c := &connection{
		endpoint:    endpoint,
		cfg:         &conf,
		coordinator: coordinator,
		resolver:    resolver,
		limiter:     rate.NewLimiter(rate.Limit(conf.PollRate), 1),
		done:        make(chan struct{}),
	}
	if handler != nil {
		c.OnNotification(handler)
	}
	span.Infof("connected to cluster[%s], coordinator: %s", endpoint, c.CoordinatorAddress())

	go c.loop()
	return c, nil
}

func (c *connection) Endpoint() string {
	return c.endpoint
}

func (c *connection) CoordinatorAddress() string {
	if addr := c.resolver.Leader(proto.NodeRoleCoordinator); addr != "" {
		return addr
	}
	return c.coordinator.Host()
}

func (c *connection) BrokerAddress() string {
	return c.resolver.Pick(proto.NodeRoleBroker)
}

func (c *connection) OnNotification(h NotificationHandler) {
	c.lock.Lock()
	c.handlers = append(c.handlers, h)
	c.lock.Unlock()
}

func (c *connection) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.coordinator.Close()
	})
}

func (c *connection) loop() {
	span, ctx := trace.StartSpanFromContext(context.Background(), "watch")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	refreshTicker := time.NewTicker(time.Duration(c.cfg.RefreshIntervalS) * time.Second)
	defer refreshTicker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-refreshTicker.C:
			c.resolver.ResolveNow(ctx)
		default:
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return
		}
		resp, err := c.coordinator.GetChanges(ctx, c.counter, c.cfg.PollTimeoutMs)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			span.Warnf("get changes of cluster[%s] from counter %d failed: %s", c.endpoint, c.counter, err)
			continue
		}
		c.apply(ctx, resp)
	}
}

func (c *connection) apply(ctx context.Context, resp *proto.GetChangesResponse) {
	span := trace.SpanFromContextSafe(ctx)
	if resp.ResetCounter {
		span.Warnf("change counter of cluster[%s] reset from %d to %d", c.endpoint, c.counter, resp.Counter)
		c.counter = resp.Counter
		return
	}

	c.lock.RLock()
	handlers := c.handlers
	c.lock.RUnlock()

	for _, item := range resp.Items {
		if item.Counter <= c.counter {
			continue
		}
		for _, h := range handlers {
			h(ctx, item.Payload)
		}
		c.counter = item.Counter
	}
	if resp.Counter > c.counter {
		c.counter = resp.Counter
	}
}
