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

package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"

	"github.com/cubefs/olapmeta/client"
	"github.com/cubefs/olapmeta/cluster"
	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/metrics"
	"github.com/cubefs/olapmeta/util"
	"github.com/cubefs/olapmeta/util/limiter"
)

const (
	defaultWorkerNum = 10
	defaultQueueSize = 1024
)

type Config struct {
	WorkerNum     int            `json:"worker_num"`
	QueueSize     int            `json:"queue_size"`
	FullIndex     bool           `json:"full_index"`
	ClusterConfig cluster.Config `json:"cluster"`
	BrokerConfig  rpc.Config     `json:"broker_rpc"`
	// BrokerLimit bounds the requests sent to the brokers of each cluster.
	BrokerLimit limiter.LimitConfig `json:"broker_limit"`
}

// Options tune a single schema lookup.
type Options struct {
	// FullIndex scans every segment instead of the broker's default
	// history when the schema is fetched.
	FullIndex bool
}

// BrokerFactory builds the broker client of a cluster connection.
type BrokerFactory func(conn cluster.Connection) client.BrokerClient

type connector interface {
	GetConnection(ctx context.Context, endpoint string) (cluster.Connection, error)
	Close()
}

// Catalog caches cluster info by endpoint and datasource schemas by
// cluster. The catalog lock only guards creation of cluster entries.
type Catalog struct {
	cfg       *Config
	connector connector
	newBroker BrokerFactory
	listener  *Listener

	clusters map[string]*ClusterInfo
	lock     sync.RWMutex
}

func NewCatalog(cfg *Config) *Catalog {
	return NewCatalogWith(cfg, nil, func(conn cluster.Connection) client.BrokerClient {
		return client.NewLimitedBrokerClient(&cfg.BrokerConfig, conn.BrokerAddress, limiter.NewLimiter(cfg.BrokerLimit))
	})
}

// NewCatalogWith builds a catalog over custom collaborators. A nil dial
// uses cluster.Dial.
func NewCatalogWith(cfg *Config, dial cluster.DialFunc, newBroker BrokerFactory) *Catalog {
	if cfg.WorkerNum <= 0 {
		cfg.WorkerNum = defaultWorkerNum
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	c := &Catalog{
		cfg:       cfg,
		newBroker: newBroker,
		clusters:  make(map[string]*ClusterInfo),
	}
	c.listener = newListener(c, cfg.WorkerNum, cfg.QueueSize)
	if dial == nil {
		c.connector = cluster.NewRegistry(&cfg.ClusterConfig, c.listener.Handle)
	} else {
		c.connector = cluster.NewRegistryWithDialer(dial, c.listener.Handle)
	}
	return c
}

func (c *Catalog) Listener() *Listener {
	return c.listener
}

func (c *Catalog) DefaultOptions() Options {
	return Options{FullIndex: c.cfg.FullIndex}
}

// GetClusterInfo returns the cached info of endpoint, connecting to the
// cluster and reading its server status on first use.
func (c *Catalog) GetClusterInfo(ctx context.Context, endpoint string) (*ClusterInfo, error) {
	if ci := c.getCluster(endpoint); ci != nil {
		metrics.CacheLookups.WithLabelValues("cluster", "hit").Inc()
		return ci, nil
	}

	c.lock.Lock()
	defer c.lock.Unlock()
	if ci := c.clusters[endpoint]; ci != nil {
		metrics.CacheLookups.WithLabelValues("cluster", "hit").Inc()
		return ci, nil
	}

	ci, err := c.createCluster(ctx, endpoint)
	if err != nil {
		metrics.CacheLookups.WithLabelValues("cluster", "error").Inc()
		return nil, err
	}
	c.clusters[endpoint] = ci
	metrics.CacheLookups.WithLabelValues("cluster", "miss").Inc()
	return ci, nil
}

func (c *Catalog) createCluster(ctx context.Context, endpoint string) (*ClusterInfo, error) {
	span := trace.SpanFromContextSafe(ctx)

	conn, err := c.connector.GetConnection(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	broker := c.newBroker(conn)
	status, err := broker.FetchServerStatus(ctx)
	metrics.BrokerRequests.WithLabelValues("status", metrics.Result(err)).Inc()
	if err != nil {
		span.Errorf("get server status of cluster[%s] failed: %s", endpoint, errors.Detail(err))
		return nil, &apierrors.MetadataFetchError{Endpoint: endpoint, Op: "server status", Err: err}
	}

	span.Infof("cache cluster[%s], server version: %s", endpoint, status.Version)
	return newClusterInfo(endpoint, conn, broker, status), nil
}

// GetDataSourceSchema returns the cached schema of dataSource on endpoint,
// fetching its segment metadata on first use.
func (c *Catalog) GetDataSourceSchema(ctx context.Context, endpoint, dataSource string, opts Options) (*DataSourceSchema, error) {
	ci, err := c.GetClusterInfo(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	s, hit, err := ci.getOrCreateDataSource(ctx, dataSource, func(ctx context.Context, lock *sync.RWMutex) (*DataSourceSchema, error) {
		return c.fetchDataSource(ctx, ci, dataSource, opts, lock)
	})
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("datasource", "error").Inc()
	case hit:
		metrics.CacheLookups.WithLabelValues("datasource", "hit").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("datasource", "miss").Inc()
	}
	return s, err
}

func (c *Catalog) fetchDataSource(ctx context.Context, ci *ClusterInfo, dataSource string, opts Options,
	lock *sync.RWMutex,
) (*DataSourceSchema, error) {
	span := trace.SpanFromContextSafe(ctx)

	mr, err := ci.Broker.FetchMetadata(ctx, dataSource, opts.FullIndex)
	metrics.BrokerRequests.WithLabelValues("metadata", metrics.Result(err)).Inc()
	if err != nil {
		span.Errorf("get metadata of datasource[%s] failed: %s", dataSource, errors.Detail(err))
		return nil, &apierrors.MetadataFetchError{Endpoint: ci.Endpoint, DataSource: dataSource, Op: "segment metadata", Err: err}
	}

	s := newDataSourceSchemaFromMetadata(ctx, dataSource, mr, ci.ServerVersion(), lock)
	if len(s.intervals) == 0 {
		in, err := ci.Broker.FetchTimeBoundary(ctx, dataSource)
		metrics.BrokerRequests.WithLabelValues("time_boundary", metrics.Result(err)).Inc()
		if err != nil {
			return nil, &apierrors.MetadataFetchError{Endpoint: ci.Endpoint, DataSource: dataSource, Op: "time boundary", Err: err}
		}
		s.intervals = []util.Interval{in}
	}

	span.Infof("cache datasource[%s] of cluster[%s], columns: %d, intervals: %v", dataSource, ci.Endpoint, len(s.Columns), s.intervals)
	return s, nil
}

// Clusters returns the cached endpoints.
func (c *Catalog) Clusters() []string {
	c.lock.RLock()
	endpoints := make([]string, 0, len(c.clusters))
	for endpoint := range c.clusters {
		endpoints = append(endpoints, endpoint)
	}
	c.lock.RUnlock()
	sort.Strings(endpoints)
	return endpoints
}

// GetCachedCluster returns the cluster of endpoint without connecting.
func (c *Catalog) GetCachedCluster(endpoint string) (*ClusterInfo, error) {
	if ci := c.getCluster(endpoint); ci != nil {
		return ci, nil
	}
	return nil, apierrors.ErrClusterNotCached
}

func (c *Catalog) Close() {
	c.connector.Close()
	c.listener.Close()
}

func (c *Catalog) getCluster(endpoint string) *ClusterInfo {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.clusters[endpoint]
}

// rangeClusters calls f on a snapshot of the cached clusters.
func (c *Catalog) rangeClusters(f func(ci *ClusterInfo)) {
	c.lock.RLock()
	list := make([]*ClusterInfo, 0, len(c.clusters))
	for _, ci := range c.clusters {
		list = append(list, ci)
	}
	c.lock.RUnlock()

	for _, ci := range list {
		f(ci)
	}
}
