package catalog

import (
	"context"
	"sort"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"golang.org/x/sync/singleflight"

	"github.com/cubefs/olapmeta/client"
	"github.com/cubefs/olapmeta/cluster"
	"github.com/cubefs/olapmeta/metrics"
	"github.com/cubefs/olapmeta/proto"
	"github.com/cubefs/olapmeta/util"
)

// ClusterInfo is the cached state of one cluster endpoint. Its lock guards
// the datasource map and the intervals of every schema in it.
type ClusterInfo struct {
	Endpoint string
	Conn     cluster.Connection
	Broker   client.BrokerClient
	Status   *proto.ServerStatus

	dataSources map[string]*DataSourceSchema
	singleRun   singleflight.Group
	lock        sync.RWMutex
}

func newClusterInfo(endpoint string, conn cluster.Connection, broker client.BrokerClient, status *proto.ServerStatus) *ClusterInfo {
	return &ClusterInfo{
		Endpoint:    endpoint,
		Conn:        conn,
		Broker:      broker,
		Status:      status,
		dataSources: make(map[string]*DataSourceSchema),
	}
}

func (c *ClusterInfo) ServerVersion() string {
	if c.Status == nil {
		return ""
	}
	return c.Status.Version
}

func (c *ClusterInfo) GetDataSource(name string) *DataSourceSchema {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.dataSources[name]
}

func (c *ClusterInfo) DataSources() []string {
	c.lock.RLock()
	names := make([]string, 0, len(c.dataSources))
	for name := range c.dataSources {
		names = append(names, name)
	}
	c.lock.RUnlock()
	sort.Strings(names)
	return names
}

// Evict drops the cached schema of name so the next lookup fetches it again.
func (c *ClusterInfo) Evict(name string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	if _, ok := c.dataSources[name]; !ok {
		return false
	}
	delete(c.dataSources, name)
	metrics.CachedDataSources.Dec()
	return true
}

// getOrCreateDataSource runs create at most once per datasource at a time.
// Lookups of different datasources do not wait on each other. A caller
// whose ctx ends stops waiting, the flight itself runs on a detached ctx
// so the callers joined to it are not failed by the first one leaving.
func (c *ClusterInfo) getOrCreateDataSource(ctx context.Context, name string,
	create func(ctx context.Context, lock *sync.RWMutex) (*DataSourceSchema, error),
) (*DataSourceSchema, bool, error) {
	if s := c.GetDataSource(name); s != nil {
		return s, true, nil
	}

	span := trace.SpanFromContextSafe(ctx)
	ch := c.singleRun.DoChan(name, func() (interface{}, error) {
		// a finished flight may have filled the entry after the first check
		if s := c.GetDataSource(name); s != nil {
			return s, nil
		}
		fspan, fctx := trace.StartSpanFromContextWithTraceID(context.Background(), "fetch datasource", span.TraceID())
		defer fspan.Finish()
		s, err := create(fctx, &c.lock)
		if err != nil {
			return nil, err
		}

		c.lock.Lock()
		c.dataSources[name] = s
		c.lock.Unlock()
		metrics.CachedDataSources.Inc()
		return s, nil
	})

	select {
	case ret := <-ch:
		if ret.Err != nil {
			return nil, false, ret.Err
		}
		return ret.Val.(*DataSourceSchema), false, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// updateIntervals replaces the intervals of name with f's result under the
// cluster lock. It reports whether name is cached.
func (c *ClusterInfo) updateIntervals(name string, f func(old []util.Interval) []util.Interval) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, ok := c.dataSources[name]
	if !ok {
		return false
	}
	s.intervals = f(s.intervals)
	return true
}

// replaceBoundary sets the intervals of name to the refreshed boundary
// unless a drop with a later seq has already been applied. It reports
// whether the intervals were replaced.
func (c *ClusterInfo) replaceBoundary(name string, seq uint64, boundary util.Interval) bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	s, ok := c.dataSources[name]
	if !ok || seq <= s.boundarySeq {
		return false
	}
	s.boundarySeq = seq
	s.intervals = []util.Interval{boundary}
	return true
}
