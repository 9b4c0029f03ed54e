package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/taskpool"
	"github.com/google/uuid"

	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/metrics"
	"github.com/cubefs/olapmeta/proto"
	"github.com/cubefs/olapmeta/util"
)

type notification struct {
	action     proto.Action
	dataSource string
	interval   util.Interval
}

func parseNotification(payload []byte) (*notification, error) {
	raw := &proto.Notification{}
	if err := json.Unmarshal(payload, raw); err != nil {
		return nil, fmt.Errorf("%w: %s", apierrors.ErrMalformedNotification, err)
	}
	if raw.Action == "" || raw.DataSource == "" || raw.Interval == "" {
		return nil, apierrors.ErrMalformedNotification
	}
	in, err := util.ParseInterval(raw.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", apierrors.ErrMalformedNotification, err)
	}
	return &notification{
		action:     proto.ParseAction(string(raw.Action)),
		dataSource: raw.DataSource,
		interval:   in,
	}, nil
}

// Listener applies segment load and drop notifications to the cached
// intervals. Notifications are parsed on arrival and applied on a fixed
// worker pool, in no particular order.
type Listener struct {
	// dropSeq is first for 64-bit atomic alignment.
	dropSeq uint64
	catalog *Catalog
	pool    taskpool.TaskPool

	pending sync.WaitGroup
	closed  bool
	lock    sync.RWMutex
}

func newListener(catalog *Catalog, workerNum, queueSize int) *Listener {
	return &Listener{
		catalog: catalog,
		pool:    taskpool.New(workerNum, queueSize),
	}
}

// Handle is the notification handler registered on every cluster
// connection. Malformed payloads are logged and dropped.
func (l *Listener) Handle(ctx context.Context, payload []byte) {
	span := trace.SpanFromContextSafe(ctx)
	n, err := parseNotification(payload)
	if err != nil {
		span.Warnf("drop notification %s: %s", payload, errors.Detail(err))
		metrics.Notifications.WithLabelValues("", "malformed").Inc()
		return
	}

	l.lock.RLock()
	defer l.lock.RUnlock()
	if l.closed {
		span.Warnf("listener closed, drop notification of datasource[%s]", n.dataSource)
		return
	}
	l.pending.Add(1)
	l.pool.Run(func() {
		defer l.pending.Done()
		span, ctx := trace.StartSpanFromContextWithTraceID(context.Background(), "notification", uuid.NewString())
		defer span.Finish()
		l.apply(ctx, n)
	})
}

// Wait blocks until every submitted notification is applied.
func (l *Listener) Wait() {
	l.pending.Wait()
}

func (l *Listener) Close() {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return
	}
	l.closed = true
	l.lock.Unlock()

	l.pending.Wait()
	l.pool.Close()
}

func (l *Listener) apply(ctx context.Context, n *notification) {
	span := trace.SpanFromContextSafe(ctx)
	switch n.action {
	case proto.ActionLoad:
		l.onLoad(ctx, n)
	case proto.ActionDrop:
		l.onDrop(ctx, n)
	default:
		span.Warnf("ignore notification of datasource[%s]: %s %q", n.dataSource, apierrors.ErrUnknownAction, n.action)
		metrics.Notifications.WithLabelValues(string(n.action), "unknown").Inc()
	}
}

// onLoad extends the cached coverage locally, a load can only grow it.
func (l *Listener) onLoad(ctx context.Context, n *notification) {
	span := trace.SpanFromContextSafe(ctx)
	l.catalog.rangeClusters(func(ci *ClusterInfo) {
		updated := ci.updateIntervals(n.dataSource, func(old []util.Interval) []util.Interval {
			return util.MergeLoad(old, n.interval)
		})
		if updated {
			span.Debugf("load %s into datasource[%s] of cluster[%s]", n.interval, n.dataSource, ci.Endpoint)
			metrics.Notifications.WithLabelValues(string(n.action), "applied").Inc()
		}
	})
}

// onDrop re-reads the time boundary, a drop may leave gaps that a single
// merged interval can't express. Every drop issues its own query, and a
// boundary read for an older drop never replaces a newer one. An empty
// boundary means nothing is left to query, the datasource is evicted.
func (l *Listener) onDrop(ctx context.Context, n *notification) {
	span := trace.SpanFromContextSafe(ctx)
	l.catalog.rangeClusters(func(ci *ClusterInfo) {
		if ci.GetDataSource(n.dataSource) == nil {
			return
		}

		seq := atomic.AddUint64(&l.dropSeq, 1)
		boundary, err := ci.Broker.FetchTimeBoundary(ctx, n.dataSource)
		metrics.BrokerRequests.WithLabelValues("time_boundary", metrics.Result(err)).Inc()
		if errors.Is(err, apierrors.ErrEmptyTimeBoundary) {
			if ci.Evict(n.dataSource) {
				span.Infof("evict datasource[%s] of cluster[%s], no segment left", n.dataSource, ci.Endpoint)
				metrics.Notifications.WithLabelValues(string(n.action), "applied").Inc()
			}
			return
		}
		if err != nil {
			span.Errorf("refresh time boundary of datasource[%s] on cluster[%s] failed: %s",
				n.dataSource, ci.Endpoint, errors.Detail(err))
			metrics.Notifications.WithLabelValues(string(n.action), "error").Inc()
			return
		}

		if ci.replaceBoundary(n.dataSource, seq, boundary) {
			span.Debugf("drop %s of datasource[%s] on cluster[%s], boundary: %s",
				n.interval, n.dataSource, ci.Endpoint, boundary)
			metrics.Notifications.WithLabelValues(string(n.action), "applied").Inc()
		}
	})
}
