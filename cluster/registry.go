package cluster

import (
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"

	apierrors "github.com/cubefs/olapmeta/errors"
)

const (
	defaultPollTimeoutMs    = 5000
	defaultPollRate         = 10
	defaultRefreshIntervalS = 30
)

type Config struct {
	RPCConfig        rpc.Config `json:"rpc"`
	PollTimeoutMs    uint32     `json:"poll_timeout_ms"`
	PollRate         float64    `json:"poll_rate"`
	RefreshIntervalS int        `json:"refresh_interval_s"`
}

// DialFunc creates the connection of one endpoint with handler registered.
type DialFunc func(ctx context.Context, endpoint string, handler NotificationHandler) (Connection, error)

// Registry memoizes one Connection per cluster endpoint.
type Registry struct {
	dial    DialFunc
	handler NotificationHandler

	conns  map[string]Connection
	closed bool
	lock   sync.Mutex
}

func (cfg *Config) fixDefaults() {
	if cfg.PollTimeoutMs == 0 {
		cfg.PollTimeoutMs = defaultPollTimeoutMs
	}
	if cfg.PollRate <= 0 {
		cfg.PollRate = defaultPollRate
	}
	if cfg.RefreshIntervalS <= 0 {
		cfg.RefreshIntervalS = defaultRefreshIntervalS
	}
}

func NewRegistry(cfg *Config, handler NotificationHandler) *Registry {
	cfg.fixDefaults()
	return NewRegistryWithDialer(func(ctx context.Context, endpoint string, h NotificationHandler) (Connection, error) {
		return Dial(ctx, endpoint, cfg, h)
	}, handler)
}

func NewRegistryWithDialer(dial DialFunc, handler NotificationHandler) *Registry {
	return &Registry{
		dial:    dial,
		handler: handler,
		conns:   make(map[string]Connection),
	}
}

// GetConnection returns the memoized connection of endpoint, dialing it on
// first use. A failed dial is not memoized.
func (r *Registry) GetConnection(ctx context.Context, endpoint string) (Connection, error) {
	span := trace.SpanFromContextSafe(ctx)

	r.lock.Lock()
	defer r.lock.Unlock()
	if r.closed {
		return nil, &apierrors.ConnectionError{Endpoint: endpoint, Err: apierrors.ErrRegistryClosed}
	}
	if conn, ok := r.conns[endpoint]; ok {
		return conn, nil
	}

	conn, err := r.dial(ctx, endpoint, r.handler)
	if err != nil {
		span.Errorf("dial cluster[%s] failed: %s", endpoint, err)
		if !apierrors.IsConnectionError(err) {
			err = &apierrors.ConnectionError{Endpoint: endpoint, Err: err}
		}
		return nil, err
	}
	r.conns[endpoint] = conn
	return conn, nil
}

// Close stops every connection. Later GetConnection calls fail.
func (r *Registry) Close() {
	r.lock.Lock()
	defer r.lock.Unlock()
	for endpoint, conn := range r.conns {
		conn.Close()
		delete(r.conns, endpoint)
	}
	r.closed = true
}
