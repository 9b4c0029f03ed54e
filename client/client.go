package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"

	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/proto"
	"github.com/cubefs/olapmeta/util"
	"github.com/cubefs/olapmeta/util/limiter"
)

// BrokerClient issues metadata requests against a query-serving node.
type BrokerClient interface {
	FetchMetadata(ctx context.Context, dataSource string, fullIndex bool) (*proto.MetadataResponse, error)
	FetchTimeBoundary(ctx context.Context, dataSource string) (util.Interval, error)
	FetchServerStatus(ctx context.Context) (*proto.ServerStatus, error)
}

// AddressFunc returns the broker address to use for the next request.
type AddressFunc func() string

type brokerClient struct {
	addr    AddressFunc
	rpc     rpc.Client
	limiter limiter.Limiter
}

func NewBrokerClient(cfg *rpc.Config, addr AddressFunc) BrokerClient {
	return NewLimitedBrokerClient(cfg, addr, limiter.NewLimiter(limiter.LimitConfig{}))
}

// NewLimitedBrokerClient returns a broker client whose requests are bounded
// by lim.
func NewLimitedBrokerClient(cfg *rpc.Config, addr AddressFunc, lim limiter.Limiter) BrokerClient {
	return &brokerClient{
		addr:    addr,
		rpc:     rpc.NewClient(cfg),
		limiter: lim,
	}
}

func (c *brokerClient) FetchMetadata(ctx context.Context, dataSource string, fullIndex bool) (*proto.MetadataResponse, error) {
	span := trace.SpanFromContextSafe(ctx)
	url, err := c.url(proto.BrokerQueryPath)
	if err != nil {
		return nil, err
	}

	var ret []proto.MetadataResponse
	if err = c.post(ctx, url, &ret, proto.NewSegmentMetadataQuery(dataSource, fullIndex)); err != nil {
		span.Warnf("segment metadata query of %s to %s failed: %s", dataSource, url, err)
		return nil, errors.Info(err, "segment metadata query failed")
	}
	if len(ret) == 0 {
		return nil, apierrors.ErrEmptyMetadata
	}
	return &ret[0], nil
}

func (c *brokerClient) FetchTimeBoundary(ctx context.Context, dataSource string) (util.Interval, error) {
	span := trace.SpanFromContextSafe(ctx)
	url, err := c.url(proto.BrokerQueryPath)
	if err != nil {
		return util.Interval{}, err
	}

	var rows []proto.ResultRow
	if err = c.post(ctx, url, &rows, proto.NewTimeBoundaryQuery(dataSource)); err != nil {
		span.Warnf("time boundary query of %s to %s failed: %s", dataSource, url, err)
		return util.Interval{}, errors.Info(err, "time boundary query failed")
	}
	if len(rows) == 0 {
		return util.Interval{}, apierrors.ErrEmptyTimeBoundary
	}

	var tb proto.TimeBoundary
	if err = json.Unmarshal(rows[0].Result, &tb); err != nil {
		return util.Interval{}, errors.Info(err, "json unmarshal time boundary failed")
	}
	return timeBoundaryInterval(&tb)
}

func (c *brokerClient) FetchServerStatus(ctx context.Context) (*proto.ServerStatus, error) {
	url, err := c.url(proto.StatusPath)
	if err != nil {
		return nil, err
	}
	if err = c.limiter.Acquire(ctx); err != nil {
		return nil, errors.Info(err, "acquire broker limit failed")
	}
	defer c.limiter.Release()

	ret := &proto.ServerStatus{}
	if err = c.rpc.GetWith(ctx, url, ret); err != nil {
		return nil, errors.Info(err, "get server status failed")
	}
	return ret, nil
}

func (c *brokerClient) post(ctx context.Context, url string, ret interface{}, query interface{}) error {
	if err := c.limiter.Acquire(ctx); err != nil {
		return errors.Info(err, "acquire broker limit failed")
	}
	defer c.limiter.Release()
	return c.rpc.PostWith(ctx, url, ret, query)
}

func (c *brokerClient) url(path string) (string, error) {
	addr := c.addr()
	if addr == "" {
		return "", apierrors.ErrNoBroker
	}
	return httpURL(addr, path), nil
}

// timeBoundaryInterval turns the inclusive max event time into a half-open
// interval end.
func timeBoundaryInterval(tb *proto.TimeBoundary) (util.Interval, error) {
	in, err := util.ParseInterval(tb.MinTime + "/" + tb.MaxTime)
	if err != nil {
		return util.Interval{}, errors.Info(err, "parse time boundary failed")
	}
	in.End = in.End.Add(time.Millisecond)
	return in, nil
}
