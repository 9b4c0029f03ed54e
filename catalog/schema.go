package catalog

import (
	"context"
	"sync"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/olapmeta/proto"
	"github.com/cubefs/olapmeta/util"
)

// DataSourceSchema is the cached metadata of one datasource. Columns and
// the scalar fields are immutable once cached; intervals are replaced by
// the listener under the owning cluster's lock.
type DataSourceSchema struct {
	Name             string
	Columns          map[string]Column
	NumRows          int64
	Size             int64
	ServerVersion    string
	QueryGranularity string

	intervals []util.Interval
	// boundarySeq is the sequence of the last applied drop refresh.
	boundarySeq uint64
	lock        *sync.RWMutex
}

func NewDataSourceSchema(name string, columns map[string]Column, intervals []util.Interval) *DataSourceSchema {
	return &DataSourceSchema{
		Name:      name,
		Columns:   columns,
		intervals: intervals,
		lock:      &sync.RWMutex{},
	}
}

func newDataSourceSchemaFromMetadata(ctx context.Context, name string, mr *proto.MetadataResponse,
	serverVersion string, lock *sync.RWMutex,
) *DataSourceSchema {
	span := trace.SpanFromContextSafe(ctx)

	intervals := make([]util.Interval, 0, len(mr.Intervals))
	for _, s := range mr.Intervals {
		in, err := util.ParseInterval(s)
		if err != nil {
			span.Warnf("skip interval[%s] of datasource[%s]: %s", s, name, err)
			continue
		}
		intervals = append(intervals, in)
	}

	s := &DataSourceSchema{
		Name:          name,
		Columns:       classifyColumns(ctx, mr),
		Size:          mr.Size,
		ServerVersion: serverVersion,
		intervals:     util.Coalesce(intervals),
		lock:          lock,
	}
	if mr.NumRows != nil {
		s.NumRows = *mr.NumRows
	}
	if mr.QueryGranularity != nil {
		s.QueryGranularity = mr.QueryGranularity.Type
	}
	return s
}

// Intervals returns a copy of the covered intervals.
func (s *DataSourceSchema) Intervals() []util.Interval {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return append([]util.Interval(nil), s.intervals...)
}

func (s *DataSourceSchema) TimeColumn() (Column, bool) {
	c, ok := s.Columns[proto.TimeColumnName]
	return c, ok
}

// Metric returns the named column if it is a metric.
func (s *DataSourceSchema) Metric(name string) (Column, bool) {
	c, ok := s.Columns[name]
	if !ok || !c.IsMetric() {
		return Column{}, false
	}
	return c, true
}

type DataSourceView struct {
	Name             string            `json:"name"`
	Columns          map[string]Column `json:"columns"`
	Intervals        []util.Interval   `json:"intervals"`
	NumRows          int64             `json:"num_rows"`
	Size             int64             `json:"size"`
	ServerVersion    string            `json:"server_version"`
	QueryGranularity string            `json:"query_granularity,omitempty"`
}

func (s *DataSourceSchema) View() DataSourceView {
	return DataSourceView{
		Name:             s.Name,
		Columns:          s.Columns,
		Intervals:        s.Intervals(),
		NumRows:          s.NumRows,
		Size:             s.Size,
		ServerVersion:    s.ServerVersion,
		QueryGranularity: s.QueryGranularity,
	}
}
