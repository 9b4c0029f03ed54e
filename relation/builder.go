package relation

import (
	"context"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/olapmeta/catalog"
	"github.com/cubefs/olapmeta/proto"
)

type Options struct {
	Endpoint      string       `json:"endpoint"`
	DataSource    string       `json:"datasource"`
	TimeDimension string       `json:"time_dimension"`
	Columns       []ColumnSpec `json:"columns,omitempty"`
	FullIndex     bool         `json:"full_index"`
}

func (o *Options) timeDimension() string {
	if o.TimeDimension == "" {
		return proto.TimeColumnName
	}
	return o.TimeDimension
}

// Schema is everything a query planner needs to expose one datasource as
// a relation.
type Schema struct {
	ClusterInfo *catalog.ClusterInfo
	TimeColumn  string
	DataSource  *catalog.DataSourceSchema
	Columns     map[string]*Column
	Options     Options
}

// Builder builds relation schemas over a shared catalog.
type Builder struct {
	catalog *catalog.Catalog
}

func NewBuilder(c *catalog.Catalog) *Builder {
	return &Builder{catalog: c}
}

func (b *Builder) GetClusterInfo(ctx context.Context, opts *Options) (*catalog.ClusterInfo, error) {
	return b.catalog.GetClusterInfo(ctx, opts.Endpoint)
}

func (b *Builder) GetDataSourceSchema(ctx context.Context, opts *Options) (*catalog.DataSourceSchema, error) {
	return b.catalog.GetDataSourceSchema(ctx, opts.Endpoint, opts.DataSource, catalog.Options{FullIndex: opts.FullIndex})
}

func (b *Builder) BuildRelationSchema(ctx context.Context, opts *Options) (*Schema, error) {
	span := trace.SpanFromContextSafe(ctx)

	ci, err := b.GetClusterInfo(ctx, opts)
	if err != nil {
		return nil, err
	}
	ds, err := b.GetDataSourceSchema(ctx, opts)
	if err != nil {
		return nil, err
	}

	timeColumn := opts.timeDimension()
	columns := BuildColumns(ds, opts.Columns, timeColumn)
	span.Debugf("build relation of datasource[%s] on cluster[%s], columns: %d", opts.DataSource, opts.Endpoint, len(columns))

	return &Schema{
		ClusterInfo: ci,
		TimeColumn:  timeColumn,
		DataSource:  ds,
		Columns:     columns,
		Options:     *opts,
	}, nil
}
