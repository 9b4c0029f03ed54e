package relation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubefs/olapmeta/catalog"
	"github.com/cubefs/olapmeta/proto"
	"github.com/cubefs/olapmeta/util"
)

func int64Ptr(v int64) *int64 { return &v }

func wikiSchema() *catalog.DataSourceSchema {
	return catalog.NewDataSourceSchema("wiki", map[string]catalog.Column{
		"__time":  catalog.NewTimeDimension("__time", proto.TypeLong, 0, nil),
		"page":    catalog.NewDimension("page", proto.TypeString, 100, int64Ptr(30)),
		"user":    catalog.NewDimension("user", proto.TypeString, 100, int64Ptr(12)),
		"added":   catalog.NewMetric("added", proto.TypeLong, 80, nil, catalog.ApproxNone),
		"users":   catalog.NewMetric("users", proto.TypeHyperUnique, 0, int64Ptr(9), catalog.ApproxHLL),
		"uniques": catalog.NewMetric("uniques", proto.TypeThetaSketch, 0, int64Ptr(11), catalog.ApproxThetaSketch),
	}, []util.Interval{util.MustParseInterval("2023-01-01/2023-01-02")})
}

func TestBuildColumns(t *testing.T) {
	s := wikiSchema()
	specs := []ColumnSpec{
		{Name: "user", HLLMetric: "users", SketchMetric: "uniques"},
		{Name: "visitor", HLLMetric: "users", SketchMetric: "uniques"},
		{Name: "session", HLLMetric: "missing", SketchMetric: "uniques"},
		{Name: "device", HLLMetric: "page", SketchMetric: "missing"},
	}
	columns := BuildColumns(s, specs, "event_time")

	require.Len(t, columns, len(s.Columns)+3)

	user := columns["user"]
	require.False(t, user.IsVirtual())
	require.Equal(t, "users", user.HLLMetric.Name)
	require.Equal(t, "uniques", user.SketchMetric.Name)
	require.Equal(t, int64(12), *user.Cardinality)

	visitor := columns["visitor"]
	require.True(t, visitor.IsVirtual())
	require.Equal(t, int64(9), *visitor.Cardinality)

	session := columns["session"]
	require.Nil(t, session.HLLMetric)
	require.Equal(t, "uniques", session.SketchMetric.Name)
	require.Equal(t, int64(11), *session.Cardinality)

	// a dimension is not a metric link
	device := columns["device"]
	require.Nil(t, device.HLLMetric)
	require.Nil(t, device.SketchMetric)
	require.Nil(t, device.Cardinality)

	require.Nil(t, columns["page"].HLLMetric)
	require.Equal(t, int64(30), *columns["page"].Cardinality)
	require.Nil(t, columns["added"].Cardinality)
}

func TestBuildColumnsTimeRename(t *testing.T) {
	s := wikiSchema()
	columns := BuildColumns(s, nil, "event_time")

	require.Len(t, columns, len(s.Columns))
	_, ok := columns[proto.TimeColumnName]
	require.False(t, ok)

	tc, ok := columns["event_time"]
	require.True(t, ok)
	require.Equal(t, "event_time", tc.Name)
	require.Equal(t, proto.TypeString, tc.Column.DataType)
	require.Equal(t, catalog.KindTimeDimension, tc.Column.Kind)

	// the cached schema is not touched
	require.Equal(t, proto.TypeLong, s.Columns[proto.TimeColumnName].DataType)
}

func TestBuildColumnsTimeRenameCollision(t *testing.T) {
	s := wikiSchema()

	// a virtual column of the same name is replaced by the time column
	columns := BuildColumns(s, []ColumnSpec{{Name: "event_time", HLLMetric: "users"}}, "event_time")
	require.Len(t, columns, len(s.Columns))
	tc := columns["event_time"]
	require.False(t, tc.IsVirtual())
	require.Equal(t, catalog.KindTimeDimension, tc.Column.Kind)
	require.Nil(t, tc.HLLMetric)

	// so is a discovered one
	columns = BuildColumns(s, nil, "page")
	require.Len(t, columns, len(s.Columns)-1)
	require.Equal(t, catalog.KindTimeDimension, columns["page"].Column.Kind)
	require.Equal(t, proto.TypeString, columns["page"].Column.DataType)
	require.Equal(t, catalog.KindDimension, s.Columns["page"].Kind)
}

func TestBuildColumnsCompleteness(t *testing.T) {
	s := wikiSchema()
	cases := []struct {
		specs    []ColumnSpec
		expected int
	}{
		{nil, len(s.Columns)},
		{[]ColumnSpec{{Name: "page"}, {Name: "added"}}, len(s.Columns)},
		{[]ColumnSpec{{Name: "page"}, {Name: "v1"}, {Name: "v2"}}, len(s.Columns) + 2},
		{[]ColumnSpec{{Name: "v1", HLLMetric: "nope"}}, len(s.Columns) + 1},
	}
	for _, cs := range cases {
		require.Len(t, BuildColumns(s, cs.specs, "ts"), cs.expected)
	}
}
