package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cubefs/olapmeta/catalog"
	"github.com/cubefs/olapmeta/client"
	"github.com/cubefs/olapmeta/cluster"
	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/proto"
	"github.com/cubefs/olapmeta/util"
)

type nopConnection struct{ endpoint string }

func (c nopConnection) Endpoint() string                           { return c.endpoint }
func (c nopConnection) CoordinatorAddress() string                 { return "coordinator:8081" }
func (c nopConnection) BrokerAddress() string                      { return "broker:8082" }
func (c nopConnection) OnNotification(cluster.NotificationHandler) {}
func (c nopConnection) Close()                                     {}

type staticBroker struct{}

func (staticBroker) FetchMetadata(ctx context.Context, dataSource string, fullIndex bool) (*proto.MetadataResponse, error) {
	if dataSource != "wiki" {
		return nil, apierrors.ErrEmptyMetadata
	}
	card := int64(4)
	return &proto.MetadataResponse{
		Intervals: []string{"2023-01-01T00:00:00.000Z/2023-01-02T00:00:00.000Z"},
		Columns: map[string]proto.ColumnDetail{
			"__time": {Type: proto.TypeLong},
			"page":   {Type: proto.TypeString, Cardinality: &card},
			"users":  {Type: proto.TypeHyperUnique, Cardinality: &card},
		},
	}, nil
}

func (staticBroker) FetchTimeBoundary(ctx context.Context, dataSource string) (util.Interval, error) {
	return util.MustParseInterval("2023-01-01/2023-01-02"), nil
}

func (staticBroker) FetchServerStatus(ctx context.Context) (*proto.ServerStatus, error) {
	return &proto.ServerStatus{Version: "0.23.0"}, nil
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	dial := func(ctx context.Context, endpoint string, handler cluster.NotificationHandler) (cluster.Connection, error) {
		return nopConnection{endpoint: endpoint}, nil
	}
	c := catalog.NewCatalogWith(&catalog.Config{}, dial, func(cluster.Connection) client.BrokerClient {
		return staticBroker{}
	})
	s := newServerWith(c)
	ts := httptest.NewServer(NewHttpServer(s).newHandler())
	t.Cleanup(func() {
		ts.Close()
		s.Close()
	})
	return s, ts
}

func getJSON(t *testing.T, url string, ret interface{}) int {
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if ret != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(ret))
	}
	return resp.StatusCode
}

func TestHttpServer_Schema(t *testing.T) {
	_, ts := newTestServer(t)

	view := catalog.DataSourceView{}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/schema?endpoint=cluster-a&datasource=wiki", &view))
	require.Equal(t, "wiki", view.Name)
	require.Equal(t, "0.23.0", view.ServerVersion)
	require.Len(t, view.Columns, 3)
	require.Len(t, view.Intervals, 1)

	require.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/schema?endpoint=cluster-a", nil))
	require.Equal(t, http.StatusBadGateway, getJSON(t, ts.URL+"/schema?endpoint=cluster-a&datasource=missing", nil))

	stats := StatsResponse{}
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/stats", &stats))
	require.Equal(t, StatsResponse{Clusters: 1, DataSources: 1}, stats)

	var clusters []ClusterView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/clusters", &clusters))
	require.Equal(t, []ClusterView{{
		Endpoint:      "cluster-a",
		ServerVersion: "0.23.0",
		Coordinator:   "coordinator:8081",
		DataSources:   []string{"wiki"},
	}}, clusters)
}

func TestHttpServer_Relation(t *testing.T) {
	_, ts := newTestServer(t)

	body := `{"endpoint":"cluster-a","datasource":"wiki","time_dimension":"event_time",` +
		`"columns":[{"name":"visitor","hll_metric":"users"}]}`
	resp, err := http.Post(ts.URL+"/relation", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ret := struct {
		TimeColumn string `json:"time_column"`
		Columns    map[string]struct {
			Name   string `json:"name"`
			Column *struct {
				DataType string `json:"data_type"`
			} `json:"column"`
			Cardinality *int64 `json:"cardinality"`
		} `json:"columns"`
	}{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ret))
	require.Equal(t, "event_time", ret.TimeColumn)
	require.Len(t, ret.Columns, 4)
	require.Equal(t, proto.TypeString, ret.Columns["event_time"].Column.DataType)
	require.Nil(t, ret.Columns["visitor"].Column)
	require.Equal(t, int64(4), *ret.Columns["visitor"].Cardinality)

	resp2, err := http.Post(ts.URL+"/relation", "application/json", strings.NewReader(`{"endpoint":"cluster-a"}`))
	require.NoError(t, err)
	resp2.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestHttpServer_Evict(t *testing.T) {
	s, ts := newTestServer(t)

	post := func(query string) int {
		resp, err := http.Post(ts.URL+"/evict?"+query, "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}
	require.Equal(t, http.StatusNotFound, post("endpoint=cluster-a&datasource=wiki"))

	_, err := s.Catalog().GetDataSourceSchema(context.Background(), "cluster-a", "wiki", catalog.Options{})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, post("endpoint=cluster-a&datasource=wiki"))
	require.Equal(t, http.StatusNotFound, post("endpoint=cluster-a&datasource=wiki"))
}

func TestHttpServer_Metrics(t *testing.T) {
	_, ts := newTestServer(t)
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/schema?endpoint=cluster-a&datasource=wiki", &catalog.DataSourceView{}))

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRPCServer_Health(t *testing.T) {
	s, _ := newTestServer(t)
	rs := NewRPCServer(s)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	rs.serve(lis)
	defer rs.Stop()

	conn, err := grpc.Dial(lis.Addr().String(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}
