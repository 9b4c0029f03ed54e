package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/proto"
)

type fakeCoordinator struct {
	*httptest.Server
	nodeCalls int32
}

func newFakeCoordinator(t *testing.T) *fakeCoordinator {
	fc := &fakeCoordinator{}
	mux := http.NewServeMux()
	mux.HandleFunc(proto.NodesPath, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&fc.nodeCalls, 1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(&proto.ListNodesResponse{Nodes: []proto.Node{
			{Role: proto.NodeRoleCoordinator, Host: "coordinator-1", Port: 8081},
			{Role: proto.NodeRoleCoordinator, Host: "coordinator-2", Port: 8081, Leader: true},
			{Role: proto.NodeRoleBroker, Host: "broker-1", Port: 8082},
		}})
	})
	mux.HandleFunc(proto.ChangesPath, func(w http.ResponseWriter, r *http.Request) {
		counter, err := strconv.ParseUint(r.URL.Query().Get("counter"), 10, 64)
		require.NoError(t, err)
		resp := &proto.GetChangesResponse{Counter: 2}
		if counter < 2 {
			resp.Items = []proto.ChangeItem{
				{Counter: 1, Payload: json.RawMessage(`{"action":"load","dataSource":"wiki","interval":"2020-01-01/2020-01-02"}`)},
				{Counter: 2, Payload: json.RawMessage(`{"action":"drop","dataSource":"wiki","interval":"2020-01-01/2020-01-02"}`)},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	fc.Server = httptest.NewServer(mux)
	return fc
}

func TestRegistryConnection(t *testing.T) {
	fc := newFakeCoordinator(t)
	defer fc.Close()

	var (
		payloads []string
		lock     sync.Mutex
	)
	handler := func(ctx context.Context, payload []byte) {
		lock.Lock()
		payloads = append(payloads, string(payload))
		lock.Unlock()
	}

	r := NewRegistry(&Config{PollRate: 100}, handler)
	defer r.Close()

	endpoint := strings.TrimPrefix(fc.URL, "http://")
	conn, err := r.GetConnection(context.Background(), endpoint)
	require.NoError(t, err)
	require.Equal(t, endpoint, conn.Endpoint())
	require.Equal(t, "coordinator-2:8081", conn.CoordinatorAddress())
	require.Equal(t, "broker-1:8082", conn.BrokerAddress())

	again, err := r.GetConnection(context.Background(), endpoint)
	require.NoError(t, err)
	require.True(t, conn == again)
	require.Equal(t, int32(1), atomic.LoadInt32(&fc.nodeCalls))

	require.Eventually(t, func() bool {
		lock.Lock()
		defer lock.Unlock()
		return len(payloads) == 2
	}, 5*time.Second, 10*time.Millisecond)

	// items at or below the counter are never redelivered
	time.Sleep(100 * time.Millisecond)
	lock.Lock()
	require.Len(t, payloads, 2)
	require.Contains(t, payloads[0], `"load"`)
	require.Contains(t, payloads[1], `"drop"`)
	lock.Unlock()
}

func TestRegistryDialFailure(t *testing.T) {
	var dials int32
	fail := true
	r := NewRegistryWithDialer(func(ctx context.Context, endpoint string, h NotificationHandler) (Connection, error) {
		atomic.AddInt32(&dials, 1)
		if fail {
			return nil, errors.New("connection refused")
		}
		return &nopConnection{endpoint: endpoint}, nil
	}, nil)

	_, err := r.GetConnection(context.Background(), "zk-1:2181")
	require.True(t, apierrors.IsConnectionError(err))

	fail = false
	conn, err := r.GetConnection(context.Background(), "zk-1:2181")
	require.NoError(t, err)
	require.Equal(t, "zk-1:2181", conn.Endpoint())
	require.Equal(t, int32(2), atomic.LoadInt32(&dials))

	r.Close()
	require.True(t, conn.(*nopConnection).closed)
	_, err = r.GetConnection(context.Background(), "zk-1:2181")
	require.ErrorIs(t, err, apierrors.ErrRegistryClosed)
	require.True(t, apierrors.IsConnectionError(err))
}

func TestDialUnreachable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	addr := down.URL
	down.Close()

	r := NewRegistry(&Config{}, nil)
	defer r.Close()
	_, err := r.GetConnection(context.Background(), addr)
	require.Error(t, err)
	require.True(t, apierrors.IsConnectionError(err))
}

type nopConnection struct {
	endpoint string
	closed   bool
}

func (c *nopConnection) Endpoint() string                   { return c.endpoint }
func (c *nopConnection) CoordinatorAddress() string         { return "" }
func (c *nopConnection) BrokerAddress() string              { return "" }
func (c *nopConnection) OnNotification(NotificationHandler) {}
func (c *nopConnection) Close()                             { c.closed = true }
