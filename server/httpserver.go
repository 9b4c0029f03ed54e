package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cubefs/olapmeta/catalog"
	apierrors "github.com/cubefs/olapmeta/errors"
	"github.com/cubefs/olapmeta/metrics"
	"github.com/cubefs/olapmeta/relation"
)

const (
	defaultShutdownTimeoutS      = 10
	defaultReadRequestTimeoutS   = 30
	defaultWriteResponseTimeoutS = 30
)

var errMissingArgs = errors.New("missing endpoint or datasource")

type HttpServer struct {
	httpServer *http.Server

	*Server
}

func NewHttpServer(server *Server) *HttpServer {
	return &HttpServer{Server: server}
}

func (h *HttpServer) Serve(addr string) {
	handlers := []rpc.ProgressHandler{profile.NewProfileHandler(addr)}
	if h.logHandler != nil {
		handlers = append(handlers, h.logHandler)
	}
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      rpc.MiddlewareHandlerWith(h.newHandler(), handlers...),
		ReadTimeout:  defaultReadRequestTimeoutS * time.Second,
		WriteTimeout: defaultWriteResponseTimeoutS * time.Second,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server exits:", err)
		}
	}()
	h.httpServer = httpServer

	log.Info("http server is running at:", addr)
}

func (h *HttpServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeoutS*time.Second)
	defer cancel()

	h.httpServer.Shutdown(ctx)
}

func (h *HttpServer) newHandler() *rpc.Router {
	router := rpc.New()
	router.Handle(http.MethodGet, "/stats", h.Stats, rpc.OptArgsQuery())
	router.Handle(http.MethodGet, "/clusters", h.Clusters)
	router.Handle(http.MethodGet, "/schema", h.Schema, rpc.OptArgsQuery())
	router.Handle(http.MethodPost, "/relation", h.Relation)
	router.Handle(http.MethodPost, "/evict", h.Evict, rpc.OptArgsQuery())

	metricsHandler := promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})
	router.Handle(http.MethodGet, "/metrics", func(c *rpc.Context) {
		metricsHandler.ServeHTTP(c.Writer, c.Request)
	})
	return router
}

type StatsResponse struct {
	Clusters    int `json:"clusters"`
	DataSources int `json:"datasources"`
}

func (h *HttpServer) Stats(c *rpc.Context) {
	ret := StatsResponse{}
	for _, endpoint := range h.catalog.Clusters() {
		ci, err := h.catalog.GetCachedCluster(endpoint)
		if err != nil {
			continue
		}
		ret.Clusters++
		ret.DataSources += len(ci.DataSources())
	}
	c.RespondJSON(ret)
}

type ClusterView struct {
	Endpoint      string   `json:"endpoint"`
	ServerVersion string   `json:"server_version"`
	Coordinator   string   `json:"coordinator"`
	DataSources   []string `json:"datasources"`
}

func newClusterView(ci *catalog.ClusterInfo) ClusterView {
	return ClusterView{
		Endpoint:      ci.Endpoint,
		ServerVersion: ci.ServerVersion(),
		Coordinator:   ci.Conn.CoordinatorAddress(),
		DataSources:   ci.DataSources(),
	}
}

func (h *HttpServer) Clusters(c *rpc.Context) {
	endpoints := h.catalog.Clusters()
	ret := make([]ClusterView, 0, len(endpoints))
	for _, endpoint := range endpoints {
		ci, err := h.catalog.GetCachedCluster(endpoint)
		if err != nil {
			continue
		}
		ret = append(ret, newClusterView(ci))
	}
	c.RespondJSON(ret)
}

// Schema returns the cached schema of a datasource, loading it on first use.
func (h *HttpServer) Schema(c *rpc.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContextSafe(ctx)
	query := c.Request.URL.Query()

	endpoint, dataSource := query.Get("endpoint"), query.Get("datasource")
	if endpoint == "" || dataSource == "" {
		c.RespondError(rpc.NewError(http.StatusBadRequest, "BadRequest", errMissingArgs))
		return
	}
	opts := h.catalog.DefaultOptions()
	if v := query.Get("full_index"); v != "" {
		fullIndex, err := strconv.ParseBool(v)
		if err != nil {
			c.RespondError(rpc.NewError(http.StatusBadRequest, "BadRequest", err))
			return
		}
		opts.FullIndex = fullIndex
	}

	s, err := h.catalog.GetDataSourceSchema(ctx, endpoint, dataSource, opts)
	if err != nil {
		span.Errorf("get schema of datasource[%s] on cluster[%s] failed: %s", dataSource, endpoint, err)
		c.RespondError(httpError(err))
		return
	}
	c.RespondJSON(s.View())
}

type RelationResponse struct {
	Cluster    ClusterView                 `json:"cluster"`
	TimeColumn string                      `json:"time_column"`
	Schema     catalog.DataSourceView      `json:"schema"`
	Columns    map[string]*relation.Column `json:"columns"`
	Options    relation.Options            `json:"options"`
}

// Relation builds the relation schema of a datasource with user declared
// columns.
func (h *HttpServer) Relation(c *rpc.Context) {
	ctx := c.Request.Context()
	span := trace.SpanFromContextSafe(ctx)

	opts := &relation.Options{FullIndex: h.catalog.DefaultOptions().FullIndex}
	if err := json.NewDecoder(c.Request.Body).Decode(opts); err != nil {
		c.RespondError(rpc.NewError(http.StatusBadRequest, "BadRequest", err))
		return
	}
	if opts.Endpoint == "" || opts.DataSource == "" {
		c.RespondError(rpc.NewError(http.StatusBadRequest, "BadRequest", errMissingArgs))
		return
	}

	rs, err := h.builder.BuildRelationSchema(ctx, opts)
	if err != nil {
		span.Errorf("build relation of datasource[%s] on cluster[%s] failed: %s", opts.DataSource, opts.Endpoint, err)
		c.RespondError(httpError(err))
		return
	}
	c.RespondJSON(RelationResponse{
		Cluster:    newClusterView(rs.ClusterInfo),
		TimeColumn: rs.TimeColumn,
		Schema:     rs.DataSource.View(),
		Columns:    rs.Columns,
		Options:    rs.Options,
	})
}

// Evict drops a cached datasource schema.
func (h *HttpServer) Evict(c *rpc.Context) {
	query := c.Request.URL.Query()
	endpoint, dataSource := query.Get("endpoint"), query.Get("datasource")
	if endpoint == "" || dataSource == "" {
		c.RespondError(rpc.NewError(http.StatusBadRequest, "BadRequest", errMissingArgs))
		return
	}

	ci, err := h.catalog.GetCachedCluster(endpoint)
	if err != nil {
		c.RespondError(httpError(err))
		return
	}
	if !ci.Evict(dataSource) {
		c.RespondError(httpError(apierrors.ErrDataSourceNotCached))
		return
	}
	c.RespondStatus(http.StatusOK)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, apierrors.ErrClusterNotCached):
		return rpc.NewError(http.StatusNotFound, "ClusterNotCached", err)
	case errors.Is(err, apierrors.ErrDataSourceNotCached):
		return rpc.NewError(http.StatusNotFound, "DataSourceNotCached", err)
	case apierrors.IsConnectionError(err):
		return rpc.NewError(http.StatusBadGateway, "ConnectionError", err)
	case apierrors.IsMetadataFetchError(err):
		return rpc.NewError(http.StatusBadGateway, "MetadataFetchError", err)
	default:
		return rpc.NewError(http.StatusInternalServerError, "InternalError", err)
	}
}
