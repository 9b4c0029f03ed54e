// Copyright 2023 The CubeFS Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied. See the License for the specific language governing
// permissions and limitations under the License.

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"

	"github.com/cubefs/cubefs/blobstore/common/config"
	"github.com/cubefs/cubefs/blobstore/common/profile"
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/errors"
	"github.com/cubefs/cubefs/blobstore/util/log"
	_ "github.com/cubefs/cubefs/blobstore/util/version"

	"github.com/cubefs/olapmeta/server"
	"github.com/cubefs/olapmeta/util"
)

// Config service config
type Config struct {
	server.Config

	// Endpoints are cached at startup.
	Endpoints []string `json:"endpoints"`

	HttpBindPort  uint32    `json:"http_bind_port"`
	GrpcBindPort  uint32    `json:"grpc_bind_port"`
	MaxProcessors int       `json:"max_processors"`
	LogLevel      log.Level `json:"log_level"`
}

func main() {
	config.Init("f", "", "olapmeta.json")

	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		log.Fatal(errors.Detail(err))
	}

	initConfig(cfg)
	registerLogLevel()
	log.SetOutputLevel(cfg.LogLevel)

	startServer := server.NewServer(&cfg.Config)
	warmUp(startServer, cfg.Endpoints)

	// start http server
	httpServer := server.NewHttpServer(startServer)
	httpServer.Serve(":" + strconv.Itoa(int(cfg.HttpBindPort)))

	// start grpc server
	grpcServer := server.NewRPCServer(startServer)
	grpcServer.Serve(":" + strconv.Itoa(int(cfg.GrpcBindPort)))

	if ip, err := util.GetLocalIp(); err == nil {
		log.Infof("olapmeta is serving at %s, http port: %d, grpc port: %d", ip, cfg.HttpBindPort, cfg.GrpcBindPort)
	}

	// wait for signal
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	// stop all server
	grpcServer.Stop()
	httpServer.Stop()
	startServer.Close()
}

func registerLogLevel() {
	logLevelPath, logLevelHandler := log.ChangeDefaultLevelHandler()
	profile.HandleFunc(http.MethodPost, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
	profile.HandleFunc(http.MethodGet, logLevelPath, func(c *rpc.Context) {
		logLevelHandler.ServeHTTP(c.Writer, c.Request)
	})
}

func warmUp(s *server.Server, endpoints []string) {
	span, ctx := trace.StartSpanFromContext(context.Background(), "warmup")
	for _, endpoint := range endpoints {
		if _, err := s.Catalog().GetClusterInfo(ctx, endpoint); err != nil {
			span.Warnf("cache cluster[%s] failed: %s", endpoint, errors.Detail(err))
		}
	}
}

func initConfig(cfg *Config) {
	if cfg.HttpBindPort == 0 {
		cfg.HttpBindPort = 9700
	}
	if cfg.GrpcBindPort == 0 {
		cfg.GrpcBindPort = 9701
	}
	if cfg.AuditLog.LogDir == "" {
		cfg.AuditLog.LogDir = "./run/audit_log"
	}
	if cfg.MaxProcessors > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcessors)
	}
}
