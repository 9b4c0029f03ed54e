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

package server

import (
	"context"
	"net"

	"github.com/cubefs/cubefs/blobstore/common/trace"
	"github.com/cubefs/cubefs/blobstore/util/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/cubefs/olapmeta/metrics"
	"github.com/cubefs/olapmeta/proto"
)

type RPCServer struct {
	grpcServer *grpc.Server
	health     *health.Server

	*Server
}

func NewRPCServer(server *Server) *RPCServer {
	rs := &RPCServer{Server: server, health: health.NewServer()}

	s := grpc.NewServer(grpc.ChainUnaryInterceptor(
		metrics.GRPCMetrics.UnaryServerInterceptor(),
		rs.unaryInterceptorWithTracer,
	))
	grpc_health_v1.RegisterHealthServer(s, rs.health)
	metrics.GRPCMetrics.InitializeMetrics(s)
	rs.grpcServer = s
	return rs
}

func (r *RPCServer) Serve(addr string) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatal("grpc server listen failed:", err)
	}
	r.serve(lis)
	log.Info("grpc server is running at:", addr)
}

func (r *RPCServer) serve(lis net.Listener) {
	r.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
			log.Fatal("grpc server exits:", err)
		}
	}()
}

func (r *RPCServer) Stop() {
	r.health.Shutdown()
	r.grpcServer.GracefulStop()
}

// util function

func (r *RPCServer) unaryInterceptorWithTracer(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Internal, "failed to get metadata")
	}
	if reqId, ok := md[proto.ReqIdKey]; ok && len(reqId) > 0 {
		_, ctx = trace.StartSpanFromContextWithTraceID(ctx, info.FullMethod, reqId[0])
	} else {
		_, ctx = trace.StartSpanFromContext(ctx, info.FullMethod)
	}

	return handler(ctx, req)
}
