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
	"github.com/cubefs/cubefs/blobstore/common/rpc"
	"github.com/cubefs/cubefs/blobstore/common/rpc/auditlog"
	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/cubefs/olapmeta/catalog"
	"github.com/cubefs/olapmeta/relation"
)

const auditModule = "OLAPMETA"

type Config struct {
	CatalogConfig catalog.Config  `json:"catalog"`
	AuditLog      auditlog.Config `json:"auditlog"`
}

type Server struct {
	catalog *catalog.Catalog
	builder *relation.Builder

	logHandler rpc.ProgressHandler
	logCloser  auditlog.LogCloser
}

func NewServer(cfg *Config) *Server {
	s := newServerWith(catalog.NewCatalog(&cfg.CatalogConfig))
	if cfg.AuditLog.LogDir != "" {
		lh, lc, err := auditlog.Open(auditModule, &cfg.AuditLog)
		if err != nil {
			log.Fatal("open audit log failed:", err)
		}
		s.logHandler, s.logCloser = lh, lc
	}
	return s
}

func newServerWith(c *catalog.Catalog) *Server {
	return &Server{
		catalog: c,
		builder: relation.NewBuilder(c),
	}
}

func (s *Server) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Server) Builder() *relation.Builder {
	return s.builder
}

func (s *Server) Close() {
	s.catalog.Close()
	if s.logCloser != nil {
		s.logCloser.Close()
	}
}
