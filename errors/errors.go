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

package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNoCoordinator       = errors.New("no coordinator address available")
	ErrNoBroker            = errors.New("no broker node available")
	ErrEmptyMetadata       = errors.New("empty segment metadata response")
	ErrEmptyTimeBoundary   = errors.New("empty time boundary response")
	ErrDataSourceNotCached = errors.New("datasource is not cached")
	ErrClusterNotCached    = errors.New("cluster is not cached")
	ErrRegistryClosed      = errors.New("connection registry is closed")

	ErrMalformedNotification = errors.New("malformed notification")
	ErrUnknownAction         = errors.New("unknown notification action")
)

// ConnectionError reports an unreachable coordination endpoint.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to cluster[%s] failed: %s", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MetadataFetchError reports a failed or unparsable broker request.
type MetadataFetchError struct {
	Endpoint   string
	DataSource string
	Op         string
	Err        error
}

func (e *MetadataFetchError) Error() string {
	if e.DataSource == "" {
		return fmt.Sprintf("%s of cluster[%s] failed: %s", e.Op, e.Endpoint, e.Err)
	}
	return fmt.Sprintf("%s of datasource[%s] on cluster[%s] failed: %s", e.Op, e.DataSource, e.Endpoint, e.Err)
}

func (e *MetadataFetchError) Unwrap() error { return e.Err }

func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

func IsMetadataFetchError(err error) bool {
	var target *MetadataFetchError
	return errors.As(err, &target)
}
