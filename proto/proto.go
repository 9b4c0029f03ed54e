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

package proto

const (
	// TimeColumnName is the internal name of the event time column.
	TimeColumnName = "__time"
	ReqIdKey       = "req-id"

	BrokerQueryPath = "/druid/v2"
	StatusPath      = "/status"
	NodesPath       = "/coordinator/v1/nodes"
	ChangesPath     = "/coordinator/v1/changes"
)

// Column data types reported by segment metadata.
const (
	TypeString      = "STRING"
	TypeLong        = "LONG"
	TypeHyperUnique = "hyperUnique"
	TypeThetaSketch = "thetaSketch"
	TypeHLLSketch   = "HLLSketch"
)
