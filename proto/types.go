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

import (
	"encoding/json"
	"strings"
)

type ColumnDetail struct {
	Type              string          `json:"type"`
	HasMultipleValues bool            `json:"hasMultipleValues,omitempty"`
	Size              int64           `json:"size"`
	Cardinality       *int64          `json:"cardinality,omitempty"`
	MinValue          json.RawMessage `json:"minValue,omitempty"`
	MaxValue          json.RawMessage `json:"maxValue,omitempty"`
	ErrorMessage      string          `json:"errorMessage,omitempty"`
}

type Aggregator struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	FieldName string `json:"fieldName,omitempty"`
}

type TimestampSpec struct {
	Column string `json:"column"`
	Format string `json:"format"`
}

type Granularity struct {
	Type string `json:"type"`
}

// UnmarshalJSON accepts both the simple string form and the object form.
func (g *Granularity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		g.Type = s
		return nil
	}
	type plain Granularity
	return json.Unmarshal(data, (*plain)(g))
}

// MetadataResponse is one merged segment analysis of a datasource.
type MetadataResponse struct {
	ID               string                  `json:"id"`
	Intervals        []string                `json:"intervals"`
	Columns          map[string]ColumnDetail `json:"columns"`
	Size             int64                   `json:"size"`
	NumRows          *int64                  `json:"numRows,omitempty"`
	Aggregators      map[string]Aggregator   `json:"aggregators,omitempty"`
	TimestampSpec    *TimestampSpec          `json:"timestampSpec,omitempty"`
	QueryGranularity *Granularity            `json:"queryGranularity,omitempty"`
}

type Module struct {
	Name     string `json:"name"`
	Artifact string `json:"artifact"`
	Version  string `json:"version"`
}

type Memory struct {
	MaxMemory   int64 `json:"maxMemory"`
	TotalMemory int64 `json:"totalMemory"`
	FreeMemory  int64 `json:"freeMemory"`
	UsedMemory  int64 `json:"usedMemory"`
}

type ServerStatus struct {
	Version string   `json:"version"`
	Modules []Module `json:"modules"`
	Memory  Memory   `json:"memory"`
}

type TimeBoundary struct {
	MinTime string `json:"minTime"`
	MaxTime string `json:"maxTime"`
}

// ResultRow is a timestamped row of a broker query result.
type ResultRow struct {
	Timestamp string          `json:"timestamp"`
	Result    json.RawMessage `json:"result"`
}

type Action string

const (
	ActionLoad Action = "load"
	ActionDrop Action = "drop"
)

// ParseAction normalizes the case of a notification action.
func ParseAction(s string) Action {
	return Action(strings.ToLower(strings.TrimSpace(s)))
}

type RawNotification = json.RawMessage

// Notification is a segment load or drop announced by the coordinator.
type Notification struct {
	Action     Action `json:"action"`
	DataSource string `json:"dataSource"`
	Interval   string `json:"interval"`
}
