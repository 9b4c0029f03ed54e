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

package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/cubefs/cubefs/blobstore/common/trace"

	"github.com/cubefs/olapmeta/proto"
)

type ColumnKind uint8

const (
	KindDimension ColumnKind = iota + 1
	KindTimeDimension
	KindMetric
)

func (k ColumnKind) String() string {
	switch k {
	case KindDimension:
		return "dimension"
	case KindTimeDimension:
		return "time_dimension"
	case KindMetric:
		return "metric"
	default:
		return "unknown"
	}
}

func (k ColumnKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ColumnKind) UnmarshalText(text []byte) error {
	for _, kind := range []ColumnKind{KindDimension, KindTimeDimension, KindMetric} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown column kind %q", text)
}

// ApproxKind is the approximate aggregation a metric column holds.
type ApproxKind uint8

const (
	ApproxNone ApproxKind = iota
	ApproxHLL
	ApproxThetaSketch
)

func (k ApproxKind) String() string {
	switch k {
	case ApproxHLL:
		return "hll"
	case ApproxThetaSketch:
		return "theta_sketch"
	default:
		return "none"
	}
}

func (k ApproxKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ApproxKind) UnmarshalText(text []byte) error {
	for _, kind := range []ApproxKind{ApproxNone, ApproxHLL, ApproxThetaSketch} {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown approx kind %q", text)
}

// Column is a discovered column. Build it with NewDimension,
// NewTimeDimension or NewMetric; only metrics carry an ApproxKind.
type Column struct {
	Name        string     `json:"name"`
	Kind        ColumnKind `json:"kind"`
	DataType    string     `json:"data_type"`
	Size        int64      `json:"size"`
	Cardinality *int64     `json:"cardinality,omitempty"`
	Approx      ApproxKind `json:"approx,omitempty"`
}

func NewDimension(name, dataType string, size int64, cardinality *int64) Column {
	return Column{Name: name, Kind: KindDimension, DataType: dataType, Size: size, Cardinality: cardinality}
}

func NewTimeDimension(name, dataType string, size int64, cardinality *int64) Column {
	return Column{Name: name, Kind: KindTimeDimension, DataType: dataType, Size: size, Cardinality: cardinality}
}

func NewMetric(name, dataType string, size int64, cardinality *int64, approx ApproxKind) Column {
	return Column{Name: name, Kind: KindMetric, DataType: dataType, Size: size, Cardinality: cardinality, Approx: approx}
}

func (c Column) IsMetric() bool {
	return c.Kind == KindMetric
}

// CardinalityEstimate is the column's own cardinality for every known kind.
func (c Column) CardinalityEstimate() *int64 {
	switch c.Kind {
	case KindDimension, KindTimeDimension, KindMetric:
		return c.Cardinality
	default:
		return nil
	}
}

func approxKindOf(typ string) ApproxKind {
	lower := strings.ToLower(typ)
	switch {
	case lower == strings.ToLower(proto.TypeHyperUnique), strings.HasPrefix(lower, strings.ToLower(proto.TypeHLLSketch)):
		return ApproxHLL
	case strings.HasPrefix(lower, strings.ToLower(proto.TypeThetaSketch)):
		return ApproxThetaSketch
	default:
		return ApproxNone
	}
}

// classifyColumns turns the columns of a segment analysis into typed
// columns. The time column is always present in the result.
func classifyColumns(ctx context.Context, mr *proto.MetadataResponse) map[string]Column {
	span := trace.SpanFromContextSafe(ctx)
	columns := make(map[string]Column, len(mr.Columns)+1)

	for name, detail := range mr.Columns {
		if detail.ErrorMessage != "" {
			span.Warnf("skip column[%s] of %s: %s", name, mr.ID, detail.ErrorMessage)
			continue
		}
		if name == proto.TimeColumnName {
			columns[name] = NewTimeDimension(name, detail.Type, detail.Size, detail.Cardinality)
			continue
		}

		approx := approxKindOf(detail.Type)
		agg, isAggregated := mr.Aggregators[name]
		if isAggregated && approx == ApproxNone {
			approx = approxKindOf(agg.Type)
		}
		if isAggregated || approx != ApproxNone {
			columns[name] = NewMetric(name, detail.Type, detail.Size, detail.Cardinality, approx)
			continue
		}
		columns[name] = NewDimension(name, detail.Type, detail.Size, detail.Cardinality)
	}

	if _, ok := columns[proto.TimeColumnName]; !ok {
		columns[proto.TimeColumnName] = NewTimeDimension(proto.TimeColumnName, proto.TypeLong, 0, nil)
	}
	return columns
}
