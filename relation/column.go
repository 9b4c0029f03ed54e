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

package relation

import (
	"github.com/cubefs/cubefs/blobstore/util/log"

	"github.com/cubefs/olapmeta/catalog"
	"github.com/cubefs/olapmeta/proto"
)

// ColumnSpec is a user declared column. HLLMetric and SketchMetric name the
// metric columns that hold its approximate distinct count.
type ColumnSpec struct {
	Name         string `json:"name"`
	HLLMetric    string `json:"hll_metric,omitempty"`
	SketchMetric string `json:"sketch_metric,omitempty"`
}

// Column is a reconciled column of a relation. Column is nil for a virtual
// column backed only by its linked metrics.
type Column struct {
	Name         string          `json:"name"`
	Column       *catalog.Column `json:"column,omitempty"`
	HLLMetric    *catalog.Column `json:"hll_metric,omitempty"`
	SketchMetric *catalog.Column `json:"sketch_metric,omitempty"`
	Cardinality  *int64          `json:"cardinality,omitempty"`
}

func (c *Column) IsVirtual() bool {
	return c.Column == nil
}

// BuildColumns reconciles the discovered columns of schema with the user
// declared specs. Every discovered column is kept, specs that match no
// discovered column become virtual columns, and the time column is exposed
// as timeColumn with a STRING type, replacing any other column of that
// name. Metric names that do not resolve to a
// metric of schema are ignored.
func BuildColumns(schema *catalog.DataSourceSchema, specs []ColumnSpec, timeColumn string) map[string]*Column {
	byName := make(map[string]ColumnSpec, len(specs))
	for _, spec := range specs {
		byName[spec.Name] = spec
	}

	columns := make(map[string]*Column, len(schema.Columns)+len(specs))
	for name := range schema.Columns {
		col := schema.Columns[name]
		rc := &Column{Name: name, Column: &col, Cardinality: col.CardinalityEstimate()}
		if spec, ok := byName[name]; ok {
			rc.HLLMetric = resolveMetric(schema, spec.HLLMetric)
			rc.SketchMetric = resolveMetric(schema, spec.SketchMetric)
		}
		columns[name] = rc
	}

	for _, spec := range specs {
		if _, ok := schema.Columns[spec.Name]; ok {
			continue
		}
		rc := &Column{
			Name:         spec.Name,
			HLLMetric:    resolveMetric(schema, spec.HLLMetric),
			SketchMetric: resolveMetric(schema, spec.SketchMetric),
		}
		switch {
		case rc.HLLMetric != nil:
			rc.Cardinality = rc.HLLMetric.CardinalityEstimate()
		case rc.SketchMetric != nil:
			rc.Cardinality = rc.SketchMetric.CardinalityEstimate()
		}
		columns[spec.Name] = rc
	}

	renameTimeColumn(columns, timeColumn)
	return columns
}

func resolveMetric(schema *catalog.DataSourceSchema, name string) *catalog.Column {
	if name == "" {
		return nil
	}
	col, ok := schema.Metric(name)
	if !ok {
		return nil
	}
	return &col
}

func renameTimeColumn(columns map[string]*Column, timeColumn string) {
	rc, ok := columns[proto.TimeColumnName]
	if !ok || timeColumn == "" {
		return
	}
	delete(columns, proto.TimeColumnName)
	if _, ok := columns[timeColumn]; ok {
		log.Warnf("time column %s shadows column of the same name", timeColumn)
	}

	rc.Name = timeColumn
	if rc.Column != nil {
		col := *rc.Column
		col.Name = timeColumn
		col.DataType = proto.TypeString
		rc.Column = &col
	}
	columns[timeColumn] = rc
}
