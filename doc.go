/*
 *
 * Copyright 2023 CubeFS authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

/*

# OLAPMeta: schema metadata cache of analytical clusters

## Why?

Planning a query against an analytical datasource needs its columns, their
kinds and cardinalities, and the time range it covers. Asking a broker for a
segment analysis on every plan is expensive, so the answer is cached per
cluster and kept fresh by segment notifications.

## Data Model

* Cluster, one analytical cluster addressed by its coordinator endpoint

* DataSource schema, the classified columns and covered intervals of a datasource

* Column, a dimension, the time dimension, or a metric with an optional HLL or theta sketch

* Relation, the columns of a datasource reconciled with user declared columns

## Architecture

* catalog, the two level cache of clusters and datasource schemas, and the
  listener that applies segment load and drop notifications

* cluster, the registry of cluster connections watching coordinator changes

* client, the broker and coordinator HTTP clients

* relation, the column reconciliation and relation builder

Every server provides endpoints via gRPC & RESTful API.

## Building Blocks

* gRPC
* Prometheus

*/

package olapmeta
