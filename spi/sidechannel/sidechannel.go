/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sidechannel

import (
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

// TemplateKind is the kind of a schema object mirrored onto
// future chunks
type TemplateKind string

const (
	ConstraintTemplate TemplateKind = "constraint"
	IndexTemplate      TemplateKind = "index"
	TriggerTemplate    TemplateKind = "trigger"
)

// ResolvedTable is the physical identity of a plain table as
// resolved from the backing catalog
type ResolvedTable struct {
	SchemaName string
	TableName  string
	Owner      string
	Tablespace string
}

type HypertableCallback = func(
	hypertable *systemcatalog.Hypertable,
) error

type DimensionCallback = func(
	dimension *systemcatalog.Dimension,
) error

type SchemaObjectCallback = func(
	objectId uint32, objectName, definition string,
) error

// SideChannel is the narrow interface to the backing
// catalog and storage layer. Reads run in short-lived
// sessions; all mutations of one logical operation run
// inside a single unit of work which commits or rolls back
// as a whole.
type SideChannel interface {
	EnsureCatalog() error
	CurrentUser() (username string, err error)
	ResolveTable(
		entity systemcatalog.SystemEntity,
	) (table *ResolvedTable, found bool, err error)
	TableIsEmpty(
		entity systemcatalog.SystemEntity,
	) (empty bool, err error)
	ColumnType(
		entity systemcatalog.SystemEntity, columnName string,
	) (oid uint32, found bool, err error)
	FindHypertable(
		entity systemcatalog.SystemEntity,
	) (hypertable *systemcatalog.Hypertable, found bool, err error)
	ReadHypertables(
		cb HypertableCallback,
	) error
	ReadDimensions(
		hypertableId int32, cb DimensionCallback,
	) error
	UnitOfWork(
		fn func(tx CatalogTx) error,
	) error
}

// CatalogTx is the transactional handle handed to a unit of
// work. Every mutation performed through it is committed or
// rolled back together.
type CatalogTx interface {
	FindHypertable(
		entity systemcatalog.SystemEntity,
	) (hypertable *systemcatalog.Hypertable, found bool, err error)
	LockHypertableRow(
		hypertableId int32,
	) error
	InsertHypertable(
		schemaName, tableName, associatedSchemaName, associatedTablePrefix string,
	) (hypertable *systemcatalog.Hypertable, err error)
	InsertDimension(
		dimension *systemcatalog.Dimension,
	) error
	TimeDimension(
		hypertableId int32,
	) (dimension *systemcatalog.Dimension, found bool, err error)
	UpdateTimeDimensionInterval(
		hypertableId int32, intervalLength int64,
	) error
	ReadTableConstraints(
		entity systemcatalog.SystemEntity, cb SchemaObjectCallback,
	) error
	ReadTableIndexes(
		entity systemcatalog.SystemEntity, cb SchemaObjectCallback,
	) error
	ReadTableTriggers(
		entity systemcatalog.SystemEntity, cb SchemaObjectCallback,
	) error
	IndexNeedsMirror(
		indexId uint32,
	) (needed bool, err error)
	TriggerNeedsMirror(
		triggerId uint32,
	) (needed bool, err error)
	InsertSchemaTemplate(
		hypertableId int32, kind TemplateKind, objectId uint32, objectName, definition string,
	) error
	CreateDefaultIndexes(
		entity systemcatalog.SystemEntity, timeColumn string, partitioningColumn *string,
	) error
	DropChunksBefore(
		schemaName, tableName *string, cutoff int64,
	) (dropped int64, err error)
	BindTablespace(
		hypertableId int32, tablespaceName string,
	) error
}
