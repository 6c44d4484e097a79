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

package hypertables

import (
	"fmt"

	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

type schemaObject struct {
	objectId   uint32
	objectName string
	definition string
}

type templateRecord struct {
	hypertableId int32
	kind         sidechannel.TemplateKind
	objectId     uint32
	objectName   string
	definition   string
}

type defaultIndexRecord struct {
	entity             systemcatalog.SystemEntity
	timeColumn         string
	partitioningColumn *string
}

type dropChunksRecord struct {
	schemaName *string
	tableName  *string
	cutoff     int64
}

// fakeSideChannel is an in-memory stand-in for the real
// catalog connection. Units of work mutate the shared state
// directly and restore a snapshot when the work function
// fails, mimicking a transaction rollback.
type fakeSideChannel struct {
	user        string
	tables      map[string]*sidechannel.ResolvedTable
	nonEmpty    map[string]bool
	columns     map[string]uint32
	hypertables map[string]*systemcatalog.Hypertable
	dimensions  map[int32][]*systemcatalog.Dimension

	findHypertableFn func(
		entity systemcatalog.SystemEntity,
	) (*systemcatalog.Hypertable, bool, error)

	tx *fakeCatalogTx
}

func newFakeSideChannel() *fakeSideChannel {
	fake := &fakeSideChannel{
		user:        "postgres",
		tables:      make(map[string]*sidechannel.ResolvedTable),
		nonEmpty:    make(map[string]bool),
		columns:     make(map[string]uint32),
		hypertables: make(map[string]*systemcatalog.Hypertable),
		dimensions:  make(map[int32][]*systemcatalog.Dimension),
	}
	fake.tx = &fakeCatalogTx{
		parent:             fake,
		nextId:             1,
		indexNeedsMirror:   make(map[uint32]bool),
		triggerNeedsMirror: make(map[uint32]bool),
		updatedIntervals:   make(map[int32]int64),
		boundTablespaces:   make(map[int32]string),
	}
	return fake
}

func (f *fakeSideChannel) withTable(
	schemaName, tableName, owner string, columns map[string]uint32,
) *fakeSideChannel {

	key := systemcatalog.MakeRelationKey(schemaName, tableName)
	f.tables[key] = &sidechannel.ResolvedTable{
		SchemaName: schemaName,
		TableName:  tableName,
		Owner:      owner,
	}
	for columnName, oid := range columns {
		f.columns[fmt.Sprintf("%s|%s", key, columnName)] = oid
	}
	return f
}

func (f *fakeSideChannel) withHypertable(
	hypertable *systemcatalog.Hypertable,
) *fakeSideChannel {

	f.hypertables[hypertable.CanonicalName()] = hypertable
	if hypertable.Id() >= f.tx.nextId {
		f.tx.nextId = hypertable.Id() + 1
	}
	return f
}

func (f *fakeSideChannel) EnsureCatalog() error {
	return nil
}

func (f *fakeSideChannel) CurrentUser() (string, error) {
	return f.user, nil
}

func (f *fakeSideChannel) ResolveTable(
	entity systemcatalog.SystemEntity,
) (*sidechannel.ResolvedTable, bool, error) {

	table, present := f.tables[entity.CanonicalName()]
	return table, present, nil
}

func (f *fakeSideChannel) TableIsEmpty(
	entity systemcatalog.SystemEntity,
) (bool, error) {

	return !f.nonEmpty[entity.CanonicalName()], nil
}

func (f *fakeSideChannel) ColumnType(
	entity systemcatalog.SystemEntity, columnName string,
) (uint32, bool, error) {

	oid, present := f.columns[fmt.Sprintf("%s|%s", entity.CanonicalName(), columnName)]
	return oid, present, nil
}

func (f *fakeSideChannel) FindHypertable(
	entity systemcatalog.SystemEntity,
) (*systemcatalog.Hypertable, bool, error) {

	if f.findHypertableFn != nil {
		return f.findHypertableFn(entity)
	}
	hypertable, present := f.hypertables[entity.CanonicalName()]
	return hypertable, present, nil
}

func (f *fakeSideChannel) ReadHypertables(
	cb sidechannel.HypertableCallback,
) error {

	for _, hypertable := range f.hypertables {
		if err := cb(hypertable); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSideChannel) ReadDimensions(
	hypertableId int32, cb sidechannel.DimensionCallback,
) error {

	for _, dimension := range f.dimensions[hypertableId] {
		if err := cb(dimension); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeSideChannel) UnitOfWork(
	fn func(tx sidechannel.CatalogTx) error,
) error {

	hypertablesSnapshot := make(map[string]*systemcatalog.Hypertable, len(f.hypertables))
	for key, value := range f.hypertables {
		hypertablesSnapshot[key] = value
	}
	dimensionsSnapshot := make(map[int32][]*systemcatalog.Dimension, len(f.dimensions))
	for key, value := range f.dimensions {
		dimensionsSnapshot[key] = append([]*systemcatalog.Dimension(nil), value...)
	}

	if err := fn(f.tx); err != nil {
		f.hypertables = hypertablesSnapshot
		f.dimensions = dimensionsSnapshot
		return err
	}
	return nil
}

type fakeCatalogTx struct {
	parent *fakeSideChannel
	nextId int32

	insertHypertableErr error
	insertDimensionErr  error

	constraints []schemaObject
	indexes     []schemaObject
	triggers    []schemaObject

	indexNeedsMirror   map[uint32]bool
	triggerNeedsMirror map[uint32]bool

	lockedHypertableIds []int32
	templates           []templateRecord
	defaultIndexCalls   []defaultIndexRecord
	updatedIntervals    map[int32]int64
	dropChunksCalls     []dropChunksRecord
	dropChunksResult    int64
	boundTablespaces    map[int32]string
}

func (tx *fakeCatalogTx) FindHypertable(
	entity systemcatalog.SystemEntity,
) (*systemcatalog.Hypertable, bool, error) {

	hypertable, present := tx.parent.hypertables[entity.CanonicalName()]
	return hypertable, present, nil
}

func (tx *fakeCatalogTx) LockHypertableRow(
	hypertableId int32,
) error {

	tx.lockedHypertableIds = append(tx.lockedHypertableIds, hypertableId)
	return nil
}

func (tx *fakeCatalogTx) InsertHypertable(
	schemaName, tableName, associatedSchemaName, associatedTablePrefix string,
) (*systemcatalog.Hypertable, error) {

	if tx.insertHypertableErr != nil {
		return nil, tx.insertHypertableErr
	}

	id := tx.nextId
	tx.nextId++
	if associatedTablePrefix == "" {
		associatedTablePrefix = fmt.Sprintf("_hyper_%d", id)
	}

	hypertable := systemcatalog.NewHypertable(
		id, schemaName, tableName, associatedSchemaName, associatedTablePrefix,
	)
	tx.parent.hypertables[hypertable.CanonicalName()] = hypertable
	return hypertable, nil
}

func (tx *fakeCatalogTx) InsertDimension(
	dimension *systemcatalog.Dimension,
) error {

	if tx.insertDimensionErr != nil {
		return tx.insertDimensionErr
	}
	tx.parent.dimensions[dimension.HypertableId()] = append(
		tx.parent.dimensions[dimension.HypertableId()], dimension,
	)
	return nil
}

func (tx *fakeCatalogTx) TimeDimension(
	hypertableId int32,
) (*systemcatalog.Dimension, bool, error) {

	for _, dimension := range tx.parent.dimensions[hypertableId] {
		if dimension.IsTimeDimension() {
			return dimension, true, nil
		}
	}
	return nil, false, nil
}

func (tx *fakeCatalogTx) UpdateTimeDimensionInterval(
	hypertableId int32, intervalLength int64,
) error {

	tx.updatedIntervals[hypertableId] = intervalLength
	return nil
}

func (tx *fakeCatalogTx) ReadTableConstraints(
	entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	for _, object := range tx.constraints {
		if err := cb(object.objectId, object.objectName, object.definition); err != nil {
			return err
		}
	}
	return nil
}

func (tx *fakeCatalogTx) ReadTableIndexes(
	entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	for _, object := range tx.indexes {
		if err := cb(object.objectId, object.objectName, object.definition); err != nil {
			return err
		}
	}
	return nil
}

func (tx *fakeCatalogTx) ReadTableTriggers(
	entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	for _, object := range tx.triggers {
		if err := cb(object.objectId, object.objectName, object.definition); err != nil {
			return err
		}
	}
	return nil
}

func (tx *fakeCatalogTx) IndexNeedsMirror(
	indexId uint32,
) (bool, error) {

	if needed, present := tx.indexNeedsMirror[indexId]; present {
		return needed, nil
	}
	return true, nil
}

func (tx *fakeCatalogTx) TriggerNeedsMirror(
	triggerId uint32,
) (bool, error) {

	if needed, present := tx.triggerNeedsMirror[triggerId]; present {
		return needed, nil
	}
	return true, nil
}

func (tx *fakeCatalogTx) InsertSchemaTemplate(
	hypertableId int32, kind sidechannel.TemplateKind, objectId uint32, objectName, definition string,
) error {

	tx.templates = append(tx.templates, templateRecord{
		hypertableId: hypertableId,
		kind:         kind,
		objectId:     objectId,
		objectName:   objectName,
		definition:   definition,
	})
	return nil
}

func (tx *fakeCatalogTx) CreateDefaultIndexes(
	entity systemcatalog.SystemEntity, timeColumn string, partitioningColumn *string,
) error {

	tx.defaultIndexCalls = append(tx.defaultIndexCalls, defaultIndexRecord{
		entity:             entity,
		timeColumn:         timeColumn,
		partitioningColumn: partitioningColumn,
	})
	return nil
}

func (tx *fakeCatalogTx) DropChunksBefore(
	schemaName, tableName *string, cutoff int64,
) (int64, error) {

	tx.dropChunksCalls = append(tx.dropChunksCalls, dropChunksRecord{
		schemaName: schemaName,
		tableName:  tableName,
		cutoff:     cutoff,
	})
	return tx.dropChunksResult, nil
}

func (tx *fakeCatalogTx) BindTablespace(
	hypertableId int32, tablespaceName string,
) error {

	tx.boundTablespaces[hypertableId] = tablespaceName
	return nil
}
