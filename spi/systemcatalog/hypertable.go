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

package systemcatalog

// Hypertable represents a hypertable definition in the
// system catalog. Instances are transient values resolved
// from the catalog for the duration of a single operation
// and are never cached across calls.
type Hypertable struct {
	*baseSystemEntity
	id                    int32
	associatedSchemaName  string
	associatedTablePrefix string
}

// NewHypertable instantiates a new Hypertable entity
func NewHypertable(
	id int32, schemaName, tableName, associatedSchemaName, associatedTablePrefix string,
) *Hypertable {

	return &Hypertable{
		baseSystemEntity: &baseSystemEntity{
			schemaName: schemaName,
			tableName:  tableName,
		},
		id:                    id,
		associatedSchemaName:  associatedSchemaName,
		associatedTablePrefix: associatedTablePrefix,
	}
}

// Id returns the hypertable id
func (h *Hypertable) Id() int32 {
	return h.id
}

// AssociatedSchemaName returns the schema name chunks of
// this hypertable are created in
func (h *Hypertable) AssociatedSchemaName() string {
	return h.associatedSchemaName
}

// AssociatedTablePrefix returns the prefix chunk table
// names of this hypertable start with
func (h *Hypertable) AssociatedTablePrefix() string {
	return h.associatedTablePrefix
}

// CanonicalChunkTablePrefix returns the canonical name
// prefix of chunks of this hypertable in the form of
// "associatedSchema"."associatedTablePrefix"
func (h *Hypertable) CanonicalChunkTablePrefix() string {
	return MakeRelationKey(h.associatedSchemaName, h.associatedTablePrefix)
}
