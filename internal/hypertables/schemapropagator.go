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
	"strings"

	"github.com/noctarius/timescaledb-hypertable-manager/internal/logging"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

// chunkTablePlaceholder replaces the source table name in
// mirrored definitions so they can be replayed against any
// future chunk
const chunkTablePlaceholder = "/*CHUNK*/"

// SchemaPropagator captures constraints, indexes and
// triggers existing on the source table at conversion time
// and registers them as templates to be mirrored onto every
// future chunk. Mirrors are not kept in sync with later
// schema changes of the source table.
type SchemaPropagator struct {
	logger *logging.Logger
}

func NewSchemaPropagator() (*SchemaPropagator, error) {
	logger, err := logging.NewLogger("SchemaPropagator")
	if err != nil {
		return nil, err
	}

	return &SchemaPropagator{
		logger: logger,
	}, nil
}

// Propagate registers mirror templates for all schema
// objects on the source table and optionally creates the
// default index set. Runs inside the registration's unit of
// work, any failure aborts the whole registration.
func (sp *SchemaPropagator) Propagate(
	tx sidechannel.CatalogTx, hypertable *systemcatalog.Hypertable,
	entity systemcatalog.SystemEntity, timeColumn string, partitioningColumn *string,
	createDefaultIndexes bool,
) error {

	// Constraints always replicate
	if err := tx.ReadTableConstraints(entity, func(
		objectId uint32, objectName, definition string,
	) error {
		sp.logger.Debugf(
			"Mirroring constraint '%s' of %s", objectName, entity.CanonicalName(),
		)
		return tx.InsertSchemaTemplate(
			hypertable.Id(), sidechannel.ConstraintTemplate,
			objectId, objectName, sp.genericDefinition(definition, entity),
		)
	}); err != nil {
		return err
	}

	// Index mirrors replay in index oid order, the side
	// channel reads them sorted ascending
	if err := tx.ReadTableIndexes(entity, func(
		objectId uint32, objectName, definition string,
	) error {
		needed, err := tx.IndexNeedsMirror(objectId)
		if err != nil {
			return err
		}
		if !needed {
			sp.logger.Debugf(
				"Skipping index '%s' of %s, covered by a constraint mirror",
				objectName, entity.CanonicalName(),
			)
			return nil
		}
		return tx.InsertSchemaTemplate(
			hypertable.Id(), sidechannel.IndexTemplate,
			objectId, objectName, sp.genericDefinition(definition, entity),
		)
	}); err != nil {
		return err
	}

	if err := tx.ReadTableTriggers(entity, func(
		objectId uint32, objectName, definition string,
	) error {
		needed, err := tx.TriggerNeedsMirror(objectId)
		if err != nil {
			return err
		}
		if !needed {
			return nil
		}
		return tx.InsertSchemaTemplate(
			hypertable.Id(), sidechannel.TriggerTemplate,
			objectId, objectName, sp.genericDefinition(definition, entity),
		)
	}); err != nil {
		return err
	}

	if createDefaultIndexes {
		if err := tx.CreateDefaultIndexes(entity, timeColumn, partitioningColumn); err != nil {
			return err
		}
	}
	return nil
}

// genericDefinition rewrites a rendered object definition
// into a partition independent one by replacing the source
// table reference with the chunk placeholder
func (sp *SchemaPropagator) genericDefinition(
	definition string, entity systemcatalog.SystemEntity,
) string {

	plainName := fmt.Sprintf("%s.%s", entity.SchemaName(), entity.TableName())
	definition = strings.ReplaceAll(definition, entity.CanonicalName(), chunkTablePlaceholder)
	return strings.ReplaceAll(definition, plainName, chunkTablePlaceholder)
}
