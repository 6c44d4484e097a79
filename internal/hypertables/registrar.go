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
	"github.com/noctarius/timescaledb-hypertable-manager/internal/logging"
	spiconfig "github.com/noctarius/timescaledb-hypertable-manager/spi/config"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

const defaultAssociatedSchema = "_hypertable_internal"

type hypertableRegistrar struct {
	logger           *logging.Logger
	sideChannel      sidechannel.SideChannel
	intervalResolver *IntervalResolver
	schemaPropagator *SchemaPropagator
	associatedSchema string
	associatedPrefix string
}

func NewRegistrar(
	config *spiconfig.Config, sideChannel sidechannel.SideChannel,
	intervalResolver *IntervalResolver, schemaPropagator *SchemaPropagator,
) (hypertables.Registrar, error) {

	logger, err := logging.NewLogger("HypertableRegistrar")
	if err != nil {
		return nil, err
	}

	associatedSchema := config.Hypertable.AssociatedSchema
	if associatedSchema == "" {
		associatedSchema = defaultAssociatedSchema
	}

	return &hypertableRegistrar{
		logger:           logger,
		sideChannel:      sideChannel,
		intervalResolver: intervalResolver,
		schemaPropagator: schemaPropagator,
		associatedSchema: associatedSchema,
		associatedPrefix: config.Hypertable.AssociatedTablePrefix,
	}, nil
}

func (hr *hypertableRegistrar) Register(
	request hypertables.RegisterRequest,
) (*systemcatalog.Hypertable, error) {

	entity := systemcatalog.NewSystemEntity(request.Schema, request.Table)

	resolved, found, err := hr.sideChannel.ResolveTable(entity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, hypertables.NewError(
			hypertables.NotFound, "table %s does not exist", entity.CanonicalName(),
		)
	}

	currentUser, err := hr.sideChannel.CurrentUser()
	if err != nil {
		return nil, err
	}
	if currentUser != resolved.Owner {
		return nil, hypertables.NewError(
			hypertables.PermissionDenied,
			"user '%s' is not the owner of table %s", currentUser, entity.CanonicalName(),
		)
	}

	if existing, err := hr.existingHypertable(entity, request.IfNotExists); existing != nil || err != nil {
		return existing, err
	}

	empty, err := hr.sideChannel.TableIsEmpty(entity)
	if err != nil {
		return nil, err
	}
	if !empty {
		return nil, hypertables.NewError(
			hypertables.NotEmpty,
			"table %s is not empty, only empty tables can become hypertables",
			entity.CanonicalName(),
		)
	}

	// A missing time column intentionally surfaces at
	// dimension creation, not here, so a malformed call
	// produces a single downstream error
	timeColumnOid, timeColumnFound, err := hr.sideChannel.ColumnType(entity, request.TimeColumn)
	if err != nil {
		return nil, err
	}

	var chunkInterval int64
	if timeColumnFound {
		class := systemcatalog.ClassifyColumnType(timeColumnOid)
		chunkInterval, err = hr.intervalResolver.Resolve(
			request.TimeColumn, class, request.ChunkInterval,
		)
		if err != nil {
			return nil, err
		}
	}

	var spaceColumnOid uint32
	if request.PartitioningColumn != nil {
		if request.NumPartitions == nil {
			return nil, hypertables.NewError(
				hypertables.InvalidDimension,
				"partitioning column '%s' requires a number of partitions",
				*request.PartitioningColumn,
			)
		}
		oid, found, err := hr.sideChannel.ColumnType(entity, *request.PartitioningColumn)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, hypertables.NewError(
				hypertables.NotFound,
				"column '%s' does not exist on table %s",
				*request.PartitioningColumn, entity.CanonicalName(),
			)
		}
		spaceColumnOid = oid
	}

	associatedSchema := hr.associatedSchema
	if request.AssociatedSchema != nil {
		associatedSchema = *request.AssociatedSchema
	}
	// An empty prefix makes the side channel derive the
	// id-based default
	associatedPrefix := hr.associatedPrefix
	if request.AssociatedPrefix != nil {
		associatedPrefix = *request.AssociatedPrefix
	}

	var hypertable *systemcatalog.Hypertable
	err = hr.sideChannel.UnitOfWork(func(tx sidechannel.CatalogTx) error {
		created, err := tx.InsertHypertable(
			request.Schema, request.Table, associatedSchema, associatedPrefix,
		)
		if err != nil {
			return err
		}

		if !timeColumnFound {
			return hypertables.NewError(
				hypertables.NotFound,
				"cannot create time dimension, column '%s' does not exist on table %s",
				request.TimeColumn, entity.CanonicalName(),
			)
		}

		if err := tx.InsertDimension(systemcatalog.NewTimeDimension(
			created.Id(), request.TimeColumn, timeColumnOid, chunkInterval,
		)); err != nil {
			return err
		}

		if request.PartitioningColumn != nil {
			if err := tx.InsertDimension(systemcatalog.NewSpaceDimension(
				created.Id(), *request.PartitioningColumn, spaceColumnOid, *request.NumPartitions,
			)); err != nil {
				return err
			}
		}

		if err := hr.schemaPropagator.Propagate(
			tx, created, entity, request.TimeColumn,
			request.PartitioningColumn, !request.SkipDefaultIndexes,
		); err != nil {
			return err
		}

		hypertable = created
		return nil
	})
	if err != nil {
		// Lost the insert race against a concurrent
		// registration, replay the duplicate handling
		if hypertables.IsKind(err, hypertables.AlreadyExists) {
			if existing, replayErr := hr.existingHypertable(
				entity, request.IfNotExists,
			); existing != nil || replayErr != nil {
				return existing, replayErr
			}
		}
		return nil, err
	}

	hr.logger.Infof(
		"Created hypertable %s (id %d)", entity.CanonicalName(), hypertable.Id(),
	)
	return hypertable, nil
}

// existingHypertable looks up an already registered
// hypertable for the entity. With ifNotExists the existing
// row is returned as a successful no-op, otherwise its
// presence is an AlreadyExists failure.
func (hr *hypertableRegistrar) existingHypertable(
	entity systemcatalog.SystemEntity, ifNotExists bool,
) (*systemcatalog.Hypertable, error) {

	existing, found, err := hr.sideChannel.FindHypertable(entity)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if ifNotExists {
		hr.logger.Infof(
			"Table %s is already a hypertable, skipping", entity.CanonicalName(),
		)
		return existing, nil
	}
	return nil, hypertables.NewError(
		hypertables.AlreadyExists,
		"table %s is already a hypertable", entity.CanonicalName(),
	)
}
