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
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

type dimensionManager struct {
	logger           *logging.Logger
	sideChannel      sidechannel.SideChannel
	intervalResolver *IntervalResolver
}

func NewDimensionManager(
	sideChannel sidechannel.SideChannel, intervalResolver *IntervalResolver,
) (hypertables.DimensionManager, error) {

	logger, err := logging.NewLogger("DimensionManager")
	if err != nil {
		return nil, err
	}

	return &dimensionManager{
		logger:           logger,
		sideChannel:      sideChannel,
		intervalResolver: intervalResolver,
	}, nil
}

func (dm *dimensionManager) AddDimension(
	entity systemcatalog.SystemEntity, columnName string,
	numPartitions *int16, interval systemcatalog.RawInterval,
) error {

	// Exactly one of the two shapes is valid, a hash
	// partitioned space dimension or a range partitioned
	// secondary time dimension
	if numPartitions != nil && !interval.IsAbsent() {
		return hypertables.NewError(
			hypertables.InvalidDimension,
			"dimension on column '%s' cannot have both a number of partitions and a chunk interval",
			columnName,
		)
	}
	if numPartitions == nil && interval.IsAbsent() {
		return hypertables.NewError(
			hypertables.InvalidDimension,
			"dimension on column '%s' requires either a number of partitions or a chunk interval",
			columnName,
		)
	}

	hypertable, found, err := dm.sideChannel.FindHypertable(entity)
	if err != nil {
		return err
	}
	if !found {
		return hypertables.NewError(
			hypertables.NotFound, "table %s is not a hypertable", entity.CanonicalName(),
		)
	}

	columnOid, found, err := dm.sideChannel.ColumnType(entity, columnName)
	if err != nil {
		return err
	}
	if !found {
		return hypertables.NewError(
			hypertables.NotFound,
			"column '%s' does not exist on table %s", columnName, entity.CanonicalName(),
		)
	}

	var dimension *systemcatalog.Dimension
	if numPartitions != nil {
		if *numPartitions < 1 {
			return hypertables.NewError(
				hypertables.InvalidDimension,
				"dimension on column '%s' requires at least one partition", columnName,
			)
		}
		dimension = systemcatalog.NewSpaceDimension(
			hypertable.Id(), columnName, columnOid, *numPartitions,
		)
	} else {
		class := systemcatalog.ClassifyColumnType(columnOid)
		intervalLength, err := dm.intervalResolver.Resolve(columnName, class, interval)
		if err != nil {
			return err
		}
		dimension = systemcatalog.NewTimeDimension(
			hypertable.Id(), columnName, columnOid, intervalLength,
		)
	}

	if err := dm.sideChannel.UnitOfWork(func(tx sidechannel.CatalogTx) error {
		// Serializes concurrent dimension changes against
		// the hypertable row
		if err := tx.LockHypertableRow(hypertable.Id()); err != nil {
			return err
		}
		return tx.InsertDimension(dimension)
	}); err != nil {
		return err
	}

	dm.logger.Infof(
		"Added %s dimension on column '%s' to hypertable %s",
		dimension.Kind(), columnName, entity.CanonicalName(),
	)
	return nil
}

func (dm *dimensionManager) SetChunkTimeInterval(
	entity systemcatalog.SystemEntity, interval systemcatalog.RawInterval,
) error {

	if interval.IsAbsent() {
		return hypertables.NewError(
			hypertables.InvalidInterval,
			"no chunk interval given for table %s", entity.CanonicalName(),
		)
	}

	hypertable, found, err := dm.sideChannel.FindHypertable(entity)
	if err != nil {
		return err
	}
	if !found {
		return hypertables.NewError(
			hypertables.NotFound, "table %s is not a hypertable", entity.CanonicalName(),
		)
	}

	var intervalLength int64
	if err := dm.sideChannel.UnitOfWork(func(tx sidechannel.CatalogTx) error {
		if err := tx.LockHypertableRow(hypertable.Id()); err != nil {
			return err
		}

		timeDimension, found, err := tx.TimeDimension(hypertable.Id())
		if err != nil {
			return err
		}
		if !found {
			return hypertables.NewError(
				hypertables.NotFound,
				"hypertable %s has no time dimension", entity.CanonicalName(),
			)
		}

		class := systemcatalog.ClassifyColumnType(timeDimension.ColumnType())
		intervalLength, err = dm.intervalResolver.Resolve(
			timeDimension.ColumnName(), class, interval,
		)
		if err != nil {
			return err
		}

		return tx.UpdateTimeDimensionInterval(hypertable.Id(), intervalLength)
	}); err != nil {
		return err
	}

	dm.logger.Infof(
		"Set chunk interval of hypertable %s to %d", entity.CanonicalName(), intervalLength,
	)
	return nil
}
