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
	"time"

	"github.com/noctarius/timescaledb-hypertable-manager/internal/logging"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
)

type retentionManager struct {
	logger      *logging.Logger
	sideChannel sidechannel.SideChannel
}

func NewRetentionManager(
	sideChannel sidechannel.SideChannel,
) (hypertables.RetentionManager, error) {

	logger, err := logging.NewLogger("RetentionManager")
	if err != nil {
		return nil, err
	}

	return &retentionManager{
		logger:      logger,
		sideChannel: sideChannel,
	}, nil
}

func (rm *retentionManager) DropChunks(
	olderThan hypertables.Boundary, schemaName, tableName *string,
) error {

	if olderThan.IsZero() {
		return hypertables.NewError(
			hypertables.InvalidInterval, "no retention cutoff given",
		)
	}

	// Chunks whose range ends exactly at the cutoff are
	// dropped as well, ranges are end exclusive
	cutoff := olderThan.Resolve(time.Now()).UnixMicro()

	var dropped int64
	if err := rm.sideChannel.UnitOfWork(func(tx sidechannel.CatalogTx) error {
		var err error
		dropped, err = tx.DropChunksBefore(schemaName, tableName, cutoff)
		return err
	}); err != nil {
		return err
	}

	rm.logger.Infof("Dropped %d expired chunks before %d", dropped, cutoff)
	return nil
}
