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

type tablespaceBinder struct {
	logger      *logging.Logger
	sideChannel sidechannel.SideChannel
}

func NewTablespaceBinder(
	sideChannel sidechannel.SideChannel,
) (hypertables.TablespaceBinder, error) {

	logger, err := logging.NewLogger("TablespaceBinder")
	if err != nil {
		return nil, err
	}

	return &tablespaceBinder{
		logger:      logger,
		sideChannel: sideChannel,
	}, nil
}

func (tb *tablespaceBinder) AttachTablespace(
	entity systemcatalog.SystemEntity, tablespaceName string,
) error {

	hypertable, found, err := tb.sideChannel.FindHypertable(entity)
	if err != nil {
		return err
	}
	if !found {
		return hypertables.NewError(
			hypertables.NotFound, "table %s is not a hypertable", entity.CanonicalName(),
		)
	}

	if err := tb.sideChannel.UnitOfWork(func(tx sidechannel.CatalogTx) error {
		return tx.BindTablespace(hypertable.Id(), tablespaceName)
	}); err != nil {
		return err
	}

	tb.logger.Infof(
		"Attached tablespace '%s' to hypertable %s", tablespaceName, entity.CanonicalName(),
	)
	return nil
}
