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

package manager

import (
	"github.com/jackc/pgx/v5"
	internalhypertables "github.com/noctarius/timescaledb-hypertable-manager/internal/hypertables"
	internalsidechannel "github.com/noctarius/timescaledb-hypertable-manager/internal/sidechannel"
	spiconfig "github.com/noctarius/timescaledb-hypertable-manager/spi/config"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/wiring"
)

// Manager bundles the assembled hypertable lifecycle
// services behind one entry point
type Manager struct {
	sideChannel      sidechannel.SideChannel
	registrar        hypertables.Registrar
	dimensionManager hypertables.DimensionManager
	retentionManager hypertables.RetentionManager
	tablespaceBinder hypertables.TablespaceBinder
}

func NewManager(
	config *spiconfig.Config, pgxConfig *pgx.ConnConfig,
) (*Manager, error) {

	coreModule := wiring.DefineModule("core", func(module wiring.Module) {
		module.Provide(func() *spiconfig.Config {
			return config
		})
		module.Provide(func() *pgx.ConnConfig {
			return pgxConfig
		})
		module.Provide(internalsidechannel.NewSideChannel)
		module.Provide(internalhypertables.NewIntervalResolver)
		module.Provide(internalhypertables.NewSchemaPropagator)
		module.Provide(internalhypertables.NewRegistrar)
		module.Provide(internalhypertables.NewDimensionManager)
		module.Provide(internalhypertables.NewRetentionManager)
		module.Provide(internalhypertables.NewTablespaceBinder)

		// Provision the catalog schema once the side channel
		// is resolvable, before any service is handed out
		module.Invoke(func(sideChannel sidechannel.SideChannel) error {
			return sideChannel.EnsureCatalog()
		})
	})

	container, err := wiring.NewContainer(coreModule)
	if err != nil {
		return nil, err
	}

	manager := &Manager{}
	if err := container.Service(&manager.sideChannel); err != nil {
		return nil, err
	}
	if err := container.Service(&manager.registrar); err != nil {
		return nil, err
	}
	if err := container.Service(&manager.dimensionManager); err != nil {
		return nil, err
	}
	if err := container.Service(&manager.retentionManager); err != nil {
		return nil, err
	}
	if err := container.Service(&manager.tablespaceBinder); err != nil {
		return nil, err
	}
	return manager, nil
}

func (m *Manager) SideChannel() sidechannel.SideChannel {
	return m.sideChannel
}

func (m *Manager) Registrar() hypertables.Registrar {
	return m.registrar
}

func (m *Manager) DimensionManager() hypertables.DimensionManager {
	return m.dimensionManager
}

func (m *Manager) RetentionManager() hypertables.RetentionManager {
	return m.retentionManager
}

func (m *Manager) TablespaceBinder() hypertables.TablespaceBinder {
	return m.tablespaceBinder
}
