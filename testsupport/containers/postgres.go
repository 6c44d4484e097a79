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

package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	databaseName = "hypertables"
	postgresUser = "postgres"
	postgresPass = "postgres"
)

// ConfigProvider hands out connection configs for the
// started container
type ConfigProvider struct {
	host string
	port int
}

func (c *ConfigProvider) ConnConfig() (*pgx.ConnConfig, error) {
	return pgx.ParseConfig(
		fmt.Sprintf("postgres://%s:%s@%s:%d/%s", postgresUser, postgresPass, c.host, c.port, databaseName),
	)
}

// SetupPostgresContainer starts a throwaway PostgreSQL
// container for integration tests. The caller owns the
// container and has to terminate it.
func SetupPostgresContainer() (testcontainers.Container, *ConfigProvider, error) {
	containerRequest := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Cmd:          []string{"-c", "fsync=off"},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(time.Minute),
		Env: map[string]string{
			"POSTGRES_DB":       databaseName,
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPass,
		},
	}

	container, err := testcontainers.GenericContainer(context.Background(),
		testcontainers.GenericContainerRequest{
			ContainerRequest: containerRequest,
			Started:          true,
		},
	)
	if err != nil {
		return nil, nil, err
	}

	host, err := container.Host(context.Background())
	if err != nil {
		container.Terminate(context.Background())
		return nil, nil, err
	}

	port, err := container.MappedPort(context.Background(), "5432/tcp")
	if err != nil {
		container.Terminate(context.Background())
		return nil, nil, err
	}

	return container, &ConfigProvider{host: host, port: port.Int()}, nil
}
