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
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	spiconfig "github.com/noctarius/timescaledb-hypertable-manager/spi/config"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistrar(
	t *testing.T, fake *fakeSideChannel,
) hypertables.Registrar {

	resolver, err := NewIntervalResolver()
	require.NoError(t, err)

	propagator, err := NewSchemaPropagator()
	require.NoError(t, err)

	registrar, err := NewRegistrar(&spiconfig.Config{}, fake, resolver, propagator)
	require.NoError(t, err)
	return registrar
}

func timeSeriesTable(
	fake *fakeSideChannel,
) *fakeSideChannel {

	return fake.withTable("public", "metrics", "postgres", map[string]uint32{
		"ts":        pgtype.TimestamptzOID,
		"device_id": pgtype.Int4OID,
	})
}

func TestRegistrar_Register(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	hypertable, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "ts",
	})
	require.NoError(t, err)
	require.NotNil(t, hypertable)

	assert.Equal(t, int32(1), hypertable.Id())
	assert.Equal(t, "\"public\".\"metrics\"", hypertable.CanonicalName())
	assert.Equal(t, "_hyper_1", hypertable.AssociatedTablePrefix())

	dimensions := fake.dimensions[hypertable.Id()]
	require.Len(t, dimensions, 1)
	assert.True(t, dimensions[0].IsTimeDimension())
	assert.Equal(t, "ts", dimensions[0].ColumnName())

	intervalLength, present := dimensions[0].IntervalLength()
	require.True(t, present)
	assert.Equal(t, CanonicalMonthInterval, intervalLength)
}

func TestRegistrar_Register_SpaceDimension(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	partitioningColumn := "device_id"
	numPartitions := int16(4)
	hypertable, err := registrar.Register(hypertables.RegisterRequest{
		Schema:             "public",
		Table:              "metrics",
		TimeColumn:         "ts",
		PartitioningColumn: &partitioningColumn,
		NumPartitions:      &numPartitions,
	})
	require.NoError(t, err)

	dimensions := fake.dimensions[hypertable.Id()]
	require.Len(t, dimensions, 2)
	assert.Equal(t, systemcatalog.TimeDimension, dimensions[0].Kind())
	assert.Equal(t, systemcatalog.SpaceDimension, dimensions[1].Kind())

	numSlices, present := dimensions[1].NumSlices()
	require.True(t, present)
	assert.Equal(t, int16(4), numSlices)
}

func TestRegistrar_Register_PartitioningColumnWithoutNumPartitions(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	partitioningColumn := "device_id"
	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:             "public",
		Table:              "metrics",
		TimeColumn:         "ts",
		PartitioningColumn: &partitioningColumn,
	})
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidDimension))
}

func TestRegistrar_Register_TableNotFound(
	t *testing.T,
) {

	registrar := newTestRegistrar(t, newFakeSideChannel())

	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "missing",
		TimeColumn: "ts",
	})
	assert.True(t, hypertables.IsKind(err, hypertables.NotFound))
}

func TestRegistrar_Register_PermissionDenied(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	fake.user = "someone_else"
	registrar := newTestRegistrar(t, fake)

	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "ts",
	})
	assert.True(t, hypertables.IsKind(err, hypertables.PermissionDenied))
}

func TestRegistrar_Register_AlreadyExists(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	fake.withHypertable(systemcatalog.NewHypertable(
		7, "public", "metrics", "_hypertable_internal", "_hyper_7",
	))
	registrar := newTestRegistrar(t, fake)

	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "ts",
	})
	assert.True(t, hypertables.IsKind(err, hypertables.AlreadyExists))
}

func TestRegistrar_Register_IfNotExistsReturnsExisting(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	fake.withHypertable(systemcatalog.NewHypertable(
		7, "public", "metrics", "_hypertable_internal", "_hyper_7",
	))
	registrar := newTestRegistrar(t, fake)

	hypertable, err := registrar.Register(hypertables.RegisterRequest{
		Schema:      "public",
		Table:       "metrics",
		TimeColumn:  "ts",
		IfNotExists: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(7), hypertable.Id())

	// The existing registration must be returned untouched
	assert.Empty(t, fake.dimensions[hypertable.Id()])
}

func TestRegistrar_Register_NotEmpty(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	fake.nonEmpty["\"public\".\"metrics\""] = true
	registrar := newTestRegistrar(t, fake)

	// IfNotExists only covers the duplicate case, a non-empty
	// plain table still fails
	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:      "public",
		Table:       "metrics",
		TimeColumn:  "ts",
		IfNotExists: true,
	})
	assert.True(t, hypertables.IsKind(err, hypertables.NotEmpty))
}

func TestRegistrar_Register_MissingTimeColumn(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "no_such_column",
	})
	assert.True(t, hypertables.IsKind(err, hypertables.NotFound))
	assert.ErrorContains(t, err, "dimension")

	// The partial registration must be rolled back
	assert.Empty(t, fake.hypertables)
}

func TestRegistrar_Register_InsertRaceWithIfNotExists(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	// The concurrent winner's row only becomes visible after
	// this side's unit of work lost the insert race
	winner := systemcatalog.NewHypertable(
		3, "public", "metrics", "_hypertable_internal", "_hyper_3",
	)
	calls := 0
	fake.findHypertableFn = func(
		entity systemcatalog.SystemEntity,
	) (*systemcatalog.Hypertable, bool, error) {
		calls++
		if calls == 1 {
			return nil, false, nil
		}
		return winner, true, nil
	}
	fake.tx.insertHypertableErr = hypertables.NewError(
		hypertables.AlreadyExists, "duplicate key value violates unique constraint",
	)

	hypertable, err := registrar.Register(hypertables.RegisterRequest{
		Schema:      "public",
		Table:       "metrics",
		TimeColumn:  "ts",
		IfNotExists: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), hypertable.Id())
}

func TestRegistrar_Register_InsertRaceWithoutIfNotExists(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	winner := systemcatalog.NewHypertable(
		3, "public", "metrics", "_hypertable_internal", "_hyper_3",
	)
	calls := 0
	fake.findHypertableFn = func(
		entity systemcatalog.SystemEntity,
	) (*systemcatalog.Hypertable, bool, error) {
		calls++
		if calls == 1 {
			return nil, false, nil
		}
		return winner, true, nil
	}
	fake.tx.insertHypertableErr = hypertables.NewError(
		hypertables.AlreadyExists, "duplicate key value violates unique constraint",
	)

	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "ts",
	})
	assert.True(t, hypertables.IsKind(err, hypertables.AlreadyExists))
}

func TestRegistrar_Register_SchemaPropagation(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	fake.tx.constraints = []schemaObject{
		{101, "metrics_pkey", `PRIMARY KEY (ts, device_id)`},
	}
	fake.tx.indexes = []schemaObject{
		{201, "metrics_pkey", `CREATE UNIQUE INDEX metrics_pkey ON "public"."metrics" (ts, device_id)`},
		{202, "metrics_device_idx", `CREATE INDEX metrics_device_idx ON public.metrics (device_id)`},
	}
	fake.tx.triggers = []schemaObject{
		{301, "metrics_audit", `CREATE TRIGGER metrics_audit AFTER INSERT ON "public"."metrics" FOR EACH ROW EXECUTE FUNCTION audit()`},
		{302, "metrics_stmt", `CREATE TRIGGER metrics_stmt AFTER INSERT ON "public"."metrics" FOR EACH STATEMENT EXECUTE FUNCTION noop()`},
	}
	// Constraint backed index and statement level trigger
	// must not be mirrored twice
	fake.tx.indexNeedsMirror[201] = false
	fake.tx.triggerNeedsMirror[302] = false
	registrar := newTestRegistrar(t, fake)

	hypertable, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "ts",
	})
	require.NoError(t, err)

	require.Len(t, fake.tx.templates, 3)
	assert.Equal(t, "metrics_pkey", fake.tx.templates[0].objectName)
	assert.Equal(t, "metrics_device_idx", fake.tx.templates[1].objectName)
	assert.Equal(t, "metrics_audit", fake.tx.templates[2].objectName)

	// Source table references are rewritten, quoted or not
	assert.NotContains(t, fake.tx.templates[1].definition, "public.metrics")
	assert.Contains(t, fake.tx.templates[1].definition, "/*CHUNK*/")
	assert.NotContains(t, fake.tx.templates[2].definition, `"public"."metrics"`)

	require.Len(t, fake.tx.defaultIndexCalls, 1)
	assert.Equal(t, "ts", fake.tx.defaultIndexCalls[0].timeColumn)
	assert.Equal(t, hypertable.Id(), int32(1))
}

func TestRegistrar_Register_DefaultIndexesCreatedByDefault(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	// A plain request without any index preference must end
	// up with the default index set
	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:     "public",
		Table:      "metrics",
		TimeColumn: "ts",
	})
	require.NoError(t, err)

	require.Len(t, fake.tx.defaultIndexCalls, 1)
	assert.Equal(t, "ts", fake.tx.defaultIndexCalls[0].timeColumn)
	assert.Nil(t, fake.tx.defaultIndexCalls[0].partitioningColumn)
}

func TestRegistrar_Register_SkipDefaultIndexes(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	_, err := registrar.Register(hypertables.RegisterRequest{
		Schema:             "public",
		Table:              "metrics",
		TimeColumn:         "ts",
		SkipDefaultIndexes: true,
	})
	require.NoError(t, err)

	assert.Empty(t, fake.tx.defaultIndexCalls)
}

func TestRegistrar_Register_CustomAssociatedSchemaAndPrefix(
	t *testing.T,
) {

	fake := timeSeriesTable(newFakeSideChannel())
	registrar := newTestRegistrar(t, fake)

	associatedSchema := "chunk_store"
	associatedPrefix := "metrics_part"
	hypertable, err := registrar.Register(hypertables.RegisterRequest{
		Schema:           "public",
		Table:            "metrics",
		TimeColumn:       "ts",
		AssociatedSchema: &associatedSchema,
		AssociatedPrefix: &associatedPrefix,
	})
	require.NoError(t, err)

	assert.Equal(t, "chunk_store", hypertable.AssociatedSchemaName())
	assert.Equal(t, "metrics_part", hypertable.AssociatedTablePrefix())
}
