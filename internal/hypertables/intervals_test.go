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
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIntervalResolver(
	t *testing.T,
) *IntervalResolver {

	resolver, err := NewIntervalResolver()
	require.NoError(t, err)
	return resolver
}

func TestIntervalResolver_DateTimeDefaultsToOneMonth(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.TimestamptzOID)

	resolved, err := resolver.Resolve("ts", class, systemcatalog.NoInterval())
	require.NoError(t, err)
	assert.Equal(t, CanonicalMonthInterval, resolved)
}

func TestIntervalResolver_DateTimeDurationConversion(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.TimestampOID)

	resolved, err := resolver.Resolve(
		"ts", class, systemcatalog.DurationInterval(time.Hour*24),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(86400000000), resolved)
}

func TestIntervalResolver_DateTimeSubSecondIntegerAccepted(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.DateOID)

	// Values below one second log a warning but resolve
	resolved, err := resolver.Resolve(
		"ts", class, systemcatalog.IntegerInterval(500),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(500), resolved)
}

func TestIntervalResolver_IntegerColumnRequiresInterval(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.Int8OID)

	_, err := resolver.Resolve("sequence", class, systemcatalog.NoInterval())
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidInterval))
}

func TestIntervalResolver_IntegerColumnRejectsDuration(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.Int8OID)

	_, err := resolver.Resolve(
		"sequence", class, systemcatalog.DurationInterval(time.Hour),
	)
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidInterval))
}

func TestIntervalResolver_SmallIntBounds(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.Int2OID)

	resolved, err := resolver.Resolve(
		"bucket", class, systemcatalog.IntegerInterval(65535),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(65535), resolved)

	_, err = resolver.Resolve(
		"bucket", class, systemcatalog.IntegerInterval(65536),
	)
	assert.True(t, hypertables.IsKind(err, hypertables.IntervalTooLarge))
}

func TestIntervalResolver_IntBounds(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.Int4OID)

	resolved, err := resolver.Resolve(
		"bucket", class, systemcatalog.IntegerInterval(4294967295),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(4294967295), resolved)

	_, err = resolver.Resolve(
		"bucket", class, systemcatalog.IntegerInterval(4294967296),
	)
	assert.True(t, hypertables.IsKind(err, hypertables.IntervalTooLarge))
}

func TestIntervalResolver_BigIntUnbounded(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.Int8OID)

	resolved, err := resolver.Resolve(
		"sequence", class, systemcatalog.IntegerInterval(4294967296),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(4294967296), resolved)
}

func TestIntervalResolver_NonPositiveIntervalRejected(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.TimestamptzOID)

	_, err := resolver.Resolve("ts", class, systemcatalog.IntegerInterval(0))
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidInterval))

	_, err = resolver.Resolve("ts", class, systemcatalog.IntegerInterval(-42))
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidInterval))
}

func TestIntervalResolver_OtherColumnPassesThrough(
	t *testing.T,
) {

	resolver := newTestIntervalResolver(t)
	class := systemcatalog.ClassifyColumnType(pgtype.NumericOID)
	assert.Equal(t, systemcatalog.OtherColumn, class.Kind())

	resolved, err := resolver.Resolve(
		"custom", class, systemcatalog.IntegerInterval(1234),
	)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), resolved)

	_, err = resolver.Resolve("custom", class, systemcatalog.NoInterval())
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidInterval))

	// Non-positive values fail the catalog check constraint
	// later anyway, the pass-through class rejects them early
	_, err = resolver.Resolve("custom", class, systemcatalog.IntegerInterval(-1))
	assert.True(t, hypertables.IsKind(err, hypertables.InvalidInterval))
}
