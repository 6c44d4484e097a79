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
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

const (
	// CanonicalMonthInterval is the default chunk interval
	// for date/time partitioning columns, one month (30 days)
	// in canonical microsecond units
	CanonicalMonthInterval int64 = 2592000000000

	microsPerSecond int64 = 1000000
)

// IntervalResolver converts user supplied chunk intervals
// into canonical microsecond units, dispatched on the
// partitioning column's type class
type IntervalResolver struct {
	logger *logging.Logger
}

func NewIntervalResolver() (*IntervalResolver, error) {
	logger, err := logging.NewLogger("IntervalResolver")
	if err != nil {
		return nil, err
	}

	return &IntervalResolver{
		logger: logger,
	}, nil
}

// Resolve computes the canonical chunk interval for the
// given column class. Date/time columns default to one
// canonical month when no interval is supplied, integer
// columns require an explicit integer interval, any other
// column class passes the supplied value through
// unvalidated.
func (ir *IntervalResolver) Resolve(
	columnName string, class systemcatalog.ColumnClass, raw systemcatalog.RawInterval,
) (int64, error) {

	resolved, err := ir.resolve(columnName, class, raw)
	if err != nil {
		return 0, err
	}

	if resolved <= 0 {
		return 0, hypertables.NewError(
			hypertables.InvalidInterval,
			"chunk interval for column '%s' must be positive, got %d", columnName, resolved,
		)
	}

	// Chunk spans wider than the column's representable
	// range could never be addressed on that axis
	if maxInterval, bounded := class.MaxIntervalValue(); bounded && resolved > maxInterval {
		return 0, hypertables.NewError(
			hypertables.IntervalTooLarge,
			"chunk interval %d for column '%s' exceeds the maximum of %d for a %d bit integer column",
			resolved, columnName, maxInterval, class.Width(),
		)
	}

	return resolved, nil
}

func (ir *IntervalResolver) resolve(
	columnName string, class systemcatalog.ColumnClass, raw systemcatalog.RawInterval,
) (int64, error) {

	switch class.Kind() {
	case systemcatalog.DateTimeLike:
		if raw.IsAbsent() {
			return CanonicalMonthInterval, nil
		}
		if value, present := raw.Integer(); present {
			if value < microsPerSecond {
				ir.logger.Warnf(
					"Chunk interval %d for column '%s' is smaller than one second, "+
						"interval values are interpreted as microseconds", value, columnName,
				)
			}
			return value, nil
		}
		if duration, present := raw.Duration(); present {
			return duration.Microseconds(), nil
		}
		return 0, hypertables.NewError(
			hypertables.InvalidInterval,
			"unsupported chunk interval value for date/time column '%s'", columnName,
		)

	case systemcatalog.BoundedInteger:
		if raw.IsAbsent() {
			return 0, hypertables.NewError(
				hypertables.InvalidInterval,
				"integer partitioning column '%s' requires an explicit chunk interval", columnName,
			)
		}
		if value, present := raw.Integer(); present {
			return value, nil
		}
		return 0, hypertables.NewError(
			hypertables.InvalidInterval,
			"chunk interval for integer column '%s' must be an integer value", columnName,
		)

	default:
		// Extension point for custom time types, the value
		// passes through unvalidated
		if value, present := raw.Integer(); present {
			return value, nil
		}
		if duration, present := raw.Duration(); present {
			return duration.Microseconds(), nil
		}
		return 0, hypertables.NewError(
			hypertables.InvalidInterval,
			"partitioning column '%s' requires an explicit chunk interval", columnName,
		)
	}
}
