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

	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
)

// RegisterRequest carries the arguments for converting a
// plain table into a hypertable. The default index set is
// created unless SkipDefaultIndexes is set, so the zero
// value request carries the default behavior.
type RegisterRequest struct {
	Schema             string
	Table              string
	TimeColumn         string
	PartitioningColumn *string
	NumPartitions      *int16
	AssociatedSchema   *string
	AssociatedPrefix   *string
	ChunkInterval      systemcatalog.RawInterval
	SkipDefaultIndexes bool
	IfNotExists        bool
}

// Registrar validates and creates new hypertables. The whole
// registration either commits as one unit or not at all.
type Registrar interface {
	Register(
		request RegisterRequest,
	) (*systemcatalog.Hypertable, error)
}

// DimensionManager adds secondary partitioning dimensions to
// registered hypertables and adjusts the chunk interval of
// the time dimension
type DimensionManager interface {
	AddDimension(
		entity systemcatalog.SystemEntity, columnName string,
		numPartitions *int16, interval systemcatalog.RawInterval,
	) error
	SetChunkTimeInterval(
		entity systemcatalog.SystemEntity, interval systemcatalog.RawInterval,
	) error
}

// RetentionManager drops chunks whose time range lies
// entirely before a cutoff point
type RetentionManager interface {
	DropChunks(
		olderThan Boundary, schemaName, tableName *string,
	) error
}

// TablespaceBinder associates hypertables with the physical
// tablespace future chunks are created in
type TablespaceBinder interface {
	AttachTablespace(
		entity systemcatalog.SystemEntity, tablespaceName string,
	) error
}

// Boundary is a retention cutoff point, either an absolute
// point in time or a duration relative to the time of the
// call
type Boundary struct {
	absolute *time.Time
	relative *time.Duration
}

// AbsoluteBoundary returns a cutoff at the given point in time
func AbsoluteBoundary(pointInTime time.Time) Boundary {
	return Boundary{absolute: &pointInTime}
}

// RelativeBoundary returns a cutoff at now minus the given
// duration, resolved when the retention operation runs
func RelativeBoundary(duration time.Duration) Boundary {
	return Boundary{relative: &duration}
}

// Resolve computes the absolute cutoff of this boundary
// against the given now
func (b Boundary) Resolve(now time.Time) time.Time {
	if b.absolute != nil {
		return *b.absolute
	}
	if b.relative != nil {
		return now.Add(-*b.relative)
	}
	return now
}

// IsZero returns true if neither an absolute nor a relative
// cutoff was supplied
func (b Boundary) IsZero() bool {
	return b.absolute == nil && b.relative == nil
}
