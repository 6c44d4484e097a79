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

package systemcatalog

// DimensionKind is a string like definition of the
// available dimension kinds
type DimensionKind string

const (
	TimeDimension  DimensionKind = "time"
	SpaceDimension DimensionKind = "space"
)

// Dimension represents one partitioning axis of a
// hypertable in the system catalog. The kind of a
// dimension is immutable after creation, only the
// interval length of time dimensions can be adjusted
// later on.
type Dimension struct {
	hypertableId   int32
	columnName     string
	columnType     uint32
	kind           DimensionKind
	numSlices      *int16
	intervalLength *int64
}

// NewDimension instantiates a Dimension entity from its
// raw catalog representation
func NewDimension(
	hypertableId int32, columnName string, columnType uint32,
	kind DimensionKind, numSlices *int16, intervalLength *int64,
) *Dimension {

	return &Dimension{
		hypertableId:   hypertableId,
		columnName:     columnName,
		columnType:     columnType,
		kind:           kind,
		numSlices:      numSlices,
		intervalLength: intervalLength,
	}
}

// NewTimeDimension instantiates a new time (or time-like
// secondary) Dimension entity
func NewTimeDimension(
	hypertableId int32, columnName string, columnType uint32, intervalLength int64,
) *Dimension {

	return &Dimension{
		hypertableId:   hypertableId,
		columnName:     columnName,
		columnType:     columnType,
		kind:           TimeDimension,
		intervalLength: &intervalLength,
	}
}

// NewSpaceDimension instantiates a new space Dimension entity
func NewSpaceDimension(
	hypertableId int32, columnName string, columnType uint32, numSlices int16,
) *Dimension {

	return &Dimension{
		hypertableId: hypertableId,
		columnName:   columnName,
		columnType:   columnType,
		kind:         SpaceDimension,
		numSlices:    &numSlices,
	}
}

// HypertableId returns the id of the owning hypertable
func (d *Dimension) HypertableId() int32 {
	return d.hypertableId
}

// ColumnName returns the name of the partitioning column
func (d *Dimension) ColumnName() string {
	return d.columnName
}

// ColumnType returns the type oid of the partitioning column
func (d *Dimension) ColumnType() uint32 {
	return d.columnType
}

// Kind returns the dimension kind (time or space)
func (d *Dimension) Kind() DimensionKind {
	return d.kind
}

// IsTimeDimension returns true if this dimension
// partitions along a time-like axis
func (d *Dimension) IsTimeDimension() bool {
	return d.kind == TimeDimension
}

// NumSlices returns the number of slices and true for
// space dimensions, otherwise present will be false
func (d *Dimension) NumSlices() (numSlices int16, present bool) {
	if d.numSlices != nil {
		return *d.numSlices, true
	}
	return 0, false
}

// IntervalLength returns the per-chunk interval in canonical
// units and true for time dimensions, otherwise present
// will be false
func (d *Dimension) IntervalLength() (intervalLength int64, present bool) {
	if d.intervalLength != nil {
		return *d.intervalLength, true
	}
	return 0, false
}
