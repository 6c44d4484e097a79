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

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// ColumnClassKind is the closed set of column type classes
// relevant to interval resolution
type ColumnClassKind string

const (
	DateTimeLike   ColumnClassKind = "datetime"
	BoundedInteger ColumnClassKind = "integer"
	OtherColumn    ColumnClassKind = "other"
)

const (
	maxInterval16 int64 = 65535
	maxInterval32 int64 = 4294967295
)

// ColumnClass is the tagged classification of a partitioning
// column's declared type. Dispatching on the class keeps
// interval resolution exhaustive instead of comparing raw
// type oids all over the place.
type ColumnClass struct {
	kind  ColumnClassKind
	oid   uint32
	width int
}

// ClassifyColumnType classifies the given type oid into one
// of the known column classes. Unknown oids map to
// OtherColumn which acts as the extension point for custom
// time types.
func ClassifyColumnType(oid uint32) ColumnClass {
	switch oid {
	case pgtype.TimestampOID, pgtype.TimestamptzOID, pgtype.DateOID:
		return ColumnClass{kind: DateTimeLike, oid: oid}
	case pgtype.Int2OID:
		return ColumnClass{kind: BoundedInteger, oid: oid, width: 16}
	case pgtype.Int4OID:
		return ColumnClass{kind: BoundedInteger, oid: oid, width: 32}
	case pgtype.Int8OID:
		return ColumnClass{kind: BoundedInteger, oid: oid, width: 64}
	default:
		return ColumnClass{kind: OtherColumn, oid: oid}
	}
}

// Kind returns the class kind
func (c ColumnClass) Kind() ColumnClassKind {
	return c.kind
}

// Oid returns the underlying type oid
func (c ColumnClass) Oid() uint32 {
	return c.oid
}

// Width returns the bit width for bounded integer classes,
// otherwise zero
func (c ColumnClass) Width() int {
	return c.width
}

// MaxIntervalValue returns the largest representable chunk
// interval for bounded integer columns of 16 or 32 bits and
// true, otherwise present will be false
func (c ColumnClass) MaxIntervalValue() (maxInterval int64, present bool) {
	if c.kind != BoundedInteger {
		return 0, false
	}
	switch c.width {
	case 16:
		return maxInterval16, true
	case 32:
		return maxInterval32, true
	}
	return 0, false
}
