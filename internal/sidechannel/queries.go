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

package sidechannel

// region Catalog Bootstrap

var catalogBootstrap = []string{
	`CREATE SCHEMA IF NOT EXISTS _hypertable_catalog`,
	`CREATE TABLE IF NOT EXISTS _hypertable_catalog.hypertable (
		id serial PRIMARY KEY,
		schema_name name NOT NULL,
		table_name name NOT NULL,
		associated_schema_name name NOT NULL,
		associated_table_prefix name NOT NULL,
		UNIQUE (schema_name, table_name)
	)`,
	`CREATE TABLE IF NOT EXISTS _hypertable_catalog.dimension (
		id serial PRIMARY KEY,
		hypertable_id integer NOT NULL REFERENCES _hypertable_catalog.hypertable (id),
		column_name name NOT NULL,
		column_type oid NOT NULL,
		kind text NOT NULL CHECK (kind IN ('time', 'space')),
		num_slices smallint CHECK (num_slices IS NULL OR num_slices >= 1),
		interval_length bigint CHECK (interval_length IS NULL OR interval_length > 0)
	)`,
	`CREATE TABLE IF NOT EXISTS _hypertable_catalog.schema_template (
		id serial PRIMARY KEY,
		hypertable_id integer NOT NULL REFERENCES _hypertable_catalog.hypertable (id),
		kind text NOT NULL CHECK (kind IN ('constraint', 'index', 'trigger')),
		object_id oid NOT NULL,
		object_name name NOT NULL,
		definition text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS _hypertable_catalog.tablespace (
		hypertable_id integer PRIMARY KEY REFERENCES _hypertable_catalog.hypertable (id),
		tablespace_name name NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS _hypertable_catalog.chunk (
		id serial PRIMARY KEY,
		hypertable_id integer NOT NULL REFERENCES _hypertable_catalog.hypertable (id),
		schema_name name NOT NULL,
		table_name name NOT NULL,
		range_start bigint NOT NULL,
		range_end bigint NOT NULL
	)`,
}

// endregion

// region Physical Table Queries

const queryCurrentUser = `SELECT current_user`

const queryResolveTable = `
SELECT n.nspname, c.relname, pg_catalog.pg_get_userbyid(c.relowner), COALESCE(t.spcname, '')
FROM pg_catalog.pg_class c
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
LEFT JOIN pg_catalog.pg_tablespace t ON t.oid = c.reltablespace
WHERE n.nspname = $1
  AND c.relname = $2
  AND c.relkind = 'r'`

const queryTemplateTableIsEmpty = `SELECT NOT EXISTS (SELECT 1 FROM %s LIMIT 1)`

const queryColumnType = `
SELECT a.atttypid
FROM pg_catalog.pg_attribute a
JOIN pg_catalog.pg_class c ON c.oid = a.attrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relname = $2
  AND a.attname = $3
  AND a.attnum > 0
  AND NOT a.attisdropped`

// endregion

// region Hypertable Catalog Queries

const queryFindHypertable = `
SELECT id, schema_name, table_name, associated_schema_name, associated_table_prefix
FROM _hypertable_catalog.hypertable
WHERE schema_name = $1
  AND table_name = $2`

const queryReadHypertables = `
SELECT id, schema_name, table_name, associated_schema_name, associated_table_prefix
FROM _hypertable_catalog.hypertable
ORDER BY id`

const queryReadDimensions = `
SELECT hypertable_id, column_name, column_type, kind, num_slices, interval_length
FROM _hypertable_catalog.dimension
WHERE hypertable_id = $1
ORDER BY id`

const queryInsertHypertable = `
INSERT INTO _hypertable_catalog.hypertable (
	schema_name, table_name, associated_schema_name, associated_table_prefix
)
VALUES ($1, $2, $3, $4)
RETURNING id`

const queryUpdateAssociatedTablePrefix = `
UPDATE _hypertable_catalog.hypertable
SET associated_table_prefix = $2
WHERE id = $1`

const queryLockHypertableRow = `
SELECT id
FROM _hypertable_catalog.hypertable
WHERE id = $1
FOR UPDATE`

const queryInsertDimension = `
INSERT INTO _hypertable_catalog.dimension (
	hypertable_id, column_name, column_type, kind, num_slices, interval_length
)
VALUES ($1, $2, $3, $4, $5, $6)`

const queryTimeDimension = `
SELECT hypertable_id, column_name, column_type, kind, num_slices, interval_length
FROM _hypertable_catalog.dimension
WHERE hypertable_id = $1
  AND kind = 'time'
ORDER BY id
LIMIT 1`

const queryUpdateTimeDimensionInterval = `
UPDATE _hypertable_catalog.dimension
SET interval_length = $2
WHERE id = (
	SELECT min(id)
	FROM _hypertable_catalog.dimension
	WHERE hypertable_id = $1
	  AND kind = 'time'
)`

// endregion

// region Schema Template Queries

const queryReadTableConstraints = `
SELECT con.oid, con.conname, pg_catalog.pg_get_constraintdef(con.oid, true)
FROM pg_catalog.pg_constraint con
JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relname = $2
ORDER BY con.oid`

const queryReadTableIndexes = `
SELECT i.indexrelid, ic.relname, pg_catalog.pg_get_indexdef(i.indexrelid)
FROM pg_catalog.pg_index i
JOIN pg_catalog.pg_class ic ON ic.oid = i.indexrelid
JOIN pg_catalog.pg_class c ON c.oid = i.indrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relname = $2
ORDER BY i.indexrelid ASC`

const queryReadTableTriggers = `
SELECT t.oid, t.tgname, pg_catalog.pg_get_triggerdef(t.oid)
FROM pg_catalog.pg_trigger t
JOIN pg_catalog.pg_class c ON c.oid = t.tgrelid
JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1
  AND c.relname = $2
  AND NOT t.tgisinternal
ORDER BY t.oid`

const queryIndexNeedsMirror = `
SELECT NOT EXISTS (
	SELECT 1
	FROM pg_catalog.pg_constraint
	WHERE conindid = $1
)`

const queryTriggerNeedsMirror = `
SELECT (t.tgtype & 1) = 1
FROM pg_catalog.pg_trigger t
WHERE t.oid = $1`

const queryInsertSchemaTemplate = `
INSERT INTO _hypertable_catalog.schema_template (
	hypertable_id, kind, object_id, object_name, definition
)
VALUES ($1, $2, $3, $4, $5)`

const queryTemplateCreateDefaultTimeIndex = `CREATE INDEX IF NOT EXISTS "%s" ON %s ("%s" DESC)`

const queryTemplateCreateDefaultSpaceIndex = `CREATE INDEX IF NOT EXISTS "%s" ON %s ("%s", "%s" DESC)`

// endregion

// region Retention Queries

const queryExpiredChunks = `
SELECT ch.id, ch.schema_name, ch.table_name
FROM _hypertable_catalog.chunk ch
JOIN _hypertable_catalog.hypertable h ON h.id = ch.hypertable_id
WHERE ch.range_end <= $1
  AND ($2::name IS NULL OR h.schema_name = $2)
  AND ($3::name IS NULL OR h.table_name = $3)
ORDER BY ch.id`

const queryDeleteChunkRow = `DELETE FROM _hypertable_catalog.chunk WHERE id = $1`

const queryTemplateDropChunkTable = `DROP TABLE IF EXISTS %s`

// endregion

// region Tablespace Queries

const queryBindTablespace = `
INSERT INTO _hypertable_catalog.tablespace (hypertable_id, tablespace_name)
VALUES ($1, $2)
ON CONFLICT (hypertable_id) DO UPDATE SET tablespace_name = excluded.tablespace_name`

// endregion
