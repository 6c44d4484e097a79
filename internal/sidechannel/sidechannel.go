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

import (
	"context"
	"fmt"
	"time"

	"github.com/go-errors/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/noctarius/timescaledb-hypertable-manager/internal/logging"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/hypertables"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/sidechannel"
	"github.com/noctarius/timescaledb-hypertable-manager/spi/systemcatalog"
	"github.com/samber/lo"
)

type sideChannel struct {
	logger    *logging.Logger
	pgxConfig *pgx.ConnConfig
}

func NewSideChannel(
	pgxConfig *pgx.ConnConfig,
) (sidechannel.SideChannel, error) {

	logger, err := logging.NewLogger("SideChannel")
	if err != nil {
		return nil, err
	}

	return &sideChannel{
		logger:    logger,
		pgxConfig: pgxConfig,
	}, nil
}

func (sc *sideChannel) EnsureCatalog() error {
	return sc.newSession(time.Second*20, func(session *session) error {
		for _, statement := range catalogBootstrap {
			if _, err := session.exec(statement); err != nil {
				return errors.Wrap(err, 0)
			}
		}
		sc.logger.Debugf("Catalog schema provisioned")
		return nil
	})
}

func (sc *sideChannel) CurrentUser() (username string, err error) {
	err = sc.newSession(time.Second*10, func(session *session) error {
		return session.queryRow(queryCurrentUser).Scan(&username)
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ResolveTable(
	entity systemcatalog.SystemEntity,
) (table *sidechannel.ResolvedTable, found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		resolved := &sidechannel.ResolvedTable{}
		if err := session.queryRow(
			queryResolveTable, entity.SchemaName(), entity.TableName(),
		).Scan(
			&resolved.SchemaName, &resolved.TableName, &resolved.Owner, &resolved.Tablespace,
		); err != nil {
			return err
		}
		table = resolved
		found = true
		return nil
	})
	if err == pgx.ErrNoRows {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) TableIsEmpty(
	entity systemcatalog.SystemEntity,
) (empty bool, err error) {

	err = sc.newSession(time.Second*20, func(session *session) error {
		return session.queryRow(
			fmt.Sprintf(queryTemplateTableIsEmpty, entity.CanonicalName()),
		).Scan(&empty)
	})
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) ColumnType(
	entity systemcatalog.SystemEntity, columnName string,
) (oid uint32, found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		if err := session.queryRow(
			queryColumnType, entity.SchemaName(), entity.TableName(), columnName,
		).Scan(&oid); err != nil {
			return err
		}
		found = true
		return nil
	})
	if err == pgx.ErrNoRows {
		err = nil
	}
	if err != nil {
		err = errors.Wrap(err, 0)
	}
	return
}

func (sc *sideChannel) FindHypertable(
	entity systemcatalog.SystemEntity,
) (hypertable *systemcatalog.Hypertable, found bool, err error) {

	err = sc.newSession(time.Second*10, func(session *session) error {
		hypertable, found, err = scanHypertable(
			session.queryRow(queryFindHypertable, entity.SchemaName(), entity.TableName()),
		)
		return err
	})
	return
}

func (sc *sideChannel) ReadHypertables(
	cb sidechannel.HypertableCallback,
) error {

	return sc.newSession(time.Second*20, func(session *session) error {
		return session.queryFunc(func(row pgx.Row) error {
			hypertable, _, err := scanHypertable(row)
			if err != nil {
				return err
			}
			return cb(hypertable)
		}, queryReadHypertables)
	})
}

func (sc *sideChannel) ReadDimensions(
	hypertableId int32, cb sidechannel.DimensionCallback,
) error {

	return sc.newSession(time.Second*20, func(session *session) error {
		return session.queryFunc(func(row pgx.Row) error {
			dimension, _, err := scanDimension(row)
			if err != nil {
				return err
			}
			return cb(dimension)
		}, queryReadDimensions, hypertableId)
	})
}

func (sc *sideChannel) UnitOfWork(
	fn func(tx sidechannel.CatalogTx) error,
) error {

	return sc.newSession(time.Second*30, func(session *session) error {
		transaction, err := session.begin()
		if err != nil {
			return errors.Wrap(err, 0)
		}

		catalogTx := &catalogTx{
			session:     session,
			transaction: transaction,
		}

		if err := fn(catalogTx); err != nil {
			_ = transaction.Rollback(session.ctx)
			return classifyCatalogError(err)
		}

		if err := transaction.Commit(session.ctx); err != nil {
			return classifyCatalogError(err)
		}
		return nil
	})
}

// classifyCatalogError reinterprets the two anticipated
// catalog races: a concurrent duplicate insert surfaces as a
// uniqueness violation, an insert against an unprovisioned
// catalog as a referential or undefined-relation failure.
// Everything else passes through wrapped.
func classifyCatalogError(err error) error {
	if hypertables.KindOf(err) != "" {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return hypertables.WrapError(hypertables.AlreadyExists, err)
		case pgerrcode.ForeignKeyViolation,
			pgerrcode.UndefinedTable,
			pgerrcode.InvalidSchemaName:
			return hypertables.WrapError(hypertables.BackendNotConfigured, err)
		}
	}
	return errors.Wrap(err, 1)
}

func scanHypertable(
	row pgx.Row,
) (*systemcatalog.Hypertable, bool, error) {

	var id int32
	var schemaName, tableName, associatedSchemaName, associatedTablePrefix string

	if err := row.Scan(
		&id, &schemaName, &tableName, &associatedSchemaName, &associatedTablePrefix,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, 0)
	}

	return systemcatalog.NewHypertable(
		id, schemaName, tableName, associatedSchemaName, associatedTablePrefix,
	), true, nil
}

func scanDimension(
	row pgx.Row,
) (*systemcatalog.Dimension, bool, error) {

	var hypertableId int32
	var columnName, kind string
	var columnType uint32
	var numSlices *int16
	var intervalLength *int64

	if err := row.Scan(
		&hypertableId, &columnName, &columnType, &kind, &numSlices, &intervalLength,
	); err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, 0)
	}

	return systemcatalog.NewDimension(
		hypertableId, columnName, columnType,
		systemcatalog.DimensionKind(kind), numSlices, intervalLength,
	), true, nil
}

func (sc *sideChannel) newSession(
	timeout time.Duration, fn func(session *session) error,
) error {

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	connection, err := pgx.ConnectConfig(ctx, sc.pgxConfig)
	if err != nil {
		return fmt.Errorf("unable to connect to database: %v", err)
	}
	defer connection.Close(context.Background())

	s := &session{
		connection: connection,
		ctx:        ctx,
		cancel:     cancel,
	}

	defer func() {
		s.cancel()
	}()

	return fn(s)
}

type rowFunction = func(
	row pgx.Row,
) error

type session struct {
	connection *pgx.Conn
	ctx        context.Context
	cancel     func()
}

func (s *session) begin() (pgx.Tx, error) {
	return s.connection.Begin(s.ctx)
}

func (s *session) queryFunc(
	fn rowFunction, query string, args ...any,
) error {

	rows, err := s.connection.Query(s.ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (s *session) queryRow(
	query string, args ...any,
) pgx.Row {

	return s.connection.QueryRow(s.ctx, query, args...)
}

func (s *session) exec(
	query string, args ...any,
) (pgconn.CommandTag, error) {

	return s.connection.Exec(s.ctx, query, args...)
}

type expiredChunk struct {
	id         int32
	schemaName string
	tableName  string
}

type catalogTx struct {
	session     *session
	transaction pgx.Tx
}

func (tx *catalogTx) FindHypertable(
	entity systemcatalog.SystemEntity,
) (*systemcatalog.Hypertable, bool, error) {

	return scanHypertable(tx.queryRow(
		queryFindHypertable, entity.SchemaName(), entity.TableName(),
	))
}

func (tx *catalogTx) LockHypertableRow(
	hypertableId int32,
) error {

	var id int32
	if err := tx.queryRow(queryLockHypertableRow, hypertableId).Scan(&id); err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (tx *catalogTx) InsertHypertable(
	schemaName, tableName, associatedSchemaName, associatedTablePrefix string,
) (*systemcatalog.Hypertable, error) {

	// The default chunk prefix carries the hypertable id
	// which is only known after the insert
	insertPrefix := associatedTablePrefix
	if insertPrefix == "" {
		insertPrefix = "_hyper_pending"
	}

	var id int32
	if err := tx.queryRow(
		queryInsertHypertable, schemaName, tableName, associatedSchemaName, insertPrefix,
	).Scan(&id); err != nil {
		return nil, classifyCatalogError(err)
	}

	if associatedTablePrefix == "" {
		insertPrefix = fmt.Sprintf("_hyper_%d", id)
		if _, err := tx.exec(queryUpdateAssociatedTablePrefix, id, insertPrefix); err != nil {
			return nil, classifyCatalogError(err)
		}
	}

	return systemcatalog.NewHypertable(
		id, schemaName, tableName, associatedSchemaName, insertPrefix,
	), nil
}

func (tx *catalogTx) InsertDimension(
	dimension *systemcatalog.Dimension,
) error {

	var numSlices *int16
	if n, present := dimension.NumSlices(); present {
		numSlices = &n
	}
	var intervalLength *int64
	if i, present := dimension.IntervalLength(); present {
		intervalLength = &i
	}

	if _, err := tx.exec(
		queryInsertDimension,
		dimension.HypertableId(), dimension.ColumnName(), dimension.ColumnType(),
		string(dimension.Kind()), numSlices, intervalLength,
	); err != nil {
		return classifyCatalogError(err)
	}
	return nil
}

func (tx *catalogTx) TimeDimension(
	hypertableId int32,
) (*systemcatalog.Dimension, bool, error) {

	return scanDimension(tx.queryRow(queryTimeDimension, hypertableId))
}

func (tx *catalogTx) UpdateTimeDimensionInterval(
	hypertableId int32, intervalLength int64,
) error {

	if _, err := tx.exec(
		queryUpdateTimeDimensionInterval, hypertableId, intervalLength,
	); err != nil {
		return classifyCatalogError(err)
	}
	return nil
}

func (tx *catalogTx) ReadTableConstraints(
	entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	return tx.readSchemaObjects(queryReadTableConstraints, entity, cb)
}

func (tx *catalogTx) ReadTableIndexes(
	entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	return tx.readSchemaObjects(queryReadTableIndexes, entity, cb)
}

func (tx *catalogTx) ReadTableTriggers(
	entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	return tx.readSchemaObjects(queryReadTableTriggers, entity, cb)
}

func (tx *catalogTx) readSchemaObjects(
	query string, entity systemcatalog.SystemEntity, cb sidechannel.SchemaObjectCallback,
) error {

	return tx.queryFunc(func(row pgx.Row) error {
		var objectId uint32
		var objectName, definition string

		if err := row.Scan(&objectId, &objectName, &definition); err != nil {
			return errors.Wrap(err, 0)
		}
		return cb(objectId, objectName, definition)
	}, query, entity.SchemaName(), entity.TableName())
}

func (tx *catalogTx) IndexNeedsMirror(
	indexId uint32,
) (needed bool, err error) {

	if err := tx.queryRow(queryIndexNeedsMirror, indexId).Scan(&needed); err != nil {
		return false, errors.Wrap(err, 0)
	}
	return needed, nil
}

func (tx *catalogTx) TriggerNeedsMirror(
	triggerId uint32,
) (needed bool, err error) {

	if err := tx.queryRow(queryTriggerNeedsMirror, triggerId).Scan(&needed); err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrap(err, 0)
	}
	return needed, nil
}

func (tx *catalogTx) InsertSchemaTemplate(
	hypertableId int32, kind sidechannel.TemplateKind,
	objectId uint32, objectName, definition string,
) error {

	if _, err := tx.exec(
		queryInsertSchemaTemplate,
		hypertableId, string(kind), objectId, objectName, definition,
	); err != nil {
		return classifyCatalogError(err)
	}
	return nil
}

func (tx *catalogTx) CreateDefaultIndexes(
	entity systemcatalog.SystemEntity, timeColumn string, partitioningColumn *string,
) error {

	timeIndexName := fmt.Sprintf("%s_%s_idx", entity.TableName(), timeColumn)
	if _, err := tx.exec(fmt.Sprintf(
		queryTemplateCreateDefaultTimeIndex,
		timeIndexName, entity.CanonicalName(), timeColumn,
	)); err != nil {
		return classifyCatalogError(err)
	}

	if partitioningColumn != nil {
		spaceIndexName := fmt.Sprintf(
			"%s_%s_%s_idx", entity.TableName(), *partitioningColumn, timeColumn,
		)
		if _, err := tx.exec(fmt.Sprintf(
			queryTemplateCreateDefaultSpaceIndex,
			spaceIndexName, entity.CanonicalName(), *partitioningColumn, timeColumn,
		)); err != nil {
			return classifyCatalogError(err)
		}
	}
	return nil
}

func (tx *catalogTx) DropChunksBefore(
	schemaName, tableName *string, cutoff int64,
) (dropped int64, err error) {

	chunks := make([]expiredChunk, 0)
	if err := tx.queryFunc(func(row pgx.Row) error {
		var chunk expiredChunk
		if err := row.Scan(&chunk.id, &chunk.schemaName, &chunk.tableName); err != nil {
			return errors.Wrap(err, 0)
		}
		chunks = append(chunks, chunk)
		return nil
	}, queryExpiredChunks, cutoff, schemaName, tableName); err != nil {
		return 0, err
	}

	chunkNames := lo.Map(chunks, func(chunk expiredChunk, _ int) string {
		return systemcatalog.MakeRelationKey(chunk.schemaName, chunk.tableName)
	})

	for i, chunk := range chunks {
		if _, err := tx.exec(
			fmt.Sprintf(queryTemplateDropChunkTable, chunkNames[i]),
		); err != nil {
			return dropped, classifyCatalogError(err)
		}
		if _, err := tx.exec(queryDeleteChunkRow, chunk.id); err != nil {
			return dropped, classifyCatalogError(err)
		}
		dropped++
	}
	return dropped, nil
}

func (tx *catalogTx) BindTablespace(
	hypertableId int32, tablespaceName string,
) error {

	if _, err := tx.exec(queryBindTablespace, hypertableId, tablespaceName); err != nil {
		return classifyCatalogError(err)
	}
	return nil
}

func (tx *catalogTx) queryFunc(
	fn rowFunction, query string, args ...any,
) error {

	rows, err := tx.transaction.Query(tx.session.ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}

	return rows.Err()
}

func (tx *catalogTx) queryRow(
	query string, args ...any,
) pgx.Row {

	return tx.transaction.QueryRow(tx.session.ctx, query, args...)
}

func (tx *catalogTx) exec(
	query string, args ...any,
) (pgconn.CommandTag, error) {

	return tx.transaction.Exec(tx.session.ctx, query, args...)
}
