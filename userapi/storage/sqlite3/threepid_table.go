// Copyright 2017 Vector Creations Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sqlite3

import (
	"context"
	"database/sql"

	"github.com/seckrv/synapse/clientapi/auth/authtypes"
	"github.com/seckrv/synapse/internal/sqlutil"
	"github.com/seckrv/synapse/setup/config"
	"github.com/seckrv/synapse/userapi/storage/tables"
)

const threepidSchema = `
-- Stores the third-party identifiers associated with each account. The
-- primary key doubles as the insert-if-absent guard: an identifier can only
-- ever have one owner.
CREATE TABLE IF NOT EXISTS userapi_threepids (
	-- The third party identifier, already normalized by the caller
	threepid TEXT NOT NULL,
	-- The 'medium' of the third party identifier (e.g. "email")
	medium TEXT NOT NULL,
	-- The localpart of the account that owns this identifier
	localpart TEXT NOT NULL,
	server_name TEXT NOT NULL,
	-- When the association was created, as a unix timestamp (ms resolution)
	added_ts BIGINT NOT NULL,
	-- When ownership was last proven to the identity server
	validated_ts BIGINT NOT NULL,

	PRIMARY KEY(threepid, medium)
);

CREATE INDEX IF NOT EXISTS userapi_threepid_idx ON userapi_threepids(localpart, server_name);
`

const insertThreePIDSQL = "" +
	"INSERT INTO userapi_threepids (threepid, medium, localpart, server_name, added_ts, validated_ts)" +
	" VALUES ($1, $2, $3, $4, $5, $6)"

const selectLocalpartForThreePIDSQL = "" +
	"SELECT localpart, server_name FROM userapi_threepids WHERE threepid = $1 AND medium = $2"

const selectThreePIDsForLocalpartSQL = "" +
	"SELECT threepid, medium, added_ts, validated_ts FROM userapi_threepids" +
	" WHERE localpart = $1 AND server_name = $2 ORDER BY added_ts, rowid"

const deleteThreePIDSQL = "" +
	"DELETE FROM userapi_threepids WHERE threepid = $1 AND medium = $2"

type threepidStatements struct {
	db                              *sql.DB
	insertThreePIDStmt              *sql.Stmt
	selectLocalpartForThreePIDStmt  *sql.Stmt
	selectThreePIDsForLocalpartStmt *sql.Stmt
	deleteThreePIDStmt              *sql.Stmt
}

func NewSQLiteThreePIDTable(db *sql.DB) (tables.ThreePIDTable, error) {
	s := &threepidStatements{
		db: db,
	}
	_, err := db.Exec(threepidSchema)
	if err != nil {
		return nil, err
	}
	return s, sqlutil.StatementList{
		{&s.insertThreePIDStmt, insertThreePIDSQL},
		{&s.selectLocalpartForThreePIDStmt, selectLocalpartForThreePIDSQL},
		{&s.selectThreePIDsForLocalpartStmt, selectThreePIDsForLocalpartSQL},
		{&s.deleteThreePIDStmt, deleteThreePIDSQL},
	}.Prepare(db)
}

func (s *threepidStatements) SelectLocalpartForThreePID(
	ctx context.Context, txn *sql.Tx, threepid string, medium string,
) (localpart string, serverName config.ServerName, err error) {
	stmt := sqlutil.TxStmt(txn, s.selectLocalpartForThreePIDStmt)
	err = stmt.QueryRowContext(ctx, threepid, medium).Scan(&localpart, &serverName)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	return
}

func (s *threepidStatements) SelectThreePIDsForLocalpart(
	ctx context.Context, txn *sql.Tx, localpart string, serverName config.ServerName,
) (threepids []authtypes.ThreePID, err error) {
	stmt := sqlutil.TxStmt(txn, s.selectThreePIDsForLocalpartStmt)
	rows, err := stmt.QueryContext(ctx, localpart, serverName)
	if err != nil {
		return
	}
	defer rows.Close() // nolint: errcheck

	threepids = []authtypes.ThreePID{}
	for rows.Next() {
		var threepid, medium string
		var addedTS, validatedTS int64
		if err = rows.Scan(&threepid, &medium, &addedTS, &validatedTS); err != nil {
			return
		}
		threepids = append(threepids, authtypes.ThreePID{
			Address:     threepid,
			Medium:      medium,
			AddedAt:     addedTS,
			ValidatedAt: validatedTS,
		})
	}
	err = rows.Err()
	return
}

func (s *threepidStatements) InsertThreePID(
	ctx context.Context, txn *sql.Tx, threepid, medium, localpart string,
	serverName config.ServerName, addedAt, validatedAt int64,
) (err error) {
	stmt := sqlutil.TxStmt(txn, s.insertThreePIDStmt)
	_, err = stmt.ExecContext(ctx, threepid, medium, localpart, serverName, addedAt, validatedAt)
	return err
}

func (s *threepidStatements) DeleteThreePID(
	ctx context.Context, txn *sql.Tx, threepid string, medium string,
) (err error) {
	stmt := sqlutil.TxStmt(txn, s.deleteThreePIDStmt)
	_, err = stmt.ExecContext(ctx, threepid, medium)
	return err
}
