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

package sqlutil

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/seckrv/synapse/setup/config"
)

// Open opens a database described by the options. The second return value is
// the writer writes should be funnelled through.
func Open(dbProperties *config.DatabaseOptions) (*sql.DB, Writer, error) {
	var driverName, dsn string
	var writer Writer
	switch {
	case dbProperties.ConnectionString.IsSQLite():
		driverName = "sqlite3"
		dsn, writer = sqliteDSN(string(dbProperties.ConnectionString)), NewExclusiveWriter()
	case dbProperties.ConnectionString.IsPostgres():
		driverName = "postgres"
		dsn, writer = string(dbProperties.ConnectionString), NewDummyWriter()
	default:
		return nil, nil, fmt.Errorf("unknown database connection string %q", dbProperties.ConnectionString)
	}
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, nil, err
	}
	if driverName == "sqlite3" {
		// SQLite is single-writer; more connections just contend on the
		// file lock.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(dbProperties.MaxOpenConnections)
		db.SetMaxIdleConns(dbProperties.MaxIdleConnections)
		db.SetConnMaxLifetime(time.Duration(dbProperties.ConnMaxLifetimeSec) * time.Second)
	}
	return db, writer, nil
}

// sqliteDSN strips the file: scheme and applies the busy-timeout and
// foreign-key pragmas the server relies on.
func sqliteDSN(uri string) string {
	path := strings.TrimPrefix(uri, "file:")
	q := url.Values{}
	q.Set("_busy_timeout", "10000")
	q.Set("_txlock", "immediate")
	return fmt.Sprintf("file:%s?%s", path, q.Encode())
}

// Connections keeps a reference count of opened databases so components that
// share a connection string also share the *sql.DB and its writer.
type Connections struct {
	mutex sync.Mutex
	pool  map[config.DataSource]conn
}

type conn struct {
	db     *sql.DB
	writer Writer
}

func NewConnectionManager() *Connections {
	return &Connections{
		pool: make(map[config.DataSource]conn),
	}
}

func (c *Connections) Connection(dbProperties *config.DatabaseOptions) (*sql.DB, Writer, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if existing, ok := c.pool[dbProperties.ConnectionString]; ok {
		return existing.db, existing.writer, nil
	}
	db, writer, err := Open(dbProperties)
	if err != nil {
		return nil, nil, err
	}
	c.pool[dbProperties.ConnectionString] = conn{db: db, writer: writer}
	return db, writer, nil
}
