//go:build !cgo
// +build !cgo

package sqlutil

import (
	"database/sql"

	_ "github.com/lib/pq"
	"modernc.org/sqlite"
)

// Open uses the driver names "sqlite3" and "postgres". Without cgo the
// mattn/go-sqlite3 driver that normally provides "sqlite3" is unavailable,
// so register the pure-Go modernc driver under the same name; lib/pq is
// imported for its "postgres" registration.
func init() {
	sql.Register("sqlite3", &sqlite.Driver{})
}
