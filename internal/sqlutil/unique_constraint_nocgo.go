//go:build wasm || !cgo
// +build wasm !cgo

package sqlutil

import (
	"modernc.org/sqlite"
	lib "modernc.org/sqlite/lib"
)

// IsUniqueConstraintViolationErr reports whether the error is a uniqueness
// violation from the pure-Go driver, so storage code can map duplicate
// inserts to its own sentinel errors.
func IsUniqueConstraintViolationErr(err error) bool {
	if e, ok := err.(*sqlite.Error); ok {
		// Code() is the extended result code (e.g. SQLITE_CONSTRAINT_UNIQUE);
		// mask it down to the primary SQLITE_CONSTRAINT code.
		return e.Code()&0xff == lib.SQLITE_CONSTRAINT
	}
	return false
}
