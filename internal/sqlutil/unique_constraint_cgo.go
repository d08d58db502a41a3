//go:build !wasm && cgo
// +build !wasm,cgo

package sqlutil

import (
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// IsUniqueConstraintViolationErr reports whether the error is a uniqueness
// violation from either driver, so storage code can map duplicate inserts to
// its own sentinel errors.
func IsUniqueConstraintViolationErr(err error) bool {
	switch e := err.(type) {
	case *pq.Error:
		return e.Code == "23505" // unique_violation
	case *sqlite3.Error:
		return e.Code == sqlite3.ErrConstraint
	case sqlite3.Error:
		return e.Code == sqlite3.ErrConstraint
	}
	return false
}
