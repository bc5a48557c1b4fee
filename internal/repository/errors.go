// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values let the service layer distinguish
// failure scenarios without inspecting driver errors.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when a user insert hits the unique email index.
var ErrEmailExists = errors.New("email already exists")

// ErrRefreshNotActive is returned by Rotate when the presented refresh
// token is no longer revocable: it was revoked (possibly by a concurrent
// rotation), has expired, or never existed.
var ErrRefreshNotActive = errors.New("refresh token not active")

// isDuplicateKey reports a MySQL ER_DUP_ENTRY (1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
