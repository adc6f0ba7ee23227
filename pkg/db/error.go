package db

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Driver messages are matched as text so callers need not import every
// driver's error type.
var (
	duplicateKeyMarkers = []string{
		"duplicate key value violates unique constraint", // postgres 23505
		"Error 1062",               // mysql
		"UNIQUE constraint failed", // sqlite 2067
	}
	txConflictMarkers = []string{
		"deadlock detected",          // postgres 40P01
		"could not serialize access", // postgres 40001
		"Error 1213",                 // mysql deadlock
		"Error 1205",                 // mysql lock wait timeout
		"database is locked",         // sqlite SQLITE_BUSY
		"database table is locked",   // sqlite SQLITE_LOCKED
	}
)

// IsDuplicateKeyErr reports unique constraint violations across the supported drivers.
func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return containsAny(err.Error(), duplicateKeyMarkers)
}

// IsTxConflictErr reports transactions the database aborted because a
// concurrent transaction held or changed the same balance or record rows.
// Nothing from the aborted transaction was committed, so the caller may retry.
func IsTxConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return containsAny(err.Error(), txConflictMarkers)
}

func containsAny(msg string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
