package database

import (
	"errors"
	"strings"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
// The constraint at the storage layer is the single source of truth for
// uniqueness; concurrent check-then-insert races surface here.
var ErrDuplicate = errors.New("duplicate record")

// ErrNotFound is returned by owner-scoped updates and deletes when no row
// matched, which covers both a missing record and one owned by another user.
var ErrNotFound = errors.New("not found")

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
