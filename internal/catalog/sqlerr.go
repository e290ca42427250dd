package catalog

import "strings"

// isUniqueConstraintErr reports whether err came from a SQLite UNIQUE
// constraint violation. modernc.org/sqlite's driver error does not expose a
// stable typed code across releases for CGO-free builds, so classification
// matches on the message text SQLite itself produces.
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isForeignKeyConstraintErr reports whether err came from a SQLite foreign
// key constraint violation.
func isForeignKeyConstraintErr(err error) bool {
	if err == nil {
		return false
	}

	return strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
