// Package idgen mints the opaque 128-bit identifiers used for folders,
// files, and chunks, rendered as lowercase UUID strings.
package idgen

import "github.com/google/uuid"

// New returns a fresh lowercase UUID v4 string, suitable for folder_id,
// file_id, and chunk_id columns.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s parses as a UUID in any of the standard forms.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
