package catalog

import "errors"

// Canonical catalog failure kinds, per the component's error contract.
// Classify with errors.Is; each is wrapped with path/id context via %w.
var (
	// ErrDuplicatePath is returned by InsertFile/UpsertFolder when the
	// invariant that folder_path/file_path is unique would be violated.
	ErrDuplicatePath = errors.New("catalog: duplicate path")

	// ErrNotFound is returned by rename/delete operations on a
	// non-existent folder, file, or chunk.
	ErrNotFound = errors.New("catalog: not found")

	// ErrConsistencyViolation is returned when a mutating operation would
	// leave a foreign key dangling (e.g. a folder referencing a
	// nonexistent parent).
	ErrConsistencyViolation = errors.New("catalog: consistency violation")
)
