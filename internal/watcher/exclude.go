package watcher

import "strings"

// excludedSuffixes lists name suffixes that must never be synced: partial
// downloads (written by the reassembly component), editor temporaries, and
// the catalog's own SQLite files (which would corrupt if synced mid-write).
var excludedSuffixes = []string{
	".partial", ".tmp", ".swp", ".crdownload",
	".db", ".db-wal", ".db-shm",
}

// isExcluded reports whether name must be skipped by the watcher and the
// initial scan.
func isExcluded(name string) bool {
	lower := strings.ToLower(name)

	for _, suffix := range excludedSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}

	return strings.HasPrefix(name, "~") || strings.HasPrefix(name, ".~")
}
