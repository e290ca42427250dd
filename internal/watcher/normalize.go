package watcher

import "golang.org/x/text/unicode/norm"

// normalizePath renders p in Unicode NFC form so the same filename always
// compares equal regardless of the normalization form the OS or filesystem
// driver handed back (macOS HFS+ famously returns NFD).
func normalizePath(p string) string {
	return norm.NFC.String(p)
}
