package syncengine

import (
	"mime"
	"path/filepath"
)

// guessFileType returns a best-effort MIME-like string derived from the
// file's extension, per the catalog's file_type contract. No pack example
// pulls in a third-party content-sniffing library (they all lean on the
// standard mime package or net/http.DetectContentType for this), so this
// stays on the standard library too.
func guessFileType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}

	return "application/octet-stream"
}
