package syncengine

// planKind is the plan produced for a single watcher event, per the
// event-to-plan mapping table: created directories upsert a folder, created
// files are chunked and uploaded, modified files are re-chunked and
// conditionally re-uploaded, deletes cascade, and renames move without
// re-uploading unchanged content.
type planKind int

const (
	planUpsertFolder planKind = iota
	planUploadNewFile
	planUploadModifiedFile
	planDelete
	planRename
)

// fileState tracks a single file's position in the per-file upload state
// machine. Errors in any intermediate state return the file to Chunked for
// retry on the next watcher event or rescan; there is no persisted
// representation of this beyond the catalog's own chunk last_synced bits,
// which already capture "Chunked" (no chunk synced) vs "Synced" (all
// chunks synced).
type fileState int

const (
	fileAbsent fileState = iota
	fileChunked
	filePrepared
	fileUploading
	fileConfirming
	fileSynced
)

func (s fileState) String() string {
	switch s {
	case fileAbsent:
		return "absent"
	case fileChunked:
		return "chunked"
	case filePrepared:
		return "prepared"
	case fileUploading:
		return "uploading"
	case fileConfirming:
		return "confirming"
	case fileSynced:
		return "synced"
	default:
		return "unknown"
	}
}
