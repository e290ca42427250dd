package catalog

// Folder is a directory tracked under the sync root.
type Folder struct {
	FolderID       string
	FolderName     string
	FolderPath     string // canonical: forward slashes, no trailing slash
	ParentFolderID string // empty means this is the sync root
	CreatedAt      int64
	UpdatedAt      int64
}

// File is a file tracked under the sync root. A content-modification event
// always produces a new FileID; see Catalog.ReplaceFileContent.
type File struct {
	FileID    string
	FileName  string
	FilePath  string
	FolderID  string
	FileType  string
	FileHash  string // lowercase hex, 64 chars
	CreatedAt int64
	UpdatedAt int64
}

// Chunk is one fixed-size slice of a file's content.
type Chunk struct {
	ChunkID     string
	FileID      string
	PartNumber  int
	Fingerprint string // lowercase hex, 64 chars
	CreatedAt   int64
	LastSynced  *int64 // nil means not yet uploaded-and-confirmed
}

// Synced reports whether the chunk has been confirmed by the remote service.
func (c *Chunk) Synced() bool {
	return c.LastSynced != nil
}
