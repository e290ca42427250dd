package api

// healthResponse is the payload for GET /health.
type healthResponse struct {
	Status string `json:"status"`
}

// fileSummary is one entry of GET /api/files.
type fileSummary struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	FilePath string `json:"file_path"`
}

// chunkSummary is one entry of a file detail response's chunk list.
type chunkSummary struct {
	ChunkID     string `json:"chunk_id"`
	PartNumber  int    `json:"part_number"`
	Fingerprint string `json:"fingerprint"`
	Synced      bool   `json:"synced"`
}

// fileDetail is the payload for GET /api/files/{file_id}.
type fileDetail struct {
	FileID   string         `json:"file_id"`
	FileName string         `json:"file_name"`
	FilePath string         `json:"file_path"`
	FolderID string         `json:"folder_id"`
	FileType string         `json:"file_type"`
	FileHash string         `json:"file_hash"`
	Chunks   []chunkSummary `json:"chunks"`
}

// folderSummary is one entry of GET /api/folders.
type folderSummary struct {
	FolderID       string `json:"folder_id"`
	FolderName     string `json:"folder_name"`
	FolderPath     string `json:"folder_path"`
	ParentFolderID string `json:"parent_folder_id"`
}

// syncTriggerResponse is the payload for POST /api/sync.
type syncTriggerResponse struct {
	Status string `json:"status"`
}

// errorResponse is the payload for any 4xx/5xx response.
type errorResponse struct {
	Error string `json:"error"`
}
