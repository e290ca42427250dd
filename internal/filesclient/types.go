package filesclient

// PrepareRequest is the payload for POST /files.
type PrepareRequest struct {
	FileName   string `json:"file_name"`
	FilePath   string `json:"file_path"`
	FileType   string `json:"file_type"`
	FolderID   string `json:"folder_id"`
	ChunkCount int    `json:"chunk_count"`
	FileHash   string `json:"file_hash"`
}

// PresignedUpload is one entry of PrepareResponse.PresignedURLs.
type PresignedUpload struct {
	ChunkID      string `json:"chunk_id"`
	PartNumber   int    `json:"part_number"`
	PresignedURL string `json:"presigned_url"`
}

// PrepareResponse is the response body for POST /files.
type PrepareResponse struct {
	FileID        string            `json:"file_id"`
	PresignedURLs []PresignedUpload `json:"presigned_urls"`
}

// ConfirmRequest is the payload for POST /files/confirm. ChunkIDs must be
// ordered by ascending part_number.
type ConfirmRequest struct {
	FileID   string   `json:"file_id"`
	ChunkIDs []string `json:"chunk_ids"`
}

// ConfirmResponse is the response body for POST /files/confirm: a
// success/error_message envelope.
type ConfirmResponse struct {
	Success      bool   `json:"success"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// DownloadChunkRequest identifies one chunk to fetch in a DownloadRequest.
type DownloadChunkRequest struct {
	ChunkID     string `json:"chunk_id"`
	PartNumber  int    `json:"part_number"`
	Fingerprint string `json:"fingerprint"`
}

// DownloadRequest is the payload for POST /files/download.
type DownloadRequest struct {
	FileID string                 `json:"file_id"`
	Chunks []DownloadChunkRequest `json:"chunks"`
}

// PresignedDownload is one entry of DownloadResponse.DownloadURLs. StartByte,
// EndByte, and RangeHeader are optional; callers compute the range from
// PartNumber and the fixed chunk size when the service omits them.
type PresignedDownload struct {
	ChunkID      string `json:"chunk_id"`
	PartNumber   int    `json:"part_number"`
	PresignedURL string `json:"presigned_url"`
	RangeHeader  string `json:"range_header,omitempty"`
	StartByte    *int64 `json:"start_byte,omitempty"`
	EndByte      *int64 `json:"end_byte,omitempty"`
}

// DownloadResponse is the response body for POST /files/download.
type DownloadResponse struct {
	Success      bool                `json:"success"`
	ErrorMessage string              `json:"error_message,omitempty"`
	DownloadURLs []PresignedDownload `json:"download_urls"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}
