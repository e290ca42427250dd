package filesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const userAgent = "dropsync-filesclient/0.1"

// Client is a typed wrapper over the remote files service's three JSON
// endpoints plus presigned-URL chunk PUT/GET. It handles request
// serialization, bounded retry with jitter on transient failures, and
// classifies failures per the <RemoteServiceError>/<TransportError> kinds.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	logger     *slog.Logger

	// sleepFunc is called between retries; overridden in tests to avoid
	// real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a files-service client. maxRetries is the bounded retry count
// for transient failures (default 3 per the external-interface contract).
func New(baseURL string, httpClient *http.Client, maxRetries int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		maxRetries: maxRetries,
		logger:     logger,
		sleepFunc:  sleep,
	}
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}

	return &out, nil
}

// Prepare calls POST /files, requesting presigned upload URLs for a new or
// replaced file's chunks.
func (c *Client) Prepare(ctx context.Context, req PrepareRequest) (*PrepareResponse, error) {
	c.logger.Info("preparing upload",
		slog.String("file_name", req.FileName),
		slog.Int("chunk_count", req.ChunkCount),
	)

	var out PrepareResponse
	if err := c.doJSON(ctx, http.MethodPost, "/files", req, &out); err != nil {
		return nil, err
	}

	if len(out.PresignedURLs) != req.ChunkCount {
		return nil, &ServiceError{Message: fmt.Sprintf(
			"prepare response carries %d presigned URLs for %d chunks", len(out.PresignedURLs), req.ChunkCount,
		)}
	}

	return &out, nil
}

// Confirm calls POST /files/confirm. chunkIDs must be ordered by ascending
// part_number. A {success:false} response is surfaced as a *ServiceError.
func (c *Client) Confirm(ctx context.Context, fileID string, chunkIDs []string) error {
	c.logger.Info("confirming upload", slog.String("file_id", fileID), slog.Int("chunks", len(chunkIDs)))

	req := ConfirmRequest{FileID: fileID, ChunkIDs: chunkIDs}

	var out ConfirmResponse
	if err := c.doJSON(ctx, http.MethodPost, "/files/confirm", req, &out); err != nil {
		return err
	}

	if !out.Success {
		return &ServiceError{Message: out.ErrorMessage}
	}

	return nil
}

// RequestDownload calls POST /files/download, requesting presigned ranged
// download URLs for the given chunks.
func (c *Client) RequestDownload(ctx context.Context, req DownloadRequest) (*DownloadResponse, error) {
	c.logger.Info("requesting download", slog.String("file_id", req.FileID), slog.Int("chunks", len(req.Chunks)))

	var out DownloadResponse
	if err := c.doJSON(ctx, http.MethodPost, "/files/download", req, &out); err != nil {
		return nil, err
	}

	if !out.Success {
		return nil, &ServiceError{Message: out.ErrorMessage}
	}

	return &out, nil
}

// UploadChunk PUTs chunk bytes to a presigned URL and returns the response's
// ETag header (the chunk's content MD5, captured but not required to drive
// client state). The URL is pre-authenticated, so no additional auth header
// is sent. Each retry rewinds data from the start.
func (c *Client) UploadChunk(ctx context.Context, presignedURL string, data []byte) (string, error) {
	resp, err := c.doRawRetry(ctx, "upload chunk", func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPut, presignedURL, bytes.NewReader(data))
		if reqErr != nil {
			return nil, fmt.Errorf("filesclient: creating chunk upload request: %w", reqErr)
		}

		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("User-Agent", userAgent)
		req.ContentLength = int64(len(data))

		return req, nil
	})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if _, drainErr := io.Copy(io.Discard, resp.Body); drainErr != nil {
		c.logger.Warn("draining chunk upload response failed", slog.String("error", drainErr.Error()))
	}

	return resp.Header.Get("ETag"), nil
}

// DownloadChunk performs a ranged GET against a presigned URL and returns the
// full chunk body. rangeHeader, when non-empty, is sent bit-exact as the
// Range header.
func (c *Client) DownloadChunk(ctx context.Context, presignedURL, rangeHeader string) ([]byte, error) {
	resp, err := c.doRawRetry(ctx, "download chunk", func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, presignedURL, http.NoBody)
		if reqErr != nil {
			return nil, fmt.Errorf("filesclient: creating chunk download request: %w", reqErr)
		}

		req.Header.Set("User-Agent", userAgent)

		if rangeHeader != "" {
			req.Header.Set("Range", rangeHeader)
		}

		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("filesclient: reading chunk download body: %w", err)
	}

	return body, nil
}

// doJSON executes a retried JSON request against the service's base URL.
func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyBytes []byte

	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("filesclient: marshaling request body: %w", err)
		}

		bodyBytes = encoded
	}

	resp, err := c.doRawRetry(ctx, method+" "+path, func() (*http.Request, error) {
		var body io.Reader
		if bodyBytes != nil {
			body = bytes.NewReader(bodyBytes)
		}

		req, reqErr := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if reqErr != nil {
			return nil, fmt.Errorf("filesclient: creating request: %w", reqErr)
		}

		if bodyBytes != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		req.Header.Set("User-Agent", userAgent)

		return req, nil
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if respBody != nil {
		if decErr := json.NewDecoder(resp.Body).Decode(respBody); decErr != nil {
			return fmt.Errorf("filesclient: decoding response body: %w", decErr)
		}
	}

	return nil
}

// doRawRetry is the shared retry loop for JSON and presigned-URL requests.
// makeReq is called fresh on every attempt so that request bodies are
// re-read from the start. On success (2xx) the caller owns resp.Body and
// must close it. A non-2xx status that is not retryable, or a retryable one
// (408/429/5xx) still failing after the last attempt, returns a
// *ServiceError; a network failure returns an error wrapping ErrTransport.
func (c *Client) doRawRetry(ctx context.Context, desc string, makeReq func() (*http.Request, error)) (*http.Response, error) {
	var attempt int

	for {
		req, err := makeReq()
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("filesclient: %s canceled: %w", desc, ctx.Err())
			}

			if attempt < c.maxRetries {
				backoff := calcBackoff(attempt)
				c.logger.Warn("retrying after network error",
					slog.String("request", desc),
					slog.Int("attempt", attempt+1),
					slog.Duration("backoff", backoff),
					slog.String("error", err.Error()),
				)

				if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
					return nil, fmt.Errorf("filesclient: %s canceled: %w", desc, sleepErr)
				}

				attempt++

				continue
			}

			return nil, fmt.Errorf("%w: %s failed after %d attempts: %v", ErrTransport, desc, attempt+1, err)
		}

		if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
			return resp, nil
		}

		errBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if readErr != nil {
			errBody = []byte("(failed to read response body)")
		}

		if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
			backoff := calcBackoff(attempt)
			c.logger.Warn("retrying after HTTP error",
				slog.String("request", desc),
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", backoff),
			)

			if sleepErr := c.sleepFunc(ctx, backoff); sleepErr != nil {
				return nil, fmt.Errorf("filesclient: %s canceled: %w", desc, sleepErr)
			}

			attempt++

			continue
		}

		c.logger.Error("request failed",
			slog.String("request", desc),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempts", attempt+1),
		)

		return nil, &ServiceError{StatusCode: resp.StatusCode, Message: string(errBody)}
	}
}
