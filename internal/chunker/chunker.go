// Package chunker splits a file's content into fixed-size chunks, computing
// a streaming whole-file SHA-256 alongside a per-chunk SHA-256 fingerprint
// in a single read pass, and stages each chunk's bytes to disk for upload.
package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultChunkSize is the fixed chunk size used when the caller does not
// override it: 5 MiB.
const DefaultChunkSize = 5 * 1024 * 1024

// statSize is overridden in tests to simulate concurrent modification
// between the pre-read and post-read stat without a real filesystem race.
var statSize = func(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}

	return info.Size(), nil
}

// Split reads srcPath once, producing the whole-file hash and one
// Descriptor per chunkSize-aligned chunk, each staged as its own file under
// stagingDir. Byte-identical inputs yield byte-identical chunk boundaries,
// fingerprints, and file hash.
//
// If the file's size observed at the end of the read differs from the size
// observed at the start, Split returns ErrSourceMutated and the caller
// should retry.
func Split(srcPath, stagingDir string, chunkSize int64) (*Result, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	startSize, err := statSize(srcPath)
	if err != nil {
		return nil, fmt.Errorf("chunker: stat %s: %w", srcPath, err)
	}

	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("chunker: create staging dir %s: %w", stagingDir, err)
	}

	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("chunker: open %s: %w", srcPath, err)
	}
	defer f.Close()

	fileHasher := sha256.New()
	var chunks []Descriptor
	var offset int64
	partNumber := 1

	for {
		chunkHasher := sha256.New()
		stagingPath := filepath.Join(stagingDir, fmt.Sprintf("part-%06d", partNumber))

		staged, err := os.Create(stagingPath)
		if err != nil {
			return nil, fmt.Errorf("chunker: create staging file %s: %w", stagingPath, err)
		}

		limited := io.LimitReader(f, chunkSize)
		teed := io.TeeReader(limited, io.MultiWriter(fileHasher, chunkHasher))

		n, copyErr := io.Copy(staged, teed)
		closeErr := staged.Close()

		if copyErr != nil {
			os.Remove(stagingPath)
			return nil, fmt.Errorf("chunker: reading chunk %d of %s: %w", partNumber, srcPath, copyErr)
		}

		if closeErr != nil {
			return nil, fmt.Errorf("chunker: closing staging file %s: %w", stagingPath, closeErr)
		}

		if n == 0 {
			os.Remove(stagingPath)
			break
		}

		chunks = append(chunks, Descriptor{
			PartNumber:  partNumber,
			Offset:      offset,
			Length:      n,
			Fingerprint: hex.EncodeToString(chunkHasher.Sum(nil)),
			StagingPath: stagingPath,
		})

		offset += n
		partNumber++

		if n < chunkSize {
			break
		}
	}

	endSize, err := statSize(srcPath)
	if err != nil {
		return nil, fmt.Errorf("chunker: stat %s: %w", srcPath, err)
	}

	if endSize != startSize || startSize != offset {
		for _, c := range chunks {
			os.Remove(c.StagingPath)
		}

		return nil, fmt.Errorf("chunker: %s (%d -> %d bytes): %w", srcPath, startSize, endSize, ErrSourceMutated)
	}

	// A zero-byte file still yields one empty chunk, matching the invariant
	// that every committed file has at least one chunk row.
	if len(chunks) == 0 {
		stagingPath := filepath.Join(stagingDir, "part-000001")

		if err := os.WriteFile(stagingPath, nil, 0o644); err != nil {
			return nil, fmt.Errorf("chunker: create empty staging file %s: %w", stagingPath, err)
		}

		chunks = append(chunks, Descriptor{
			PartNumber:  1,
			Offset:      0,
			Length:      0,
			Fingerprint: hex.EncodeToString(sha256.New().Sum(nil)),
			StagingPath: stagingPath,
		})
	}

	return &Result{
		FileHash: hex.EncodeToString(fileHasher.Sum(nil)),
		FileSize: offset,
		Chunks:   chunks,
	}, nil
}
