package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jonathan/evidentia/internal/types"
)

// now is replaced in tests.
var now = time.Now

// NewMetadata describes content read for one evidence item: its SHA256 digest,
// byte size, and the time it was read.
func NewMetadata(content []byte) *types.ContentMetadata {
	return &types.ContentMetadata{
		Hash:      computeHash(content),
		SizeBytes: len(content),
		Timestamp: now().UTC().Format(time.RFC3339),
	}
}

// NewFileMetadata hashes a file without loading it into memory.
func NewFileMetadata(path string) (*types.ContentMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &types.ContentMetadata{
		Hash:      hex.EncodeToString(h.Sum(nil)),
		SizeBytes: int(n),
		Timestamp: now().UTC().Format(time.RFC3339),
	}, nil
}

// computeHash computes SHA256 hash of content and returns hex string
func computeHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
