package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BlobStore keeps uploaded audio recordings on disk. Files are named
// recording-<unix-ms>.webm so listings sort chronologically.
type BlobStore struct {
	dir string
}

// NewBlobStore opens (or initializes) a blob store rooted at dir.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recordings directory: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// SaveRecording writes an audio blob and returns the stored file name.
func (b *BlobStore) SaveRecording(data []byte, ext string) (string, error) {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "webm"
	}
	name := fmt.Sprintf("recording-%d.%s", time.Now().UnixMilli(), ext)
	if err := os.WriteFile(filepath.Join(b.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write recording: %w", err)
	}
	return name, nil
}
