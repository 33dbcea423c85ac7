// Package blobstore implements the content-addressed blob store. Bytes
// are stored exactly once per unique content: the storage path is
// derived from a digest of the bytes themselves, so writing the same
// content twice lands on the same file.
package blobstore

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sorreltree/datalocker/internal/layout"
)

// Digest returns the fixed-length, path-safe fingerprint of data:
// SHA-256 in the URL-safe base64 alphabet ('+'/'/' become '-'/'_'),
// unpadded.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Store writes blobs beneath a storage root's .store tree.
type Store struct {
	layout layout.Layout
}

// New returns a Store for the given layout.
func New(l layout.Layout) *Store {
	return &Store{layout: l}
}

// Put writes data at its content-derived path and returns that path.
// The write always happens, even when the path is already occupied;
// because the path is derived from the content the overwrite is
// byte-for-byte identical, so Put is idempotent in effect.
func (s *Store) Put(data []byte) (string, error) {
	p := s.layout.BlobPath(Digest(data))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("create blob directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		return "", fmt.Errorf("write blob: %w", err)
	}
	return p, nil
}
