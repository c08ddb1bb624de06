// Package blobstore stores uploaded files and returns serveable URLs.
// The auth core never calls it; the guarded dashboard upload endpoint does.
package blobstore

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Store uploads bytes under a logical path and returns a URL for it.
type Store interface {
	Upload(ctx context.Context, name string, data []byte) (url string, err error)
}

// DiskStore writes blobs under a root directory and serves them under a
// base URL.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore returns a DiskStore rooted at root. Creates root if needed.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Upload writes data at the cleaned logical path and returns its URL.
// Rejects paths that would escape the root.
func (s *DiskStore) Upload(ctx context.Context, name string, data []byte) (string, error) {
	clean := path.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("blobstore: empty path")
	}
	full := filepath.Join(s.root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + clean, nil
}

// Root returns the directory blobs are written to, for static serving.
func (s *DiskStore) Root() string { return s.root }
