// Package layout derives every on-disk path used by the locker from a
// single storage root, so no two components can disagree about where a
// source or blob lives.
package layout

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
)

const (
	storeDirName   = ".store"
	catalogName    = "catalog.db"
	lockFileName   = ".lock"
	markerFileName = ".last_modified"
)

// ErrMalformedURL indicates a URL that cannot be decomposed into a host
// and a resource name.
var ErrMalformedURL = errors.New("url has no usable host and resource")

// Layout resolves paths beneath one storage root. It is a pure value;
// methods never touch the filesystem.
type Layout struct {
	root string
}

// New returns a Layout rooted at dir.
func New(dir string) Layout {
	return Layout{root: dir}
}

// Root returns the storage root directory.
func (l Layout) Root() string {
	return l.root
}

// StoreDir returns the directory holding content-addressed blobs.
func (l Layout) StoreDir() string {
	return filepath.Join(l.root, storeDirName)
}

// BlobPath maps a digest onto its sharded blob path: the first two
// digest characters name the first directory, the next two the second,
// and the remainder is the file name.
func (l Layout) BlobPath(digest string) string {
	return filepath.Join(l.StoreDir(), digest[:2], digest[2:4], digest[4:])
}

// CatalogPath returns the location of the blob catalog database.
func (l Layout) CatalogPath() string {
	return filepath.Join(l.StoreDir(), catalogName)
}

// URLListPath returns the location of the URL list file.
func (l Layout) URLListPath() string {
	return filepath.Join(l.root, ".urllist")
}

// SourceDir maps a URL onto its per-source directory,
// <root>/<host>/<resource>, where resource is the final path segment.
func (l Layout) SourceDir(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", rawURL, err)
	}
	host := u.Hostname()
	resource := path.Base(u.Path)
	if host == "" || resource == "." || resource == "/" {
		return "", fmt.Errorf("%q: %w", rawURL, ErrMalformedURL)
	}
	return filepath.Join(l.root, host, resource), nil
}

// LockPath returns the lock file path for a source.
func (l Layout) LockPath(rawURL string) (string, error) {
	dir, err := l.SourceDir(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, lockFileName), nil
}

// MarkerPath returns the last-modified marker path for a source. The
// marker is a zero-byte file whose mtime records the last successful
// update.
func (l Layout) MarkerPath(rawURL string) (string, error) {
	dir, err := l.SourceDir(rawURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, markerFileName), nil
}
