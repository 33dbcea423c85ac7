// Package history records a source's fetch timeline. Each successful
// fetch is a dated hard link into the blob store, so a source's history
// never duplicates bytes on disk. History and blob store must live on
// the same filesystem volume.
package history

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sorreltree/datalocker/internal/layout"
)

// refFormat lays out one reference per second:
// <year>/<month>/<day>/<HHMMSS>.
const refFormat = "2006/Jan/02/150405"

// Ref is one recorded fetch for a source.
type Ref struct {
	Time time.Time
	Path string
	Size int64
}

// Linker creates and lists history references.
type Linker struct {
	layout layout.Layout
}

// New returns a Linker for the given layout.
func New(l layout.Layout) *Linker {
	return &Linker{layout: l}
}

// Link records a fetch of rawURL at time at, referencing the blob at
// blobPath. It fails if a reference already exists for the same second,
// or if blobPath is on a different volume than the source directory.
func (k *Linker) Link(blobPath, rawURL string, at time.Time) (string, error) {
	dir, err := k.layout.SourceDir(rawURL)
	if err != nil {
		return "", err
	}
	refPath := filepath.Join(dir, at.Format(refFormat))
	if err := os.MkdirAll(filepath.Dir(refPath), 0o755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}
	if err := os.Link(blobPath, refPath); err != nil {
		return "", fmt.Errorf("link history reference: %w", err)
	}
	return refPath, nil
}

// List returns a source's recorded fetches in chronological order.
func (k *Linker) List(rawURL string) ([]Ref, error) {
	dir, err := k.layout.SourceDir(rawURL)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == dir {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		at, err := time.ParseInLocation(refFormat, filepath.ToSlash(rel), time.Local)
		if err != nil {
			// Not a history reference (lock, marker, strays).
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		refs = append(refs, Ref{Time: at, Path: p, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Time.Before(refs[j].Time) })
	return refs, nil
}
