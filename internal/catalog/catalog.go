// Package catalog keeps per-digest metadata for the blob store in a
// bbolt database. The catalog is an index, not the source of truth:
// the on-disk blob and history trees stand alone, and a run that
// cannot open the catalog (another invocation holds the bolt file
// lock) simply proceeds without one. All methods are nil-receiver
// safe for that reason.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketBlobs = []byte("blobs")

// Entry is the recorded metadata for one blob digest.
type Entry struct {
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	FirstSeen time.Time `json:"first_seen"`
	RefCount  int       `json:"ref_count"`
	LastURL   string    `json:"last_url"`
}

// Catalog is a bbolt-backed digest index.
type Catalog struct {
	db *bolt.DB
}

// Open opens (creating if needed) the catalog at path. The timeout
// bounds how long to wait for the bolt file lock when another
// invocation has the catalog open.
func Open(path string, timeout time.Duration) (*Catalog, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init catalog: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close releases the database. Safe on a nil catalog.
func (c *Catalog) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}

// Record notes that a blob with the given digest was stored for rawURL
// at time at. The first record fixes size and first-seen; every record
// bumps the reference count. Safe on a nil catalog.
func (c *Catalog) Record(digest string, size int64, rawURL string, at time.Time) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketBlobs)
		entry := Entry{Digest: digest, Size: size, FirstSeen: at}
		if raw := b.Get([]byte(digest)); raw != nil {
			if err := json.Unmarshal(raw, &entry); err != nil {
				return fmt.Errorf("decode catalog entry: %w", err)
			}
		}
		entry.RefCount++
		entry.LastURL = rawURL
		raw, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		return b.Put([]byte(digest), raw)
	})
}

// Get looks up a digest. The second return reports whether the digest
// is known. Safe on a nil catalog, which knows nothing.
func (c *Catalog) Get(digest string) (Entry, bool, error) {
	if c == nil {
		return Entry{}, false, nil
	}
	var (
		entry Entry
		found bool
	)
	err := c.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketBlobs).Get([]byte(digest))
		if raw == nil {
			return nil
		}
		found = true
		return json.Unmarshal(raw, &entry)
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("read catalog entry: %w", err)
	}
	return entry, found, nil
}
