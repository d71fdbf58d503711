package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketSnapshots = []byte("snapshots")
	bucketMeta      = []byte("meta")
)

// ErrSnapshotNotFound is returned when a history entry does not exist.
var ErrSnapshotNotFound = fmt.Errorf("snapshot not found")

// Entry describes one stored contract snapshot.
type Entry struct {
	ID             string    `json:"id"`
	CreatedAt      time.Time `json:"createdAt"`
	ProjectName    string    `json:"projectName,omitempty"`
	TotalEndpoints int       `json:"totalEndpoints"`
	Breaking       int       `json:"breaking"`
	Size           int       `json:"size"`
}

// History keeps contract snapshots across runs in a BoltDB file.
// Entry IDs are UUIDv7, so byte order is creation order.
type History struct {
	db   *bolt.DB
	path string
}

// OpenHistory opens or creates a history database at path.
func OpenHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSnapshots, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &History{db: db, path: path}, nil
}

// Append stores a snapshot and returns its entry with ID and size filled in.
func (h *History) Append(data []byte, entry Entry) (Entry, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to generate snapshot id: %w", err)
	}
	entry.ID = id.String()
	entry.Size = len(data)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	meta, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal entry: %w", err)
	}

	err = h.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSnapshots).Put([]byte(entry.ID), data); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put([]byte(entry.ID), meta)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns entries oldest first.
func (h *History) List() ([]Entry, error) {
	var entries []Entry
	err := h.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).ForEach(func(_, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

// Get returns the stored snapshot bytes for id.
func (h *History) Get(id string) ([]byte, error) {
	var data []byte
	err := h.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketSnapshots).Get([]byte(id))
		if v == nil {
			return ErrSnapshotNotFound
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

// Latest returns the newest entry, or false when history is empty.
func (h *History) Latest() (Entry, bool, error) {
	var (
		e     Entry
		found bool
	)
	err := h.db.View(func(tx *bolt.Tx) error {
		_, v := tx.Bucket(bucketMeta).Cursor().Last()
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &e)
	})
	return e, found, err
}

// Prune deletes the oldest entries so that at most keep remain.
// It returns the number removed. keep <= 0 disables pruning.
func (h *History) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	removed := 0
	err := h.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		var ids [][]byte
		c := meta.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			ids = append(ids, append([]byte(nil), k...))
		}
		if len(ids) <= keep {
			return nil
		}
		ids = ids[:len(ids)-keep]

		for _, id := range ids {
			if err := meta.Delete(id); err != nil {
				return err
			}
			if err := tx.Bucket(bucketSnapshots).Delete(id); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Path returns the database file path.
func (h *History) Path() string {
	return h.path
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}
