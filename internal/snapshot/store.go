// Package snapshot persists engine state between sessions.
//
// The store is a single-file bbolt database holding JSON-encoded snapshots
// keyed by dataset name, plus a pointer to the most recent save. The
// autosaver watches the engine's persist signals and writes through the
// store with a debounce, so a burst of edits costs one write.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/griddle/griddle/internal/engine"
)

var (
	bucketSnapshots = []byte("snapshots")
	bucketMeta      = []byte("meta")
	keyLatest       = []byte("latest")
)

// ErrNotFound reports a missing snapshot name.
var ErrNotFound = errors.New("snapshot not found")

// record is the stored form: the snapshot plus write-time metadata.
type record struct {
	SavedAt  time.Time       `json:"savedAt"`
	Snapshot engine.Snapshot `json:"snapshot"`
}

// Info describes one stored snapshot without its row payload.
type Info struct {
	Name    string    `json:"name"`
	Rows    int       `json:"rows"`
	Columns int       `json:"columns"`
	SavedAt time.Time `json:"savedAt"`
	Latest  bool      `json:"latest"`
}

// Store is a bbolt-backed snapshot store. Safe for concurrent use; bbolt
// serializes writers internally.
type Store struct {
	db  *bolt.DB
	log *slog.Logger
}

// Open opens or creates the store file and its buckets.
func Open(path string, log *slog.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening snapshot store %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketSnapshots); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketMeta)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing snapshot store: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log.With("component", "snapshot")}, nil
}

// Save writes the snapshot under its dataset name and marks it latest.
func (s *Store) Save(snap *engine.Snapshot) error {
	if snap == nil || snap.Name == "" {
		return errors.New("snapshot needs a dataset name")
	}
	payload, err := json.Marshal(record{SavedAt: time.Now().UTC(), Snapshot: *snap})
	if err != nil {
		return fmt.Errorf("encoding snapshot %q: %w", snap.Name, err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketSnapshots).Put([]byte(snap.Name), payload); err != nil {
			return err
		}
		return tx.Bucket(bucketMeta).Put(keyLatest, []byte(snap.Name))
	})
	if err != nil {
		return fmt.Errorf("writing snapshot %q: %w", snap.Name, err)
	}
	s.log.Debug("snapshot saved", "name", snap.Name, "rows", len(snap.Rows), "bytes", len(payload))
	return nil
}

// Load returns the named snapshot.
func (s *Store) Load(name string) (*engine.Snapshot, error) {
	var rec record
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketSnapshots).Get([]byte(name))
		if raw == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		return json.Unmarshal(raw, &rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec.Snapshot, nil
}

// Latest returns the most recently saved snapshot, ErrNotFound when the
// store has never been written.
func (s *Store) Latest() (*engine.Snapshot, error) {
	var name string
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keyLatest)
		if raw == nil {
			return ErrNotFound
		}
		name = string(raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Load(name)
}

// List describes every stored snapshot, newest first.
func (s *Store) List() ([]Info, error) {
	var infos []Info
	err := s.db.View(func(tx *bolt.Tx) error {
		latest := string(tx.Bucket(bucketMeta).Get(keyLatest))
		return tx.Bucket(bucketSnapshots).ForEach(func(k, v []byte) error {
			var rec record
			if err := json.Unmarshal(v, &rec); err != nil {
				s.log.Warn("skipping undecodable snapshot", "name", string(k), "error", err)
				return nil
			}
			infos = append(infos, Info{
				Name:    string(k),
				Rows:    len(rec.Snapshot.Rows),
				Columns: len(rec.Snapshot.Columns),
				SavedAt: rec.SavedAt,
				Latest:  string(k) == latest,
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].SavedAt.After(infos[j].SavedAt) })
	return infos, nil
}

// Delete removes a snapshot; deleting the latest clears the pointer.
func (s *Store) Delete(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketSnapshots).Get([]byte(name)) == nil {
			return fmt.Errorf("%w: %q", ErrNotFound, name)
		}
		if err := tx.Bucket(bucketSnapshots).Delete([]byte(name)); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if string(meta.Get(keyLatest)) == name {
			return meta.Delete(keyLatest)
		}
		return nil
	})
}

// Close releases the store file.
func (s *Store) Close() error {
	return s.db.Close()
}
