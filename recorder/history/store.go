// Package history keeps a record of every sweep in a bbolt file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/esrecorder/esrecorder/recorder/stats"
	"github.com/esrecorder/esrecorder/recorder/sweep"
)

const bucketRuns = "runs"

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("run not found")

// Entry is one stored sweep.
type Entry struct {
	ID           string        `json:"id"`
	Engine       string        `json:"engine"`
	Displacement float64       `json:"displacement"`
	Started      time.Time     `json:"started"`
	Elapsed      time.Duration `json:"elapsed"`
	GridSize     int           `json:"grid_size"`
	Instances    int           `json:"instances"`
	Recorded     int           `json:"recorded"`
	Missed       int           `json:"missed"`
	Failed       int           `json:"failed"`
	Duplicates   int           `json:"duplicates"`
	LoadFailures int           `json:"load_failures"`
	Aborted      bool          `json:"aborted"`
	Saved        string        `json:"saved,omitempty"`
	Timing       stats.Summary `json:"timing"`
}

// FromResult summarises a sweep result for storage.
func FromResult(res *sweep.Result) Entry {
	return Entry{
		ID:           res.RunID.String(),
		Engine:       res.Engine.Name,
		Displacement: res.Engine.Displacement,
		Started:      res.Started,
		Elapsed:      res.Elapsed,
		GridSize:     res.GridSize,
		Instances:    res.Instances,
		Recorded:     res.Recorded,
		Missed:       len(res.Missed),
		Failed:       res.Failed,
		Duplicates:   len(res.Duplicates),
		LoadFailures: len(res.LoadFailures),
		Aborted:      res.Aborted,
		Saved:        res.Saved,
		Timing:       res.Timing,
	}
}

// Store is a bbolt-backed run history. Keys are run IDs; UUIDv7 IDs sort
// by start time, so cursor order is chronological.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the history file at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening history %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketRuns))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores e under e.ID, replacing any earlier entry.
func (s *Store) Save(e Entry) error {
	if e.ID == "" {
		return errors.New("history entry has no ID")
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketRuns)).Put([]byte(e.ID), data)
	})
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
// Undecodable entries are skipped.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketRuns)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) == limit {
				break
			}
		}
		return nil
	})
	return entries, err
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (*Entry, error) {
	var e Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketRuns)).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("%s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}
