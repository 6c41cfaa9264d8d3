package store

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const (
	// runsBucket holds run records keyed by a time-sortable key.
	runsBucket = "runs"
	// runIndexBucket maps run_id to the time-sortable key for fast lookups.
	runIndexBucket = "run_index"
)

// BoltStore implements the Store interface using BoltDB.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store at the given path.
func NewBoltStore(path string) (Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb at %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runIndexBucket)); err != nil {
			return fmt.Errorf("create run_index bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// runKey builds a key that sorts lexicographically by start time, with the
// run ID as a tiebreaker. Cursor iteration from the end then yields runs
// newest first.
func runKey(run *DetectionRun) []byte {
	return []byte(run.StartTime.UTC().Format(time.RFC3339Nano) + "/" + run.RunID)
}

// SaveRun persists a detection run record.
func (s *BoltStore) SaveRun(run *DetectionRun) error {
	if run.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if run.StartTime.IsZero() {
		return fmt.Errorf("start_time is required")
	}

	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		runs := tx.Bucket([]byte(runsBucket))
		index := tx.Bucket([]byte(runIndexBucket))

		key := runKey(run)

		// A re-save of the same run (e.g. marking it finished) must not
		// leave a stale entry under an old key.
		if oldKey := index.Get([]byte(run.RunID)); oldKey != nil && string(oldKey) != string(key) {
			if err := runs.Delete(oldKey); err != nil {
				return fmt.Errorf("delete stale run key: %w", err)
			}
		}

		if err := runs.Put(key, data); err != nil {
			return fmt.Errorf("put run: %w", err)
		}

		if err := index.Put([]byte(run.RunID), key); err != nil {
			return fmt.Errorf("put run index: %w", err)
		}

		return nil
	})
}

// GetRun retrieves a specific run by its ID.
func (s *BoltStore) GetRun(runID string) (*DetectionRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("run_id is required")
	}

	var run *DetectionRun

	err := s.db.View(func(tx *bolt.Tx) error {
		index := tx.Bucket([]byte(runIndexBucket))
		runs := tx.Bucket([]byte(runsBucket))

		key := index.Get([]byte(runID))
		if key == nil {
			return fmt.Errorf("run not found: %s", runID)
		}

		data := runs.Get(key)
		if data == nil {
			return fmt.Errorf("run record missing for: %s", runID)
		}

		run = &DetectionRun{}
		if err := json.Unmarshal(data, run); err != nil {
			return fmt.Errorf("unmarshal run: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return run, nil
}

// GetRuns retrieves the most recent detection runs, newest first.
func (s *BoltStore) GetRuns(limit int) ([]*DetectionRun, error) {
	if limit <= 0 {
		limit = 100 // default limit
	}

	var runs []*DetectionRun

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()

		for k, v := c.Last(); k != nil && len(runs) < limit; k, v = c.Prev() {
			run := &DetectionRun{}
			if err := json.Unmarshal(v, run); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", string(k), err)
			}
			runs = append(runs, run)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return runs, nil
}

// Close releases resources held by the store.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
