package storage

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.etcd.io/bbolt"
)

const (
	// RunsBucket stores run metadata keyed by run ID
	RunsBucket = "runs"

	// StepsBucket holds one nested bucket of step records per run
	StepsBucket = "steps"
)

var (
	// ErrStoreClosed is returned by operations on a closed store
	ErrStoreClosed = errors.New("store is closed")

	// ErrRunNotFound is returned when a run ID has no metadata
	ErrRunNotFound = errors.New("run not found")
)

// RunMeta describes one training run
type RunMeta struct {
	ID           string     `json:"id"`
	Schedule     string     `json:"schedule"`
	BaseLR       float64    `json:"base_lr"`
	PlannedSteps int        `json:"planned_steps"`
	CreatedAt    time.Time  `json:"created_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	FinalLoss    float64    `json:"final_loss"`
	StepsDone    int        `json:"steps_done"`
}

// StepRecord is the learning rate and loss observed at one step
type StepRecord struct {
	Step         int     `json:"step"`
	Multiplier   float64 `json:"multiplier"`
	LearningRate float64 `json:"learning_rate"`
	Loss         float64 `json:"loss"`
}

// RunStore persists training runs in BoltDB
type RunStore struct {
	db       *bbolt.DB
	dbPath   string
	isClosed bool
}

// NewRunStore opens or creates a run store at dbPath
func NewRunStore(dbPath string) (*RunStore, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Open database with timeout
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(RunsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(StepsBucket)); err != nil {
			return fmt.Errorf("create steps bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &RunStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// CreateRun stores meta and returns its ID. A new ID is assigned when meta.ID is empty.
func (s *RunStore) CreateRun(meta RunMeta) (string, error) {
	if s.isClosed {
		return "", ErrStoreClosed
	}

	if meta.ID == "" {
		meta.ID = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(RunsBucket))
		if runs.Get([]byte(meta.ID)) != nil {
			return fmt.Errorf("run %s already exists", meta.ID)
		}
		if _, err := tx.Bucket([]byte(StepsBucket)).CreateBucketIfNotExists([]byte(meta.ID)); err != nil {
			return fmt.Errorf("create step bucket: %w", err)
		}
		return putRun(runs, meta)
	})
	if err != nil {
		return "", err
	}

	return meta.ID, nil
}

// AppendSteps records step entries for a run. Re-recording a step overwrites it.
func (s *RunStore) AppendSteps(runID string, records ...StepRecord) error {
	if s.isClosed {
		return ErrStoreClosed
	}
	if len(records) == 0 {
		return nil
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(StepsBucket)).Bucket([]byte(runID))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		for _, rec := range records {
			if rec.Step < 0 {
				return fmt.Errorf("invalid step %d", rec.Step)
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("failed to marshal step: %w", err)
			}
			if err := b.Put(stepKey(rec.Step), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// FinishRun marks a run finished with its final loss and completed step count
func (s *RunStore) FinishRun(runID string, stepsDone int, finalLoss float64) error {
	if s.isClosed {
		return ErrStoreClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(RunsBucket))
		meta, err := getRun(runs, runID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		meta.FinishedAt = &now
		meta.StepsDone = stepsDone
		meta.FinalLoss = finalLoss
		return putRun(runs, meta)
	})
}

// GetRun returns the metadata of one run
func (s *RunStore) GetRun(runID string) (RunMeta, error) {
	if s.isClosed {
		return RunMeta{}, ErrStoreClosed
	}

	var meta RunMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		meta, err = getRun(tx.Bucket([]byte(RunsBucket)), runID)
		return err
	})
	return meta, err
}

// ListRuns returns all runs, oldest first
func (s *RunStore) ListRuns() ([]RunMeta, error) {
	if s.isClosed {
		return nil, ErrStoreClosed
	}

	var runs []RunMeta
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(RunsBucket)).ForEach(func(k, v []byte) error {
			var meta RunMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("corrupt run %s: %w", k, err)
			}
			runs = append(runs, meta)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

// Steps returns the recorded steps of a run in step order
func (s *RunStore) Steps(runID string) ([]StepRecord, error) {
	if s.isClosed {
		return nil, ErrStoreClosed
	}

	var records []StepRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(StepsBucket)).Bucket([]byte(runID))
		if b == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}

		// Big-endian keys iterate in step order
		return b.ForEach(func(_, v []byte) error {
			var rec StepRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt step record: %w", err)
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// DeleteRun removes a run and its step records
func (s *RunStore) DeleteRun(runID string) error {
	if s.isClosed {
		return ErrStoreClosed
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(RunsBucket))
		if runs.Get([]byte(runID)) == nil {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		if err := runs.Delete([]byte(runID)); err != nil {
			return err
		}
		steps := tx.Bucket([]byte(StepsBucket))
		if steps.Bucket([]byte(runID)) != nil {
			return steps.DeleteBucket([]byte(runID))
		}
		return nil
	})
}

// Close closes the database connection
func (s *RunStore) Close() error {
	if s.isClosed {
		return nil
	}

	s.isClosed = true
	return s.db.Close()
}

// Stats returns statistics about the store
type Stats struct {
	Runs        int
	StepRecords int
	DBPath      string
}

// GetStats returns current statistics
func (s *RunStore) GetStats() (Stats, error) {
	if s.isClosed {
		return Stats{}, ErrStoreClosed
	}

	stats := Stats{DBPath: s.dbPath}
	err := s.db.View(func(tx *bbolt.Tx) error {
		stats.Runs = tx.Bucket([]byte(RunsBucket)).Stats().KeyN
		return tx.Bucket([]byte(StepsBucket)).ForEach(func(k, v []byte) error {
			if v != nil {
				return nil
			}
			if b := tx.Bucket([]byte(StepsBucket)).Bucket(k); b != nil {
				stats.StepRecords += b.Stats().KeyN
			}
			return nil
		})
	})
	return stats, err
}

func stepKey(step int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(step))
	return key
}

func putRun(b *bbolt.Bucket, meta RunMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal run: %w", err)
	}
	return b.Put([]byte(meta.ID), data)
}

func getRun(b *bbolt.Bucket, runID string) (RunMeta, error) {
	data := b.Get([]byte(runID))
	if data == nil {
		return RunMeta{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return RunMeta{}, fmt.Errorf("corrupt run %s: %w", runID, err)
	}
	return meta, nil
}
