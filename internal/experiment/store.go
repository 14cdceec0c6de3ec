package experiment

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"
)

const (
	snapshotExt   = ".gob"
	checkpointExt = ".model"
)

// Snapshot is the unit of persistence: the configuration together
// with its attached sample sets and training history
type Snapshot struct {
	Config  Config
	Data    *SampleSet
	VData   *SampleSet
	History History
	SavedAt time.Time
}

// Store reads and writes snapshots in a date-partitioned directory
type Store struct {
	dir    string
	logger logging.Logger
}

// ResumeState reports whether a run picked up cached work or started
// from nothing
type ResumeState int

const (
	Fresh ResumeState = iota
	Resumed
)

func (s ResumeState) String() string {
	if s == Resumed {
		return "resumed"
	}
	return "fresh"
}

// DatedDir returns the per-date partition of root for t. Snapshots and
// checkpoints from different days never shadow each other.
func DatedDir(root string, t time.Time) string {
	return filepath.Join(root, t.Format("2006-01-02"))
}

// NewStore creates a snapshot store rooted at dir
func NewStore(dir string, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Store{dir: dir, logger: logger}
}

// FindCompatible scans the store directory for a snapshot whose
// identity over the importance fields equals the current
// configuration's. Returns nil when nothing matches; a snapshot that
// cannot be decoded is a real error.
func (s *Store) FindCompatible(current *Config) (*Snapshot, error) {
	currentID := Identity(current, ImportanceFields)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info("No snapshot directory yet", logging.Fields{
				"dir": s.dir,
				"id":  currentID,
			})
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan snapshot directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != snapshotExt {
			continue
		}

		snap, err := s.load(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		candidateID := Identity(&snap.Config, ImportanceFields)
		if candidateID == currentID {
			s.logger.Info("Loaded config snapshot", logging.Fields{
				"id":   candidateID,
				"file": entry.Name(),
			})
			return snap, nil
		}
	}

	s.logger.Info("No compatible config snapshot", logging.Fields{
		"id":  currentID,
		"dir": s.dir,
	})
	return nil, nil
}

// Resume wraps FindCompatible in an explicit two-state outcome so
// callers branch on the state instead of a nil check
func (s *Store) Resume(current *Config) (*Snapshot, ResumeState, error) {
	snap, err := s.FindCompatible(current)
	if err != nil {
		return nil, Fresh, err
	}
	if snap == nil {
		return nil, Fresh, nil
	}
	return snap, Resumed, nil
}

// Save persists a snapshot keyed by the absolute value of its
// assigned identity
func (s *Store) Save(snap *Snapshot) error {
	if snap.Config.ID == 0 {
		return fmt.Errorf("config identity not assigned")
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	snap.SavedAt = time.Now()
	path := filepath.Join(s.dir, snapshotName(snap.Config.ID))

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create snapshot file: %w", err)
	}
	defer file.Close()

	if err := gob.NewEncoder(file).Encode(snap); err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	s.logger.Info("Config snapshot saved", logging.Fields{
		"id":   snap.Config.ID,
		"path": path,
	})
	return nil
}

// load decodes a single snapshot file
func (s *Store) load(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := gob.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// snapshotName builds the file name for an identity
func snapshotName(id int64) string {
	return strconv.FormatInt(absID(id), 10) + snapshotExt
}

// CheckpointPath returns the model checkpoint path for an identity
// under the given directory
func CheckpointPath(dir string, id int64) string {
	return filepath.Join(dir, strconv.FormatInt(absID(id), 10)+checkpointExt)
}

// FindCheckpoint probes for an existing model checkpoint and reports
// whether one is present
func FindCheckpoint(dir string, id int64) (string, bool) {
	path := CheckpointPath(dir, id)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	return path, true
}

func absID(id int64) int64 {
	if id < 0 {
		return -id
	}
	return id
}
