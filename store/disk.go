package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	recordsDirName     = "records"
	latestFileName     = "latest"
	configFileName     = "runtime_config.yaml"
	recordFileExt      = ".json"
	stateFileMode      = 0644
	stateDirectoryMode = 0755
)

// DiskStore persists records and the runtime config under a state directory.
//
// Layout:
//
//	<dir>/records/<id>.json
//	<dir>/latest
//	<dir>/runtime_config.yaml
//
// Reads are served from an in-memory mirror. Writes go to disk first and only update the
// mirror once the file is written, so a failed write is not visible to readers.
type DiskStore struct {
	dir     string
	logger  *slog.Logger
	records *recordTable
	config  *configCell
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates a disk-backed store.
// The directory is created if it doesn't exist, and existing state is loaded.
func NewDiskStore(dir string, logger *slog.Logger) (*DiskStore, error) {
	s := &DiskStore{
		dir:     dir,
		logger:  logger,
		records: newRecordTable(),
		config:  &configCell{},
	}

	if err := os.MkdirAll(s.recordsDir(), stateDirectoryMode); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// AddRecord writes the record file and the latest marker, then updates the mirror.
func (s *DiskStore) AddRecord(record Record) error {
	err := s.records.put(record.Clone(), s.writeRecord)
	if err != nil {
		return err
	}
	s.logger.Debug("saved record to disk", "execution_id", record.ID)
	return nil
}

// Record returns a copy of the record for id.
func (s *DiskStore) Record(id ExecutionID) (Record, bool, error) {
	record, ok := s.records.get(id)
	return record, ok, nil
}

// LatestID returns the ID of the most recent AddRecord call.
func (s *DiskStore) LatestID() (ExecutionID, bool, error) {
	id, ok := s.records.latestID()
	return id, ok, nil
}

// Records returns copies of all records. The order is unspecified.
func (s *DiskStore) Records() ([]Record, error) {
	return s.records.snapshot(), nil
}

// RuntimeConfig returns a copy of the current runtime config.
func (s *DiskStore) RuntimeConfig() (RuntimeConfig, bool, error) {
	config, ok := s.config.get()
	return config, ok, nil
}

// SetRuntimeConfig writes the config file, then updates the mirror.
func (s *DiskStore) SetRuntimeConfig(config RuntimeConfig) error {
	return s.config.set(config.Clone(), s.writeConfig)
}

// Reload re-reads all state from disk, replacing the in-memory mirror.
// Each partition is read and swapped under its write lock, so writes made while
// reloading are never lost from the mirror.
func (s *DiskStore) Reload() error {
	var count int
	err := s.records.reload(func() (map[ExecutionID]Record, *ExecutionID, error) {
		records, latest, err := s.loadRecords()
		count = len(records)
		return records, latest, err
	})
	if err != nil {
		return err
	}

	var hasConfig bool
	err = s.config.reload(func() (*RuntimeConfig, error) {
		config, err := s.loadConfig()
		hasConfig = config != nil
		return config, err
	})
	if err != nil {
		return err
	}

	s.logger.Info("loaded store state from disk",
		"dir", s.dir,
		"records", count,
		"runtime_config", hasConfig,
	)
	return nil
}

func (s *DiskStore) recordsDir() string {
	return filepath.Join(s.dir, recordsDirName)
}

// writeRecord runs inside the record partition's critical section.
// If the latest marker can't be written, the record file is put back the way it was.
func (s *DiskStore) writeRecord(record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := filepath.Join(s.recordsDir(), record.ID.String()+recordFileExt)
	previous, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read record file: %w", err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}

	latest := []byte(record.ID.String() + "\n")
	if err := writeFileAtomic(filepath.Join(s.dir, latestFileName), latest); err != nil {
		if rerr := restoreFile(path, previous); rerr != nil {
			s.logger.Error("failed to roll back record file", "file", path, "error", rerr)
		}
		return fmt.Errorf("failed to write latest marker: %w", err)
	}
	return nil
}

// restoreFile writes previous back to path, or removes path if previous is nil.
func restoreFile(path string, previous []byte) error {
	if previous == nil {
		return os.Remove(path)
	}
	return writeFileAtomic(path, previous)
}

// writeConfig runs inside the config partition's critical section.
func (s *DiskStore) writeConfig(config RuntimeConfig) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	if err := enc.Encode(config); err != nil {
		return fmt.Errorf("failed to marshal runtime config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to marshal runtime config: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(s.dir, configFileName), buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write runtime config file: %w", err)
	}
	return nil
}

// loadRecords reads every record file and the latest marker.
// Unreadable record files are skipped with a warning.
func (s *DiskStore) loadRecords() (map[ExecutionID]Record, *ExecutionID, error) {
	files, err := os.ReadDir(s.recordsDir())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read records directory: %w", err)
	}

	records := make(map[ExecutionID]Record, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != recordFileExt {
			continue
		}

		path := filepath.Join(s.recordsDir(), file.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("failed to read record file", "file", path, "error", err)
			continue
		}

		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			s.logger.Warn("failed to parse record file", "file", path, "error", err)
			continue
		}
		records[record.ID] = record
	}

	data, err := os.ReadFile(filepath.Join(s.dir, latestFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return records, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read latest marker: %w", err)
	}

	id, err := ParseExecutionID(strings.TrimSpace(string(data)))
	if err != nil {
		s.logger.Warn("ignoring corrupt latest marker", "error", err)
		return records, nil, nil
	}
	return records, &id, nil
}

// loadConfig returns nil when no config has been written yet.
func (s *DiskStore) loadConfig() (*RuntimeConfig, error) {
	f, err := os.Open(filepath.Join(s.dir, configFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open runtime config file: %w", err)
	}
	defer f.Close()

	var config RuntimeConfig
	if err := yaml.NewDecoder(f).Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode runtime config file: %w", err)
	}
	return &config, nil
}

// writeFileAtomic writes data to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, stateFileMode); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
