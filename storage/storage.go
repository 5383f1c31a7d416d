package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"link-archiver/models"

	"go.uber.org/zap"
)

// DefaultLogPath is where the archive log lives relative to the working directory.
var DefaultLogPath = filepath.Join("logs", "archive_log.json")

// Store persists the archive log as a single pretty-printed JSON document.
type Store struct {
	path   string
	logger *zap.Logger
}

// New returns a Store backed by the file at path.
func New(path string, logger *zap.Logger) *Store {
	if path == "" {
		path = DefaultLogPath
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the location of the log file.
func (s *Store) Path() string {
	return s.path
}

// EnsureStorageDirs creates the directory holding the log file if it doesn't exist.
func (s *Store) EnsureStorageDirs() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}
	return nil
}

// Load reads the log from disk. A missing file yields an empty log; a file
// that cannot be decoded is reported and replaced by an empty log.
func (s *Store) Load() (*models.ArchiveLog, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return models.NewArchiveLog(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read log file '%s': %w", s.path, err)
	}

	archiveLog := models.NewArchiveLog()
	if err := json.Unmarshal(data, archiveLog); err != nil {
		s.logger.Error("Error loading log file, creating a new one",
			zap.String("path", s.path), zap.Error(err))
		return models.NewArchiveLog(), nil
	}
	if archiveLog.ArchivedLinks == nil {
		archiveLog.ArchivedLinks = make(map[string]*models.LinkRecord)
	}
	return archiveLog, nil
}

// Save overwrites the log file with archiveLog. The document is written to a
// temporary file in the same directory and renamed into place.
func (s *Store) Save(archiveLog *models.ArchiveLog) error {
	data, err := json.MarshalIndent(archiveLog, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode archive log: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", s.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write archive log to '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close '%s': %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions on '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace archive log '%s': %w", s.path, err)
	}
	return nil
}
