package database

import (
	"fmt"
	"os"
	"path/filepath"

	"link-archiver/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the sqlite database at path, creating its directory if
// needed, and auto-migrates the history schema.
func Open(path string, log *zap.Logger) (*gorm.DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory '%s': %w", dir, err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database at %s: %w", path, err)
	}
	log.Info("Database connection established", zap.String("path", path))

	if err := db.AutoMigrate(&models.SubmissionAttempt{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate database schema: %w", err)
	}
	return db, nil
}

// History stores one row per service outcome.
type History struct {
	db *gorm.DB
}

// NewHistory wraps an open database.
func NewHistory(db *gorm.DB) *History {
	return &History{db: db}
}

// Record inserts attempts in a single batch.
func (h *History) Record(attempts []models.SubmissionAttempt) error {
	if len(attempts) == 0 {
		return nil
	}
	if err := h.db.Create(&attempts).Error; err != nil {
		return fmt.Errorf("failed to record %d submission attempts: %w", len(attempts), err)
	}
	return nil
}

// ForURL lists the attempts for url, newest first.
func (h *History) ForURL(url string) ([]models.SubmissionAttempt, error) {
	var attempts []models.SubmissionAttempt
	err := h.db.Where("url = ?", url).Order("attempted_at desc").Order("id desc").Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts for '%s': %w", url, err)
	}
	return attempts, nil
}

// ForRun lists the attempts made during one run, oldest first.
func (h *History) ForRun(runID string) ([]models.SubmissionAttempt, error) {
	var attempts []models.SubmissionAttempt
	if err := h.db.Where("run_id = ?", runID).Order("id asc").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts for run '%s': %w", runID, err)
	}
	return attempts, nil
}
