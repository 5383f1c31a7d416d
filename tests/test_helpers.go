package tests

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"link-archiver/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testDB    *gorm.DB
	onceDB    sync.Once
	dbInitErr error
)

// SetupTestDB initializes an in-memory SQLite database for testing
// and migrates the schema.
func SetupTestDB() (*gorm.DB, error) {
	onceDB.Do(func() {
		testDB, dbInitErr = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if dbInitErr != nil {
			log.Printf("Failed to connect to in-memory test database: %v", dbInitErr)
			return
		}

		dbInitErr = testDB.AutoMigrate(&models.SubmissionAttempt{})
		if dbInitErr != nil {
			log.Printf("Failed to auto-migrate test database schema: %v", dbInitErr)
			return
		}
	})
	return testDB, dbInitErr
}

// CreateTestApp initializes a new Fiber app for testing purposes.
func CreateTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return ctx.Status(code).SendString(err.Error())
		},
	})
	return app
}

// ClearSubmissionAttempts deletes all rows from the submission history.
func ClearSubmissionAttempts(db *gorm.DB) error {
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.SubmissionAttempt{}).Error; err != nil {
		return fmt.Errorf("failed to delete submission attempts: %w", err)
	}
	// Reset autoincrement sequence for sqlite; fails harmlessly if the table never had rows.
	db.Exec("DELETE FROM sqlite_sequence WHERE name='submission_attempts'")
	return nil
}

// EnsureTestStorageDirs creates a temporary workspace for tests. The returned
// logPath points inside a logs directory that does not exist yet.
func EnsureTestStorageDirs() (workDir string, logPath string, cleanup func(), err error) {
	tempDir, err := os.MkdirTemp("", "link_archiver_test_*")
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to create temp dir for tests: %w", err)
	}

	cleanupFunc := func() {
		os.RemoveAll(tempDir)
	}

	return tempDir, filepath.Join(tempDir, "logs", "archive_log.json"), cleanupFunc, nil
}

// WriteFile writes content to rel under root, creating parent directories.
func WriteFile(root, rel, content string) error {
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SampleLog returns a log with one archived link and one link that every
// service failed to archive.
func SampleLog() *models.ArchiveLog {
	archiveLog := models.NewArchiveLog()
	archiveLog.Merge("https://example.com/archived", "data/a.yaml", map[string]models.ServiceResult{
		models.ServiceWayback:      models.Succeeded("https://web.archive.org/web/2024/https://example.com/archived"),
		models.ServiceArchiveToday: models.Failed(),
	}, "2024-01-02T03:04:05.000000")
	archiveLog.Merge("https://example.org/pending", "data/b.yml", map[string]models.ServiceResult{
		models.ServiceWayback:      models.Failed(),
		models.ServiceArchiveToday: models.Failed(),
	}, "2024-01-02T03:04:06.000000")
	return archiveLog
}
