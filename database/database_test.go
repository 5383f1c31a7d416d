package database

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"link-archiver/models"
	"link-archiver/tests"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testDB *gorm.DB

func TestMain(m *testing.M) {
	var err error
	testDB, err = tests.SetupTestDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up test DB: %v\n", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestOpenCreatesDatabaseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	db, err := Open(path, nil)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.True(t, db.Migrator().HasTable(&models.SubmissionAttempt{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())
}

func TestHistory(t *testing.T) {
	t.Cleanup(func() { require.NoError(t, tests.ClearSubmissionAttempts(testDB)) })
	h := NewHistory(testDB)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, h.Record([]models.SubmissionAttempt{
		{RunID: "run-1", URL: "https://a.example.com", SourceFile: "a.yaml", Service: models.ServiceWayback, Success: false, AttemptedAt: now.Add(-time.Hour)},
		{RunID: "run-1", URL: "https://b.example.com", SourceFile: "a.yaml", Service: models.ServiceWayback, Success: true, ArchivedURL: "https://web.archive.org/web/1/b", AttemptedAt: now.Add(-time.Hour)},
	}))
	require.NoError(t, h.Record([]models.SubmissionAttempt{
		{RunID: "run-2", URL: "https://a.example.com", SourceFile: "a.yaml", Service: models.ServiceWayback, Success: true, ArchivedURL: "https://web.archive.org/web/2/a", AttemptedAt: now},
	}))
	require.NoError(t, h.Record(nil), "an empty batch is a no-op")

	t.Run("ForURL returns newest first", func(t *testing.T) {
		attempts, err := h.ForURL("https://a.example.com")
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.Equal(t, "run-2", attempts[0].RunID)
		assert.True(t, attempts[0].Success)
		assert.Equal(t, "run-1", attempts[1].RunID)
	})

	t.Run("ForRun", func(t *testing.T) {
		attempts, err := h.ForRun("run-1")
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		assert.Equal(t, "https://a.example.com", attempts[0].URL)
		assert.Equal(t, "https://b.example.com", attempts[1].URL)
	})

	t.Run("Unknown URL", func(t *testing.T) {
		attempts, err := h.ForURL("https://nope.example.com")
		require.NoError(t, err)
		assert.Empty(t, attempts)
	})
}
