package models

import (
	"time"

	"gorm.io/gorm"
)

// SubmissionAttempt records one service outcome for one link in one run.
type SubmissionAttempt struct {
	gorm.Model            // Includes ID, CreatedAt, UpdatedAt, DeletedAt
	RunID       string    `gorm:"index;not null"` // Identifier shared by every attempt of a single pass
	URL         string    `gorm:"index;not null"` // The link that was submitted
	SourceFile  string    // File the link was found in during this run
	Service     string    `gorm:"not null"` // Service name, e.g. wayback_machine
	Success     bool      `gorm:"not null"`
	ArchivedURL string    // Empty when the service failed
	AttemptedAt time.Time `gorm:"not null"`
}
