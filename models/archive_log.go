package models

import "time"

// Service names used as keys in LinkRecord.Services.
const (
	ServiceWayback      = "wayback_machine"
	ServiceArchiveToday = "archive_today"
)

// TimestampLayout is the UTC timestamp format stored in the log.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// ArchiveLog is the document persisted at logs/archive_log.json.
type ArchiveLog struct {
	ArchivedLinks map[string]*LinkRecord `json:"archived_links"`
}

// LinkRecord is the persisted state of a single URL.
type LinkRecord struct {
	OriginalURL string                   `json:"original_url"`
	FirstSeen   string                   `json:"first_seen"`
	LastUpdated string                   `json:"last_updated,omitempty"`
	Files       []string                 `json:"files"`
	Services    map[string]ServiceResult `json:"services"`
}

// ServiceResult is the outcome of submitting a URL to one service.
// ArchivedURL is nil whenever Success is false.
type ServiceResult struct {
	Success     bool    `json:"success"`
	ArchivedURL *string `json:"archived_url"`
}

// Succeeded builds a successful result pointing at archivedURL.
func Succeeded(archivedURL string) ServiceResult {
	return ServiceResult{Success: true, ArchivedURL: &archivedURL}
}

// Failed builds a failed result.
func Failed() ServiceResult {
	return ServiceResult{}
}

// NewArchiveLog returns an empty log.
func NewArchiveLog() *ArchiveLog {
	return &ArchiveLog{ArchivedLinks: make(map[string]*LinkRecord)}
}

// Timestamp formats t the way the log stores timestamps.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Archived reports whether any service has already archived the URL.
func (r *LinkRecord) Archived() bool {
	if r == nil {
		return false
	}
	for _, result := range r.Services {
		if result.Success {
			return true
		}
	}
	return false
}

// HasFile reports whether path is already listed as a source of the link.
func (r *LinkRecord) HasFile(path string) bool {
	for _, f := range r.Files {
		if f == path {
			return true
		}
	}
	return false
}

// IsArchived reports whether url was archived by any service in an earlier run.
func (l *ArchiveLog) IsArchived(url string) bool {
	return l.ArchivedLinks[url].Archived()
}

// Merge folds the results of one submission into the log. A new record is
// created the first time url is seen; otherwise last_updated is refreshed,
// file is appended if new and every returned service result replaces the
// previous one.
func (l *ArchiveLog) Merge(url, file string, results map[string]ServiceResult, timestamp string) *LinkRecord {
	if l.ArchivedLinks == nil {
		l.ArchivedLinks = make(map[string]*LinkRecord)
	}

	record, ok := l.ArchivedLinks[url]
	if !ok {
		record = &LinkRecord{
			OriginalURL: url,
			FirstSeen:   timestamp,
			Files:       []string{file},
			Services:    make(map[string]ServiceResult, len(results)),
		}
		for service, result := range results {
			record.Services[service] = result
		}
		l.ArchivedLinks[url] = record
		return record
	}

	record.LastUpdated = timestamp
	if !record.HasFile(file) {
		record.Files = append(record.Files, file)
	}
	if record.Services == nil {
		record.Services = make(map[string]ServiceResult, len(results))
	}
	for service, result := range results {
		record.Services[service] = result
	}
	return record
}
