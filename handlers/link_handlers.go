package handlers

import (
	"fmt"
	"sort"

	"link-archiver/models"

	"github.com/gofiber/fiber/v2"
)

// LogReader loads the current archive log.
type LogReader interface {
	Load() (*models.ArchiveLog, error)
}

// HistoryReader lists recorded submission attempts.
type HistoryReader interface {
	ForURL(url string) ([]models.SubmissionAttempt, error)
}

// API serves a read-only view of the archive log and submission history.
type API struct {
	store   LogReader
	history HistoryReader
}

// NewAPI builds the handlers. history may be nil when the history database
// is not configured.
func NewAPI(store LogReader, history HistoryReader) *API {
	return &API{store: store, history: history}
}

// ListLinks handles the request to list every record in the log, sorted by URL
func (a *API) ListLinks(c *fiber.Ctx) error {
	archiveLog, err := a.store.Load()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to load archive log: %s", err.Error()),
		})
	}
	return c.JSON(sortedRecords(archiveLog, func(*models.LinkRecord) bool { return true }))
}

// ListPending handles the request to list records no service has archived yet
func (a *API) ListPending(c *fiber.Ctx) error {
	archiveLog, err := a.store.Load()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to load archive log: %s", err.Error()),
		})
	}
	return c.JSON(sortedRecords(archiveLog, func(r *models.LinkRecord) bool { return !r.Archived() }))
}

// LookupLink handles the request to get the record of a single URL
func (a *API) LookupLink(c *fiber.Ctx) error {
	url := c.Query("url")
	if url == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url query parameter cannot be empty",
		})
	}

	archiveLog, err := a.store.Load()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to load archive log: %s", err.Error()),
		})
	}

	record, ok := archiveLog.ArchivedLinks[url]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("No record for %s", url),
		})
	}
	return c.JSON(record)
}

// GetHistory handles the request to list submission attempts for a URL
func (a *API) GetHistory(c *fiber.Ctx) error {
	if a.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message": "Submission history is not enabled. Set ARCHIVE_DB_PATH to record it.",
		})
	}

	url := c.Query("url")
	if url == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "url query parameter cannot be empty",
		})
	}

	attempts, err := a.history.ForURL(url)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to list history: %s", err.Error()),
		})
	}
	return c.JSON(attempts)
}

func sortedRecords(archiveLog *models.ArchiveLog, keep func(*models.LinkRecord) bool) []*models.LinkRecord {
	records := make([]*models.LinkRecord, 0, len(archiveLog.ArchivedLinks))
	for _, record := range archiveLog.ArchivedLinks {
		if keep(record) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].OriginalURL < records[j].OriginalURL
	})
	return records
}

// SetupRoutes configures the API routes for the application
func SetupRoutes(app *fiber.App, api *API) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("link-archiver status API is running. Use /api/links endpoints.")
	})

	apiGroup := app.Group("/api") // Base path for API routes

	linkRoutes := apiGroup.Group("/links")
	linkRoutes.Get("/", api.ListLinks)
	linkRoutes.Get("/pending", api.ListPending)
	linkRoutes.Get("/lookup", api.LookupLink)

	apiGroup.Get("/history", api.GetHistory)
}
