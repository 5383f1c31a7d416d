// Package archiver submits links to third-party web archives.
package archiver

import (
	"context"
	"net/http"
	"time"

	"link-archiver/models"

	"go.uber.org/zap"
)

// Politeness delays around each submission.
const (
	MinLeadDelay    = 1 * time.Second
	MaxLeadDelay    = 3 * time.Second
	MinBetweenDelay = 2 * time.Second
	MaxBetweenDelay = 5 * time.Second
)

// Defaults for Config.
const (
	DefaultMaxAttempts = 3
	DefaultTimeout     = 30 * time.Second
)

// Service archives a single URL and reports the outcome. Implementations
// never fail: every error is folded into a failed result.
type Service interface {
	Name() string
	Archive(ctx context.Context, target string) models.ServiceResult
}

// Config configures the services and the submitter. Zero values fall back to
// the production defaults.
type Config struct {
	MaxAttempts int
	Timeout     time.Duration
	Transport   http.RoundTripper
	Sleep       Sleeper
	Delay       Delay

	WaybackSaveURL      string
	WaybackBaseURL      string
	ArchiveTodayBaseURL string
	ArchiveTodayDomains []string

	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Sleep == nil {
		c.Sleep = SleepContext
	}
	if c.Delay == nil {
		c.Delay = RandomDelay(c.Sleep)
	}
	if c.WaybackBaseURL == "" {
		c.WaybackBaseURL = DefaultWaybackBaseURL
	}
	if c.WaybackSaveURL == "" {
		c.WaybackSaveURL = trimSlash(c.WaybackBaseURL) + "/save/"
	}
	if c.ArchiveTodayBaseURL == "" {
		c.ArchiveTodayBaseURL = DefaultArchiveTodayBaseURL
	}
	if len(c.ArchiveTodayDomains) == 0 {
		c.ArchiveTodayDomains = DefaultArchiveTodayDomains
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Submitter sends each URL to every configured service in turn.
type Submitter struct {
	services []Service
	delay    Delay
	logger   *zap.Logger
}

// New returns a Submitter for the Wayback Machine and archive.today.
func New(cfg Config) *Submitter {
	cfg = cfg.withDefaults()
	return NewWithServices(cfg, NewWayback(cfg), NewArchiveToday(cfg))
}

// NewWithServices returns a Submitter over an explicit service list.
func NewWithServices(cfg Config, services ...Service) *Submitter {
	cfg = cfg.withDefaults()
	return &Submitter{services: services, delay: cfg.Delay, logger: cfg.Logger}
}

// Archive submits target to every service and returns one result per
// service name. A random pause precedes the first service and separates
// consecutive services. When ctx is cancelled the remaining services are
// reported as failed without being contacted.
func (s *Submitter) Archive(ctx context.Context, target string) map[string]models.ServiceResult {
	results := make(map[string]models.ServiceResult, len(s.services))
	for i, svc := range s.services {
		lo, hi := MinBetweenDelay, MaxBetweenDelay
		if i == 0 {
			lo, hi = MinLeadDelay, MaxLeadDelay
		}
		if err := s.delay(ctx, lo, hi); err != nil {
			results[svc.Name()] = models.Failed()
			continue
		}

		result := svc.Archive(ctx, target)
		if result.Success {
			s.logger.Info("Archived", zap.String("service", svc.Name()), zap.String("url", target),
				zap.Stringp("archived_url", result.ArchivedURL))
		} else {
			s.logger.Info("Archiving failed", zap.String("service", svc.Name()), zap.String("url", target))
		}
		results[svc.Name()] = result
	}
	return results
}
