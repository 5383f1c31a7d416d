package archiver

import (
	"context"
	"net/http"
	"strings"

	"link-archiver/models"

	"go.uber.org/zap"
)

// Default Wayback Machine endpoints.
const (
	DefaultWaybackBaseURL = "https://web.archive.org"
	DefaultWaybackSaveURL = DefaultWaybackBaseURL + "/save/"
)

// Wayback submits URLs to the Internet Archive's Save Page Now endpoint.
type Wayback struct {
	saveURL string
	baseURL string
	client  *http.Client
	policy  RetryPolicy
	logger  *zap.Logger
}

// NewWayback builds the Wayback Machine service from cfg. Only 429 and
// transport errors are retried; any other non-200 status fails at once.
func NewWayback(cfg Config) *Wayback {
	cfg = cfg.withDefaults()
	return &Wayback{
		saveURL: cfg.WaybackSaveURL,
		baseURL: trimSlash(cfg.WaybackBaseURL),
		client:  &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     ExponentialBackoff,
			RetryStatus: RetryOnlyTooManyRequests,
			Sleep:       cfg.Sleep,
		},
		logger: cfg.Logger.With(zap.String("service", models.ServiceWayback)),
	}
}

// Name implements Service.
func (w *Wayback) Name() string {
	return models.ServiceWayback
}

// Archive implements Service.
func (w *Wayback) Archive(ctx context.Context, target string) models.ServiceResult {
	logger := w.logger.With(zap.String("url", target))
	return w.policy.Run(ctx, logger, func(ctx context.Context) (int, string, error) {
		return w.save(ctx, target)
	})
}

func (w *Wayback) save(ctx context.Context, target string) (int, string, error) {
	req, err := newRequest(ctx, http.MethodGet, w.saveURL+target, nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer discard(resp)

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, "", nil
	}

	// Save Page Now usually redirects straight to the snapshot.
	if final := resp.Request.URL.String(); strings.Contains(final, "/web/") {
		return resp.StatusCode, final, nil
	}

	body, err := readBody(resp)
	if err == nil {
		href, ok := firstHref(anchorHrefs(body), func(href string) bool {
			return strings.Contains(href, "/web/") && strings.Contains(href, target)
		})
		if ok {
			return resp.StatusCode, w.baseURL + href, nil
		}
	}

	return resp.StatusCode, w.baseURL + "/web/*/" + target, nil
}
