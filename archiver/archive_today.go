package archiver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"link-archiver/models"

	"go.uber.org/zap"
)

// DefaultArchiveTodayBaseURL is archive.today's front page.
const DefaultArchiveTodayBaseURL = "https://archive.today"

// DefaultArchiveTodayDomains are the hosts archive.today serves snapshots from.
var DefaultArchiveTodayDomains = []string{"archive.today", "archive.is"}

// alreadySavedMarker appears on the page returned for a URL archived before.
const alreadySavedMarker = "already been saved"

// ArchiveToday submits URLs through archive.today's submission form.
type ArchiveToday struct {
	baseURL string
	domains []string
	base    http.Client
	policy  RetryPolicy
	logger  *zap.Logger
}

// NewArchiveToday builds the archive.today service from cfg. Every non-200
// status is retried, as are transport errors.
func NewArchiveToday(cfg Config) *ArchiveToday {
	cfg = cfg.withDefaults()
	return &ArchiveToday{
		baseURL: trimSlash(cfg.ArchiveTodayBaseURL),
		domains: cfg.ArchiveTodayDomains,
		base:    http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		policy: RetryPolicy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     ExponentialBackoff,
			RetryStatus: RetryAnyStatus,
			Sleep:       cfg.Sleep,
		},
		logger: cfg.Logger.With(zap.String("service", models.ServiceArchiveToday)),
	}
}

// Name implements Service.
func (a *ArchiveToday) Name() string {
	return models.ServiceArchiveToday
}

// Archive implements Service.
func (a *ArchiveToday) Archive(ctx context.Context, target string) models.ServiceResult {
	logger := a.logger.With(zap.String("url", target))
	return a.policy.Run(ctx, logger, func(ctx context.Context) (int, string, error) {
		return a.submit(ctx, target)
	})
}

// session returns a client with a fresh cookie jar.
func (a *ArchiveToday) session() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	client := a.base
	client.Jar = jar
	return &client, nil
}

func (a *ArchiveToday) submit(ctx context.Context, target string) (int, string, error) {
	client, err := a.session()
	if err != nil {
		return 0, "", err
	}

	// The front page hands out the session cookies the submit form expects.
	req, err := newRequest(ctx, http.MethodGet, a.baseURL+"/", nil)
	if err != nil {
		return 0, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, "", err
	}
	discard(resp)

	form := url.Values{"url": {target}}
	req, err = newRequest(ctx, http.MethodPost, a.submitURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err = client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer discard(resp)

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, "", nil
	}

	final := resp.Request.URL
	if a.inDomain(final) && !a.isSubmitURL(final) {
		return resp.StatusCode, final.String(), nil
	}

	body, err := readBody(resp)
	if err != nil {
		return 0, "", err
	}
	hrefs := anchorHrefs(body)

	if href, ok := firstHref(hrefs, func(href string) bool {
		return a.mentionsDomain(href) && strings.Contains(href, target)
	}); ok {
		return resp.StatusCode, href, nil
	}

	if strings.Contains(string(body), alreadySavedMarker) {
		if href, ok := firstHref(hrefs, func(href string) bool {
			return strings.HasPrefix(href, "/") && len(href) > 2
		}); ok {
			return resp.StatusCode, a.baseURL + href, nil
		}
	}

	return resp.StatusCode, a.baseURL + "/" + target, nil
}

func (a *ArchiveToday) submitURL() string {
	return a.baseURL + "/submit/"
}

func (a *ArchiveToday) isSubmitURL(u *url.URL) bool {
	return strings.TrimRight(u.Path, "/") == "/submit"
}

// inDomain reports whether u is served from one of the service's hosts.
func (a *ArchiveToday) inDomain(u *url.URL) bool {
	host := u.Hostname()
	for _, d := range a.domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func (a *ArchiveToday) mentionsDomain(href string) bool {
	for _, d := range a.domains {
		if strings.Contains(href, d) {
			return true
		}
	}
	return false
}
