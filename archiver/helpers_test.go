package archiver

import (
	"context"
	"net/http/httptest"
	"sync"
	"time"
)

// sleepRecorder is a Sleeper that returns immediately and remembers what it was asked.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (r *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.sleeps = append(r.sleeps, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *sleepRecorder) Durations() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.sleeps...)
}

func testConfig(srv *httptest.Server, sleeper *sleepRecorder, domains ...string) Config {
	if len(domains) == 0 {
		domains = []string{"archive.test"}
	}
	return Config{
		Timeout:             5 * time.Second,
		Sleep:               sleeper.Sleep,
		Delay:               NoDelay,
		WaybackBaseURL:      srv.URL,
		ArchiveTodayBaseURL: srv.URL,
		ArchiveTodayDomains: domains,
	}
}
