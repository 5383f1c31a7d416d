package archiver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"link-archiver/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	name   string
	result models.ServiceResult
	calls  []string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Archive(ctx context.Context, target string) models.ServiceResult {
	f.calls = append(f.calls, target)
	return f.result
}

type delayCall struct{ lo, hi time.Duration }

func TestSubmitterArchive(t *testing.T) {
	t.Run("Every service is reported", func(t *testing.T) {
		a := &fakeService{name: models.ServiceWayback, result: models.Succeeded("https://web.archive.org/web/1/x")}
		b := &fakeService{name: models.ServiceArchiveToday, result: models.Failed()}

		var delays []delayCall
		cfg := Config{Delay: func(ctx context.Context, lo, hi time.Duration) error {
			delays = append(delays, delayCall{lo, hi})
			return nil
		}}

		results := NewWithServices(cfg, a, b).Archive(context.Background(), "https://x.example.com")

		assert.Len(t, results, 2)
		assert.True(t, results[models.ServiceWayback].Success)
		assert.False(t, results[models.ServiceArchiveToday].Success)
		assert.Equal(t, []string{"https://x.example.com"}, a.calls)
		assert.Equal(t, []string{"https://x.example.com"}, b.calls)
		assert.Equal(t, []delayCall{
			{MinLeadDelay, MaxLeadDelay},
			{MinBetweenDelay, MaxBetweenDelay},
		}, delays)
	})

	t.Run("Cancelled context still reports every service", func(t *testing.T) {
		a := &fakeService{name: models.ServiceWayback, result: models.Succeeded("x")}
		b := &fakeService{name: models.ServiceArchiveToday, result: models.Succeeded("y")}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		results := NewWithServices(Config{Delay: NoDelay}, a, b).Archive(ctx, "https://x.example.com")

		assert.Equal(t, map[string]models.ServiceResult{
			models.ServiceWayback:      models.Failed(),
			models.ServiceArchiveToday: models.Failed(),
		}, results)
		assert.Empty(t, a.calls)
		assert.Empty(t, b.calls)
	})
}

func TestNewSubmitterAgainstFailingServices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	results := New(testConfig(srv, &sleepRecorder{})).Archive(context.Background(), target)

	require.Len(t, results, 2)
	assert.Equal(t, models.Failed(), results[models.ServiceWayback])
	assert.Equal(t, models.Failed(), results[models.ServiceArchiveToday])
}

func TestRandomDelayBounds(t *testing.T) {
	sleeper := &sleepRecorder{}
	delay := RandomDelay(sleeper.Sleep)
	for i := 0; i < 200; i++ {
		require.NoError(t, delay(context.Background(), MinBetweenDelay, MaxBetweenDelay))
	}
	for _, d := range sleeper.Durations() {
		assert.GreaterOrEqual(t, d, MinBetweenDelay)
		assert.LessOrEqual(t, d, MaxBetweenDelay)
	}

	require.NoError(t, delay(context.Background(), time.Second, time.Second))
	durations := sleeper.Durations()
	assert.Equal(t, time.Second, durations[len(durations)-1])
}

func TestRandomUserAgent(t *testing.T) {
	for i := 0; i < 20; i++ {
		assert.Contains(t, UserAgents, RandomUserAgent())
	}
}

func TestAnchorHrefs(t *testing.T) {
	hrefs := anchorHrefs([]byte(`<html><body><a href="/one">1</a><div><a name="x">no href</a><a href="https://two">2</a></div></body></html>`))
	assert.Equal(t, []string{"/one", "https://two"}, hrefs)
}
