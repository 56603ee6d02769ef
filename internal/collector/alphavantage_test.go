package collector_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"StockPipeline/internal/collector"
	"StockPipeline/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{"Time Series (Daily)": {"2024-01-02": {"1. open":"10","2. high":"12","3. low":"9","4. close":"11","5. volume":"1000"}}}`

// sleepRecorder captures waits instead of blocking.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return nil
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// scriptedServer answers each request with the next scripted response; the
// last one repeats.
func scriptedServer(t *testing.T, responses ...func(http.ResponseWriter)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(hits.Add(1)) - 1
		if n >= len(responses) {
			n = len(responses) - 1
		}
		responses[n](w)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func reply(status int, body string) func(http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func newTestFetcher(t *testing.T, baseURL string, rec *sleepRecorder) *collector.AlphaVantageFetcher {
	t.Helper()
	f, err := collector.NewAlphaVantageFetcher("demo-key", "",
		collector.WithBaseURL(baseURL),
		collector.WithSleep(rec.sleep),
	)
	require.NoError(t, err)
	return f
}

func TestNewAlphaVantageFetcher_RequiresKey(t *testing.T) {
	t.Parallel()

	f, err := collector.NewAlphaVantageFetcher("  ", "")
	require.Nil(t, f)
	var cfgErr *model.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestFetchDaily_RequestParameters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Assert: the daily compact json series is requested for the symbol.
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/query", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "TIME_SERIES_DAILY", q.Get("function"))
		assert.Equal(t, "AAPL", q.Get("symbol"))
		assert.Equal(t, "demo-key", q.Get("apikey"))
		assert.Equal(t, "compact", q.Get("outputsize"))
		assert.Equal(t, "json", q.Get("datatype"))
		_, _ = w.Write([]byte(okBody))
	}))
	t.Cleanup(srv.Close)

	rec := &sleepRecorder{}
	body, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "AAPL")

	require.NoError(t, err)
	require.JSONEq(t, okBody, string(body))
	require.Empty(t, rec.recorded())
}

func TestFetchDaily_RetriesTransportFailures(t *testing.T) {
	t.Parallel()

	srv, hits := scriptedServer(t, reply(http.StatusServiceUnavailable, "busy"))
	rec := &sleepRecorder{}

	body, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "AAPL")

	require.Nil(t, body)
	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.Equal(t, 3, fetchErr.Attempts)
	require.Equal(t, model.Symbol("AAPL"), fetchErr.Symbol)
	require.EqualValues(t, 3, hits.Load())
	require.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, rec.recorded())
}

func TestFetchDaily_RecoversAfterMalformedBody(t *testing.T) {
	t.Parallel()

	srv, hits := scriptedServer(t,
		reply(http.StatusOK, `{"Time Series (Daily)": {`),
		reply(http.StatusOK, okBody),
	)
	rec := &sleepRecorder{}

	body, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "MSFT")

	require.NoError(t, err)
	require.NotEmpty(t, body)
	require.EqualValues(t, 2, hits.Load())
	require.Equal(t, []time.Duration{2 * time.Second}, rec.recorded())
}

func TestFetchDaily_ProviderErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	srv, hits := scriptedServer(t,
		reply(http.StatusOK, `{"Error Message": "Invalid API call. Please retry or visit the documentation."}`),
	)
	rec := &sleepRecorder{}

	_, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "NOPE")

	var provErr *model.ProviderError
	require.ErrorAs(t, err, &provErr)
	require.Contains(t, provErr.Message, "Invalid API call")
	require.EqualValues(t, 1, hits.Load())
	require.Empty(t, rec.recorded())
}

func TestFetchDaily_QuotaNoticeCoolsDownOnce(t *testing.T) {
	t.Parallel()

	srv, hits := scriptedServer(t,
		reply(http.StatusOK, `{"Note": "Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`),
		reply(http.StatusOK, okBody),
	)
	rec := &sleepRecorder{}

	body, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "AAPL")

	require.NoError(t, err)
	require.Len(t, collector.Parse(body, "AAPL"), 1)
	require.EqualValues(t, 2, hits.Load())
	require.Equal(t, []time.Duration{60 * time.Second}, rec.recorded())
}

func TestFetchDaily_PersistentNoticeFails(t *testing.T) {
	t.Parallel()

	srv, hits := scriptedServer(t,
		reply(http.StatusOK, `{"Information": "API rate limit reached."}`),
	)
	rec := &sleepRecorder{}

	_, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "AAPL")

	var fetchErr *model.FetchError
	require.ErrorAs(t, err, &fetchErr)
	require.True(t, errors.Is(err, model.ErrQuotaNotice))
	require.EqualValues(t, 2, hits.Load())
	require.Equal(t, []time.Duration{60 * time.Second}, rec.recorded())
}

func TestFetchDaily_NoticeDoesNotConsumeRetryBudget(t *testing.T) {
	t.Parallel()

	// Two transport failures, a notice, then two more failures and success:
	// the budget restarts after the cooldown.
	srv, hits := scriptedServer(t,
		reply(http.StatusBadGateway, ""),
		reply(http.StatusBadGateway, ""),
		reply(http.StatusOK, `{"Note": "slow down"}`),
		reply(http.StatusBadGateway, ""),
		reply(http.StatusBadGateway, ""),
		reply(http.StatusOK, okBody),
	)
	rec := &sleepRecorder{}

	_, err := newTestFetcher(t, srv.URL, rec).FetchDaily(t.Context(), "AAPL")

	require.NoError(t, err)
	require.EqualValues(t, 6, hits.Load())
	require.Equal(t, []time.Duration{
		2 * time.Second, 2 * time.Second,
		60 * time.Second,
		2 * time.Second, 2 * time.Second,
	}, rec.recorded())
}

func TestFetchDaily_NetworkErrorRedactsKey(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	rec := &sleepRecorder{}
	f := newTestFetcher(t, base, rec)
	f.MaxAttempts = 1

	_, err := f.FetchDaily(t.Context(), "AAPL")

	require.Error(t, err)
	require.NotContains(t, err.Error(), "demo-key")
}

func TestPacer_WaitsFixedInterval(t *testing.T) {
	t.Parallel()

	rec := &sleepRecorder{}
	p := &collector.Pacer{Interval: collector.DefaultPaceInterval, Sleep: rec.sleep}

	require.NoError(t, p.Wait(t.Context()))
	require.NoError(t, p.Wait(t.Context()))
	require.Equal(t, []time.Duration{12 * time.Second, 12 * time.Second}, rec.recorded())

	var nilPacer *collector.Pacer
	require.NoError(t, nilPacer.Wait(t.Context()))
}

func TestSleepContext_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := collector.SleepContext(ctx, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
}
