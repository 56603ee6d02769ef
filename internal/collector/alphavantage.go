package collector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"StockPipeline/internal/model"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL          = "https://www.alphavantage.co"
	DefaultMaxAttempts      = 3
	DefaultRetryDelay       = 2 * time.Second
	DefaultQuotaCooldown    = 60 * time.Second
	DefaultMaxNoticeRetries = 1

	fieldErrorMessage = "Error Message"
	fieldNote         = "Note"
	fieldInformation  = "Information"
)

// AlphaVantageFetcher implements Fetcher using the Alpha Vantage query API.
type AlphaVantageFetcher struct {
	BaseURL          string
	APIKey           string
	OutputSize       string
	Client           *http.Client
	MaxAttempts      int
	RetryDelay       time.Duration
	QuotaCooldown    time.Duration
	MaxNoticeRetries int
	Sleep            SleepFunc
}

// Option configures an AlphaVantageFetcher.
type Option func(*AlphaVantageFetcher)

// WithBaseURL overrides the provider host.
func WithBaseURL(baseURL string) Option {
	return func(f *AlphaVantageFetcher) { f.BaseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient replaces the shared HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *AlphaVantageFetcher) { f.Client = c }
}

// WithRetry sets the transport retry budget and the delay between attempts.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(f *AlphaVantageFetcher) {
		f.MaxAttempts = attempts
		f.RetryDelay = delay
	}
}

// WithQuotaCooldown sets how long to back off after a quota notice and how
// many notice cycles are allowed per fetch.
func WithQuotaCooldown(cooldown time.Duration, maxRetries int) Option {
	return func(f *AlphaVantageFetcher) {
		f.QuotaCooldown = cooldown
		f.MaxNoticeRetries = maxRetries
	}
}

// WithSleep replaces the wait used for retry delays and cooldowns.
func WithSleep(sleep SleepFunc) Option {
	return func(f *AlphaVantageFetcher) { f.Sleep = sleep }
}

// NewAlphaVantageFetcher creates a fetcher with optional proxy support.
// An empty apiKey is a configuration error.
func NewAlphaVantageFetcher(apiKey, proxyURL string, opts ...Option) (*AlphaVantageFetcher, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &model.ConfigurationError{Message: "alpha vantage api key is required"}
	}
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	f := &AlphaVantageFetcher{
		BaseURL:    DefaultBaseURL,
		APIKey:     apiKey,
		OutputSize: "compact",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		MaxAttempts:      DefaultMaxAttempts,
		RetryDelay:       DefaultRetryDelay,
		QuotaCooldown:    DefaultQuotaCooldown,
		MaxNoticeRetries: DefaultMaxNoticeRetries,
		Sleep:            SleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.MaxAttempts < 1 {
		f.MaxAttempts = 1
	}
	if f.MaxNoticeRetries < 0 {
		f.MaxNoticeRetries = 0
	}
	return f, nil
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

// FetchDaily returns the raw TIME_SERIES_DAILY payload for symbol.
//
// Transport failures are retried up to MaxAttempts with RetryDelay between
// attempts. A quota notice triggers a cooldown and a fresh request, bounded
// by MaxNoticeRetries and independent of the transport budget. An explicit
// provider error is returned immediately.
func (f *AlphaVantageFetcher) FetchDaily(ctx context.Context, symbol model.Symbol) (RawResponse, error) {
	notices := 0
	for {
		body, err := f.fetchWithRetry(ctx, symbol)
		if err != nil {
			return nil, err
		}

		if msg := gjson.GetBytes(body, fieldErrorMessage); msg.Exists() {
			return nil, &model.ProviderError{Symbol: symbol, Message: msg.String()}
		}

		notice := gjson.GetBytes(body, fieldNote)
		if !notice.Exists() {
			notice = gjson.GetBytes(body, fieldInformation)
		}
		if notice.Exists() {
			if notices >= f.MaxNoticeRetries {
				return nil, &model.FetchError{
					Symbol:   symbol,
					Attempts: notices + 1,
					Err:      fmt.Errorf("%w: %s", model.ErrQuotaNotice, notice.String()),
				}
			}
			notices++
			log.Printf("[WARN] %s: provider notice for %s: %s; cooling down %v",
				f.Name(), symbol, notice.String(), f.QuotaCooldown)
			if err := f.sleep(ctx, f.QuotaCooldown); err != nil {
				return nil, &model.FetchError{Symbol: symbol, Attempts: notices, Err: err}
			}
			continue
		}

		log.Printf("[INFO] %s: fetched daily series for %s", f.Name(), symbol)
		return body, nil
	}
}

func (f *AlphaVantageFetcher) fetchWithRetry(ctx context.Context, symbol model.Symbol) (RawResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= f.MaxAttempts; attempt++ {
		body, err := f.doRequest(ctx, symbol)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, &model.FetchError{Symbol: symbol, Attempts: attempt, Err: ctx.Err()}
		}
		if attempt == f.MaxAttempts {
			break
		}
		log.Printf("[WARN] %s: fetch %s failed (attempt %d/%d): %v, retrying in %v",
			f.Name(), symbol, attempt, f.MaxAttempts, err, f.RetryDelay)
		if err := f.sleep(ctx, f.RetryDelay); err != nil {
			return nil, &model.FetchError{Symbol: symbol, Attempts: attempt, Err: err}
		}
	}
	return nil, &model.FetchError{Symbol: symbol, Attempts: f.MaxAttempts, Err: lastErr}
}

func (f *AlphaVantageFetcher) doRequest(ctx context.Context, symbol model.Symbol) (RawResponse, error) {
	q := url.Values{}
	q.Set("function", "TIME_SERIES_DAILY")
	q.Set("symbol", string(symbol))
	q.Set("apikey", f.APIKey)
	q.Set("outputsize", f.OutputSize)
	q.Set("datatype", "json")
	endpoint := f.BaseURL + "/query?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", redactKey(err, f.APIKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, truncate(body, 200))
	}
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return nil, fmt.Errorf("malformed body: %s", truncate(body, 200))
	}
	return body, nil
}

func (f *AlphaVantageFetcher) sleep(ctx context.Context, d time.Duration) error {
	if f.Sleep == nil {
		return SleepContext(ctx, d)
	}
	return f.Sleep(ctx, d)
}

// redactKey strips the api key from url errors so it never reaches the logs.
func redactKey(err error, key string) error {
	var uerr *url.Error
	if key == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{Op: uerr.Op, URL: strings.ReplaceAll(uerr.URL, key, "REDACTED"), Err: uerr.Err}
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
