package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// RetryPolicy controls transient-failure handling on feed downloads.
type RetryPolicy struct {
	MaxAttempts int
	WaitTime    time.Duration
	MaxWaitTime time.Duration
	Statuses    []int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		WaitTime:    2 * time.Second,
		MaxWaitTime: 15 * time.Second,
		Statuses:    []int{http.StatusTooManyRequests, http.StatusServiceUnavailable},
	}
}

func (p RetryPolicy) IsRetryable(status int) bool {
	for _, s := range p.Statuses {
		if s == status {
			return true
		}
	}
	return false
}

// RateLimitedError signals that the upstream refused the download even after
// retries. Callers treat it as a skip for this run, not a feed failure.
type RateLimitedError struct {
	URL        string
	StatusCode int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited by %s (status %d)", e.URL, e.StatusCode)
}

// FeedBody is an open download stream. The caller owns Reader and must close
// it; IsGzip tells the extractor to decompress on the fly.
type FeedBody struct {
	Reader io.ReadCloser
	IsGzip bool
}

func (b *FeedBody) Close() error {
	return b.Reader.Close()
}

// Fetcher downloads feed documents as streams. The response body is never
// buffered in memory; decompression and record extraction happen downstream.
type Fetcher struct {
	client *resty.Client
	policy RetryPolicy
}

func NewFetcher(userAgent string, timeout time.Duration, policy RetryPolicy) *Fetcher {
	retries := policy.MaxAttempts - 1
	if retries < 0 {
		retries = 0
	}

	client := resty.New().
		SetHeader("User-Agent", userAgent).
		SetTimeout(timeout).
		SetDoNotParseResponse(true).
		SetRetryCount(retries).
		SetRetryWaitTime(policy.WaitTime).
		SetRetryMaxWaitTime(policy.MaxWaitTime).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return policy.IsRetryable(r.StatusCode())
		})

	return &Fetcher{client: client, policy: policy}
}

// Run downloads url and returns the open body stream. Rate limiting that
// persists through all retries surfaces as *RateLimitedError.
func (f *Fetcher) Run(ctx context.Context, url string) (*FeedBody, error) {
	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}

	status := resp.StatusCode()
	if f.policy.IsRetryable(status) {
		resp.RawBody().Close()
		return nil, &RateLimitedError{URL: url, StatusCode: status}
	}
	if status < 200 || status >= 300 {
		resp.RawBody().Close()
		return nil, fmt.Errorf("failed to fetch %s: HTTP %d", url, status)
	}

	return &FeedBody{
		Reader: resp.RawBody(),
		IsGzip: detectGzip(url, resp.Header()),
	}, nil
}

// detectGzip decides whether the body needs decompression, from the response
// headers first and the URL extension as a fallback.
func detectGzip(url string, header http.Header) bool {
	if strings.Contains(strings.ToLower(header.Get("Content-Type")), "gzip") {
		return true
	}
	if strings.Contains(strings.ToLower(header.Get("Content-Encoding")), "gzip") {
		return true
	}
	base := url
	if i := strings.IndexAny(base, "?#"); i != -1 {
		base = base[:i]
	}
	return strings.HasSuffix(strings.ToLower(base), ".gz")
}
