package crawler

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pagemirror/internal/metrics"
	"pagemirror/internal/models"
)

// Fetcher retrieves one absolute URL. Components receive it explicitly; there
// is no package-level client.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*models.FetchedDocument, error)
}

type FetcherFunc func(ctx context.Context, rawURL string) (*models.FetchedDocument, error)

func (f FetcherFunc) Fetch(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
	return f(ctx, rawURL)
}

// FetchError reports an unreachable page or asset: bad URL, transport failure
// or a status outside 200-399.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Reason())
}

// Reason describes the failure without the URL, for callers that already
// print it.
func (e *FetchError) Reason() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("http status %d", e.StatusCode)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return "unknown error"
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

var (
	// ErrInvalidURL is shared by every component that rejects a URL lacking a
	// scheme or host.
	ErrInvalidURL   = errors.New("invalid url")
	ErrBodyTooLarge = errors.New("response body exceeds size cap")
)

type Options struct {
	Timeout     time.Duration
	DialTimeout time.Duration
	SizeCap     int64
	UserAgent   string
	// RPS limits outgoing requests per second. Zero disables the limit.
	RPS   float64
	Burst int
}

type HTTPClient struct {
	client    *http.Client
	sizeCap   int64
	userAgent string
	limiter   *rate.Limiter
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.SizeCap <= 0 {
		opts.SizeCap = 10 * 1024 * 1024
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "pagemirror/1.0"
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &HTTPClient{
		client: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		sizeCap:   opts.SizeCap,
		userAgent: opts.UserAgent,
		limiter:   rate.NewLimiter(limit, opts.Burst),
	}
}

func (h *HTTPClient) Fetch(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
	start := time.Now()
	doc, err := h.fetch(ctx, rawURL)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.Fetches.WithLabelValues("error").Inc()
		return nil, err
	}
	doc.Elapsed = time.Since(start)
	metrics.Fetches.WithLabelValues("ok").Inc()
	return doc, nil
}

func (h *HTTPClient) fetch(ctx context.Context, rawURL string) (*models.FetchedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, &FetchError{URL: rawURL, Err: ErrInvalidURL}
	}
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &FetchError{URL: rawURL, Err: err}
		}
		defer gz.Close()
		body = gz
	}

	// read one byte past the cap so oversized bodies fail instead of truncating
	data, err := io.ReadAll(io.LimitReader(body, h.sizeCap+1))
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	if int64(len(data)) > h.sizeCap {
		return nil, &FetchError{URL: rawURL, Err: ErrBodyTooLarge}
	}

	return &models.FetchedDocument{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		Body:        data,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
