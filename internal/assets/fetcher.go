package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"designer/internal/infra"
)

// UserAgent identifies the service on every outbound fetch.
const UserAgent = infra.ServiceName + "/1.0"

// ErrTooLarge is returned when a response body exceeds the configured cap.
var ErrTooLarge = errors.New("response body exceeds size limit")

// Download is the result of a completed HTTP exchange. Body is only read for
// 2xx responses.
type Download struct {
	Status      int
	Body        []byte
	ContentType string
}

// OK reports whether the upstream answered with a 2xx status.
func (d *Download) OK() bool {
	return d != nil && d.Status >= 200 && d.Status < 300
}

type FetcherOptions struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	MaxBytes   int64
	UserAgent  string
}

// HTTPFetcher performs bounded GET requests against remote image hosts.
type HTTPFetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

func NewHTTPFetcher(opts FetcherOptions) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    opts.HTTPClient,
		timeout:   opts.Timeout,
		maxBytes:  opts.MaxBytes,
		userAgent: opts.UserAgent,
	}
	if f.client == nil {
		f.client = &http.Client{}
	}
	if f.timeout <= 0 {
		f.timeout = 10 * time.Second
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 20 << 20
	}
	if f.userAgent == "" {
		f.userAgent = UserAgent
	}
	return f
}

// Get fetches rawURL. Transport failures, timeouts and oversized bodies are
// errors; any HTTP status is returned in the Download.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Download, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("fetch: invalid url %q", rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	dl := &Download{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type")}
	if !dl.OK() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return dl, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch: %w (%d bytes)", ErrTooLarge, f.maxBytes)
	}
	dl.Body = data
	return dl, nil
}
