package route

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxFileSize caps how much of a route file is read
const maxFileSize = 32 << 20

// Source fetches the raw bytes of a route file
type Source interface {
	Fetch(ctx context.Context, fileURL string) ([]byte, error)
}

// Fetcher downloads route files through the backend's same-origin proxy,
// GET <proxyBase>/api/v2/route-file-proxy?url=<escaped>. With an empty
// proxyBase the file URL is fetched directly.
type Fetcher struct {
	client    *http.Client
	proxyBase string
	maxSize   int64
}

// NewFetcher creates a fetcher. A nil client gets a 10 second timeout.
func NewFetcher(client *http.Client, proxyBase string) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Fetcher{
		client:    client,
		proxyBase: strings.TrimRight(proxyBase, "/"),
		maxSize:   maxFileSize,
	}
}

// ProxyURL returns the URL the fetcher actually requests for fileURL
func (f *Fetcher) ProxyURL(fileURL string) string {
	if f.proxyBase == "" {
		return fileURL
	}
	return f.proxyBase + "/api/v2/route-file-proxy?url=" + url.QueryEscape(fileURL)
}

// Fetch downloads the file. Any transport error, non-2xx status or body
// larger than maxFileSize is reported as ErrFetch. There is no retry.
func (f *Fetcher) Fetch(ctx context.Context, fileURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.ProxyURL(fileURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrFetch, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %w", ErrFetch, err)
	}
	if int64(len(data)) > f.maxSize {
		return nil, fmt.Errorf("%w: file too large (over %d bytes)", ErrFetch, f.maxSize)
	}
	return data, nil
}
