// Package fetcher downloads and parses source payloads over HTTP and
// FTP, with streaming CSV, JSON, and XLSX decoding.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body. The
	// caller must close the returned reader.
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
