// Package fetcher downloads catalog resources over HTTP and FTP and reads the
// delimited text, workbook, and archive formats they arrive in.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)

	// ContentLength asks the server for the size of the resource without downloading it.
	ContentLength(ctx context.Context, url string) (int64, error)
}

// Downloader routes URLs to the fetcher for their scheme and names local
// copies after the last URL path segment.
type Downloader struct {
	http Fetcher
	ftp  Fetcher
}

// NewDownloader creates a Downloader. ftp may be nil to reject ftp:// URLs.
func NewDownloader(httpFetcher, ftpFetcher Fetcher) *Downloader {
	return &Downloader{http: httpFetcher, ftp: ftpFetcher}
}

func (d *Downloader) fetcherFor(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: parse url")
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return d.http, nil
	case "ftp":
		if d.ftp != nil {
			return d.ftp, nil
		}
	}
	return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
}

// Fetch downloads rawURL into dir and returns the local path.
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	f, err := d.fetcherFor(rawURL)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create download dir")
	}
	dest := filepath.Join(dir, FileName(rawURL))
	if _, err := f.DownloadToFile(ctx, rawURL, dest); err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// Open streams rawURL.
func (d *Downloader) Open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := d.fetcherFor(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// ContentLength asks the server for the size of rawURL.
func (d *Downloader) ContentLength(ctx context.Context, rawURL string) (int64, error) {
	f, err := d.fetcherFor(rawURL)
	if err != nil {
		return 0, err
	}
	return f.ContentLength(ctx, rawURL)
}

// FileName derives a local file name from the URL path, ignoring any query.
func FileName(rawURL string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}
