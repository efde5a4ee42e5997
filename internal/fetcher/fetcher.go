// Package fetcher retrieves company-name lists for bulk import from local
// files, HTTP and FTP sources, in CSV or XLSX form.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher downloads a remote resource.
type Fetcher interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Source opens company-list references regardless of where they live.
type Source struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewSource builds a Source with default HTTP and FTP fetchers.
func NewSource() *Source {
	return &Source{
		HTTP: NewHTTPFetcher(HTTPOptions{}),
		FTP:  NewFTPFetcher(FTPOptions{}),
	}
}

// Open resolves ref as an http(s) URL, an ftp URL, or a local path, and
// returns the content stream plus the lowercase file extension.
func (s *Source) Open(ctx context.Context, ref string) (io.ReadCloser, string, error) {
	u, err := url.Parse(ref)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			rc, err := s.HTTP.Download(ctx, ref)
			return rc, strings.ToLower(path.Ext(u.Path)), err
		case "ftp":
			rc, err := s.FTP.Download(ctx, ref)
			return rc, strings.ToLower(path.Ext(u.Path)), err
		}
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, "", eris.Wrapf(err, "fetcher: open %s", ref)
	}
	return f, strings.ToLower(path.Ext(ref)), nil
}
