// Package fetch downloads GeoNames dump files into the working directory.
//
// Downloads are staged through a ".lock" suffix and renamed into place on
// completion, so a crashed download never leaves a plausible-looking
// partial file behind. A destination that already exists in any state
// (base, .lock or .done) is never re-fetched.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	gserrors "github.com/geosync/geosync/pkg/errors"
)

// ErrNotFound signals an upstream 4xx: the file does not exist (yet).
// Callers treat it as "try again next invocation".
var ErrNotFound = gserrors.New(gserrors.CodeSourceNotFound, "source file not found upstream")

// Fetcher downloads files over HTTP.
type Fetcher struct {
	client *http.Client

	// Progress draws a byte progress bar on stderr when true.
	Progress bool
}

// New creates a Fetcher with the given request timeout.
func New(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	return &Fetcher{client: &http.Client{Timeout: timeout}}
}

// Download fetches url into dest. It reports whether a fetch actually
// happened: false with a nil error means dest (or a marker for it)
// already exists.
func (f *Fetcher) Download(ctx context.Context, url, dest string) (bool, error) {
	for _, p := range []string{dest, dest + ".lock", dest + ".done"} {
		if _, err := os.Stat(p); err == nil {
			return false, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, gserrors.Wrap(err, gserrors.CodeDownloadFailed, "building request")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return false, gserrors.Wrap(err, gserrors.CodeDownloadFailed, "fetching "+url)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return false, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return false, gserrors.Newf(gserrors.CodeDownloadFailed,
			"fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	lock := dest + ".lock"
	out, err := os.Create(lock)
	if err != nil {
		return false, fmt.Errorf("staging download: %w", err)
	}

	var w io.Writer = out
	if f.Progress {
		bar := progressbar.DefaultBytes(resp.ContentLength, "  "+url)
		w = io.MultiWriter(out, bar)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		out.Close()
		os.Remove(lock)
		return false, gserrors.Wrap(err, gserrors.CodeDownloadFailed, "writing "+dest)
	}
	if err := out.Close(); err != nil {
		os.Remove(lock)
		return false, err
	}

	if err := os.Rename(lock, dest); err != nil {
		return false, err
	}
	return true, nil
}
