package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/pluginsync/internal/domain/model"
	"github.com/ericfisherdev/pluginsync/internal/domain/port/driven"
	"github.com/ericfisherdev/pluginsync/internal/metrics"
)

const (
	stagingSuffix = ".temp"
	copyChunk     = 32 << 10
)

// Download streams the release's newest installable asset into destDir. The body is
// written to a "<name>.temp" sibling which is renamed over the final path only after
// the stream completes; on failure the staging file is removed and any previously
// installed file is left untouched. Authenticated clients fetch through the asset
// API so private repositories work; others use the public browser URL.
func (c *Client) Download(ctx context.Context, rel *model.Release, destDir string, progress driven.ProgressFunc) (string, error) {
	if rel == nil {
		return "", fmt.Errorf("download: %w", driven.ErrNoInstallableAsset)
	}

	asset, ok := rel.LatestInstallable()
	if !ok {
		return "", fmt.Errorf("%s %s: %w", rel.FullName(), rel.TagName, driven.ErrNoInstallableAsset)
	}

	fileName := filepath.Base(asset.Name)
	if fileName == "." || fileName == ".." || fileName == string(filepath.Separator) {
		return "", fmt.Errorf("asset name %q: %w", asset.Name, driven.ErrNoInstallableAsset)
	}

	var op Operation
	switch {
	case c.authenticated && asset.ID != 0:
		op = c.assetOperation(rel.Owner, rel.Repo, asset.ID)
	case asset.BrowserURL != "":
		op = c.getOperation(asset.BrowserURL, "application/octet-stream")
	default:
		return "", fmt.Errorf("asset %s has no download url: %w", asset.Name, driven.ErrNoInstallableAsset)
	}

	start := time.Now()
	resp, err := c.exec.Do(ctx, op)
	countRequest("asset", resp, err)
	if err != nil {
		if statusOf(resp) == http.StatusUnauthorized {
			return "", fmt.Errorf("downloading %s: %w", asset.Name, driven.ErrAuthentication)
		}
		return "", fmt.Errorf("downloading %s: %w", asset.Name, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating plugins directory: %w", err)
	}

	total := resp.ContentLength
	if total <= 0 {
		total = asset.Size
	}

	relay := startProgress(progress)
	finalPath := filepath.Join(destDir, fileName)
	written, err := stage(ctx, resp.Body, finalPath+stagingSuffix, total, relay)
	if err != nil {
		relay.stop()
		return "", fmt.Errorf("downloading %s: %w", asset.Name, err)
	}

	if err := os.Rename(finalPath+stagingSuffix, finalPath); err != nil {
		relay.stop()
		_ = os.Remove(finalPath + stagingSuffix)
		return "", fmt.Errorf("installing %s: %w", fileName, err)
	}

	relay.report(1)
	relay.stop()

	metrics.DownloadedBytesTotal.Add(float64(written))
	metrics.DownloadDurationSeconds.Observe(time.Since(start).Seconds())

	slog.Info("release asset installed",
		"repo", rel.FullName(),
		"tag", rel.TagName,
		"file", fileName,
		"bytes", written,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return fileName, nil
}

// stage copies body into path, reporting progress against total. The file is removed
// unless the copy and close both succeed.
func stage(ctx context.Context, body io.Reader, path string, total int64, relay *progressRelay) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create staging file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			_ = f.Close()
			_ = os.Remove(path)
		}
	}()

	var written int64
	buf := make([]byte, copyChunk)
	for {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("write staging file: %w", err)
			}
			written += int64(n)
			if total > 0 {
				relay.report(min(float64(written)/float64(total), 1))
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return written, fmt.Errorf("read response body: %w", readErr)
		}
	}

	if err := f.Sync(); err != nil {
		return written, fmt.Errorf("sync staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close staging file: %w", err)
	}

	cleanupNeeded = false
	return written, nil
}

// assetOperation downloads through the release asset API. Redirects to the storage
// host are followed by the unauthenticated client so the token is not forwarded.
func (c *Client) assetOperation(owner, repo string, id int64) Operation {
	return func(ctx context.Context) (*http.Response, error) {
		rc, _, err := c.gh.Repositories.DownloadReleaseAsset(ctx, owner, repo, id, c.plain)
		if err != nil {
			return errorResponse(err), err
		}
		return &http.Response{StatusCode: http.StatusOK, Body: rc, ContentLength: -1}, nil
	}
}

// getOperation issues an unauthenticated GET. Non-2xx responses are returned with a
// StatusError so the executor can decide whether to retry.
func (c *Client) getOperation(rawURL, accept string) Operation {
	return func(ctx context.Context) (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}

		resp, err := c.plain.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			if !isRetryableStatus(resp.StatusCode) {
				drainAndClose(resp.Body)
			}
			return resp, &StatusError{StatusCode: resp.StatusCode}
		}
		return resp, nil
	}
}

// errorResponse extracts the HTTP response carried by a go-github error.
func errorResponse(err error) *http.Response {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) {
		return errResp.Response
	}
	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return rateErr.Response
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return abuseErr.Response
	}
	return nil
}

// progressRelay forwards the latest progress value to a callback on its own
// goroutine. report never blocks; an unread value is replaced by a newer one.
type progressRelay struct {
	ch   chan float64
	done chan struct{}
}

func startProgress(fn driven.ProgressFunc) *progressRelay {
	if fn == nil {
		return nil
	}

	r := &progressRelay{
		ch:   make(chan float64, 1),
		done: make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		for f := range r.ch {
			fn(f)
		}
	}()
	return r
}

func (r *progressRelay) report(f float64) {
	if r == nil {
		return
	}
	select {
	case r.ch <- f:
		return
	default:
	}
	// Drop the stale value and retry once; report has a single caller.
	select {
	case <-r.ch:
	default:
	}
	select {
	case r.ch <- f:
	default:
	}
}

// stop closes the relay and waits for the callback to drain.
func (r *progressRelay) stop() {
	if r == nil {
		return
	}
	close(r.ch)
	<-r.done
}
