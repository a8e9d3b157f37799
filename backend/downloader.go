package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	log "gopkg.in/inconshreveable/log15.v2"
)

const DefaultDownloadTimeout = 30 * time.Second

const defaultUserAgent = "podingest/1.0 (podcast feed ingester)"

// Downloader fetches raw feed documents. It performs exactly one GET per
// call; retry policy belongs to the caller.
type Downloader struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	logger    log.Logger
}

// NewDownloader returns a Downloader that gives up after timeout and reads
// at most maxBytes+1 bytes of a response body so that CheckPayloadSize can
// reject oversized feeds without buffering all of them. maxBytes <= 0
// disables the read limit.
func NewDownloader(timeout time.Duration, maxBytes int64, logger log.Logger) *Downloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}

	return &Downloader{
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
		maxBytes:  maxBytes,
		userAgent: defaultUserAgent,
		logger:    logger,
	}
}

// SetUserAgent overrides the User-Agent header sent with each request.
func (d *Downloader) SetUserAgent(userAgent string) {
	if userAgent != "" {
		d.userAgent = userAgent
	}
}

func (d *Downloader) isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if ctx.Err() != nil {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (d *Downloader) failure(ctx context.Context, feedURL string, err error) error {
	if d.isTimeout(ctx, err) {
		return &DownloadError{URL: feedURL, Timeout: d.timeout, Err: err}
	}
	return &DownloadError{URL: feedURL, Err: err}
}

// Download returns the body of feedURL. Any status other than 200, a
// timeout, or a transport failure yields a *DownloadError. Cancelling ctx
// aborts the request.
func (d *Downloader) Download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &DownloadError{URL: feedURL, Err: err}
	}
	req.Header.Set("User-Agent", d.userAgent)

	startTime := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Warn("download failed", "url", feedURL, "error", err)
		return nil, d.failure(ctx, feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Warn("download bad status", "url", feedURL, "status", resp.StatusCode)
		return nil, &DownloadError{URL: feedURL, StatusCode: resp.StatusCode}
	}

	var r io.Reader = resp.Body
	if d.maxBytes > 0 {
		r = io.LimitReader(resp.Body, d.maxBytes+1)
	}

	body, err := io.ReadAll(r)
	if err != nil {
		d.logger.Warn("download body read failed", "url", feedURL, "error", err)
		return nil, d.failure(ctx, feedURL, fmt.Errorf("unable to read response body: %w", err))
	}

	d.logger.Debug("download succeeded", "url", feedURL, "bytes", len(body), "elapsed", time.Since(startTime))
	return body, nil
}
