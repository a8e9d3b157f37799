package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloaderSuccess(t *testing.T) {
	var userAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent = r.UserAgent()
		fmt.Fprint(w, exampleFeed)
	}))
	defer server.Close()

	d := NewDownloader(time.Second, 0, discardLogger())
	body, err := d.Download(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, exampleFeed, string(body))
	assert.Equal(t, defaultUserAgent, userAgent)

	d.SetUserAgent("custom-agent/2.0")
	_, err = d.Download(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "custom-agent/2.0", userAgent)
}

func TestDownloaderBadStatus(t *testing.T) {
	tests := []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusNoContent, http.StatusNotModified}

	for _, status := range tests {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))
			defer server.Close()

			d := NewDownloader(time.Second, 0, discardLogger())
			_, err := d.Download(context.Background(), server.URL)

			var downloadErr *DownloadError
			require.ErrorAs(t, err, &downloadErr)
			assert.Equal(t, status, downloadErr.StatusCode)
			assert.Equal(t, server.URL, downloadErr.URL)
			assert.Zero(t, downloadErr.Timeout)
			assert.Contains(t, err.Error(), fmt.Sprint(status))
		})
	}
}

func TestDownloaderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	d := NewDownloader(50*time.Millisecond, 0, discardLogger())
	_, err := d.Download(context.Background(), server.URL)

	var downloadErr *DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Equal(t, 50*time.Millisecond, downloadErr.Timeout)
	assert.Zero(t, downloadErr.StatusCode)
	assert.Contains(t, err.Error(), "timed out")
}

func TestDownloaderCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, exampleFeed)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(time.Second, 0, discardLogger())
	_, err := d.Download(ctx, server.URL)

	var downloadErr *DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Zero(t, downloadErr.Timeout)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloaderLimitsBodyRead(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	d := NewDownloader(time.Second, 10, discardLogger())
	body, err := d.Download(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, body, 11)
}

func TestDownloaderInvalidURL(t *testing.T) {
	d := NewDownloader(0, 0, discardLogger())
	assert.Equal(t, DefaultDownloadTimeout, d.timeout)

	_, err := d.Download(context.Background(), "://not a url")
	var downloadErr *DownloadError
	require.ErrorAs(t, err, &downloadErr)
	assert.Error(t, downloadErr.Unwrap())
}
