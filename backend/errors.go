package backend

import (
	"fmt"
	"time"
)

// DownloadError is returned when a feed cannot be fetched. Exactly one of
// Timeout, StatusCode, or Err describes the failure.
type DownloadError struct {
	URL        string
	StatusCode int
	Timeout    time.Duration
	Err        error
}

func (e *DownloadError) Error() string {
	switch {
	case e.Timeout != 0:
		return fmt.Sprintf("download of %s timed out after %v", e.URL, e.Timeout)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s returned status %d", e.URL, e.StatusCode)
	default:
		return fmt.Sprintf("download of %s failed: %v", e.URL, e.Err)
	}
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// PayloadTooLargeError is returned by CheckPayloadSize before any parsing
// takes place.
type PayloadTooLargeError struct {
	SizeMB float64
	MaxMB  float64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("rss file is %.2fMB max is %gMB", e.SizeMB, e.MaxMB)
}

// NotAnRSSDocumentError is returned when the root element of a feed is not
// rss. It aborts the whole ingestion run.
type NotAnRSSDocumentError struct {
	Root string
}

func (e *NotAnRSSDocumentError) Error() string {
	return fmt.Sprintf("not an rss document: root element is %q", e.Root)
}
