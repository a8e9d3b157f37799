package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/h5media/podingest/backend/data"
	"golang.org/x/sync/semaphore"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	DefaultMaxMB         = 10
	DefaultMaxConcurrent = 25
)

type IngesterConfig struct {
	MaxMB         float64
	Timeout       time.Duration
	MaxConcurrent int
	OwnerID       int32
	UserAgent     string
}

// IngestResult describes one ingestion run. Errors holds the non-fatal
// errors of the run and is never nil.
type IngestResult struct {
	RunID            string
	FeedURL          string
	PodcastID        int32
	PodcastsSaved    int
	EpisodesInserted int
	EpisodesUpdated  int
	Errors           *ErrorCollector
}

// FeedOutcome pairs a feed of a batch with how its ingestion ended.
type FeedOutcome struct {
	FeedURL string
	Result  *IngestResult
	Err     error
}

type Ingester struct {
	store      data.Store
	config     IngesterConfig
	downloader *Downloader
	logger     log.Logger
}

func NewIngester(store data.Store, config IngesterConfig, logger log.Logger) *Ingester {
	if config.MaxMB <= 0 {
		config.MaxMB = DefaultMaxMB
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}

	downloader := NewDownloader(config.Timeout, maxBytesForMB(config.MaxMB), logger.New("module", "downloader"))
	downloader.SetUserAgent(config.UserAgent)

	return &Ingester{
		store:      store,
		config:     config,
		downloader: downloader,
		logger:     logger,
	}
}

// IngestURL downloads feedURL and ingests it on behalf of ownerID.
func (ing *Ingester) IngestURL(ctx context.Context, feedURL string, ownerID int32) (*IngestResult, error) {
	body, err := ing.downloader.Download(ctx, feedURL)
	if err != nil {
		return newIngestResult(feedURL), err
	}

	return ing.IngestBytes(ctx, feedURL, body, ownerID)
}

// IngestBytes ingests an already downloaded feed document. Oversized bodies
// are rejected before parsing. Records saved before a fatal error stay
// saved; the returned result is never nil.
func (ing *Ingester) IngestBytes(ctx context.Context, feedURL string, body []byte, ownerID int32) (*IngestResult, error) {
	result := newIngestResult(feedURL)
	logger := ing.logger.New("run_id", result.RunID, "url", feedURL, "user_id", ownerID)

	err := CheckPayloadSize(body, ing.config.MaxMB)
	if err != nil {
		logger.Warn("feed rejected", "size", humanize.IBytes(uint64(len(body))), "error", err)
		return result, err
	}

	startTime := time.Now()
	reconciler := NewReconciler(ing.store, result.Errors, logger.New("module", "reconciler"))
	parser := newFeedParser(ctx, feedURL, ownerID, reconciler, result, logger.New("module", "parser"))

	err = parser.parse(body)
	if err != nil {
		logger.Error("ingestion failed", "error", err)
		return result, err
	}

	logger.Info("ingested feed",
		"size", humanize.IBytes(uint64(len(body))),
		"podcast_id", result.PodcastID,
		"inserted", result.EpisodesInserted,
		"updated", result.EpisodesUpdated,
		"errors", result.Errors.Len(),
		"elapsed", time.Since(startTime),
	)
	for _, ec := range result.Errors.Summary() {
		logger.Debug("non-fatal error", "message", ec.Message, "count", ec.Count)
	}

	return result, nil
}

// IngestAll ingests feedURLs with one worker per feed, at most
// MaxConcurrent at a time. Outcomes are returned in the order of feedURLs.
// Cancelling ctx stops feeds that have not started and aborts in-flight
// downloads.
func (ing *Ingester) IngestAll(ctx context.Context, feedURLs []string, ownerID int32) []FeedOutcome {
	outcomes := make([]FeedOutcome, len(feedURLs))
	sem := semaphore.NewWeighted(int64(ing.config.MaxConcurrent))
	wg := &sync.WaitGroup{}

	for i, feedURL := range feedURLs {
		outcomes[i].FeedURL = feedURL

		err := sem.Acquire(ctx, 1)
		if err != nil {
			for j := i; j < len(feedURLs); j++ {
				outcomes[j].FeedURL = feedURLs[j]
				outcomes[j].Result = newIngestResult(feedURLs[j])
				outcomes[j].Err = fmt.Errorf("ingestion of %s not started: %w", feedURLs[j], err)
			}
			break
		}

		wg.Add(1)
		go func(i int, feedURL string) {
			defer wg.Done()
			defer sem.Release(1)

			result, err := ing.IngestURL(ctx, feedURL, ownerID)
			outcomes[i].Result = result
			outcomes[i].Err = err
		}(i, feedURL)
	}

	wg.Wait()

	return outcomes
}

func newIngestResult(feedURL string) *IngestResult {
	return &IngestResult{
		RunID:   uuid.NewString(),
		FeedURL: feedURL,
		Errors:  &ErrorCollector{},
	}
}
