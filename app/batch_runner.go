package app

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"commonmetrics/domain/report"
)

// defaultBatchWeight caps concurrent model fits. Clustered fits run a
// numeric optimizer, so the ceiling is deliberately small.
const defaultBatchWeight = 4

// BatchRunner estimates several metrics against the same dataset
// concurrently under a weighted semaphore.
type BatchRunner struct {
	service *MetricService
	sem     *semaphore.Weighted
}

// NewBatchRunner creates a batch runner with the given concurrency ceiling.
// A non-positive limit falls back to the default.
func NewBatchRunner(service *MetricService, limit int64) *BatchRunner {
	if limit <= 0 {
		limit = defaultBatchWeight
	}
	return &BatchRunner{service: service, sem: semaphore.NewWeighted(limit)}
}

// BatchResult is one metric's outcome within a batch run.
type BatchResult struct {
	Metric   string
	Report   *report.MeanReport
	Err      error
	Duration time.Duration
}

// RunMeans runs MetricMean for every requested metric against the shared
// table. Each metric's request is evaluated independently: one metric's
// validation failure never aborts the others. Results come back in request
// order.
func (b *BatchRunner) RunMeans(ctx context.Context, reqs []MeanRequest) []BatchResult {
	started := time.Now()
	log.Printf("[BatchRunner] starting batch of %d metric(s)", len(reqs))

	results := make([]BatchResult, len(reqs))
	var wg sync.WaitGroup
	for i, req := range reqs {
		if err := b.sem.Acquire(ctx, 1); err != nil {
			results[i] = BatchResult{Metric: req.Metric, Err: err}
			continue
		}
		wg.Add(1)
		go func(i int, req MeanRequest) {
			defer wg.Done()
			defer b.sem.Release(1)
			jobStart := time.Now()
			rep, err := b.service.MetricMean(ctx, req)
			results[i] = BatchResult{
				Metric:   req.Metric,
				Report:   rep,
				Err:      err,
				Duration: time.Since(jobStart),
			}
		}(i, req)
	}
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	log.Printf("[BatchRunner] batch complete: %d ok, %d failed, runtime=%dms",
		len(results)-failed, failed, time.Since(started).Milliseconds())
	return results
}
