// Package pipeline drives batch processing of images against the remote
// processing service with bounded concurrency.
//
// The input is partitioned into fixed-size chunks; all requests within a
// chunk run concurrently and the whole chunk settles before the next one
// starts. Responses are zipped back to their originating records by index,
// so result order always matches input order regardless of arrival time.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/metrics"
)

// DefaultChunkSize bounds simultaneous in-flight requests. The processing
// service runs a four-worker pool, so larger chunks just queue server-side.
const DefaultChunkSize = 4

// Options tunes one batch run.
type Options struct {
	// Export asks the processor for export output (with invisible
	// watermark embedding) instead of a preview render.
	Export bool
	// FacesFor supplies cached face boxes per image; nil means none.
	FacesFor func(id uuid.UUID) []domain.FaceBox
	// OnProgress receives a progress update after every settled image.
	OnProgress func(domain.BatchProgress)
}

// Outcome is the aggregate of one run. Failed images are excluded from
// Results but counted in Progress; an all-failed batch is the caller's call
// to surface. Stale marks a run superseded by a newer one, whose results
// must be discarded.
type Outcome struct {
	Results []domain.ProcessedResult
	Failed  int
	Stale   bool
}

// Pipeline processes batches. A generation counter resolves the race
// between overlapping runs: in-flight requests of an old run are not
// aborted, but their aggregated results are discarded on completion.
type Pipeline struct {
	processor  domain.Processor
	chunkSize  int
	generation atomic.Uint64
}

// New creates a pipeline. chunkSize <= 0 selects DefaultChunkSize.
func New(processor domain.Processor, chunkSize int) *Pipeline {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Pipeline{processor: processor, chunkSize: chunkSize}
}

// Run processes records in order with the given settings snapshot.
// Cancelling ctx stops new chunks from being issued; the error is returned
// alongside whatever settled before it.
func (p *Pipeline) Run(ctx context.Context, records []*domain.ImageRecord, settings domain.Snapshot, opts Options) (*Outcome, error) {
	generation := p.generation.Add(1)
	total := len(records)
	start := time.Now()

	slog.Info("Batch run started", "images", total, "chunk_size", p.chunkSize, "export", opts.Export)

	slots := make([]*domain.ProcessedResult, total)

	// Progress is serialized under one mutex so observed values are strictly
	// monotone even when a chunk's goroutines settle simultaneously.
	var progressMu sync.Mutex
	completed := 0

	advance := func() {
		progressMu.Lock()
		completed++
		if opts.OnProgress != nil {
			opts.OnProgress(domain.BatchProgress{Completed: completed, Total: total})
		}
		progressMu.Unlock()
	}

	var ctxErr error
	for offset := 0; offset < total; offset += p.chunkSize {
		if err := ctx.Err(); err != nil {
			ctxErr = err
			break
		}

		end := offset + p.chunkSize
		if end > total {
			end = total
		}

		var wg sync.WaitGroup
		for i := offset; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				slots[i] = p.processOne(ctx, records[i], settings, opts)
				advance()
			}(i)
		}
		wg.Wait()
	}

	outcome := &Outcome{}
	for _, slot := range slots {
		if slot != nil {
			outcome.Results = append(outcome.Results, *slot)
		}
	}
	progressMu.Lock()
	outcome.Failed = completed - len(outcome.Results)
	progressMu.Unlock()

	if p.generation.Load() != generation {
		outcome.Stale = true
		metrics.StaleBatchesDiscarded.Inc()
		slog.Info("Batch run superseded, discarding results", "images", total)
		return outcome, ctxErr
	}

	metrics.BatchDuration.Observe(time.Since(start).Seconds())
	slog.Info("Batch run finished",
		"images", total,
		"succeeded", len(outcome.Results),
		"failed", outcome.Failed,
		"duration", time.Since(start),
	)
	return outcome, ctxErr
}

// processOne sends a single image and maps the response. A failure is not
// fatal to the batch: it is logged, counted, and yields no result.
func (p *Pipeline) processOne(ctx context.Context, record *domain.ImageRecord, settings domain.Snapshot, opts Options) *domain.ProcessedResult {
	req := domain.ProcessRequest{
		Image:          record.Payload,
		Settings:       settings,
		Name:           record.DisplayName,
		FontPath:       settings.FontPath,
		EmbedInvisible: opts.Export,
	}
	if opts.FacesFor != nil {
		req.FaceBoxes = opts.FacesFor(record.ID)
	}

	var (
		resp *domain.ProcessResponse
		err  error
	)
	if opts.Export {
		resp, err = p.processor.Export(ctx, req)
	} else {
		resp, err = p.processor.Preview(ctx, req)
	}
	if err != nil {
		metrics.ImagesProcessedTotal.WithLabelValues("failed").Inc()
		slog.Warn("Image processing failed", "image", record.DisplayName, "image_id", record.ID.String(), "error", err)
		return nil
	}

	metrics.ImagesProcessedTotal.WithLabelValues("ok").Inc()
	return &domain.ProcessedResult{
		SourceID:        record.ID,
		DisplayName:     record.DisplayName,
		OriginalPreview: record.Preview.URL(),
		ResultPayload:   resp.Result,
		ResultPreview:   resp.Result,
		ZoneUsed:        resp.ZoneUsed,
		ZoneScore:       resp.ZoneScore,
	}
}
