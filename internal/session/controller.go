// Package session wires the configuration history, image store, placement
// controller, and batch pipeline into one controller behind the HTTP and
// WebSocket surface.
//
// Every state change the controller performs is pushed to the presentation
// layer as an event, so clients render from notifications instead of polling.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/errors"
	"github.com/Leks2000/NinyMark/internal/history"
	"github.com/Leks2000/NinyMark/internal/imagestore"
	"github.com/Leks2000/NinyMark/internal/pipeline"
	"github.com/Leks2000/NinyMark/internal/placement"
)

// renderTimeout caps one placement-triggered preview render.
const renderTimeout = 30 * time.Second

// Options configures a session controller.
type Options struct {
	Processor    domain.Processor
	HistoryStore domain.HistoryStore
	Publisher    domain.EventPublisher
	Clock        clockwork.Clock
	ChunkSize    int
	// HealthPollInterval is how often the processing service is probed.
	// Zero disables the poller.
	HealthPollInterval time.Duration
}

// Controller is the single mutable session. All exported methods are safe
// for concurrent use.
type Controller struct {
	processor domain.Processor
	publisher domain.EventPublisher
	clock     clockwork.Clock

	history   *history.History
	images    *imagestore.Store
	placement *placement.Controller
	pipe      *pipeline.Pipeline

	// detectGroup collapses concurrent detection requests for one image
	// into a single processor call.
	detectGroup singleflight.Group

	// previewLimiter caps how often placement commits re-render the
	// preview, so a burst of clicks does not queue renders.
	previewLimiter *rate.Limiter
	previewMu      sync.Mutex
	previewPending bool

	resultsMu   sync.Mutex
	lastResults []domain.ProcessedResult

	errMu   sync.Mutex
	lastErr *errors.Error

	runMu     sync.Mutex
	cancelRun context.CancelFunc

	healthMu      sync.Mutex
	processorUp   bool
	healthStarted bool

	pollInterval time.Duration
	stopPoll     chan struct{}
}

// New assembles a controller. The history is not restored yet; call Restore
// before serving.
func New(opts Options) *Controller {
	c := &Controller{
		processor:      opts.Processor,
		publisher:      opts.Publisher,
		clock:          opts.Clock,
		previewLimiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
		pollInterval:   opts.HealthPollInterval,
		stopPoll:       make(chan struct{}),
	}

	c.history = history.New(opts.HistoryStore, opts.Clock, func(s domain.Snapshot) {
		c.publish(domain.EventSettingsChanged, settingsPayload{
			Settings: s,
			CanUndo:  c.history.CanUndo(),
			CanRedo:  c.history.CanRedo(),
		})
	})

	c.images = imagestore.New(func(records []*domain.ImageRecord) {
		c.publish(domain.EventImagesChanged, imagesPayload(records))
	})

	c.placement = placement.New(
		func(pos placement.Position) {
			c.publish(domain.EventSettingsChanged, livePlacementPayload{Live: pos})
		},
		c.commitPlacement,
	)

	c.pipe = pipeline.New(opts.Processor, opts.ChunkSize)
	return c
}

// Restore loads the persisted undo/redo history and starts the health poller.
func (c *Controller) Restore(ctx context.Context) {
	if err := c.history.Restore(ctx); err != nil {
		slog.Warn("History restore failed, starting with empty stacks", "error", err)
	}
	if c.pollInterval > 0 {
		c.healthMu.Lock()
		if !c.healthStarted {
			c.healthStarted = true
			go c.pollHealth()
		}
		c.healthMu.Unlock()
	}
}

// Close stops background work and flushes pending history commits.
func (c *Controller) Close() {
	close(c.stopPoll)
	c.CancelProcessing()
	c.history.Close()
	c.images.Clear()
}

// --- images ---

// AddFiles ingests files into the image store. Per-file validation failures
// and the over-cap notice are reported to the error surface; accepted files
// are stored regardless.
func (c *Controller) AddFiles(files []imagestore.File) []*domain.ImageRecord {
	accepted, rejections := c.images.AddMany(files)
	for _, err := range rejections {
		c.reportError(err)
	}
	return accepted
}

// RemoveImage removes one image and its cached detection.
func (c *Controller) RemoveImage(id uuid.UUID) {
	c.images.Remove(id)
}

// ClearImages removes every image and drops stale results.
func (c *Controller) ClearImages() {
	c.images.Clear()
	c.setResults(nil)
}

// Images returns the stored records in insertion order.
func (c *Controller) Images() []*domain.ImageRecord {
	return c.images.Records()
}

// PreviewBytes serves the preview backing bytes for an image id.
func (c *Controller) PreviewBytes(id uuid.UUID) ([]byte, bool) {
	return c.images.PreviewBytes(id)
}

// --- settings ---

// Settings returns the current configuration snapshot.
func (c *Controller) Settings() domain.Snapshot {
	return c.history.Current()
}

// CanUndo reports whether an undo step exists.
func (c *Controller) CanUndo() bool { return c.history.CanUndo() }

// CanRedo reports whether a redo step exists.
func (c *Controller) CanRedo() bool { return c.history.CanRedo() }

// UpdateSettings merges a partial update into the configuration. Rapid calls
// coalesce into a single undo step.
func (c *Controller) UpdateSettings(patch domain.SnapshotPatch) domain.Snapshot {
	c.history.Update(patch)
	return c.history.Current()
}

// Undo steps the configuration back one committed change.
func (c *Controller) Undo() bool { return c.history.Undo() }

// Redo reapplies the last undone change.
func (c *Controller) Redo() bool { return c.history.Redo() }

// ResetDefaults restores the default configuration as an undoable step.
func (c *Controller) ResetDefaults() {
	c.history.ResetDefaults()
}

// --- placement ---

// Placement exposes the pointer-interaction state machine to the transport.
func (c *Controller) Placement() *placement.Controller {
	return c.placement
}

// CommitPlacement writes a normalized anchor directly, for clients that
// resolve drag geometry themselves and only report the final position.
func (c *Controller) CommitPlacement(x, y float64) {
	c.commitPlacement(placement.Position{X: x, Y: y})
}

// commitPlacement is the single position-change handler per placement
// action: it writes the manual anchor through the history (undoable) and
// refreshes the preview of the first image when one exists.
func (c *Controller) commitPlacement(pos placement.Position) {
	x, y := pos.X, pos.Y
	c.history.Update(domain.SnapshotPatch{ManualX: &x, ManualY: &y})

	if len(c.images.Records()) == 0 {
		return
	}
	c.schedulePreview()
}

// schedulePreview renders immediately when the limiter permits, otherwise
// defers a single render to the next permitted slot. Commits landing while
// a deferred render waits coalesce into it: the render reads the settings
// current at fire time, so the preview always ends on the latest position.
func (c *Controller) schedulePreview() {
	c.previewMu.Lock()
	defer c.previewMu.Unlock()

	if c.previewPending {
		return
	}

	delay := c.previewLimiter.Reserve().Delay()
	if delay == 0 {
		go c.renderFirstPreview()
		return
	}

	c.previewPending = true
	c.clock.AfterFunc(delay, func() {
		c.previewMu.Lock()
		c.previewPending = false
		c.previewMu.Unlock()
		c.renderFirstPreview()
	})
}

func (c *Controller) renderFirstPreview() {
	records := c.images.Records()
	if len(records) == 0 {
		return
	}
	c.renderPreview(records[0])
}

// renderPreview asks the processor for a fresh render of one image with the
// current settings and publishes it as a single-entry result update.
func (c *Controller) renderPreview(record *domain.ImageRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), renderTimeout)
	defer cancel()

	settings := c.history.Current()
	req := domain.ProcessRequest{
		Image:    record.Payload,
		Settings: settings,
		Name:     record.DisplayName,
		FontPath: settings.FontPath,
	}
	if det := c.images.FacesFor(record.ID); det != nil {
		req.FaceBoxes = det.Faces
	}

	resp, err := c.processor.Preview(ctx, req)
	if err != nil {
		c.reportError(err)
		return
	}

	c.publish(domain.EventResultsChanged, []domain.ProcessedResult{{
		SourceID:        record.ID,
		DisplayName:     record.DisplayName,
		OriginalPreview: record.Preview.URL(),
		ResultPayload:   resp.Result,
		ResultPreview:   resp.Result,
		ZoneUsed:        resp.ZoneUsed,
		ZoneScore:       resp.ZoneScore,
	}})
}

// --- batch processing ---

// ProcessAll starts a batch run over every stored image. A run already in
// flight is superseded: its in-flight requests finish but its results are
// discarded. The call returns once the run is scheduled; completion arrives
// through progress and results events.
func (c *Controller) ProcessAll(export bool) error {
	records := c.images.Records()
	if len(records) == 0 {
		return errors.ValidationError("no images loaded")
	}

	c.history.Flush()
	settings := c.history.Current()

	c.runMu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelRun = cancel
	c.runMu.Unlock()

	go c.runBatch(ctx, records, settings, export)
	return nil
}

// CancelProcessing aborts the in-flight batch run, if any.
func (c *Controller) CancelProcessing() {
	c.runMu.Lock()
	if c.cancelRun != nil {
		c.cancelRun()
		c.cancelRun = nil
	}
	c.runMu.Unlock()
}

func (c *Controller) runBatch(ctx context.Context, records []*domain.ImageRecord, settings domain.Snapshot, export bool) {
	outcome, err := c.pipe.Run(ctx, records, settings, pipeline.Options{
		Export: export,
		FacesFor: func(id uuid.UUID) []domain.FaceBox {
			if det := c.images.FacesFor(id); det != nil {
				return det.Faces
			}
			return nil
		},
		OnProgress: func(p domain.BatchProgress) {
			c.publish(domain.EventProgress, p)
		},
	})

	if outcome.Stale {
		return
	}
	if err != nil && ctx.Err() != nil {
		// Cancelled runs end quietly; the superseding run reports instead.
		return
	}

	c.setResults(outcome.Results)

	if outcome.Failed > 0 {
		c.reportError(errors.TransportError(
			"some images failed to process", nil).
			WithContext("failed", outcome.Failed).
			WithContext("succeeded", len(outcome.Results)))
	}
}

// Results returns the outcome of the last completed batch run.
func (c *Controller) Results() []domain.ProcessedResult {
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	return append([]domain.ProcessedResult(nil), c.lastResults...)
}

// Result returns the last-run result for one source image, or nil.
func (c *Controller) Result(id uuid.UUID) *domain.ProcessedResult {
	c.resultsMu.Lock()
	defer c.resultsMu.Unlock()
	for i := range c.lastResults {
		if c.lastResults[i].SourceID == id {
			r := c.lastResults[i]
			return &r
		}
	}
	return nil
}

func (c *Controller) setResults(results []domain.ProcessedResult) {
	c.resultsMu.Lock()
	c.lastResults = results
	c.resultsMu.Unlock()
	c.publish(domain.EventResultsChanged, results)
}

// --- face detection ---

// DetectFaces returns the detection for one image, computing it at most once:
// cached results are served directly and concurrent requests for the same
// image collapse into one processor call.
func (c *Controller) DetectFaces(ctx context.Context, id uuid.UUID) (*domain.FaceDetection, error) {
	record := c.images.Get(id)
	if record == nil {
		return nil, errors.NotFoundError("image not found").WithContext("image_id", id.String())
	}

	if det := c.images.FacesFor(id); det != nil {
		return det, nil
	}
	return c.detect(ctx, record)
}

// RefreshFaces recomputes the detection for one image, replacing the cache.
func (c *Controller) RefreshFaces(ctx context.Context, id uuid.UUID) (*domain.FaceDetection, error) {
	record := c.images.Get(id)
	if record == nil {
		return nil, errors.NotFoundError("image not found").WithContext("image_id", id.String())
	}
	return c.detect(ctx, record)
}

func (c *Controller) detect(ctx context.Context, record *domain.ImageRecord) (*domain.FaceDetection, error) {
	result, err, _ := c.detectGroup.Do(record.ID.String(), func() (any, error) {
		det, err := c.processor.DetectFaces(ctx, record.Payload)
		if err != nil {
			return nil, err
		}
		c.images.CacheFaces(record.ID, det)
		return det, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*domain.FaceDetection), nil
}

// --- processor pass-throughs ---

// Verify checks an uploaded image for an embedded invisible watermark.
func (c *Controller) Verify(ctx context.Context, imageB64 string) (*domain.VerifyResult, error) {
	return c.processor.Verify(ctx, imageB64)
}

// Config returns the processor's persisted user settings.
func (c *Controller) Config(ctx context.Context) (*domain.ProcessorConfig, error) {
	return c.processor.GetConfig(ctx)
}

// UpdateConfig applies a partial update to the processor's user settings.
func (c *Controller) UpdateConfig(ctx context.Context, update domain.ProcessorConfigUpdate) error {
	return c.processor.UpdateConfig(ctx, update)
}

// ListPresets fetches the named presets stored on the processing service.
func (c *Controller) ListPresets(ctx context.Context) ([]domain.Preset, error) {
	return c.processor.ListPresets(ctx)
}

// SavePreset stores the current settings under a name.
func (c *Controller) SavePreset(ctx context.Context, name string) error {
	c.history.Flush()
	return c.processor.SavePreset(ctx, domain.Preset{Name: name, Settings: c.history.Current()})
}

// ApplyPreset loads a preset by name and applies it as one undoable step.
func (c *Controller) ApplyPreset(ctx context.Context, name string) error {
	presets, err := c.processor.ListPresets(ctx)
	if err != nil {
		return err
	}
	for _, p := range presets {
		if p.Name == name {
			c.history.Update(snapshotPatch(p.Settings))
			return nil
		}
	}
	return errors.NotFoundError("preset not found").WithContext("preset", name)
}

// DeletePreset removes a named preset from the processing service.
func (c *Controller) DeletePreset(ctx context.Context, name string) error {
	return c.processor.DeletePreset(ctx, name)
}

// ListFonts fetches the fonts known to the processing service.
func (c *Controller) ListFonts(ctx context.Context) ([]domain.FontInfo, error) {
	return c.processor.ListFonts(ctx)
}

// UploadFont stores a font file on the processing service and returns its path.
func (c *Controller) UploadFont(ctx context.Context, filename string, data []byte) (string, error) {
	return c.processor.UploadFont(ctx, filename, data)
}

// --- health ---

// ProcessorUp reports the last observed health of the processing service.
func (c *Controller) ProcessorUp() bool {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	return c.processorUp
}

// pollHealth probes the processor and publishes a health event on every
// state transition.
func (c *Controller) pollHealth() {
	ticker := c.clock.NewTicker(c.pollInterval)
	defer ticker.Stop()

	c.checkHealth()
	for {
		select {
		case <-ticker.Chan():
			c.checkHealth()
		case <-c.stopPoll:
			return
		}
	}
}

func (c *Controller) checkHealth() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	err := c.processor.Health(ctx)
	cancel()

	up := err == nil

	c.healthMu.Lock()
	changed := up != c.processorUp
	c.processorUp = up
	c.healthMu.Unlock()

	if changed {
		slog.Info("Processor health changed", "up", up)
		c.publish(domain.EventHealthChanged, healthPayload{ProcessorUp: up})
	}
}

// --- event plumbing ---

func (c *Controller) publish(kind domain.EventKind, payload any) {
	if c.publisher != nil {
		c.publisher.Publish(domain.Event{Kind: kind, Payload: payload})
	}
}

// reportError keeps the most recent user-facing error and pushes it to the
// event stream. Errors here are informational; the session keeps running.
func (c *Controller) reportError(err error) {
	structured := errors.AsStructuredError(err)
	slog.Warn("Session error reported", "type", structured.Type, "error", structured.Message)

	c.errMu.Lock()
	c.lastErr = structured
	c.errMu.Unlock()

	c.publish(domain.EventErrorReported, structured.ToResponse())
}

// LastError returns the most recent reported error and clears it, so a
// reconnecting client sees each error at most once.
func (c *Controller) LastError() *errors.Error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	err := c.lastErr
	c.lastErr = nil
	return err
}

// snapshotPatch builds a full-replacement patch from a snapshot, so preset
// application runs through the normal undoable update path.
func snapshotPatch(s domain.Snapshot) domain.SnapshotPatch {
	p := domain.SnapshotPatch{
		Style:      &s.Style,
		Opacity:    &s.Opacity,
		Size:       &s.Size,
		Padding:    &s.Padding,
		Color:      &s.Color,
		CustomText: &s.CustomText,
		FontPath:   &s.FontPath,
	}
	if s.CustomSizePct != nil {
		p.CustomSizePct = s.CustomSizePct
	} else {
		p.ClearCustomSize = true
	}
	if s.ManualX != nil && s.ManualY != nil {
		p.ManualX = s.ManualX
		p.ManualY = s.ManualY
	} else {
		p.ClearManual = true
	}
	return p
}
