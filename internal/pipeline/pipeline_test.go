package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leks2000/NinyMark/internal/domain"
	apperrors "github.com/Leks2000/NinyMark/internal/errors"
)

// fakeProcessor answers Preview/Export from a script and records concurrency.
type fakeProcessor struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	calls       atomic.Int64

	failNames map[string]bool
	gate      chan struct{} // when set, the first call blocks until closed
	gateOnce  sync.Once
	gateHit   chan struct{}
}

func (f *fakeProcessor) respond(req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	f.calls.Add(1)

	if f.gate != nil {
		var wait bool
		f.gateOnce.Do(func() {
			wait = true
		})
		if wait {
			close(f.gateHit)
			<-f.gate
		}
	}

	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.failNames[req.Name] {
		return nil, apperrors.TransportError("render failed", nil)
	}
	return &domain.ProcessResponse{Result: "out-" + req.Name, ZoneUsed: "bottom_right", ZoneScore: 0.9}, nil
}

func (f *fakeProcessor) Preview(_ context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	return f.respond(req)
}

func (f *fakeProcessor) Export(_ context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	return f.respond(req)
}

func (f *fakeProcessor) DetectFaces(context.Context, string) (*domain.FaceDetection, error) {
	return nil, nil
}
func (f *fakeProcessor) Verify(context.Context, string) (*domain.VerifyResult, error) {
	return nil, nil
}
func (f *fakeProcessor) ListPresets(context.Context) ([]domain.Preset, error) { return nil, nil }
func (f *fakeProcessor) SavePreset(context.Context, domain.Preset) error      { return nil }
func (f *fakeProcessor) DeletePreset(context.Context, string) error           { return nil }
func (f *fakeProcessor) ListFonts(context.Context) ([]domain.FontInfo, error) { return nil, nil }
func (f *fakeProcessor) UploadFont(context.Context, string, []byte) (string, error) {
	return "", nil
}
func (f *fakeProcessor) GetConfig(context.Context) (*domain.ProcessorConfig, error) {
	return &domain.ProcessorConfig{}, nil
}
func (f *fakeProcessor) UpdateConfig(context.Context, domain.ProcessorConfigUpdate) error {
	return nil
}
func (f *fakeProcessor) Health(context.Context) error { return nil }

type stubPreview struct{ url string }

func (s stubPreview) URL() string { return s.url }
func (s stubPreview) Release()    {}

func makeRecords(n int) []*domain.ImageRecord {
	records := make([]*domain.ImageRecord, n)
	for i := range records {
		records[i] = &domain.ImageRecord{
			ID:          uuid.New(),
			DisplayName: fmt.Sprintf("img-%d.png", i),
			Payload:     fmt.Sprintf("payload-%d", i),
			Preview:     stubPreview{url: fmt.Sprintf("/previews/%d", i)},
		}
	}
	return records
}

func TestRunKeepsInputOrder(t *testing.T) {
	proc := &fakeProcessor{}
	p := New(proc, 4)
	records := makeRecords(7)

	outcome, err := p.Run(context.Background(), records, domain.DefaultSnapshot(), Options{})

	require.NoError(t, err)
	require.Len(t, outcome.Results, 7)
	for i, res := range outcome.Results {
		assert.Equal(t, records[i].ID, res.SourceID, "result %d out of order", i)
		assert.Equal(t, "out-"+records[i].DisplayName, res.ResultPayload)
	}
}

func TestRunBoundsConcurrencyToChunkSize(t *testing.T) {
	proc := &fakeProcessor{}
	p := New(proc, 4)

	_, err := p.Run(context.Background(), makeRecords(10), domain.DefaultSnapshot(), Options{})

	require.NoError(t, err)
	assert.LessOrEqual(t, proc.maxInFlight, 4)
	assert.EqualValues(t, 10, proc.calls.Load())
}

func TestRunProgressIsMonotoneAndComplete(t *testing.T) {
	proc := &fakeProcessor{}
	p := New(proc, 4)

	var mu sync.Mutex
	var seen []domain.BatchProgress
	_, err := p.Run(context.Background(), makeRecords(7), domain.DefaultSnapshot(), Options{
		OnProgress: func(pr domain.BatchProgress) {
			mu.Lock()
			seen = append(seen, pr)
			mu.Unlock()
		},
	})

	require.NoError(t, err)
	require.Len(t, seen, 7)
	for i, pr := range seen {
		assert.Equal(t, i+1, pr.Completed)
		assert.Equal(t, 7, pr.Total)
	}
	assert.Equal(t, 100, seen[len(seen)-1].Percent())
}

func TestRunSkipsFailedImagesAndCountsThem(t *testing.T) {
	proc := &fakeProcessor{failNames: map[string]bool{"img-2.png": true}}
	p := New(proc, 4)
	records := makeRecords(7)

	outcome, err := p.Run(context.Background(), records, domain.DefaultSnapshot(), Options{})

	require.NoError(t, err)
	assert.Len(t, outcome.Results, 6)
	assert.Equal(t, 1, outcome.Failed)
	for _, res := range outcome.Results {
		assert.NotEqual(t, "img-2.png", res.DisplayName)
	}
}

func TestRunUsesExportWhenRequested(t *testing.T) {
	proc := &fakeProcessor{}
	p := New(proc, 4)

	outcome, err := p.Run(context.Background(), makeRecords(1), domain.DefaultSnapshot(), Options{Export: true})

	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
}

func TestRunPassesCachedFaceBoxes(t *testing.T) {
	proc := &fakeProcessor{}
	p := New(proc, 4)
	records := makeRecords(1)
	boxes := []domain.FaceBox{{XMin: 1, YMin: 2, XMax: 3, YMax: 4, Confidence: 0.8}}

	var got []domain.FaceBox
	outcome, err := p.Run(context.Background(), records, domain.DefaultSnapshot(), Options{
		FacesFor: func(id uuid.UUID) []domain.FaceBox {
			got = boxes
			assert.Equal(t, records[0].ID, id)
			return boxes
		},
	})

	require.NoError(t, err)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, boxes, got)
}

func TestRunCancelledContextStopsNewChunks(t *testing.T) {
	proc := &fakeProcessor{}
	p := New(proc, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := p.Run(ctx, makeRecords(8), domain.DefaultSnapshot(), Options{})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, outcome.Results)
	assert.EqualValues(t, 0, proc.calls.Load())
}

func TestSupersededRunIsMarkedStale(t *testing.T) {
	proc := &fakeProcessor{
		gate:    make(chan struct{}),
		gateHit: make(chan struct{}),
	}
	p := New(proc, 4)

	first := make(chan *Outcome, 1)
	go func() {
		outcome, _ := p.Run(context.Background(), makeRecords(1), domain.DefaultSnapshot(), Options{})
		first <- outcome
	}()

	// Wait until the first run is blocked inside the processor, then let a
	// second run complete.
	<-proc.gateHit
	second, err := p.Run(context.Background(), makeRecords(1), domain.DefaultSnapshot(), Options{})
	require.NoError(t, err)
	assert.False(t, second.Stale)

	close(proc.gate)
	outcome := <-first
	assert.True(t, outcome.Stale, "the overtaken run must discard its results")
}
