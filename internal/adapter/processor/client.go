// Package processor is the HTTP client for the remote image-processing
// service.
//
// Every response arrives in the uniform envelope {success, data, error};
// any non-2xx status or success:false is surfaced as a transport error
// carrying the server-supplied message, with a generic fallback when the
// server gave none. A circuit breaker guards the processing endpoints;
// the health probe bypasses it so recovery can be observed.
package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sort"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/errors"
	"github.com/Leks2000/NinyMark/internal/metrics"
	"github.com/Leks2000/NinyMark/internal/platform/retry"
)

const (
	requestTimeout = 60 * time.Second
	healthTimeout  = 3 * time.Second

	breakerMaxFailures = 5
	breakerOpenFor     = 30 * time.Second

	genericFailureMessage = "processing service request failed"
)

// envelope is the uniform response wrapper of the processing service.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *string         `json:"error"`
}

// Client implements domain.Processor over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

var _ domain.Processor = (*Client)(nil)

// NewClient creates a processor client for the given base URL.
func NewClient(baseURL string) *Client {
	settings := gobreaker.Settings{
		Name: "processor",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerMaxFailures
		},
		Timeout: breakerOpenFor,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			slog.Warn("Processor circuit state changed", "from", from.String(), "to", to.String())
			metrics.ProcessorCircuitState.Set(circuitStateValue(to))
		},
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: requestTimeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Preview renders the watermark for a single image and returns base64 output.
func (c *Client) Preview(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	return c.process(ctx, "/api/preview", req)
}

// Export renders the final output, optionally embedding the invisible
// watermark.
func (c *Client) Export(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	return c.process(ctx, "/api/export", req)
}

func (c *Client) process(ctx context.Context, path string, req domain.ProcessRequest) (*domain.ProcessResponse, error) {
	var resp domain.ProcessResponse
	if err := c.postJSON(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DetectFaces runs face detection on a base64 image.
func (c *Client) DetectFaces(ctx context.Context, imageB64 string) (*domain.FaceDetection, error) {
	body := map[string]string{"image": imageB64}

	var data struct {
		Faces              []domain.FaceBox `json:"faces"`
		ExclusionZones     []domain.Rect    `json:"exclusion_zones"`
		MediapipeAvailable bool             `json:"mediapipe_available"`
		ImageWidth         int              `json:"image_width"`
		ImageHeight        int              `json:"image_height"`
	}
	if err := c.postJSON(ctx, "/api/detect-faces", body, &data); err != nil {
		return nil, err
	}

	return &domain.FaceDetection{
		Faces:          data.Faces,
		ExclusionZones: data.ExclusionZones,
		DetectorReady:  data.MediapipeAvailable,
		ImageWidth:     data.ImageWidth,
		ImageHeight:    data.ImageHeight,
	}, nil
}

// Verify checks a base64 image for an embedded invisible watermark.
func (c *Client) Verify(ctx context.Context, imageB64 string) (*domain.VerifyResult, error) {
	body := map[string]string{"image": imageB64}

	var result domain.VerifyResult
	if err := c.postJSON(ctx, "/api/verify", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPresets returns the named presets, sorted by name. Transient failures
// are retried: the call is idempotent and cheap.
func (c *Client) ListPresets(ctx context.Context) ([]domain.Preset, error) {
	var data struct {
		Presets map[string]domain.Snapshot `json:"presets"`
	}
	if err := c.getJSONWithRetry(ctx, "/api/presets", &data); err != nil {
		return nil, err
	}

	presets := make([]domain.Preset, 0, len(data.Presets))
	for name, settings := range data.Presets {
		presets = append(presets, domain.Preset{Name: name, Settings: settings})
	}
	sort.Slice(presets, func(i, j int) bool { return presets[i].Name < presets[j].Name })
	return presets, nil
}

// SavePreset stores a named preset on the processing service.
func (c *Client) SavePreset(ctx context.Context, preset domain.Preset) error {
	body := map[string]any{"name": preset.Name, "settings": preset.Settings}
	return c.postJSON(ctx, "/api/presets", body, nil)
}

// DeletePreset removes a named preset. Default presets cannot be deleted;
// the service reports that as a failure message.
func (c *Client) DeletePreset(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/presets/"+name, nil, "")
	return err
}

// ListFonts returns the fonts known to the processing service.
func (c *Client) ListFonts(ctx context.Context) ([]domain.FontInfo, error) {
	var data struct {
		Fonts []domain.FontInfo `json:"fonts"`
	}
	if err := c.getJSONWithRetry(ctx, "/api/fonts", &data); err != nil {
		return nil, err
	}
	return data.Fonts, nil
}

// UploadFont uploads a .ttf/.otf file and returns the registered font name.
func (c *Client) UploadFont(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build font upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to build font upload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to build font upload: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, "/api/fonts/upload", &buf, writer.FormDataContentType())
	if err != nil {
		return "", err
	}

	var result struct {
		FontName string `json:"font_name"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", errors.TransportError(genericFailureMessage, err)
	}
	return result.FontName, nil
}

// GetConfig returns the service's persisted user settings. Idempotent, so
// transient failures are retried.
func (c *Client) GetConfig(ctx context.Context) (*domain.ProcessorConfig, error) {
	var cfg domain.ProcessorConfig
	if err := c.getJSONWithRetry(ctx, "/api/config", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UpdateConfig applies a partial settings update on the service.
func (c *Client) UpdateConfig(ctx context.Context, update domain.ProcessorConfigUpdate) error {
	return c.postJSON(ctx, "/api/config", update, nil)
}

// Health probes the service. It bypasses the circuit breaker: the poller
// is how the session notices the service coming back.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.TransportError("processing service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.TransportError(fmt.Sprintf("processing service unhealthy: HTTP %d", resp.StatusCode), nil)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errors.TransportError("processing service returned malformed health response", err)
	}

	var data struct {
		Status string `json:"status"`
	}
	if env.Data != nil {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return errors.TransportError("processing service returned malformed health response", err)
		}
	}
	if !env.Success || data.Status != "ok" {
		return errors.TransportError("processing service reported not ok", nil)
	}
	return nil
}

// --- transport plumbing ---

func (c *Client) postJSON(ctx context.Context, path string, body any, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request body: %w", err)
	}

	raw, err := c.do(ctx, http.MethodPost, path, bytes.NewReader(encoded), "application/json")
	if err != nil {
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errors.TransportError(genericFailureMessage, err)
	}
	return nil
}

func (c *Client) getJSONWithRetry(ctx context.Context, path string, out any) error {
	policy := retry.Policy{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Debug("Retrying processor request", "path", path, "attempt", attempt, "backoff", backoff, "error", err)
		},
	}

	raw, err := retry.Do(ctx, policy, classifyForRetry, func() ([]byte, error) {
		return c.do(ctx, http.MethodGet, path, nil, "")
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.TransportError(genericFailureMessage, err)
	}
	return nil
}

// classifyForRetry stops on server-reported failures (the server answered;
// asking again will not change its mind) and retries everything else.
func classifyForRetry(err error) retry.Action {
	structured := errors.AsStructuredError(err)
	if structured.Type == errors.TypeTransport && structured.Cause == nil {
		return retry.Stop
	}
	return retry.Retry
}

// do performs one request through the circuit breaker and unwraps the
// envelope, returning the raw data payload.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (json.RawMessage, error) {
	endpoint := path
	start := time.Now()

	result, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.TransportError("processing service unreachable", err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.TransportError(genericFailureMessage, err)
		}

		var env envelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr != nil {
			if resp.StatusCode >= 300 {
				return nil, errors.TransportError(fmt.Sprintf("%s: HTTP %d", genericFailureMessage, resp.StatusCode), nil)
			}
			return nil, errors.TransportError(genericFailureMessage, jsonErr)
		}

		if !env.Success || resp.StatusCode >= 300 {
			message := genericFailureMessage
			if env.Error != nil && *env.Error != "" {
				message = *env.Error
			}
			return nil, errors.TransportError(message, nil)
		}

		return env.Data, nil
	})

	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.ProcessorRequestsTotal.WithLabelValues(endpoint, status).Inc()
	metrics.ProcessorRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errors.TransportError("processing service temporarily unavailable", err)
		}
		return nil, err
	}
	return result.(json.RawMessage), nil
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}
