package domain

import "context"

// ProcessRequest is one image sent to the remote processing service.
// Image carries the base64 payload; FaceBoxes, when present, let the
// processor avoid placing the watermark over faces without re-detecting.
type ProcessRequest struct {
	Image          string    `json:"image"`
	Settings       Snapshot  `json:"settings"`
	Name           string    `json:"name"`
	FaceBoxes      []FaceBox `json:"face_bboxes,omitempty"`
	FontPath       string    `json:"font_path,omitempty"`
	EmbedInvisible bool      `json:"embed_invisible,omitempty"`
}

// ProcessResponse is the per-image payload returned by the processor.
type ProcessResponse struct {
	Result    string  `json:"result"`
	ZoneUsed  string  `json:"zone_used"`
	ZoneScore float64 `json:"zone_score"`
}

// Preset is a named configuration stored on the processing service.
type Preset struct {
	Name     string   `json:"name"`
	Settings Snapshot `json:"settings"`
}

// FontInfo describes one font known to the processing service.
type FontInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Custom bool   `json:"custom"`
}

// ProcessorConfig is the processing service's persisted user settings.
// The watermark string itself never leaves the service; only whether one
// has been set is reported.
type ProcessorConfig struct {
	EmbedInvisible     bool `json:"embed_invisible"`
	WatermarkStringSet bool `json:"watermark_string_set"`
}

// ProcessorConfigUpdate is a partial settings update; nil fields stay
// unchanged.
type ProcessorConfigUpdate struct {
	WatermarkString *string `json:"watermark_string,omitempty"`
	EmbedInvisible  *bool   `json:"embed_invisible,omitempty"`
}

// VerifyResult is the outcome of an invisible-watermark check.
type VerifyResult struct {
	Found           bool   `json:"found"`
	WatermarkString string `json:"watermark_string,omitempty"`
	Message         string `json:"message,omitempty"`
}

// Processor is the remote image-processing capability. Every method is a
// network call and honors ctx cancellation. Implementations report failures
// with the server-supplied message when one exists.
type Processor interface {
	Preview(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
	Export(ctx context.Context, req ProcessRequest) (*ProcessResponse, error)
	DetectFaces(ctx context.Context, imageB64 string) (*FaceDetection, error)
	Verify(ctx context.Context, imageB64 string) (*VerifyResult, error)

	ListPresets(ctx context.Context) ([]Preset, error)
	SavePreset(ctx context.Context, preset Preset) error
	DeletePreset(ctx context.Context, name string) error

	ListFonts(ctx context.Context) ([]FontInfo, error)
	UploadFont(ctx context.Context, filename string, data []byte) (string, error)

	GetConfig(ctx context.Context) (*ProcessorConfig, error)
	UpdateConfig(ctx context.Context, update ProcessorConfigUpdate) error

	Health(ctx context.Context) error
}
