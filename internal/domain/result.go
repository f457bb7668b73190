package domain

import "github.com/google/uuid"

// ProcessedResult is the outcome of watermarking one image. Exactly one
// result exists per surviving source image; failed images produce none.
type ProcessedResult struct {
	SourceID        uuid.UUID `json:"source_id"`
	DisplayName     string    `json:"display_name"`
	OriginalPreview string    `json:"original_preview"`
	ResultPayload   string    `json:"result_payload"`
	ResultPreview   string    `json:"result_preview"`
	ZoneUsed        string    `json:"zone_used"`
	ZoneScore       float64   `json:"zone_score"`
}

// BatchProgress reports completion of one pipeline run. Completed counts
// every settled image, including failures, and never decreases within a run.
type BatchProgress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Percent returns the rounded completion percentage, 0 for an empty batch.
func (p BatchProgress) Percent() int {
	if p.Total == 0 {
		return 0
	}
	return int(float64(p.Completed)/float64(p.Total)*100 + 0.5)
}
