package domain

import "github.com/google/uuid"

// ImageRecord is one loaded source image. Payload holds the transport-ready
// base64 encoding of the raw bytes. Preview is owned exclusively by the
// image store and must be released exactly once.
type ImageRecord struct {
	ID          uuid.UUID
	DisplayName string
	Raw         []byte
	Payload     string
	Preview     PreviewHandle
}

// PreviewHandle is a revocable resource backing an image preview. URL is
// stable until Release, after which the preview is gone and the URL dangles.
type PreviewHandle interface {
	URL() string
	Release()
}

// FaceBox is a detected face bounding box in pixel coordinates.
type FaceBox struct {
	XMin       int     `json:"x_min"`
	YMin       int     `json:"y_min"`
	XMax       int     `json:"x_max"`
	YMax       int     `json:"y_max"`
	Confidence float64 `json:"confidence"`
}

// Rect is an exclusion rectangle proposed by the detector.
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// FaceDetection is the cached result of one face-detection call for an image.
// It is created lazily on the first detection request and dropped when the
// image leaves the store; it is never recomputed without an explicit refresh.
type FaceDetection struct {
	Faces          []FaceBox `json:"faces"`
	ExclusionZones []Rect    `json:"exclusion_zones"`
	DetectorReady  bool      `json:"detector_ready"`
	ImageWidth     int       `json:"image_width"`
	ImageHeight    int       `json:"image_height"`
}
