// Package imagestore holds the ordered collection of loaded source images
// and their cached face-detection results.
//
// The store is the exclusive owner of preview handles: each handle is
// released exactly once, on removal or teardown, never implicitly.
package imagestore

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	// Register decoders for the accepted formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/errors"
	"github.com/Leks2000/NinyMark/internal/metrics"
)

// MaxImages is the hard cap on loaded records.
const MaxImages = 100

// allowedExtensions is the ingestion allow-list, matched case-insensitively.
var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// File is one incoming file before validation.
type File struct {
	Name string
	Data []byte
}

// Store is the ordered image collection. The changed callback fires after
// every mutating operation with the resulting ordered record list.
type Store struct {
	mu        sync.Mutex
	records   []*domain.ImageRecord
	faces     map[uuid.UUID]*domain.FaceDetection
	previews  *previewRegistry
	onChanged func([]*domain.ImageRecord)
}

// New creates an empty store. onChanged may be nil.
func New(onChanged func([]*domain.ImageRecord)) *Store {
	return &Store{
		faces:     make(map[uuid.UUID]*domain.FaceDetection),
		previews:  newPreviewRegistry(),
		onChanged: onChanged,
	}
}

// PreviewBytes serves the preview bytes for an id, false once released.
func (s *Store) PreviewBytes(id uuid.UUID) ([]byte, bool) {
	return s.previews.bytes(id)
}

// AddMany validates and ingests files in order. Invalid files are reported
// per-file and skipped; once the cap is reached, the remaining files are
// rejected with a single aggregate error and ingestion stops. The returned
// errors are non-fatal: accepted files are stored regardless.
func (s *Store) AddMany(files []File) (accepted []*domain.ImageRecord, rejections []error) {
	s.mu.Lock()

	for i, f := range files {
		if len(s.records) >= MaxImages {
			rejections = append(rejections, errors.ValidationError(
				fmt.Sprintf("image limit of %d reached, %d file(s) dropped", MaxImages, len(files)-i)).
				WithContext("dropped", len(files)-i))
			break
		}

		record, err := s.ingest(f)
		if err != nil {
			rejections = append(rejections, err)
			continue
		}

		s.records = append(s.records, record)
		accepted = append(accepted, record)
	}

	records := s.snapshot()
	s.mu.Unlock()

	metrics.StoredImages.Set(float64(len(records)))
	s.notify(records)
	return accepted, rejections
}

// Remove releases the record's preview, drops its face cache entry, and
// removes it from the collection. Unknown ids are a no-op.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()

	idx := -1
	for i, r := range s.records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return
	}

	s.records[idx].Preview.Release()
	delete(s.faces, id)
	s.records = append(s.records[:idx], s.records[idx+1:]...)

	records := s.snapshot()
	s.mu.Unlock()

	metrics.StoredImages.Set(float64(len(records)))
	s.notify(records)
}

// Clear releases every preview and empties the store.
func (s *Store) Clear() {
	s.mu.Lock()

	for _, r := range s.records {
		r.Preview.Release()
	}
	s.records = nil
	s.faces = make(map[uuid.UUID]*domain.FaceDetection)

	s.mu.Unlock()

	metrics.StoredImages.Set(0)
	s.notify(nil)
}

// Records returns the records in insertion order.
func (s *Store) Records() []*domain.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Get returns the record with the given id, or nil.
func (s *Store) Get(id uuid.UUID) *domain.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// FacesFor returns the cached detection for an image, or nil. The store
// never computes detections itself.
func (s *Store) FacesFor(id uuid.UUID) *domain.FaceDetection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faces[id]
}

// CacheFaces stores a detection result for an image. Caching for an id no
// longer in the store is a no-op, so a late detection cannot outlive its image.
func (s *Store) CacheFaces(id uuid.UUID, det *domain.FaceDetection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.records {
		if r.ID == id {
			s.faces[id] = det
			return
		}
	}
}

// ingest validates one file and builds its record. Caller holds the lock.
func (s *Store) ingest(f File) (*domain.ImageRecord, error) {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if _, ok := allowedExtensions[ext]; !ok {
		return nil, errors.ValidationError(
			fmt.Sprintf("unsupported file type %q for %s", ext, f.Name)).
			WithContext("file", f.Name)
	}

	if _, _, err := image.Decode(bytes.NewReader(f.Data)); err != nil {
		return nil, errors.ValidationError(
			fmt.Sprintf("cannot decode %s: not a valid image", f.Name)).
			WithContext("file", f.Name)
	}

	id := uuid.New()
	return &domain.ImageRecord{
		ID:          id,
		DisplayName: f.Name,
		Raw:         f.Data,
		Payload:     base64.StdEncoding.EncodeToString(f.Data),
		Preview:     s.previews.create(id, f.Data),
	}, nil
}

func (s *Store) snapshot() []*domain.ImageRecord {
	return append([]*domain.ImageRecord(nil), s.records...)
}

func (s *Store) notify(records []*domain.ImageRecord) {
	if s.onChanged != nil {
		s.onChanged(records)
	}
}
