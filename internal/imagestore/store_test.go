package imagestore

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leks2000/NinyMark/internal/domain"
	apperrors "github.com/Leks2000/NinyMark/internal/errors"
)

// tinyPNG encodes a 2x2 image so validation sees real image data.
func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAddManyAcceptsValidImages(t *testing.T) {
	s := New(nil)
	data := tinyPNG(t)

	accepted, rejections := s.AddMany([]File{
		{Name: "a.png", Data: data},
		{Name: "b.PNG", Data: data},
		{Name: "c.jpeg", Data: data},
	})

	// Extension check is case-insensitive; the decode check does not care
	// that c.jpeg holds PNG bytes, only that it decodes as an image.
	assert.Len(t, accepted, 3)
	assert.Empty(t, rejections)
	assert.Equal(t, 3, s.Len())
}

func TestAddManyRejectsUnsupportedExtension(t *testing.T) {
	s := New(nil)

	accepted, rejections := s.AddMany([]File{
		{Name: "notes.txt", Data: []byte("hello")},
		{Name: "photo.gif", Data: tinyPNG(t)},
	})

	assert.Empty(t, accepted)
	require.Len(t, rejections, 2)
	for _, err := range rejections {
		assert.Equal(t, apperrors.TypeValidation, apperrors.AsStructuredError(err).Type)
	}
}

func TestAddManyRejectsUndecodableData(t *testing.T) {
	s := New(nil)

	accepted, rejections := s.AddMany([]File{
		{Name: "broken.png", Data: []byte("not an image at all")},
	})

	assert.Empty(t, accepted)
	require.Len(t, rejections, 1)
	assert.Contains(t, rejections[0].Error(), "broken.png")
}

func TestAddManyStopsAtCapWithAggregateError(t *testing.T) {
	s := New(nil)
	data := tinyPNG(t)

	files := make([]File, MaxImages+3)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("img-%03d.png", i), Data: data}
	}

	accepted, rejections := s.AddMany(files)

	assert.Len(t, accepted, MaxImages)
	require.Len(t, rejections, 1, "over-cap files collapse into one aggregate error")
	assert.Contains(t, rejections[0].Error(), "3 file(s) dropped")
	assert.Equal(t, MaxImages, s.Len())
}

func TestRecordsKeepInsertionOrder(t *testing.T) {
	s := New(nil)
	data := tinyPNG(t)

	names := []string{"first.png", "second.png", "third.png"}
	for _, name := range names {
		s.AddMany([]File{{Name: name, Data: data}})
	}

	records := s.Records()
	require.Len(t, records, 3)
	for i, r := range records {
		assert.Equal(t, names[i], r.DisplayName)
	}
}

func TestRemoveReleasesPreviewAndFaceCache(t *testing.T) {
	s := New(nil)

	accepted, _ := s.AddMany([]File{{Name: "a.png", Data: tinyPNG(t)}})
	require.Len(t, accepted, 1)
	id := accepted[0].ID

	s.CacheFaces(id, &domain.FaceDetection{DetectorReady: true})
	require.NotNil(t, s.FacesFor(id))

	_, ok := s.PreviewBytes(id)
	require.True(t, ok)

	s.Remove(id)

	assert.Nil(t, s.Get(id))
	assert.Nil(t, s.FacesFor(id))
	_, ok = s.PreviewBytes(id)
	assert.False(t, ok, "removing the image must revoke its preview")
}

func TestRemoveUnknownIDIsNoop(t *testing.T) {
	s := New(nil)
	s.AddMany([]File{{Name: "a.png", Data: tinyPNG(t)}})

	s.Remove(uuid.New())

	assert.Equal(t, 1, s.Len())
}

func TestClearReleasesEverything(t *testing.T) {
	s := New(nil)
	accepted, _ := s.AddMany([]File{
		{Name: "a.png", Data: tinyPNG(t)},
		{Name: "b.png", Data: tinyPNG(t)},
	})
	require.Len(t, accepted, 2)

	s.Clear()

	assert.Equal(t, 0, s.Len())
	for _, r := range accepted {
		_, ok := s.PreviewBytes(r.ID)
		assert.False(t, ok)
	}
}

func TestCacheFacesForRemovedImageIsNoop(t *testing.T) {
	s := New(nil)
	accepted, _ := s.AddMany([]File{{Name: "a.png", Data: tinyPNG(t)}})
	id := accepted[0].ID
	s.Remove(id)

	s.CacheFaces(id, &domain.FaceDetection{})

	assert.Nil(t, s.FacesFor(id))
}

func TestPreviewReleaseIsIdempotent(t *testing.T) {
	s := New(nil)
	accepted, _ := s.AddMany([]File{{Name: "a.png", Data: tinyPNG(t)}})
	record := accepted[0]

	record.Preview.Release()
	record.Preview.Release()

	_, ok := s.PreviewBytes(record.ID)
	assert.False(t, ok)
}

func TestOnChangedFiresWithOrderedRecords(t *testing.T) {
	var lastNames []string
	s := New(func(records []*domain.ImageRecord) {
		lastNames = nil
		for _, r := range records {
			lastNames = append(lastNames, r.DisplayName)
		}
	})
	data := tinyPNG(t)

	s.AddMany([]File{{Name: "a.png", Data: data}, {Name: "b.png", Data: data}})
	assert.Equal(t, []string{"a.png", "b.png"}, lastNames)

	s.Remove(s.Records()[0].ID)
	assert.Equal(t, []string{"b.png"}, lastNames)

	s.Clear()
	assert.Empty(t, lastNames)
}
