package session

import (
	"github.com/Leks2000/NinyMark/internal/domain"
	"github.com/Leks2000/NinyMark/internal/placement"
)

// settingsPayload is the settings_changed event body.
type settingsPayload struct {
	Settings domain.Snapshot `json:"settings"`
	CanUndo  bool            `json:"can_undo"`
	CanRedo  bool            `json:"can_redo"`
}

// livePlacementPayload carries per-move drag feedback. It intentionally
// omits the settings: the anchor is not committed yet.
type livePlacementPayload struct {
	Live placement.Position `json:"live"`
}

// healthPayload is the health_changed event body.
type healthPayload struct {
	ProcessorUp bool `json:"processor_up"`
}

// imageView is the client-facing shape of one stored image.
type imageView struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	PreviewURL  string `json:"preview_url"`
}

func imagesPayload(records []*domain.ImageRecord) []imageView {
	views := make([]imageView, 0, len(records))
	for _, r := range records {
		views = append(views, imageView{
			ID:          r.ID.String(),
			DisplayName: r.DisplayName,
			PreviewURL:  r.Preview.URL(),
		})
	}
	return views
}
