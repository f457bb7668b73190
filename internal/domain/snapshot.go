package domain

// WatermarkStyle selects the visual rendering of the watermark.
type WatermarkStyle string

const (
	StyleText         WatermarkStyle = "text"
	StyleIconText     WatermarkStyle = "icon_text"
	StyleBrandedBlock WatermarkStyle = "branded_block"
)

// WatermarkSize is the coarse size preset, a fraction of image width.
type WatermarkSize string

const (
	SizeS WatermarkSize = "S"
	SizeM WatermarkSize = "M"
	SizeL WatermarkSize = "L"
)

// WatermarkColor is the color theme of the watermark.
type WatermarkColor string

const (
	ColorLight WatermarkColor = "light"
	ColorDark  WatermarkColor = "dark"
)

// Snapshot is an immutable point-in-time copy of the watermark configuration.
// ManualX/ManualY are nil for automatic zone placement, otherwise normalized
// coordinates in [0,1]. CustomSizePct overrides Size when set.
type Snapshot struct {
	Style         WatermarkStyle `json:"style"`
	Opacity       float64        `json:"opacity"`
	Size          WatermarkSize  `json:"size"`
	Padding       int            `json:"padding"`
	Color         WatermarkColor `json:"color"`
	CustomText    string         `json:"custom_text"`
	CustomSizePct *float64       `json:"custom_size_pct,omitempty"`
	ManualX       *float64       `json:"manual_x,omitempty"`
	ManualY       *float64       `json:"manual_y,omitempty"`
	FontPath      string         `json:"font_path,omitempty"`
}

// DefaultSnapshot returns the configuration the session starts with.
func DefaultSnapshot() Snapshot {
	return Snapshot{
		Style:      StyleBrandedBlock,
		Opacity:    0.75,
		Size:       SizeM,
		Padding:    20,
		Color:      ColorLight,
		CustomText: "patreon.com/Ninyra",
	}
}

// Equal reports structural equality. Pointer fields compare by pointed-to
// value, so two snapshots with distinct but equal ManualX allocations match.
func (s Snapshot) Equal(o Snapshot) bool {
	return s.Style == o.Style &&
		s.Opacity == o.Opacity &&
		s.Size == o.Size &&
		s.Padding == o.Padding &&
		s.Color == o.Color &&
		s.CustomText == o.CustomText &&
		floatPtrEqual(s.CustomSizePct, o.CustomSizePct) &&
		floatPtrEqual(s.ManualX, o.ManualX) &&
		floatPtrEqual(s.ManualY, o.ManualY) &&
		s.FontPath == o.FontPath
}

// Clamped returns a copy with every field forced into its valid range:
// opacity 0.3..1.0, padding 10..50, custom size 3%..40%, manual coords 0..1.
func (s Snapshot) Clamped() Snapshot {
	s.Opacity = clamp(s.Opacity, 0.3, 1.0)
	if s.Padding < 10 {
		s.Padding = 10
	}
	if s.Padding > 50 {
		s.Padding = 50
	}
	if s.CustomSizePct != nil {
		v := clamp(*s.CustomSizePct, 0.03, 0.40)
		s.CustomSizePct = &v
	}
	if s.ManualX != nil {
		v := clamp(*s.ManualX, 0, 1)
		s.ManualX = &v
	}
	if s.ManualY != nil {
		v := clamp(*s.ManualY, 0, 1)
		s.ManualY = &v
	}
	return s
}

// SnapshotPatch is a partial configuration update. Nil fields keep the
// current value. ClearManual removes manual placement entirely (distinct
// from leaving ManualX/ManualY nil, which means "unchanged").
type SnapshotPatch struct {
	Style         *WatermarkStyle `json:"style,omitempty"`
	Opacity       *float64        `json:"opacity,omitempty"`
	Size          *WatermarkSize  `json:"size,omitempty"`
	Padding       *int            `json:"padding,omitempty"`
	Color         *WatermarkColor `json:"color,omitempty"`
	CustomText    *string         `json:"custom_text,omitempty"`
	CustomSizePct *float64        `json:"custom_size_pct,omitempty"`
	ManualX       *float64        `json:"manual_x,omitempty"`
	ManualY       *float64        `json:"manual_y,omitempty"`
	FontPath      *string         `json:"font_path,omitempty"`
	ClearManual   bool            `json:"clear_manual,omitempty"`
	// ClearCustomSize drops the size override so Size applies again.
	ClearCustomSize bool `json:"clear_custom_size,omitempty"`
}

// Apply merges the patch into s and returns the clamped result.
func (p SnapshotPatch) Apply(s Snapshot) Snapshot {
	if p.Style != nil {
		s.Style = *p.Style
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.Size != nil {
		s.Size = *p.Size
	}
	if p.Padding != nil {
		s.Padding = *p.Padding
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.CustomText != nil {
		s.CustomText = *p.CustomText
	}
	if p.CustomSizePct != nil {
		v := *p.CustomSizePct
		s.CustomSizePct = &v
	}
	if p.ManualX != nil {
		v := *p.ManualX
		s.ManualX = &v
	}
	if p.ManualY != nil {
		v := *p.ManualY
		s.ManualY = &v
	}
	if p.FontPath != nil {
		s.FontPath = *p.FontPath
	}
	if p.ClearManual {
		s.ManualX = nil
		s.ManualY = nil
	}
	if p.ClearCustomSize {
		s.CustomSizePct = nil
	}
	return s.Clamped()
}

// DefaultsPatch returns a patch that restores every field to its default,
// so a reset flows through the normal update path and stays undoable.
func DefaultsPatch() SnapshotPatch {
	d := DefaultSnapshot()
	return SnapshotPatch{
		Style:           &d.Style,
		Opacity:         &d.Opacity,
		Size:            &d.Size,
		Padding:         &d.Padding,
		Color:           &d.Color,
		CustomText:      &d.CustomText,
		FontPath:        &d.FontPath,
		ClearManual:     true,
		ClearCustomSize: true,
	}
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
