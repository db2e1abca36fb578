package battlemap

import "github.com/seralith/wartable/internal/geo"

const (
	MinBackgroundScale = 0.2
	MaxBackgroundScale = 8

	defaultBackgroundFill = "#1a1a1a"
)

// Background is the single positioned backdrop image. Fill shows through when
// no image URL is set.
type Background struct {
	URL      string    `json:"url,omitempty"`
	Position geo.Point `json:"position"`
	Scale    float64   `json:"scale"`
	Rotation float64   `json:"rotation"`
	Opacity  float64   `json:"opacity"`
	Fill     string    `json:"fill"`
}

// Normalize clamps the backdrop transform into its legal ranges.
func (b Background) Normalize() Background {
	b.Position = geo.ClampPoint(b.Position)
	if b.Scale == 0 {
		b.Scale = 1
	}
	b.Scale = geo.Clamp(b.Scale, MinBackgroundScale, MaxBackgroundScale)
	b.Rotation = geo.NormalizeAngle(b.Rotation)
	if b.Opacity == 0 {
		b.Opacity = 1
	}
	b.Opacity = geo.Clamp(b.Opacity, MinShapeOpacity, MaxShapeOpacity)
	b.Fill = geo.HexColorOr(b.Fill, defaultBackgroundFill)
	return b
}
