package battlemap

import (
	"time"

	"github.com/seralith/wartable/internal/geo"
)

// StrokeMode selects how a stroke composites at render time. Erase strokes
// carry the same point data and punch through paint via destination-out
// compositing; they never mutate other strokes.
type StrokeMode string

const (
	StrokeModeDraw  StrokeMode = "draw"
	StrokeModeErase StrokeMode = "erase"
)

const (
	// MinStrokePoints is the persistence floor: a single-point stroke is
	// rendering noise and is never stored.
	MinStrokePoints = 2
	// MaxStrokePoints bounds capture; movement past the cap is dropped.
	MaxStrokePoints = 600

	MinStrokeSize = 1
	MaxStrokeSize = 32

	defaultStrokeColor = "#e8e4d8"
)

// Stroke is one freehand paint gesture in unit-square coordinates. Insertion
// order in Map.Strokes is paint order.
type Stroke struct {
	ID        string      `json:"id"`
	Color     string      `json:"color"`
	Size      float64     `json:"size"`
	Points    []geo.Point `json:"points"`
	Mode      StrokeMode  `json:"mode"`
	CreatedBy string      `json:"createdBy,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty"`
}

// Normalize clamps the stroke into its legal ranges. Points past the cap are
// dropped rather than rejected so a hostile payload degrades instead of
// failing the whole document.
func (s Stroke) Normalize() Stroke {
	s.Color = geo.HexColorOr(s.Color, defaultStrokeColor)
	s.Size = geo.Clamp(s.Size, MinStrokeSize, MaxStrokeSize)
	if s.Mode != StrokeModeErase {
		s.Mode = StrokeModeDraw
	}
	if len(s.Points) > MaxStrokePoints {
		s.Points = s.Points[:MaxStrokePoints]
	}
	for i, p := range s.Points {
		s.Points[i] = geo.ClampPoint(p)
	}
	return s
}
