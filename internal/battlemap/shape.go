package battlemap

import "github.com/seralith/wartable/internal/geo"

// ShapeKind is the geometric template a shape renders as.
type ShapeKind string

const (
	ShapeKindRectangle ShapeKind = "rectangle"
	ShapeKindCircle    ShapeKind = "circle"
	ShapeKindLine      ShapeKind = "line"
	ShapeKindDiamond   ShapeKind = "diamond"
	ShapeKindTriangle  ShapeKind = "triangle"
	ShapeKindCone      ShapeKind = "cone"
	ShapeKindImage     ShapeKind = "image"
)

// ValidShapeKind reports whether k is a known shape kind.
func ValidShapeKind(k ShapeKind) bool {
	switch k {
	case ShapeKindRectangle, ShapeKindCircle, ShapeKindLine, ShapeKindDiamond,
		ShapeKindTriangle, ShapeKindCone, ShapeKindImage:
		return true
	}
	return false
}

const (
	MinShapeSize = 0.02
	MaxShapeSize = 1

	MinShapeOpacity = 0.05
	MaxShapeOpacity = 1

	MaxShapeStrokeWidth = 20

	defaultShapeFill   = "#2d4739"
	defaultShapeStroke = "#e8e4d8"
)

// Shape is a GM-placed geometric overlay.
type Shape struct {
	ID          string    `json:"id"`
	Kind        ShapeKind `json:"kind"`
	Position    geo.Point `json:"position"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Rotation    float64   `json:"rotation"`
	Fill        string    `json:"fill"`
	StrokeColor string    `json:"strokeColor"`
	StrokeWidth float64   `json:"strokeWidth"`
	Opacity     float64   `json:"opacity"`
	ImageURL    string    `json:"imageUrl,omitempty"`
}

// Normalize clamps every numeric field into range. Circles and diamonds are
// forced square so scale handles cannot distort them.
func (s Shape) Normalize() Shape {
	if !ValidShapeKind(s.Kind) {
		s.Kind = ShapeKindRectangle
	}
	s.Position = geo.ClampPoint(s.Position)
	s.Width = geo.Clamp(s.Width, MinShapeSize, MaxShapeSize)
	s.Height = geo.Clamp(s.Height, MinShapeSize, MaxShapeSize)
	if s.Kind == ShapeKindCircle || s.Kind == ShapeKindDiamond {
		s.Height = s.Width
	}
	s.Rotation = geo.NormalizeAngle(s.Rotation)
	s.Fill = geo.HexColorOr(s.Fill, defaultShapeFill)
	s.StrokeColor = geo.HexColorOr(s.StrokeColor, defaultShapeStroke)
	s.StrokeWidth = geo.Clamp(s.StrokeWidth, 0, MaxShapeStrokeWidth)
	s.Opacity = geo.Clamp(s.Opacity, MinShapeOpacity, MaxShapeOpacity)
	if s.Kind != ShapeKindImage {
		s.ImageURL = ""
	}
	return s
}
