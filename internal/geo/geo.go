// Package geo implements the unit-square coordinate math used by battle maps.
//
// Map positions are normalized to [0,1] on both axes regardless of rendered
// pixel size, so every caller clamps at the boundary instead of trusting
// input.
package geo

import (
	"math"
	"regexp"
	"strings"
)

// Point is a position in unit-square coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Clamp restricts v to the inclusive range [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampUnit restricts v to [0,1].
func ClampUnit(v float64) float64 {
	return Clamp(v, 0, 1)
}

// ClampPoint restricts both coordinates to the unit square.
func ClampPoint(p Point) Point {
	return Point{X: ClampUnit(p.X), Y: ClampUnit(p.Y)}
}

// NormalizeAngle wraps an angle in degrees into [0,360).
func NormalizeAngle(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	wrapped := math.Mod(deg, 360)
	if wrapped < 0 {
		wrapped += 360
	}
	return wrapped
}

// Distance returns the Euclidean distance between two points.
func Distance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Hypot(dx, dy)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

// AngleBetween returns the angle of the vector from center to p in degrees,
// normalized to [0,360). Zero degrees points along the positive X axis.
func AngleBetween(center, p Point) float64 {
	return NormalizeAngle(math.Atan2(p.Y-center.Y, p.X-center.X) * 180 / math.Pi)
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// IsHexColor reports whether value is a #rgb or #rrggbb color.
func IsHexColor(value string) bool {
	return hexColorPattern.MatchString(strings.TrimSpace(value))
}

// HexColorOr returns value lower-cased when it is a valid hex color, and
// fallback otherwise.
func HexColorOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if hexColorPattern.MatchString(trimmed) {
		return strings.ToLower(trimmed)
	}
	return fallback
}
