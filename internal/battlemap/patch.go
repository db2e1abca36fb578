package battlemap

import "github.com/seralith/wartable/internal/geo"

// Patches carry partial updates across the wire: only supplied fields change.
// Every mutating endpoint is a narrow patch rather than a document overwrite,
// which keeps the blast radius of a lost update to a single field set.

// TokenPatch updates a subset of a token's fields.
type TokenPatch struct {
	Kind        *TokenKind `json:"kind,omitempty"`
	RefID       *string    `json:"refId,omitempty"`
	Label       *string    `json:"label,omitempty"`
	Color       *string    `json:"color,omitempty"`
	Position    *geo.Point `json:"position,omitempty"`
	OwnerID     *string    `json:"ownerId,omitempty"`
	ShowTooltip *bool      `json:"showTooltip,omitempty"`
	Tooltip     *string    `json:"tooltip,omitempty"`
	PortraitURL *string    `json:"portraitUrl,omitempty"`
}

// PositionOnly reports whether the patch touches nothing but position.
// Player-initiated token moves must be position-only; everything else on a
// token is GM surface.
func (p TokenPatch) PositionOnly() bool {
	return p.Position != nil &&
		p.Kind == nil && p.RefID == nil && p.Label == nil && p.Color == nil &&
		p.OwnerID == nil && p.ShowTooltip == nil && p.Tooltip == nil && p.PortraitURL == nil
}

// Apply overlays the patch onto a token and re-normalizes.
func (p TokenPatch) Apply(t Token) Token {
	if p.Kind != nil {
		t.Kind = *p.Kind
	}
	if p.RefID != nil {
		t.RefID = *p.RefID
	}
	if p.Label != nil {
		t.Label = *p.Label
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.OwnerID != nil {
		t.OwnerID = *p.OwnerID
	}
	if p.ShowTooltip != nil {
		t.ShowTooltip = *p.ShowTooltip
	}
	if p.Tooltip != nil {
		t.Tooltip = *p.Tooltip
	}
	if p.PortraitURL != nil {
		t.PortraitURL = *p.PortraitURL
	}
	return t.Normalize()
}

// ShapePatch updates a subset of a shape's fields.
type ShapePatch struct {
	Position    *geo.Point `json:"position,omitempty"`
	Width       *float64   `json:"width,omitempty"`
	Height      *float64   `json:"height,omitempty"`
	Rotation    *float64   `json:"rotation,omitempty"`
	Fill        *string    `json:"fill,omitempty"`
	StrokeColor *string    `json:"strokeColor,omitempty"`
	StrokeWidth *float64   `json:"strokeWidth,omitempty"`
	Opacity     *float64   `json:"opacity,omitempty"`
	ImageURL    *string    `json:"imageUrl,omitempty"`
}

// Apply overlays the patch onto a shape and re-normalizes.
func (p ShapePatch) Apply(s Shape) Shape {
	if p.Position != nil {
		s.Position = *p.Position
	}
	if p.Width != nil {
		s.Width = *p.Width
	}
	if p.Height != nil {
		s.Height = *p.Height
	}
	if p.Rotation != nil {
		s.Rotation = *p.Rotation
	}
	if p.Fill != nil {
		s.Fill = *p.Fill
	}
	if p.StrokeColor != nil {
		s.StrokeColor = *p.StrokeColor
	}
	if p.StrokeWidth != nil {
		s.StrokeWidth = *p.StrokeWidth
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.ImageURL != nil {
		s.ImageURL = *p.ImageURL
	}
	return s.Normalize()
}

// BackgroundPatch updates a subset of the background's fields.
type BackgroundPatch struct {
	URL      *string    `json:"url,omitempty"`
	Position *geo.Point `json:"position,omitempty"`
	Scale    *float64   `json:"scale,omitempty"`
	Rotation *float64   `json:"rotation,omitempty"`
	Opacity  *float64   `json:"opacity,omitempty"`
	Fill     *string    `json:"fill,omitempty"`
}

// Apply overlays the patch onto a background and re-normalizes.
func (p BackgroundPatch) Apply(b Background) Background {
	if p.URL != nil {
		b.URL = *p.URL
	}
	if p.Position != nil {
		b.Position = *p.Position
	}
	if p.Scale != nil {
		b.Scale = *p.Scale
	}
	if p.Rotation != nil {
		b.Rotation = *p.Rotation
	}
	if p.Opacity != nil {
		b.Opacity = *p.Opacity
	}
	if p.Fill != nil {
		b.Fill = *p.Fill
	}
	return b.Normalize()
}

// SettingsPatch updates the table permission switches and drawer assignment.
type SettingsPatch struct {
	AllowPlayerDrawing    *bool   `json:"allowPlayerDrawing,omitempty"`
	AllowPlayerTokenMoves *bool   `json:"allowPlayerTokenMoves,omitempty"`
	Paused                *bool   `json:"paused,omitempty"`
	DrawerUserID          *string `json:"drawerUserId,omitempty"`
}
