package client

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
)

// DragKind names what a drag gesture manipulates.
type DragKind string

const (
	DragToken       DragKind = "token"
	DragShape       DragKind = "shape"
	DragBackground  DragKind = "background"
	DragShapeScale  DragKind = "shape-scale"
	DragShapeRotate DragKind = "shape-rotate"
)

// Scale handles clamp tighter than the document floor so a handle cannot
// collapse a shape to a sliver.
const (
	minHandleScale = 0.1
	maxHandleScale = 1.0
)

type dragState struct {
	kind   DragKind
	id     string
	offset geo.Point // pointer minus entity origin at pointer-down
	center geo.Point

	// origin snapshot for scale/rotate handles
	originWidth    float64
	originHeight   float64
	originRotation float64
	aspect         float64

	hasPreview bool
	position   geo.Point
	width      float64
	height     float64
	rotation   float64
}

// DragPreview is the optimistic overlay for an in-flight drag.
type DragPreview struct {
	Kind     DragKind
	EntityID string
	Position geo.Point
	Width    float64
	Height   float64
	Rotation float64
}

// BeginTokenDrag starts dragging a token. It reports whether the gesture was
// accepted; a refusal is an authorization no-op, not an error.
func (s *Session) BeginTokenDrag(tokenID string, pointer geo.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag != nil {
		return false
	}
	tok := s.state.FindToken(tokenID)
	if tok == nil || !tok.MovableBy(s.userID, s.gm, s.state.Settings, s.state.Paused) {
		return false
	}
	s.drag = &dragState{
		kind:   DragToken,
		id:     tokenID,
		offset: geo.Point{X: pointer.X - tok.Position.X, Y: pointer.Y - tok.Position.Y},
	}
	return true
}

// BeginShapeDrag starts moving a shape. GM only, shape tool active.
func (s *Session) BeginShapeDrag(shapeID string, pointer geo.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag != nil || !s.gm || s.tool != ToolShape {
		return false
	}
	sh := s.state.FindShape(shapeID)
	if sh == nil {
		return false
	}
	s.drag = &dragState{
		kind:   DragShape,
		id:     shapeID,
		offset: geo.Point{X: pointer.X - sh.Position.X, Y: pointer.Y - sh.Position.Y},
	}
	return true
}

// BeginBackgroundDrag starts repositioning the background image. GM only,
// background tool active.
func (s *Session) BeginBackgroundDrag(pointer geo.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag != nil || !s.gm || s.tool != ToolBackground {
		return false
	}
	bg := s.state.Background
	s.drag = &dragState{
		kind:   DragBackground,
		offset: geo.Point{X: pointer.X - bg.Position.X, Y: pointer.Y - bg.Position.Y},
	}
	return true
}

// BeginShapeScale starts a scale-handle drag, snapshotting the origin
// geometry so aspect can be preserved from the pre-drag ratio.
func (s *Session) BeginShapeScale(shapeID string, pointer geo.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag != nil || !s.gm || s.tool != ToolShape {
		return false
	}
	sh := s.state.FindShape(shapeID)
	if sh == nil {
		return false
	}
	s.drag = &dragState{
		kind:           DragShapeScale,
		id:             shapeID,
		center:         sh.Position,
		originWidth:    sh.Width,
		originHeight:   sh.Height,
		originRotation: sh.Rotation,
		aspect:         sh.Width / sh.Height,
	}
	return true
}

// BeginShapeRotate starts a rotate-handle drag.
func (s *Session) BeginShapeRotate(shapeID string, pointer geo.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag != nil || !s.gm || s.tool != ToolShape {
		return false
	}
	sh := s.state.FindShape(shapeID)
	if sh == nil {
		return false
	}
	s.drag = &dragState{
		kind:           DragShapeRotate,
		id:             shapeID,
		center:         sh.Position,
		originWidth:    sh.Width,
		originHeight:   sh.Height,
		originRotation: sh.Rotation,
		aspect:         sh.Width / sh.Height,
	}
	return true
}

// DragTo updates the gesture from pointer movement. Move drags touch only
// the preview overlay; scale and rotate also write live values into local
// state so handles track the pointer.
func (s *Session) DragTo(pointer geo.Point, preserveAspect bool) {
	s.mu.Lock()
	d := s.drag
	if d == nil {
		s.mu.Unlock()
		return
	}

	switch d.kind {
	case DragToken, DragShape, DragBackground:
		d.position = geo.Point{X: pointer.X - d.offset.X, Y: pointer.Y - d.offset.Y}
		d.hasPreview = true
		s.mu.Unlock()
		return

	case DragShapeScale:
		size := geo.Clamp(2*geo.Distance(d.center, geo.ClampPoint(pointer)), minHandleScale, maxHandleScale)
		width, height := size, size
		if preserveAspect && d.aspect > 0 {
			height = geo.Clamp(width/d.aspect, minHandleScale, maxHandleScale)
		}
		d.width, d.height = width, height
		d.hasPreview = true
		if sh := s.state.FindShape(d.id); sh != nil {
			sh.Width = width
			sh.Height = height
			*sh = sh.Normalize()
		}

	case DragShapeRotate:
		angle := geo.AngleBetween(d.center, pointer)
		d.rotation = angle
		d.hasPreview = true
		if sh := s.state.FindShape(d.id); sh != nil {
			sh.Rotation = angle
			*sh = sh.Normalize()
		}
	}
	s.mu.Unlock()
	s.notify(DirtyShapes)
}

// Preview exposes the drag overlay for rendering.
func (s *Session) Preview() (DragPreview, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.drag
	if d == nil || !d.hasPreview {
		return DragPreview{}, false
	}
	return DragPreview{
		Kind:     d.kind,
		EntityID: d.id,
		Position: d.position,
		Width:    d.width,
		Height:   d.height,
		Rotation: d.rotation,
	}, true
}

// EndDrag finalizes at the last preview value (unchanged when the pointer
// never moved), mutates committed state immediately so the UI does not snap
// back, and commits one patch. A failed commit surfaces a notice and keeps
// the optimistic value; the next poll re-converges.
func (s *Session) EndDrag(ctx context.Context) error {
	s.mu.Lock()
	d := s.drag
	s.drag = nil
	if d == nil {
		s.mu.Unlock()
		return nil
	}

	switch d.kind {
	case DragToken:
		tok := s.state.FindToken(d.id)
		if tok == nil {
			s.mu.Unlock()
			return nil
		}
		final := tok.Position
		if d.hasPreview {
			final = geo.ClampPoint(d.position)
		}
		s.mu.Unlock()
		return runCommit(ctx, s, commitOp[battlemap.Token]{
			op:       "move token",
			reason:   DirtyTokens,
			entityID: d.id,
			optimistic: func(m *battlemap.Map) {
				if t := m.FindToken(d.id); t != nil {
					t.Position = final
				}
			},
			send: func(ctx context.Context) (battlemap.Token, error) {
				p := final
				return s.authority.UpdateToken(ctx, d.id, battlemap.TokenPatch{Position: &p})
			},
			fold: func(m *battlemap.Map, echo battlemap.Token) {
				if t := m.FindToken(d.id); t != nil {
					*t = echo.Normalize()
				}
			},
		})

	case DragShape:
		sh := s.state.FindShape(d.id)
		if sh == nil {
			s.mu.Unlock()
			return nil
		}
		final := sh.Position
		if d.hasPreview {
			final = geo.ClampPoint(d.position)
		}
		s.mu.Unlock()
		return runCommit(ctx, s, commitOp[battlemap.Shape]{
			op:       "move shape",
			reason:   DirtyShapes,
			entityID: d.id,
			optimistic: func(m *battlemap.Map) {
				if target := m.FindShape(d.id); target != nil {
					target.Position = final
				}
			},
			send: func(ctx context.Context) (battlemap.Shape, error) {
				p := final
				return s.authority.UpdateShape(ctx, d.id, battlemap.ShapePatch{Position: &p})
			},
			fold: func(m *battlemap.Map, echo battlemap.Shape) {
				if target := m.FindShape(d.id); target != nil {
					*target = echo.Normalize()
				}
			},
		})

	case DragBackground:
		final := s.state.Background.Position
		if d.hasPreview {
			final = geo.ClampPoint(d.position)
		}
		s.mu.Unlock()
		return runCommit(ctx, s, commitOp[battlemap.Background]{
			op:       "move background",
			reason:   DirtyBackground,
			entityID: "background",
			optimistic: func(m *battlemap.Map) {
				m.Background.Position = final
			},
			send: func(ctx context.Context) (battlemap.Background, error) {
				p := final
				return s.authority.UpdateBackground(ctx, battlemap.BackgroundPatch{Position: &p})
			},
			fold: func(m *battlemap.Map, echo battlemap.Background) {
				m.Background = echo.Normalize()
			},
		})

	case DragShapeScale:
		sh := s.state.FindShape(d.id)
		if sh == nil {
			s.mu.Unlock()
			return nil
		}
		// live values were already written during the drag
		width, height := sh.Width, sh.Height
		s.mu.Unlock()
		return runCommit(ctx, s, commitOp[battlemap.Shape]{
			op:       "scale shape",
			reason:   DirtyShapes,
			entityID: d.id,
			send: func(ctx context.Context) (battlemap.Shape, error) {
				w, h := width, height
				return s.authority.UpdateShape(ctx, d.id, battlemap.ShapePatch{Width: &w, Height: &h})
			},
			fold: func(m *battlemap.Map, echo battlemap.Shape) {
				if target := m.FindShape(d.id); target != nil {
					*target = echo.Normalize()
				}
			},
		})

	case DragShapeRotate:
		sh := s.state.FindShape(d.id)
		if sh == nil {
			s.mu.Unlock()
			return nil
		}
		rotation := sh.Rotation
		s.mu.Unlock()
		return runCommit(ctx, s, commitOp[battlemap.Shape]{
			op:       "rotate shape",
			reason:   DirtyShapes,
			entityID: d.id,
			send: func(ctx context.Context) (battlemap.Shape, error) {
				r := rotation
				return s.authority.UpdateShape(ctx, d.id, battlemap.ShapePatch{Rotation: &r})
			},
			fold: func(m *battlemap.Map, echo battlemap.Shape) {
				if target := m.FindShape(d.id); target != nil {
					*target = echo.Normalize()
				}
			},
		})
	}

	s.mu.Unlock()
	return nil
}

// CancelDrag is treated identically to pointer-up: the gesture finalizes at
// its last known value. There is no abort back to the original position.
func (s *Session) CancelDrag(ctx context.Context) error {
	return s.EndDrag(ctx)
}
