package client

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
)

// Tool selects what pointer gestures operate on.
type Tool string

const (
	ToolSelect     Tool = "select"
	ToolDraw       Tool = "draw"
	ToolErase      Tool = "erase"
	ToolShape      Tool = "shape"
	ToolBackground Tool = "background"
)

const (
	// strokeEpsilon drops pointer jitter: moves closer than this to the
	// previous point are ignored to bound point count.
	strokeEpsilon = 0.002
	// undoDepth bounds the per-author undo stack; the oldest entry is
	// evicted first.
	undoDepth = 5
)

// SetTool switches the active tool. An in-progress draft stroke is discarded.
func (s *Session) SetTool(tool Tool) {
	s.mu.Lock()
	s.tool = tool
	s.draft = nil
	s.mu.Unlock()
}

// Tool returns the active tool.
func (s *Session) Tool() Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tool
}

// SetBrush configures stroke color and size for subsequent drafts.
func (s *Session) SetBrush(color string, size float64) {
	s.mu.Lock()
	s.brushColor = color
	s.brushSize = geo.Clamp(size, battlemap.MinStrokeSize, battlemap.MaxStrokeSize)
	s.mu.Unlock()
}

// canDrawLocked gates stroke capture: the pen must be assigned to this user,
// and players additionally need the drawing switch on and the table live.
func (s *Session) canDrawLocked() bool {
	if s.state.Drawer.UserID != s.userID {
		return false
	}
	if s.gm {
		return true
	}
	return s.state.Settings.AllowPlayerDrawing && !s.state.Paused
}

// BeginStroke starts a draft stroke seeded with one point. It reports whether
// capture began; a refusal means the capability should be disabled, not that
// an error occurred.
func (s *Session) BeginStroke(p geo.Point) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft != nil {
		return false
	}
	if s.tool != ToolDraw && s.tool != ToolErase {
		return false
	}
	if !s.canDrawLocked() {
		return false
	}
	mode := battlemap.StrokeModeDraw
	if s.tool == ToolErase {
		mode = battlemap.StrokeModeErase
	}
	s.draft = &battlemap.Stroke{
		ID:        draftID(),
		Color:     s.brushColor,
		Size:      s.brushSize,
		Mode:      mode,
		Points:    []geo.Point{geo.ClampPoint(p)},
		CreatedBy: s.userID,
	}
	return true
}

// ExtendStroke appends a point to the draft. Movement past the point cap is
// silently ignored.
func (s *Session) ExtendStroke(p geo.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return
	}
	if len(s.draft.Points) >= battlemap.MaxStrokePoints {
		return
	}
	p = geo.ClampPoint(p)
	last := s.draft.Points[len(s.draft.Points)-1]
	if geo.Distance(last, p) < strokeEpsilon {
		return
	}
	s.draft.Points = append(s.draft.Points, p)
}

// DraftStroke returns a copy of the in-progress stroke for overlay rendering.
func (s *Session) DraftStroke() (battlemap.Stroke, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return battlemap.Stroke{}, false
	}
	out := *s.draft
	out.Points = append([]geo.Point(nil), s.draft.Points...)
	return out, true
}

// DiscardStroke drops the draft without committing.
func (s *Session) DiscardStroke() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
}

// EndStroke finalizes the draft. Single-point gestures are discarded as
// rendering noise; anything else is echoed optimistically under its draft id
// and committed, with the authority's echo replacing the draft. The stroke
// joins the undo stack once the authority has named it.
func (s *Session) EndStroke(ctx context.Context) error {
	s.mu.Lock()
	draft := s.draft
	s.draft = nil
	if draft == nil || len(draft.Points) < battlemap.MinStrokePoints {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	local := draft.Normalize()
	payload := local
	payload.ID = ""
	return runCommit(ctx, s, commitOp[battlemap.Stroke]{
		op:       "add stroke",
		reason:   DirtyStrokes,
		entityID: local.ID,
		optimistic: func(m *battlemap.Map) {
			m.Strokes = append(m.Strokes, local)
		},
		send: func(ctx context.Context) (battlemap.Stroke, error) {
			return s.authority.AddStroke(ctx, payload)
		},
		fold: func(m *battlemap.Map, echo battlemap.Stroke) {
			m.RemoveStroke(local.ID)
			echo = echo.Normalize()
			m.Strokes = append(m.Strokes, echo)
			s.pushUndoLocked(echo.ID)
		},
		rollback: func(m *battlemap.Map) {
			m.RemoveStroke(local.ID)
		},
	})
}

// UndoStroke deletes the caller's most recent own stroke and pops the stack.
// With nothing left to undo it is a no-op.
func (s *Session) UndoStroke(ctx context.Context) error {
	s.mu.Lock()
	s.filterUndoLocked()
	if len(s.undo) == 0 {
		s.mu.Unlock()
		return nil
	}
	strokeID := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.mu.Unlock()

	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "undo stroke",
		reason:   DirtyStrokes,
		entityID: strokeID,
		optimistic: func(m *battlemap.Map) {
			m.RemoveStroke(strokeID)
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.DeleteStroke(ctx, strokeID)
		},
	})
}

// DeleteStroke removes a stroke outside the undo path. The GM may delete any
// stroke; players only their own. Anything else is a silent no-op.
func (s *Session) DeleteStroke(ctx context.Context, strokeID string) error {
	s.mu.Lock()
	stroke := s.state.FindStroke(strokeID)
	if stroke == nil || (!s.gm && stroke.CreatedBy != s.userID) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "delete stroke",
		reason:   DirtyStrokes,
		entityID: strokeID,
		optimistic: func(m *battlemap.Map) {
			m.RemoveStroke(strokeID)
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.DeleteStroke(ctx, strokeID)
		},
	})
}

// ClearStrokes bulk-clears all strokes. GM surface.
func (s *Session) ClearStrokes(ctx context.Context) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "clear strokes",
		reason:   DirtyStrokes,
		entityID: "strokes",
		optimistic: func(m *battlemap.Map) {
			m.Strokes = nil
			s.undo = s.undo[:0]
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.ClearStrokes(ctx)
		},
	})
}

// UndoSize reports how many strokes remain undoable after filtering against
// current state.
func (s *Session) UndoSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filterUndoLocked()
	return len(s.undo)
}

// pushUndoLocked records an own stroke, evicting the oldest past capacity.
// Requires s.mu.
func (s *Session) pushUndoLocked(strokeID string) {
	s.undo = append(s.undo, strokeID)
	if len(s.undo) > undoDepth {
		s.undo = s.undo[len(s.undo)-undoDepth:]
	}
}

// filterUndoLocked drops undo entries whose strokes no longer exist, e.g.
// after a bulk clear by another actor. Requires s.mu.
func (s *Session) filterUndoLocked() {
	kept := s.undo[:0]
	for _, id := range s.undo {
		if s.state.FindStroke(id) != nil {
			kept = append(kept, id)
		}
	}
	s.undo = kept
}
