package client

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
)

// AddToken places a new token. GM surface; for anyone else this is a silent
// validation no-op.
func (s *Session) AddToken(ctx context.Context, token battlemap.Token) error {
	if !s.gm {
		return nil
	}
	draft := token.Normalize()
	draft.ID = draftID()
	payload := token
	payload.ID = ""
	return runCommit(ctx, s, commitOp[battlemap.Token]{
		op:       "add token",
		reason:   DirtyTokens,
		entityID: draft.ID,
		optimistic: func(m *battlemap.Map) {
			m.Tokens = append(m.Tokens, draft)
		},
		send: func(ctx context.Context) (battlemap.Token, error) {
			return s.authority.AddToken(ctx, payload)
		},
		fold: func(m *battlemap.Map, echo battlemap.Token) {
			m.RemoveToken(draft.ID)
			m.Tokens = append(m.Tokens, echo.Normalize())
		},
		rollback: func(m *battlemap.Map) {
			m.RemoveToken(draft.ID)
		},
	})
}

// UpdateToken applies a partial token patch. The GM may change anything; a
// player may only move a token they own, and only while player moves are
// allowed and the table is not paused. Disallowed patches are silent no-ops.
func (s *Session) UpdateToken(ctx context.Context, tokenID string, patch battlemap.TokenPatch) error {
	s.mu.Lock()
	tok := s.state.FindToken(tokenID)
	if tok == nil {
		s.mu.Unlock()
		return nil
	}
	if !s.gm {
		if !patch.PositionOnly() || !tok.MovableBy(s.userID, s.gm, s.state.Settings, s.state.Paused) {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	return runCommit(ctx, s, commitOp[battlemap.Token]{
		op:       "update token",
		reason:   DirtyTokens,
		entityID: tokenID,
		optimistic: func(m *battlemap.Map) {
			if t := m.FindToken(tokenID); t != nil {
				*t = patch.Apply(*t)
			}
		},
		send: func(ctx context.Context) (battlemap.Token, error) {
			return s.authority.UpdateToken(ctx, tokenID, patch)
		},
		fold: func(m *battlemap.Map, echo battlemap.Token) {
			if t := m.FindToken(tokenID); t != nil {
				*t = echo.Normalize()
			}
		},
	})
}

// MoveToken is the position-only patch used by drags and tooling.
func (s *Session) MoveToken(ctx context.Context, tokenID string, pos geo.Point) error {
	p := geo.ClampPoint(pos)
	return s.UpdateToken(ctx, tokenID, battlemap.TokenPatch{Position: &p})
}

// DeleteToken removes a token. GM surface.
func (s *Session) DeleteToken(ctx context.Context, tokenID string) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "delete token",
		reason:   DirtyTokens,
		entityID: tokenID,
		optimistic: func(m *battlemap.Map) {
			m.RemoveToken(tokenID)
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.DeleteToken(ctx, tokenID)
		},
	})
}

// AddShape places a new shape overlay. GM surface.
func (s *Session) AddShape(ctx context.Context, shape battlemap.Shape) error {
	if !s.gm {
		return nil
	}
	draft := shape.Normalize()
	draft.ID = draftID()
	payload := shape
	payload.ID = ""
	return runCommit(ctx, s, commitOp[battlemap.Shape]{
		op:       "add shape",
		reason:   DirtyShapes,
		entityID: draft.ID,
		optimistic: func(m *battlemap.Map) {
			m.Shapes = append(m.Shapes, draft)
		},
		send: func(ctx context.Context) (battlemap.Shape, error) {
			return s.authority.AddShape(ctx, payload)
		},
		fold: func(m *battlemap.Map, echo battlemap.Shape) {
			m.RemoveShape(draft.ID)
			m.Shapes = append(m.Shapes, echo.Normalize())
		},
		rollback: func(m *battlemap.Map) {
			m.RemoveShape(draft.ID)
		},
	})
}

// UpdateShape applies a partial shape patch. GM surface.
func (s *Session) UpdateShape(ctx context.Context, shapeID string, patch battlemap.ShapePatch) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[battlemap.Shape]{
		op:       "update shape",
		reason:   DirtyShapes,
		entityID: shapeID,
		optimistic: func(m *battlemap.Map) {
			if sh := m.FindShape(shapeID); sh != nil {
				*sh = patch.Apply(*sh)
			}
		},
		send: func(ctx context.Context) (battlemap.Shape, error) {
			return s.authority.UpdateShape(ctx, shapeID, patch)
		},
		fold: func(m *battlemap.Map, echo battlemap.Shape) {
			if sh := m.FindShape(shapeID); sh != nil {
				*sh = echo.Normalize()
			}
		},
	})
}

// DeleteShape removes a shape. GM surface.
func (s *Session) DeleteShape(ctx context.Context, shapeID string) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "delete shape",
		reason:   DirtyShapes,
		entityID: shapeID,
		optimistic: func(m *battlemap.Map) {
			m.RemoveShape(shapeID)
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.DeleteShape(ctx, shapeID)
		},
	})
}

// UpdateSettings changes the table permission switches or drawer assignment.
// GM surface. The echo carries the authority's administration fields only.
func (s *Session) UpdateSettings(ctx context.Context, patch battlemap.SettingsPatch) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[battlemap.Map]{
		op:       "update settings",
		reason:   DirtySettings,
		entityID: "settings",
		send: func(ctx context.Context) (battlemap.Map, error) {
			return s.authority.UpdateSettings(ctx, patch)
		},
		fold: func(m *battlemap.Map, echo battlemap.Map) {
			m.Settings = echo.Settings
			m.Paused = echo.Paused
			m.Drawer = echo.Drawer
			m.UpdatedAt = echo.UpdatedAt
		},
	})
}

// ClearMap wipes strokes, shapes, tokens, and the background. GM surface.
func (s *Session) ClearMap(ctx context.Context) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "clear map",
		reason:   DirtyStrokes,
		entityID: "map",
		optimistic: func(m *battlemap.Map) {
			m.Clear()
			s.undo = s.undo[:0]
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.ClearMap(ctx)
		},
	})
}

// ListLibrary lists the campaign's saved maps.
func (s *Session) ListLibrary(ctx context.Context) ([]LibraryEntry, error) {
	return s.authority.ListLibrary(ctx)
}

// SaveToLibrary snapshots the authority's current map under a name.
func (s *Session) SaveToLibrary(ctx context.Context, name string) (LibraryEntry, error) {
	entry, err := s.authority.SaveToLibrary(ctx, name)
	if err != nil {
		s.report("save to library", err)
	}
	return entry, err
}

// LoadFromLibrary restores a saved map and adopts the returned snapshot.
func (s *Session) LoadFromLibrary(ctx context.Context, entryID string) error {
	doc, err := s.authority.LoadFromLibrary(ctx, entryID)
	if err != nil {
		s.report("load from library", err)
		return err
	}
	s.applySnapshot(doc, true)
	return nil
}

// DeleteFromLibrary removes a saved map entry.
func (s *Session) DeleteFromLibrary(ctx context.Context, entryID string) error {
	if err := s.authority.DeleteFromLibrary(ctx, entryID); err != nil {
		s.report("delete from library", err)
		return err
	}
	return nil
}
