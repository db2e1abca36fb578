package client

import (
	"context"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
)

// backgroundDebounce batches rapid slider changes into one commit.
const backgroundDebounce = 200 * time.Millisecond

// QueueBackgroundPatch stages a partial background update, echoes it locally,
// and (re)arms the debounce timer. Later staged fields overlay earlier ones.
func (s *Session) QueueBackgroundPatch(ctx context.Context, patch battlemap.BackgroundPatch) {
	if !s.gm {
		return
	}
	s.mu.Lock()
	if s.pendingBackground == nil {
		s.pendingBackground = &battlemap.BackgroundPatch{}
	}
	mergeBackgroundPatch(s.pendingBackground, patch)
	s.state.Background = patch.Apply(s.state.Background)
	if s.backgroundTimer != nil {
		s.backgroundTimer.Stop()
	}
	s.backgroundTimer = time.AfterFunc(backgroundDebounce, func() {
		if err := s.FlushBackground(ctx); err != nil {
			s.diag("flush background: %v", err)
		}
	})
	s.mu.Unlock()
	s.notify(DirtyBackground)
}

// FlushBackground commits any staged background patch immediately.
func (s *Session) FlushBackground(ctx context.Context) error {
	s.mu.Lock()
	pending := s.pendingBackground
	s.pendingBackground = nil
	if s.backgroundTimer != nil {
		s.backgroundTimer.Stop()
		s.backgroundTimer = nil
	}
	s.mu.Unlock()
	if pending == nil {
		return nil
	}
	return s.SetBackground(ctx, *pending)
}

// SetBackground commits a partial background update. GM surface.
func (s *Session) SetBackground(ctx context.Context, patch battlemap.BackgroundPatch) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[battlemap.Background]{
		op:       "update background",
		reason:   DirtyBackground,
		entityID: "background",
		optimistic: func(m *battlemap.Map) {
			m.Background = patch.Apply(m.Background)
		},
		send: func(ctx context.Context) (battlemap.Background, error) {
			return s.authority.UpdateBackground(ctx, patch)
		},
		fold: func(m *battlemap.Map, echo battlemap.Background) {
			m.Background = echo.Normalize()
		},
	})
}

// ClearBackground resets the background record. GM surface.
func (s *Session) ClearBackground(ctx context.Context) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[struct{}]{
		op:       "clear background",
		reason:   DirtyBackground,
		entityID: "background",
		optimistic: func(m *battlemap.Map) {
			m.Background = battlemap.Background{}.Normalize()
		},
		send: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.authority.ClearBackground(ctx)
		},
	})
}

func mergeBackgroundPatch(dst *battlemap.BackgroundPatch, src battlemap.BackgroundPatch) {
	if src.URL != nil {
		dst.URL = src.URL
	}
	if src.Position != nil {
		dst.Position = src.Position
	}
	if src.Scale != nil {
		dst.Scale = src.Scale
	}
	if src.Rotation != nil {
		dst.Rotation = src.Rotation
	}
	if src.Opacity != nil {
		dst.Opacity = src.Opacity
	}
	if src.Fill != nil {
		dst.Fill = src.Fill
	}
}
