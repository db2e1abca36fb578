package client

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
)

// StartCombat parses free text into an initiative order and starts the
// encounter on the authority. GM surface; an empty order is rejected before
// any request is made.
func (s *Session) StartCombat(ctx context.Context, orderText string, round, turn int) error {
	if !s.gm {
		return nil
	}
	order := battlemap.ParseOrder(orderText)
	if len(order) == 0 {
		return battlemap.ErrCombatEmptyOrder
	}
	return runCommit(ctx, s, commitOp[battlemap.CombatState]{
		op:       "start combat",
		reason:   DirtyCombat,
		entityID: "combat",
		send: func(ctx context.Context) (battlemap.CombatState, error) {
			return s.authority.StartCombat(ctx, order, round, turn)
		},
		fold: func(m *battlemap.Map, echo battlemap.CombatState) {
			m.Combat = echo.Normalize()
		},
	})
}

// AdvanceTurn moves the tracker forward. Wraparound arithmetic is owned by
// the authority; the session renders whatever pair comes back.
func (s *Session) AdvanceTurn(ctx context.Context) error {
	if !s.gm {
		return nil
	}
	s.mu.Lock()
	active := s.state.Combat.Active
	s.mu.Unlock()
	if !active {
		return battlemap.ErrCombatInactive
	}
	return runCommit(ctx, s, commitOp[battlemap.CombatState]{
		op:       "advance turn",
		reason:   DirtyCombat,
		entityID: "combat",
		send: func(ctx context.Context) (battlemap.CombatState, error) {
			return s.authority.AdvanceTurn(ctx)
		},
		fold: func(m *battlemap.Map, echo battlemap.CombatState) {
			m.Combat = echo.Normalize()
		},
	})
}

// EndCombat stops the encounter; the last order survives for reference.
func (s *Session) EndCombat(ctx context.Context) error {
	if !s.gm {
		return nil
	}
	return runCommit(ctx, s, commitOp[battlemap.CombatState]{
		op:       "end combat",
		reason:   DirtyCombat,
		entityID: "combat",
		send: func(ctx context.Context) (battlemap.CombatState, error) {
			return s.authority.EndCombat(ctx)
		},
		fold: func(m *battlemap.Map, echo battlemap.CombatState) {
			m.Combat = echo.Normalize()
		},
	})
}

// TimelineEntry is the projection of one initiative slot for display.
type TimelineEntry struct {
	Label      string
	Position   int
	IsCurrent  bool
	IsComplete bool
}

// Timeline projects the combat order into display slots. It is recomputed on
// every call from (order, turn, active) and never stored.
func (s *Session) Timeline() []TimelineEntry {
	s.mu.Lock()
	combat := s.state.Combat
	order := append([]string(nil), combat.Order...)
	s.mu.Unlock()

	out := make([]TimelineEntry, len(order))
	for i, label := range order {
		pos := i + 1
		out[i] = TimelineEntry{
			Label:      label,
			Position:   pos,
			IsCurrent:  combat.Active && pos == combat.Turn,
			IsComplete: combat.Active && pos < combat.Turn,
		}
	}
	return out
}
