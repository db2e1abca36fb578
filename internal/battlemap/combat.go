package battlemap

import (
	"strings"

	apperrors "github.com/seralith/wartable/internal/platform/errors"
)

// MaxCombatOrder caps the initiative list.
const MaxCombatOrder = 32

// ErrCombatEmptyOrder rejects starting an encounter with no combatants.
var ErrCombatEmptyOrder = apperrors.New(apperrors.CodeCombatEmptyOrder, "combat order is empty")

// ErrCombatInactive rejects turn advancement outside an encounter.
var ErrCombatInactive = apperrors.New(apperrors.CodeCombatInactive, "combat is not active")

// CombatState is the initiative tracker. Turn is a 1-based index into Order
// while active; inactive combat zeroes turn and round but keeps the last
// order for reference.
type CombatState struct {
	Active bool     `json:"active"`
	Order  []string `json:"order,omitempty"`
	Turn   int      `json:"turn"`
	Round  int      `json:"round"`
}

// Normalize enforces the tracker invariants: turn in [1,len(order)] and round
// ≥1 while active, both zero while inactive.
func (c CombatState) Normalize() CombatState {
	if len(c.Order) > MaxCombatOrder {
		c.Order = c.Order[:MaxCombatOrder]
	}
	if !c.Active || len(c.Order) == 0 {
		c.Active = false
		c.Turn = 0
		c.Round = 0
		return c
	}
	if c.Turn < 1 {
		c.Turn = 1
	}
	if c.Turn > len(c.Order) {
		c.Turn = len(c.Order)
	}
	if c.Round < 1 {
		c.Round = 1
	}
	return c
}

// Start begins an encounter with the given order. Round and turn are clamped
// into range; an empty order is rejected.
func (c CombatState) Start(order []string, round, turn int) (CombatState, error) {
	trimmed := make([]string, 0, len(order))
	for _, entry := range order {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		trimmed = append(trimmed, entry)
		if len(trimmed) == MaxCombatOrder {
			break
		}
	}
	if len(trimmed) == 0 {
		return c, ErrCombatEmptyOrder
	}
	return CombatState{
		Active: true,
		Order:  trimmed,
		Turn:   turn,
		Round:  round,
	}.Normalize(), nil
}

// Advance moves to the next turn, wrapping overflow into a new round. The
// authority owns this arithmetic; clients only render the returned pair.
func (c CombatState) Advance() (CombatState, error) {
	c = c.Normalize()
	if !c.Active {
		return c, ErrCombatInactive
	}
	c.Turn++
	if c.Turn > len(c.Order) {
		c.Turn = 1
		c.Round++
	}
	return c, nil
}

// End stops the encounter. The last order is kept so the GM can restart with
// the same roster.
func (c CombatState) End() CombatState {
	c.Active = false
	c.Turn = 0
	c.Round = 0
	return c
}

// ParseOrder splits free text into an initiative order: newline or comma
// separated, trimmed, empties dropped, capped at MaxCombatOrder. Duplicate
// names are kept; entries are identified by position.
func ParseOrder(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == ','
	})
	order := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		order = append(order, field)
		if len(order) == MaxCombatOrder {
			break
		}
	}
	return order
}
