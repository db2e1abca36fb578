// Package battlemap holds the normalized battle-map document shared between
// the authority service and its clients.
//
// A Map is one campaign's tactical board: freehand strokes, movable tokens,
// geometric shapes, a positioned background image, drawer assignment, and the
// initiative tracker. The authority owns the canonical copy; clients echo
// mutations optimistically and reconcile against snapshots. Every boundary
// that touches a Map re-normalizes it, because stored documents, library
// entries, and remote responses are all untrusted input.
package battlemap

import (
	"time"

	"github.com/seralith/wartable/internal/geo"
)

// Settings are the GM-controlled permission switches for a table.
type Settings struct {
	AllowPlayerDrawing    bool `json:"allowPlayerDrawing"`
	AllowPlayerTokenMoves bool `json:"allowPlayerTokenMoves"`
}

// Drawer records which principal currently holds the pen. At most one user
// may freehand-draw at a time; an empty UserID means the pen is unassigned.
type Drawer struct {
	UserID     string    `json:"userId,omitempty"`
	AssignedAt time.Time `json:"assignedAt,omitempty"`
}

// Map is the root aggregate, one per campaign.
type Map struct {
	Strokes    []Stroke    `json:"strokes"`
	Tokens     []Token     `json:"tokens"`
	Shapes     []Shape     `json:"shapes"`
	Background Background  `json:"background"`
	Settings   Settings    `json:"settings"`
	Paused     bool        `json:"paused"`
	Drawer     Drawer      `json:"drawer"`
	Combat     CombatState `json:"combat"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// Normalize re-clamps every entity in the document and drops entries that
// could never have been persisted by a well-behaved authority (strokes under
// two points, entities without ids).
func (m Map) Normalize() Map {
	strokes := make([]Stroke, 0, len(m.Strokes))
	for _, s := range m.Strokes {
		s = s.Normalize()
		if s.ID == "" || len(s.Points) < MinStrokePoints {
			continue
		}
		strokes = append(strokes, s)
	}
	m.Strokes = strokes

	tokens := make([]Token, 0, len(m.Tokens))
	for _, tok := range m.Tokens {
		if tok.ID == "" {
			continue
		}
		tokens = append(tokens, tok.Normalize())
	}
	m.Tokens = tokens

	shapes := make([]Shape, 0, len(m.Shapes))
	for _, sh := range m.Shapes {
		if sh.ID == "" {
			continue
		}
		shapes = append(shapes, sh.Normalize())
	}
	m.Shapes = shapes

	m.Background = m.Background.Normalize()
	m.Combat = m.Combat.Normalize()
	return m
}

// FindToken returns a pointer into the token slice, or nil.
func (m *Map) FindToken(id string) *Token {
	for i := range m.Tokens {
		if m.Tokens[i].ID == id {
			return &m.Tokens[i]
		}
	}
	return nil
}

// FindShape returns a pointer into the shape slice, or nil.
func (m *Map) FindShape(id string) *Shape {
	for i := range m.Shapes {
		if m.Shapes[i].ID == id {
			return &m.Shapes[i]
		}
	}
	return nil
}

// FindStroke returns a pointer into the stroke slice, or nil.
func (m *Map) FindStroke(id string) *Stroke {
	for i := range m.Strokes {
		if m.Strokes[i].ID == id {
			return &m.Strokes[i]
		}
	}
	return nil
}

// RemoveStroke deletes a stroke by id, preserving paint order. It reports
// whether the stroke was present.
func (m *Map) RemoveStroke(id string) bool {
	for i := range m.Strokes {
		if m.Strokes[i].ID == id {
			m.Strokes = append(m.Strokes[:i], m.Strokes[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveToken deletes a token by id and reports whether it was present.
func (m *Map) RemoveToken(id string) bool {
	for i := range m.Tokens {
		if m.Tokens[i].ID == id {
			m.Tokens = append(m.Tokens[:i], m.Tokens[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveShape deletes a shape by id and reports whether it was present.
func (m *Map) RemoveShape(id string) bool {
	for i := range m.Shapes {
		if m.Shapes[i].ID == id {
			m.Shapes = append(m.Shapes[:i], m.Shapes[i+1:]...)
			return true
		}
	}
	return false
}

// Clear wipes strokes, shapes, tokens, and the background in one action.
// Drawer assignment, settings, and combat state survive a clear.
func (m *Map) Clear() {
	m.Strokes = nil
	m.Shapes = nil
	m.Tokens = nil
	m.Background = Background{}.Normalize()
}

// Clone returns a deep copy so callers can hand out snapshots without
// aliasing the live document.
func (m Map) Clone() Map {
	out := m
	out.Strokes = make([]Stroke, len(m.Strokes))
	for i, s := range m.Strokes {
		out.Strokes[i] = s
		out.Strokes[i].Points = append([]geo.Point(nil), s.Points...)
	}
	out.Tokens = append([]Token(nil), m.Tokens...)
	out.Shapes = append([]Shape(nil), m.Shapes...)
	out.Combat.Order = append([]string(nil), m.Combat.Order...)
	return out
}
