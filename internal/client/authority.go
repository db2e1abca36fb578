package client

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
)

// LibraryEntry identifies a saved map document on the authority.
type LibraryEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	UpdatedAt int64  `json:"updatedAt"`
}

// Authority is the remote holder of canonical map state, scoped to one
// campaign. Every call is an independent request; no ordering is guaranteed
// across calls, and responses are treated as untrusted input.
type Authority interface {
	Snapshot(ctx context.Context) (battlemap.Map, error)

	AddStroke(ctx context.Context, stroke battlemap.Stroke) (battlemap.Stroke, error)
	DeleteStroke(ctx context.Context, strokeID string) error
	ClearStrokes(ctx context.Context) error
	ClearMap(ctx context.Context) error

	AddToken(ctx context.Context, token battlemap.Token) (battlemap.Token, error)
	UpdateToken(ctx context.Context, tokenID string, patch battlemap.TokenPatch) (battlemap.Token, error)
	DeleteToken(ctx context.Context, tokenID string) error

	AddShape(ctx context.Context, shape battlemap.Shape) (battlemap.Shape, error)
	UpdateShape(ctx context.Context, shapeID string, patch battlemap.ShapePatch) (battlemap.Shape, error)
	DeleteShape(ctx context.Context, shapeID string) error

	UpdateBackground(ctx context.Context, patch battlemap.BackgroundPatch) (battlemap.Background, error)
	ClearBackground(ctx context.Context) error

	UpdateSettings(ctx context.Context, patch battlemap.SettingsPatch) (battlemap.Map, error)

	StartCombat(ctx context.Context, order []string, round, turn int) (battlemap.CombatState, error)
	AdvanceTurn(ctx context.Context) (battlemap.CombatState, error)
	EndCombat(ctx context.Context) (battlemap.CombatState, error)

	AppendLog(ctx context.Context, entry battlemap.BattleLogEntry) (battlemap.BattleLogEntry, error)
	Log(ctx context.Context) ([]battlemap.BattleLogEntry, error)

	ListLibrary(ctx context.Context) ([]LibraryEntry, error)
	SaveToLibrary(ctx context.Context, name string) (LibraryEntry, error)
	LoadFromLibrary(ctx context.Context, entryID string) (battlemap.Map, error)
	DeleteFromLibrary(ctx context.Context, entryID string) error
}

// LogStreamer is the optional best-effort push channel for battle-log
// entries. Push supplements polling and is never required for correctness.
type LogStreamer interface {
	StreamLog(ctx context.Context, fn func(battlemap.BattleLogEntry)) error
}
