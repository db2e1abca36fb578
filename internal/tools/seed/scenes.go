package seed

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/client"
	"github.com/seralith/wartable/internal/geo"
)

type scene struct {
	name  string
	build func(context.Context, *client.Session, CardSource) error
}

// Scenes run in order; the last one stays live on the board. Earlier scenes
// survive as library entries.
var scenes = []scene{
	{name: "market", build: buildMarket},
	{name: "ambush", build: buildAmbush},
}

func strPtr(s string) *string   { return &s }
func boolPtr(b bool) *bool      { return &b }
func f64Ptr(f float64) *float64 { return &f }

func addCardToken(ctx context.Context, s *client.Session, cards CardSource, t battlemap.Token) error {
	if t.RefID != "" {
		if tooltip := tooltipFor(cards, t.RefID); tooltip != "" {
			t.Tooltip = tooltip
			t.ShowTooltip = true
		}
	}
	return s.AddToken(ctx, t)
}

// buildMarket lays out a village market and files it in the library.
func buildMarket(ctx context.Context, s *client.Session, cards CardSource) error {
	if err := s.ClearMap(ctx); err != nil {
		return err
	}
	if err := s.SetBackground(ctx, battlemap.BackgroundPatch{
		Fill:    strPtr("#d8cfa8"),
		Opacity: f64Ptr(1),
	}); err != nil {
		return err
	}

	stalls := []battlemap.Shape{
		{Kind: battlemap.ShapeKindRectangle, Position: geo.Point{X: 0.3, Y: 0.25}, Width: 0.16, Height: 0.1, Fill: "#8a5a33", Opacity: 0.9},
		{Kind: battlemap.ShapeKindRectangle, Position: geo.Point{X: 0.7, Y: 0.25}, Width: 0.16, Height: 0.1, Fill: "#8a5a33", Opacity: 0.9},
		{Kind: battlemap.ShapeKindCircle, Position: geo.Point{X: 0.5, Y: 0.6}, Width: 0.12, Height: 0.12, Fill: "#6b7f94", Opacity: 0.8},
	}
	for _, sh := range stalls {
		if err := s.AddShape(ctx, sh); err != nil {
			return err
		}
	}

	tokens := []battlemap.Token{
		{Kind: battlemap.TokenKindNPC, RefID: "npc-fenwick", Label: "Fenwick", Color: "#caa14f", Position: geo.Point{X: 0.3, Y: 0.32}},
		{Kind: battlemap.TokenKindNPC, RefID: "npc-strongbox", Label: "Strongbox", Color: "#7d7d7d", Position: geo.Point{X: 0.7, Y: 0.32}},
	}
	for _, t := range tokens {
		if err := addCardToken(ctx, s, cards, t); err != nil {
			return err
		}
	}

	_, err := s.SaveToLibrary(ctx, "Market Day")
	return err
}

// buildAmbush stages a forest ambush with a running combat and leaves it as
// the live board.
func buildAmbush(ctx context.Context, s *client.Session, cards CardSource) error {
	if err := s.ClearMap(ctx); err != nil {
		return err
	}
	if err := s.SetBackground(ctx, battlemap.BackgroundPatch{
		Fill:    strPtr("#2d4739"),
		Opacity: f64Ptr(1),
	}); err != nil {
		return err
	}

	// The road and the treeline that hides the goblins.
	terrain := []battlemap.Shape{
		{Kind: battlemap.ShapeKindLine, Position: geo.Point{X: 0.5, Y: 0.55}, Width: 0.9, Height: 0.04, Fill: "#a89f91", Opacity: 0.7},
		{Kind: battlemap.ShapeKindCircle, Position: geo.Point{X: 0.2, Y: 0.3}, Width: 0.14, Height: 0.14, Fill: "#1d3325", Opacity: 0.85},
		{Kind: battlemap.ShapeKindCircle, Position: geo.Point{X: 0.45, Y: 0.25}, Width: 0.18, Height: 0.18, Fill: "#1d3325", Opacity: 0.85},
		{Kind: battlemap.ShapeKindCircle, Position: geo.Point{X: 0.75, Y: 0.3}, Width: 0.12, Height: 0.12, Fill: "#1d3325", Opacity: 0.85},
	}
	for _, sh := range terrain {
		if err := s.AddShape(ctx, sh); err != nil {
			return err
		}
	}

	tokens := []battlemap.Token{
		{Kind: battlemap.TokenKindPlayer, RefID: "pc-rook", Label: "Rook", Color: "#b0413e", Position: geo.Point{X: 0.35, Y: 0.6}, OwnerID: "user-rook"},
		{Kind: battlemap.TokenKindPlayer, RefID: "pc-imara", Label: "Imara", Color: "#4f7cac", Position: geo.Point{X: 0.45, Y: 0.65}, OwnerID: "user-imara"},
		{Kind: battlemap.TokenKindDemon, RefID: "demon-vetch", Label: "Vetch", Color: "#6d3f8f", Position: geo.Point{X: 0.4, Y: 0.55}},
		{Kind: battlemap.TokenKindEnemy, RefID: "enemy-goblin", Label: "Goblin A", Color: "#5c7a3f", Position: geo.Point{X: 0.25, Y: 0.35}},
		{Kind: battlemap.TokenKindEnemy, RefID: "enemy-goblin", Label: "Goblin B", Color: "#5c7a3f", Position: geo.Point{X: 0.5, Y: 0.3}},
		{Kind: battlemap.TokenKindEnemy, RefID: "enemy-goblin", Label: "Goblin C", Color: "#5c7a3f", Position: geo.Point{X: 0.72, Y: 0.35}},
	}
	for _, t := range tokens {
		if err := addCardToken(ctx, s, cards, t); err != nil {
			return err
		}
	}

	if err := s.UpdateSettings(ctx, battlemap.SettingsPatch{
		AllowPlayerTokenMoves: boolPtr(true),
		AllowPlayerDrawing:    boolPtr(false),
	}); err != nil {
		return err
	}

	if err := s.StartCombat(ctx, "Rook, Goblin A, Imara, Goblin B, Vetch, Goblin C", 1, 1); err != nil {
		return err
	}

	_, err := s.SaveToLibrary(ctx, "Forest Ambush")
	return err
}
