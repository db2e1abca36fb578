package scenario

import (
	"context"
	"math"
	"strings"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/client"
	"github.com/seralith/wartable/internal/geo"
)

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

func (r *Runner) runStep(ctx context.Context, step Step) error {
	switch step.Kind {
	case "add_token":
		return r.runAddTokenStep(ctx, step)
	case "move_token":
		return r.runMoveTokenStep(ctx, step)
	case "remove_token":
		return r.runRemoveTokenStep(ctx, step)
	case "add_shape":
		return r.runAddShapeStep(ctx, step)
	case "stroke":
		return r.runStrokeStep(ctx, step)
	case "undo_stroke":
		return r.session.UndoStroke(ctx)
	case "background":
		return r.runBackgroundStep(ctx, step)
	case "settings":
		return r.runSettingsStep(ctx, step)
	case "start_combat":
		return r.runStartCombatStep(ctx, step)
	case "advance_turn":
		return r.session.AdvanceTurn(ctx)
	case "end_combat":
		return r.session.EndCombat(ctx)
	case "log":
		return r.runLogStep(ctx, step)
	case "save_library":
		return r.runSaveLibraryStep(ctx, step)
	case "load_library":
		return r.runLoadLibraryStep(ctx, step)
	case "clear_map":
		return r.session.ClearMap(ctx)
	case "reconcile":
		return r.session.Reconcile(ctx)
	case "expect_turn":
		return r.runExpectCombatField(step, "turn")
	case "expect_round":
		return r.runExpectCombatField(step, "round")
	case "expect_combat":
		return r.runExpectCombatActive(step)
	case "expect_tokens":
		return r.runExpectCount(step, "tokens")
	case "expect_strokes":
		return r.runExpectCount(step, "strokes")
	case "expect_shapes":
		return r.runExpectCount(step, "shapes")
	case "expect_position":
		return r.runExpectPositionStep(step)
	default:
		return r.failf("unknown step kind %q", step.Kind)
	}
}

// findTokenID resolves a scripted label to the authority-assigned token id.
func (r *Runner) findTokenID(label string) (string, bool) {
	state := r.session.State()
	for _, tok := range state.Tokens {
		if tok.Label == label {
			return tok.ID, true
		}
	}
	return "", false
}

func (r *Runner) runAddTokenStep(ctx context.Context, step Step) error {
	label := requiredString(step.Args, "label")
	if label == "" {
		return r.failf("token label is required")
	}
	token := battlemap.Token{
		Kind:    battlemap.TokenKind(optionalString(step.Args, "kind", string(battlemap.TokenKindCustom))),
		Label:   label,
		Color:   optionalString(step.Args, "color", ""),
		OwnerID: optionalString(step.Args, "owner", ""),
		Position: geo.Point{
			X: optionalFloat(step.Args, "x", 0.5),
			Y: optionalFloat(step.Args, "y", 0.5),
		},
	}
	return r.session.AddToken(ctx, token)
}

func (r *Runner) runMoveTokenStep(ctx context.Context, step Step) error {
	label := requiredString(step.Args, "label")
	id, ok := r.findTokenID(label)
	if !ok {
		return r.failf("token %q not found", label)
	}
	pos := geo.Point{
		X: optionalFloat(step.Args, "x", 0),
		Y: optionalFloat(step.Args, "y", 0),
	}
	return r.session.MoveToken(ctx, id, pos)
}

func (r *Runner) runRemoveTokenStep(ctx context.Context, step Step) error {
	label := requiredString(step.Args, "label")
	id, ok := r.findTokenID(label)
	if !ok {
		return r.failf("token %q not found", label)
	}
	return r.session.DeleteToken(ctx, id)
}

func (r *Runner) runAddShapeStep(ctx context.Context, step Step) error {
	kind := requiredString(step.Args, "kind")
	if kind == "" {
		return r.failf("shape kind is required")
	}
	shape := battlemap.Shape{
		Kind: battlemap.ShapeKind(kind),
		Position: geo.Point{
			X: optionalFloat(step.Args, "x", 0.5),
			Y: optionalFloat(step.Args, "y", 0.5),
		},
		Width:    optionalFloat(step.Args, "w", 0.2),
		Height:   optionalFloat(step.Args, "h", 0.2),
		Rotation: optionalFloat(step.Args, "rotation", 0),
		Fill:     optionalString(step.Args, "fill", ""),
		Opacity:  optionalFloat(step.Args, "opacity", 1),
	}
	return r.session.AddShape(ctx, shape)
}

// runStrokeStep draws a scripted polyline. The runner grabs the pen once per
// scenario; drawing requires holding it even as GM.
func (r *Runner) runStrokeStep(ctx context.Context, step Step) error {
	points, err := r.strokePoints(step.Args)
	if err != nil {
		return err
	}
	if len(points) < battlemap.MinStrokePoints {
		return r.failf("stroke needs at least %d points", battlemap.MinStrokePoints)
	}

	if !r.penHeld {
		userID := r.session.UserID()
		if err := r.session.UpdateSettings(ctx, battlemap.SettingsPatch{DrawerUserID: &userID}); err != nil {
			return err
		}
		r.penHeld = true
	}

	mode := optionalString(step.Args, "mode", "draw")
	switch mode {
	case "draw":
		r.session.SetTool(client.ToolDraw)
	case "erase":
		r.session.SetTool(client.ToolErase)
	default:
		return r.failf("unknown stroke mode %q", mode)
	}
	if color := optionalString(step.Args, "color", ""); color != "" {
		r.session.SetBrush(color, optionalFloat(step.Args, "size", 4))
	}

	if !r.session.BeginStroke(points[0]) {
		return r.failf("drawing refused")
	}
	for _, p := range points[1:] {
		r.session.ExtendStroke(p)
	}
	return r.session.EndStroke(ctx)
}

// strokePoints accepts both {x=...,y=...} tables and positional {x, y} pairs.
func (r *Runner) strokePoints(args map[string]any) ([]geo.Point, error) {
	raw, ok := args["points"].([]any)
	if !ok {
		return nil, r.failf("stroke points must be a list")
	}
	points := make([]geo.Point, 0, len(raw))
	for _, item := range raw {
		switch typed := item.(type) {
		case map[string]any:
			points = append(points, geo.Point{
				X: optionalFloat(typed, "x", 0),
				Y: optionalFloat(typed, "y", 0),
			})
		case []any:
			if len(typed) != 2 {
				return nil, r.failf("stroke point pairs need two coordinates")
			}
			points = append(points, geo.Point{X: toFloat(typed[0]), Y: toFloat(typed[1])})
		default:
			return nil, r.failf("unsupported stroke point %v", item)
		}
	}
	return points, nil
}

func (r *Runner) runBackgroundStep(ctx context.Context, step Step) error {
	patch := battlemap.BackgroundPatch{}
	if url, ok := step.Args["url"].(string); ok {
		patch.URL = &url
	}
	if fill, ok := step.Args["fill"].(string); ok {
		patch.Fill = &fill
	}
	if value, ok := readFloat(step.Args, "opacity"); ok {
		patch.Opacity = &value
	}
	if value, ok := readFloat(step.Args, "scale"); ok {
		patch.Scale = &value
	}
	if value, ok := readFloat(step.Args, "rotation"); ok {
		patch.Rotation = &value
	}
	return r.session.SetBackground(ctx, patch)
}

func (r *Runner) runSettingsStep(ctx context.Context, step Step) error {
	patch := battlemap.SettingsPatch{}
	if value, ok := readBool(step.Args, "allow_drawing"); ok {
		patch.AllowPlayerDrawing = &value
	}
	if value, ok := readBool(step.Args, "allow_moves"); ok {
		patch.AllowPlayerTokenMoves = &value
	}
	if value, ok := readBool(step.Args, "paused"); ok {
		patch.Paused = &value
	}
	if drawer, ok := step.Args["drawer"].(string); ok {
		patch.DrawerUserID = &drawer
	}
	return r.session.UpdateSettings(ctx, patch)
}

func (r *Runner) runStartCombatStep(ctx context.Context, step Step) error {
	order := requiredString(step.Args, "order")
	if order == "" {
		return r.failf("combat order is required")
	}
	round := optionalInt(step.Args, "round", 1)
	turn := optionalInt(step.Args, "turn", 1)
	return r.session.StartCombat(ctx, order, round, turn)
}

func (r *Runner) runLogStep(ctx context.Context, step Step) error {
	action := requiredString(step.Args, "action")
	if action == "" {
		return r.failf("log action is required")
	}
	// Append synchronously; scripted runs must observe their own entries.
	_, err := r.authority.AppendLog(ctx, battlemap.BattleLogEntry{
		Action:  action,
		Message: optionalString(step.Args, "message", ""),
		ActorID: r.session.UserID(),
	})
	return err
}

func (r *Runner) runSaveLibraryStep(ctx context.Context, step Step) error {
	name := requiredString(step.Args, "name")
	if name == "" {
		return r.failf("library entry name is required")
	}
	_, err := r.session.SaveToLibrary(ctx, name)
	return err
}

func (r *Runner) runLoadLibraryStep(ctx context.Context, step Step) error {
	name := requiredString(step.Args, "name")
	entries, err := r.session.ListLibrary(ctx)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.Name == name {
			return r.session.LoadFromLibrary(ctx, entry.ID)
		}
	}
	return r.failf("library entry %q not found", name)
}

func (r *Runner) runExpectCombatField(step Step, field string) error {
	combat := r.session.State().Combat
	want := optionalInt(step.Args, field, 0)
	got := combat.Turn
	if field == "round" {
		got = combat.Round
	}
	if got != want {
		return r.assertf("expected %s %d, got %d", field, want, got)
	}
	return nil
}

func (r *Runner) runExpectCombatActive(step Step) error {
	want := optionalBool(step.Args, "active", true)
	if got := r.session.State().Combat.Active; got != want {
		return r.assertf("expected combat active=%v, got %v", want, got)
	}
	return nil
}

func (r *Runner) runExpectCount(step Step, kind string) error {
	state := r.session.State()
	want := optionalInt(step.Args, "count", 0)
	var got int
	switch kind {
	case "tokens":
		got = len(state.Tokens)
	case "strokes":
		got = len(state.Strokes)
	case "shapes":
		got = len(state.Shapes)
	}
	if got != want {
		return r.assertf("expected %d %s, got %d", want, kind, got)
	}
	return nil
}

func (r *Runner) runExpectPositionStep(step Step) error {
	label := requiredString(step.Args, "label")
	id, ok := r.findTokenID(label)
	if !ok {
		return r.assertf("token %q not found", label)
	}
	state := r.session.State()
	tok := state.FindToken(id)
	if tok == nil {
		return r.assertf("token %q not found", label)
	}
	wantX := optionalFloat(step.Args, "x", 0)
	wantY := optionalFloat(step.Args, "y", 0)
	if math.Abs(tok.Position.X-wantX) > 1e-9 || math.Abs(tok.Position.Y-wantY) > 1e-9 {
		return r.assertf("expected %q at (%v, %v), got (%v, %v)", label, wantX, wantY, tok.Position.X, tok.Position.Y)
	}
	return nil
}

func requiredString(args map[string]any, key string) string {
	value, ok := args[key]
	if !ok {
		return ""
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return ""
}

func optionalString(args map[string]any, key, fallback string) string {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	text, ok := value.(string)
	if ok && text != "" {
		return text
	}
	return fallback
}

func optionalInt(args map[string]any, key string, fallback int) int {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	switch typed := value.(type) {
	case int:
		return typed
	case float64:
		return int(typed)
	default:
		return fallback
	}
}

func optionalFloat(args map[string]any, key string, fallback float64) float64 {
	if value, ok := readFloat(args, key); ok {
		return value
	}
	return fallback
}

func readFloat(args map[string]any, key string) (float64, bool) {
	value, ok := args[key]
	if !ok {
		return 0, false
	}
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

func toFloat(value any) float64 {
	switch typed := value.(type) {
	case int:
		return float64(typed)
	case float64:
		return typed
	default:
		return 0
	}
}

func optionalBool(args map[string]any, key string, fallback bool) bool {
	value, ok := readBool(args, key)
	if !ok {
		return fallback
	}
	return value
}

func readBool(args map[string]any, key string) (bool, bool) {
	value, ok := args[key]
	if !ok {
		return false, false
	}
	switch typed := value.(type) {
	case bool:
		return typed, true
	case string:
		lower := strings.ToLower(strings.TrimSpace(typed))
		if lower == "true" || lower == "yes" || lower == "1" {
			return true, true
		}
		if lower == "false" || lower == "no" || lower == "0" {
			return false, true
		}
	}
	return false, false
}
