package client

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
)

func seedToken(f *fakeAuthority, owner string, pos geo.Point) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("token")
	f.doc.Tokens = append(f.doc.Tokens, battlemap.Token{
		ID:       id,
		Kind:     battlemap.TokenKindPlayer,
		OwnerID:  owner,
		Position: pos,
	}.Normalize())
	f.bump()
	return id
}

func seedShape(f *fakeAuthority, kind battlemap.ShapeKind, pos geo.Point, w, h float64) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID("shape")
	f.doc.Shapes = append(f.doc.Shapes, battlemap.Shape{
		ID:       id,
		Kind:     kind,
		Position: pos,
		Width:    w,
		Height:   h,
		Opacity:  1,
	}.Normalize())
	f.bump()
	return id
}

func stateShape(t *testing.T, s *Session, id string) battlemap.Shape {
	t.Helper()
	state := s.State()
	sh := state.FindShape(id)
	if sh == nil {
		t.Fatalf("shape %s missing from state", id)
	}
	return *sh
}

func TestTokenDragClampsOffBoardDrop(t *testing.T) {
	f := newFakeAuthority()
	tokenID := seedToken(f, "", geo.Point{X: 0.5, Y: 0.5})
	s := joinedSession(t, f, "gm-1", true)

	if !s.BeginTokenDrag(tokenID, geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatal("drag refused")
	}
	s.DragTo(geo.Point{X: 0.5, Y: 0.5}, false)
	if _, ok := s.Preview(); !ok {
		t.Fatal("no preview mid-gesture")
	}
	// Committed state is untouched while only the preview moves.
	if got := s.State().Tokens[0].Position; got != (geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatalf("committed position moved mid-drag: %v", got)
	}

	s.DragTo(geo.Point{X: -0.3, Y: 0.6}, false)
	if err := s.EndDrag(context.Background()); err != nil {
		t.Fatalf("end drag: %v", err)
	}
	if _, ok := s.Preview(); ok {
		t.Fatal("preview survived pointer-up")
	}
	if got := s.State().Tokens[0].Position; got != (geo.Point{X: 0, Y: 0.6}) {
		t.Fatalf("position = %v, want clamped (0, 0.6)", got)
	}
}

func TestTokenDragAuthorization(t *testing.T) {
	tests := []struct {
		name       string
		owner      string
		userID     string
		gm         bool
		allowMoves bool
		paused     bool
		want       bool
	}{
		{name: "gm always", owner: "p1", userID: "gm", gm: true, want: true},
		{name: "owner allowed", owner: "p1", userID: "p1", allowMoves: true, want: true},
		{name: "owner moves off", owner: "p1", userID: "p1", want: false},
		{name: "owner paused", owner: "p1", userID: "p1", allowMoves: true, paused: true, want: false},
		{name: "stranger", owner: "p1", userID: "p2", allowMoves: true, want: false},
		{name: "unowned token", owner: "", userID: "p1", allowMoves: true, want: false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeAuthority()
			f.doc.Settings.AllowPlayerTokenMoves = tc.allowMoves
			f.doc.Paused = tc.paused
			tokenID := seedToken(f, tc.owner, geo.Point{X: 0.5, Y: 0.5})
			s := joinedSession(t, f, tc.userID, tc.gm)

			if got := s.BeginTokenDrag(tokenID, geo.Point{X: 0.5, Y: 0.5}); got != tc.want {
				t.Fatalf("BeginTokenDrag = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestShapeScaleKeepsCircleSquare(t *testing.T) {
	f := newFakeAuthority()
	shapeID := seedShape(f, battlemap.ShapeKindCircle, geo.Point{X: 0.5, Y: 0.5}, 0.2, 0.2)
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolShape)

	if !s.BeginShapeScale(shapeID, geo.Point{X: 0.6, Y: 0.5}) {
		t.Fatal("scale refused")
	}
	// Pointer 0.2 from center: target size 0.4 on both axes.
	s.DragTo(geo.Point{X: 0.7, Y: 0.5}, false)
	sh := stateShape(t, s, shapeID)
	if sh.Width != sh.Height {
		t.Fatalf("circle distorted mid-drag: %v x %v", sh.Width, sh.Height)
	}
	if math.Abs(sh.Width-0.4) > 1e-9 {
		t.Fatalf("width = %v, want 0.4", sh.Width)
	}

	if err := s.EndDrag(context.Background()); err != nil {
		t.Fatalf("end drag: %v", err)
	}
	sh = stateShape(t, s, shapeID)
	if sh.Width != sh.Height {
		t.Fatalf("circle distorted after commit: %v x %v", sh.Width, sh.Height)
	}
}

func TestShapeScalePreservesAspectWithModifier(t *testing.T) {
	f := newFakeAuthority()
	shapeID := seedShape(f, battlemap.ShapeKindRectangle, geo.Point{X: 0.5, Y: 0.5}, 0.4, 0.2)
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolShape)

	if !s.BeginShapeScale(shapeID, geo.Point{X: 0.7, Y: 0.5}) {
		t.Fatal("scale refused")
	}
	s.DragTo(geo.Point{X: 0.8, Y: 0.5}, true)
	sh := stateShape(t, s, shapeID)
	if math.Abs(sh.Width-0.6) > 1e-9 {
		t.Fatalf("width = %v, want 0.6", sh.Width)
	}
	if math.Abs(sh.Height-0.3) > 1e-9 {
		t.Fatalf("height = %v, want 0.3 from the 2:1 origin aspect", sh.Height)
	}
}

func TestShapeRotateNormalizesAngle(t *testing.T) {
	f := newFakeAuthority()
	shapeID := seedShape(f, battlemap.ShapeKindRectangle, geo.Point{X: 0.5, Y: 0.5}, 0.2, 0.2)
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolShape)

	if !s.BeginShapeRotate(shapeID, geo.Point{X: 0.7, Y: 0.5}) {
		t.Fatal("rotate refused")
	}
	// Pointer straight above center: atan2 gives -90, normalized to 270.
	s.DragTo(geo.Point{X: 0.5, Y: 0.4}, false)
	sh := stateShape(t, s, shapeID)
	if math.Abs(sh.Rotation-270) > 1e-9 {
		t.Fatalf("rotation = %v, want 270", sh.Rotation)
	}
	if err := s.EndDrag(context.Background()); err != nil {
		t.Fatalf("end drag: %v", err)
	}
}

func TestShapeDragRequiresGMAndTool(t *testing.T) {
	f := newFakeAuthority()
	shapeID := seedShape(f, battlemap.ShapeKindRectangle, geo.Point{X: 0.5, Y: 0.5}, 0.2, 0.2)

	player := joinedSession(t, f, "p1", false)
	player.SetTool(ToolShape)
	if player.BeginShapeDrag(shapeID, geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatal("player moved a shape")
	}

	gm := joinedSession(t, f, "gm-1", true)
	if gm.BeginShapeDrag(shapeID, geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatal("shape drag accepted without the shape tool")
	}
	gm.SetTool(ToolShape)
	if !gm.BeginShapeDrag(shapeID, geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatal("gm shape drag refused")
	}
}

func TestFailedCommitKeepsOptimisticPosition(t *testing.T) {
	f := newFakeAuthority()
	tokenID := seedToken(f, "", geo.Point{X: 0.5, Y: 0.5})
	s := joinedSession(t, f, "gm-1", true)

	var notices []Notice
	s.SetNoticeHandler(func(n Notice) { notices = append(notices, n) })

	if !s.BeginTokenDrag(tokenID, geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatal("drag refused")
	}
	s.DragTo(geo.Point{X: 0.8, Y: 0.8}, false)
	f.failErr = fmt.Errorf("authority down")
	if err := s.EndDrag(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}

	// Deliberately no rollback: the board keeps the dropped position and
	// the user sees a notice.
	if got := s.State().Tokens[0].Position; got != (geo.Point{X: 0.8, Y: 0.8}) {
		t.Fatalf("position = %v, want the optimistic drop kept", got)
	}
	if len(notices) != 1 || notices[0].Op != "move token" {
		t.Fatalf("notices = %+v", notices)
	}
}

func TestCancelDragFinalizesLikePointerUp(t *testing.T) {
	f := newFakeAuthority()
	tokenID := seedToken(f, "", geo.Point{X: 0.2, Y: 0.2})
	s := joinedSession(t, f, "gm-1", true)

	if !s.BeginTokenDrag(tokenID, geo.Point{X: 0.2, Y: 0.2}) {
		t.Fatal("drag refused")
	}
	s.DragTo(geo.Point{X: 0.6, Y: 0.6}, false)
	if err := s.CancelDrag(context.Background()); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := s.State().Tokens[0].Position; got != (geo.Point{X: 0.6, Y: 0.6}) {
		t.Fatalf("position = %v, want the last known position, not the origin", got)
	}
}
