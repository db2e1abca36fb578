package client

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
)

func assignDrawer(f *fakeAuthority, userID string) {
	f.mu.Lock()
	f.doc.Drawer = battlemap.Drawer{UserID: userID, AssignedAt: f.clock}
	f.bump()
	f.mu.Unlock()
}

func TestBeginStrokeGating(t *testing.T) {
	tests := []struct {
		name         string
		gm           bool
		drawer       string
		allowDrawing bool
		paused       bool
		tool         Tool
		want         bool
	}{
		{name: "gm with pen", gm: true, drawer: "user-1", tool: ToolDraw, want: true},
		{name: "gm without pen", gm: true, drawer: "other", tool: ToolDraw, want: false},
		{name: "gm wrong tool", gm: true, drawer: "user-1", tool: ToolSelect, want: false},
		{name: "player allowed", drawer: "user-1", allowDrawing: true, tool: ToolDraw, want: true},
		{name: "player drawing off", drawer: "user-1", tool: ToolDraw, want: false},
		{name: "player paused", drawer: "user-1", allowDrawing: true, paused: true, tool: ToolDraw, want: false},
		{name: "gm paused still draws", gm: true, drawer: "user-1", paused: true, tool: ToolErase, want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFakeAuthority()
			f.doc.Drawer = battlemap.Drawer{UserID: tc.drawer}
			f.doc.Settings.AllowPlayerDrawing = tc.allowDrawing
			f.doc.Paused = tc.paused
			f.bump()
			s := joinedSession(t, f, "user-1", tc.gm)
			s.SetTool(tc.tool)

			if got := s.BeginStroke(geo.Point{X: 0.5, Y: 0.5}); got != tc.want {
				t.Fatalf("BeginStroke = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExtendStrokeDedupeAndCap(t *testing.T) {
	f := newFakeAuthority()
	assignDrawer(f, "gm-1")
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolDraw)

	if !s.BeginStroke(geo.Point{X: 0, Y: 0}) {
		t.Fatal("begin refused")
	}
	// Jitter within epsilon is dropped.
	s.ExtendStroke(geo.Point{X: 0.001, Y: 0})
	draft, _ := s.DraftStroke()
	if len(draft.Points) != 1 {
		t.Fatalf("points = %d after jitter, want 1", len(draft.Points))
	}

	// Distinct movement past the cap is silently ignored.
	for i := 0; i < battlemap.MaxStrokePoints+100; i++ {
		s.ExtendStroke(geo.Point{X: float64(i%100) / 100, Y: float64(i/100) / 100})
	}
	draft, _ = s.DraftStroke()
	if len(draft.Points) != battlemap.MaxStrokePoints {
		t.Fatalf("points = %d, want cap %d", len(draft.Points), battlemap.MaxStrokePoints)
	}
}

func TestEndStrokeDiscardsSinglePoint(t *testing.T) {
	f := newFakeAuthority()
	assignDrawer(f, "gm-1")
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolDraw)

	if !s.BeginStroke(geo.Point{X: 0.5, Y: 0.5}) {
		t.Fatal("begin refused")
	}
	if err := s.EndStroke(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if f.addStrokeCalls != 0 {
		t.Fatalf("authority called %d times for a single-point stroke", f.addStrokeCalls)
	}
	if got := len(s.State().Strokes); got != 0 {
		t.Fatalf("strokes = %d, want 0", got)
	}
}

func TestEndStrokeCommitsAndTracksUndo(t *testing.T) {
	f := newFakeAuthority()
	assignDrawer(f, "gm-1")
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolDraw)
	s.SetBrush("#ff0000", 6)

	drawStroke := func(y float64) {
		t.Helper()
		if !s.BeginStroke(geo.Point{X: 0.1, Y: y}) {
			t.Fatal("begin refused")
		}
		s.ExtendStroke(geo.Point{X: 0.3, Y: y})
		s.ExtendStroke(geo.Point{X: 0.5, Y: y})
		if err := s.EndStroke(context.Background()); err != nil {
			t.Fatalf("end: %v", err)
		}
	}

	drawStroke(0.1)
	state := s.State()
	if len(state.Strokes) != 1 {
		t.Fatalf("strokes = %d, want 1", len(state.Strokes))
	}
	stroke := state.Strokes[0]
	if strings.HasPrefix(stroke.ID, "draft-") {
		t.Fatalf("draft id %q survived the echo", stroke.ID)
	}
	if stroke.Color != "#ff0000" || stroke.Size != 6 {
		t.Fatalf("brush not applied: %+v", stroke)
	}
	if stroke.CreatedBy != "gm-1" {
		t.Fatalf("createdBy = %q", stroke.CreatedBy)
	}

	// Undo stack caps at five, oldest evicted first.
	for i := 0; i < 6; i++ {
		drawStroke(0.2 + float64(i)/10)
	}
	if got := s.UndoSize(); got != undoDepth {
		t.Fatalf("undo size = %d, want %d", got, undoDepth)
	}

	before := len(s.State().Strokes)
	if err := s.UndoStroke(context.Background()); err != nil {
		t.Fatalf("undo: %v", err)
	}
	if got := len(s.State().Strokes); got != before-1 {
		t.Fatalf("strokes = %d after undo, want %d", got, before-1)
	}
	if got := s.UndoSize(); got != undoDepth-1 {
		t.Fatalf("undo size = %d after undo, want %d", got, undoDepth-1)
	}
}

func TestUndoStackFilteredAfterRemoteClear(t *testing.T) {
	f := newFakeAuthority()
	assignDrawer(f, "gm-1")
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolDraw)

	if !s.BeginStroke(geo.Point{X: 0.1, Y: 0.1}) {
		t.Fatal("begin refused")
	}
	s.ExtendStroke(geo.Point{X: 0.4, Y: 0.4})
	if err := s.EndStroke(context.Background()); err != nil {
		t.Fatalf("end: %v", err)
	}
	if s.UndoSize() != 1 {
		t.Fatal("expected one undoable stroke")
	}

	// Another actor clears the board; the next reconcile must drop the
	// stale undo entry.
	f.mu.Lock()
	f.doc.Strokes = nil
	f.bump()
	f.mu.Unlock()
	if err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if got := s.UndoSize(); got != 0 {
		t.Fatalf("undo size = %d after remote clear, want 0", got)
	}

	// Undoing with an empty stack is a no-op, not an error.
	if err := s.UndoStroke(context.Background()); err != nil {
		t.Fatalf("undo on empty stack: %v", err)
	}
}

func TestFailedStrokeCommitRollsBackDraft(t *testing.T) {
	f := newFakeAuthority()
	assignDrawer(f, "gm-1")
	s := joinedSession(t, f, "gm-1", true)
	s.SetTool(ToolDraw)

	f.failErr = fmt.Errorf("authority down")
	if !s.BeginStroke(geo.Point{X: 0.1, Y: 0.1}) {
		t.Fatal("begin refused")
	}
	s.ExtendStroke(geo.Point{X: 0.4, Y: 0.4})
	if err := s.EndStroke(context.Background()); err == nil {
		t.Fatal("expected commit error")
	}
	if got := len(s.State().Strokes); got != 0 {
		t.Fatalf("strokes = %d after failed commit, want 0", got)
	}
	if got := s.UndoSize(); got != 0 {
		t.Fatalf("undo size = %d after failed commit, want 0", got)
	}
}
