package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/geo"
	apperrors "github.com/seralith/wartable/internal/platform/errors"
	"github.com/seralith/wartable/internal/platform/requestctx"
	"github.com/seralith/wartable/internal/services/table/storage"
)

type fakeStore struct {
	mu      sync.Mutex
	maps    map[string]battlemap.Map
	library map[string]storage.LibraryEntry
	logs    map[string][]battlemap.BattleLogEntry
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		maps:    map[string]battlemap.Map{},
		library: map[string]storage.LibraryEntry{},
		logs:    map[string][]battlemap.BattleLogEntry{},
	}
}

func (f *fakeStore) GetMap(_ context.Context, campaignID string) (battlemap.Map, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.maps[campaignID]
	if !ok {
		return battlemap.Map{}, storage.ErrNotFound
	}
	return doc.Clone().Normalize(), nil
}

func (f *fakeStore) PutMap(_ context.Context, campaignID string, doc battlemap.Map) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maps[campaignID] = doc.Clone()
	return nil
}

func (f *fakeStore) ListLibrary(_ context.Context, campaignID string) ([]storage.LibraryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var entries []storage.LibraryEntry
	for _, entry := range f.library {
		if entry.CampaignID == campaignID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (f *fakeStore) GetLibraryEntry(_ context.Context, campaignID, entryID string) (storage.LibraryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.library[entryID]
	if !ok || entry.CampaignID != campaignID {
		return storage.LibraryEntry{}, storage.ErrNotFound
	}
	return entry, nil
}

func (f *fakeStore) PutLibraryEntry(_ context.Context, entry storage.LibraryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.library[entry.ID] = entry
	return nil
}

func (f *fakeStore) DeleteLibraryEntry(_ context.Context, campaignID, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.library[entryID]
	if !ok || entry.CampaignID != campaignID {
		return storage.ErrNotFound
	}
	delete(f.library, entryID)
	return nil
}

func (f *fakeStore) AppendLogEntry(_ context.Context, campaignID string, entry battlemap.BattleLogEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs[campaignID] = battlemap.AppendLog(f.logs[campaignID], entry)
	return nil
}

func (f *fakeStore) ListLog(_ context.Context, campaignID string) ([]battlemap.BattleLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logs[campaignID], nil
}

type fakeBroadcaster struct {
	entries []battlemap.BattleLogEntry
}

func (f *fakeBroadcaster) Broadcast(_ string, entry battlemap.BattleLogEntry) {
	f.entries = append(f.entries, entry)
}

func testService(store storage.Store, broadcast LogBroadcaster) *Service {
	seq := 0
	return NewService(store, broadcast).WithClock(
		func() time.Time { return time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC) },
		func() string { seq++; return fmt.Sprintf("id-%d", seq) },
	)
}

func gmCtx() context.Context {
	return requestctx.WithPrincipal(context.Background(), requestctx.Principal{UserID: "gm-1", GM: true})
}

func playerCtx(userID string) context.Context {
	return requestctx.WithPrincipal(context.Background(), requestctx.Principal{UserID: userID})
}

func TestSnapshotEmptyCampaignGetsFreshMap(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	doc, err := svc.Snapshot(gmCtx(), "camp-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Strokes) != 0 || len(doc.Tokens) != 0 {
		t.Fatalf("fresh map not empty: %+v", doc)
	}
	if _, err := svc.Snapshot(gmCtx(), ""); apperrors.CodeOf(err) != apperrors.CodeMapEmptyCampaignID {
		t.Fatalf("empty campaign err = %v", err)
	}
}

func TestAddStrokeAssignsIdentity(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	stroke := battlemap.Stroke{
		Color:  "#ffffff",
		Size:   4,
		Points: []geo.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}},
	}
	stored, err := svc.AddStroke(gmCtx(), "camp-1", stroke)
	if err != nil {
		t.Fatalf("add stroke: %v", err)
	}
	if stored.ID == "" {
		t.Fatal("no id assigned")
	}
	if stored.CreatedBy != "gm-1" {
		t.Fatalf("createdBy = %q, want gm-1", stored.CreatedBy)
	}
	doc, _ := svc.Snapshot(gmCtx(), "camp-1")
	if len(doc.Strokes) != 1 {
		t.Fatalf("strokes = %d, want 1", len(doc.Strokes))
	}
	if doc.UpdatedAt.IsZero() {
		t.Fatal("updatedAt not stamped")
	}
}

func TestAddStrokeRejectsShortStroke(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	_, err := svc.AddStroke(gmCtx(), "camp-1", battlemap.Stroke{Points: []geo.Point{{X: 0.1, Y: 0.1}}})
	if apperrors.CodeOf(err) != apperrors.CodeStrokeTooShort {
		t.Fatalf("err = %v, want STROKE_TOO_SHORT", err)
	}
	doc, _ := svc.Snapshot(gmCtx(), "camp-1")
	if len(doc.Strokes) != 0 {
		t.Fatal("short stroke persisted")
	}
}

func TestAddStrokeDrawerGating(t *testing.T) {
	store := newFakeStore()
	svc := testService(store, nil)
	points := []geo.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}}

	// Player without assignment is rejected.
	if _, err := svc.AddStroke(playerCtx("u1"), "camp-1", battlemap.Stroke{Points: points}); apperrors.CodeOf(err) != apperrors.CodeStrokeNotPermitted {
		t.Fatalf("unassigned err = %v", err)
	}

	allow := true
	drawer := "u1"
	if _, err := svc.UpdateSettings(gmCtx(), "camp-1", battlemap.SettingsPatch{AllowPlayerDrawing: &allow, DrawerUserID: &drawer}); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	if _, err := svc.AddStroke(playerCtx("u1"), "camp-1", battlemap.Stroke{Points: points}); err != nil {
		t.Fatalf("assigned drawer rejected: %v", err)
	}
	if _, err := svc.AddStroke(playerCtx("u2"), "camp-1", battlemap.Stroke{Points: points}); apperrors.CodeOf(err) != apperrors.CodeStrokeNotPermitted {
		t.Fatalf("other player err = %v", err)
	}

	paused := true
	if _, err := svc.UpdateSettings(gmCtx(), "camp-1", battlemap.SettingsPatch{Paused: &paused}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := svc.AddStroke(playerCtx("u1"), "camp-1", battlemap.Stroke{Points: points}); apperrors.CodeOf(err) != apperrors.CodeMapPaused {
		t.Fatalf("paused err = %v", err)
	}
	// Pause does not gate the GM.
	if _, err := svc.AddStroke(gmCtx(), "camp-1", battlemap.Stroke{Points: points}); err != nil {
		t.Fatalf("gm while paused: %v", err)
	}
}

func TestDeleteStrokeOwnership(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	allow := true
	drawer := "u1"
	_, _ = svc.UpdateSettings(gmCtx(), "camp-1", battlemap.SettingsPatch{AllowPlayerDrawing: &allow, DrawerUserID: &drawer})
	stored, err := svc.AddStroke(playerCtx("u1"), "camp-1", battlemap.Stroke{Points: []geo.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.DeleteStroke(playerCtx("u2"), "camp-1", stored.ID); apperrors.CodeOf(err) != apperrors.CodeStrokeNotPermitted {
		t.Fatalf("foreign delete err = %v", err)
	}
	if err := svc.DeleteStroke(playerCtx("u1"), "camp-1", stored.ID); err != nil {
		t.Fatalf("own delete: %v", err)
	}
	if err := svc.DeleteStroke(playerCtx("u1"), "camp-1", stored.ID); apperrors.CodeOf(err) != apperrors.CodeStrokeNotFound {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestUpdateTokenPlayerRules(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	token, err := svc.AddToken(gmCtx(), "camp-1", battlemap.Token{Kind: battlemap.TokenKindPlayer, OwnerID: "u1", Label: "Aya"})
	if err != nil {
		t.Fatalf("add token: %v", err)
	}
	allow := true
	_, _ = svc.UpdateSettings(gmCtx(), "camp-1", battlemap.SettingsPatch{AllowPlayerTokenMoves: &allow})

	// Off-board drop clamps rather than failing.
	pos := geo.Point{X: -0.3, Y: 0.6}
	moved, err := svc.UpdateToken(playerCtx("u1"), "camp-1", token.ID, battlemap.TokenPatch{Position: &pos})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.Position != (geo.Point{X: 0, Y: 0.6}) {
		t.Fatalf("position = %v, want clamped (0, 0.6)", moved.Position)
	}

	// Players cannot patch anything but position.
	label := "Renamed"
	if _, err := svc.UpdateToken(playerCtx("u1"), "camp-1", token.ID, battlemap.TokenPatch{Label: &label}); apperrors.CodeOf(err) != apperrors.CodeTokenNotMovable {
		t.Fatalf("label patch err = %v", err)
	}
	// Strangers cannot move at all.
	if _, err := svc.UpdateToken(playerCtx("u2"), "camp-1", token.ID, battlemap.TokenPatch{Position: &pos}); apperrors.CodeOf(err) != apperrors.CodeTokenNotMovable {
		t.Fatalf("stranger err = %v", err)
	}
	// GM can rename.
	if _, err := svc.UpdateToken(gmCtx(), "camp-1", token.ID, battlemap.TokenPatch{Label: &label}); err != nil {
		t.Fatalf("gm patch: %v", err)
	}
}

func TestAddTokenRequiresGM(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	if _, err := svc.AddToken(playerCtx("u1"), "camp-1", battlemap.Token{Kind: battlemap.TokenKindPlayer}); apperrors.CodeOf(err) != apperrors.CodeGrantForbidden {
		t.Fatalf("err = %v, want GRANT_FORBIDDEN", err)
	}
	if _, err := svc.AddToken(gmCtx(), "camp-1", battlemap.Token{Kind: "bogus"}); apperrors.CodeOf(err) != apperrors.CodeTokenInvalidKind {
		t.Fatalf("bad kind err = %v", err)
	}
}

func TestShapeLifecycle(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	shape, err := svc.AddShape(gmCtx(), "camp-1", battlemap.Shape{Kind: battlemap.ShapeKindCircle, Width: 0.2, Height: 0.5})
	if err != nil {
		t.Fatalf("add shape: %v", err)
	}
	if shape.Height != shape.Width {
		t.Fatal("circle not square on add")
	}

	width := 0.4
	patched, err := svc.UpdateShape(gmCtx(), "camp-1", shape.ID, battlemap.ShapePatch{Width: &width})
	if err != nil {
		t.Fatalf("update shape: %v", err)
	}
	if patched.Width != 0.4 || patched.Height != 0.4 {
		t.Fatalf("patched = %vx%v, want square 0.4", patched.Width, patched.Height)
	}

	if err := svc.DeleteShape(gmCtx(), "camp-1", shape.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.DeleteShape(gmCtx(), "camp-1", shape.ID); apperrors.CodeOf(err) != apperrors.CodeShapeNotFound {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestBackgroundPartialPatch(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	url := "https://example.test/map.png"
	bg, err := svc.UpdateBackground(gmCtx(), "camp-1", battlemap.BackgroundPatch{URL: &url})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if bg.URL != url || bg.Scale != 1 {
		t.Fatalf("bg = %+v", bg)
	}

	scale := 2.5
	bg, err = svc.UpdateBackground(gmCtx(), "camp-1", battlemap.BackgroundPatch{Scale: &scale})
	if err != nil {
		t.Fatalf("patch scale: %v", err)
	}
	if bg.URL != url {
		t.Fatal("partial patch wiped URL")
	}
	if bg.Scale != 2.5 {
		t.Fatalf("scale = %v, want 2.5", bg.Scale)
	}

	if err := svc.ClearBackground(gmCtx(), "camp-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	doc, _ := svc.Snapshot(gmCtx(), "camp-1")
	if doc.Background.URL != "" {
		t.Fatal("clear kept URL")
	}
}

func TestCombatFlow(t *testing.T) {
	svc := testService(newFakeStore(), nil)

	if _, err := svc.StartCombat(gmCtx(), "camp-1", nil, 1, 1); !errors.Is(err, battlemap.ErrCombatEmptyOrder) {
		t.Fatalf("empty order err = %v", err)
	}
	if _, err := svc.AdvanceTurn(gmCtx(), "camp-1"); !errors.Is(err, battlemap.ErrCombatInactive) {
		t.Fatalf("inactive advance err = %v", err)
	}

	combat, err := svc.StartCombat(gmCtx(), "camp-1", []string{"Goblin", "Hero", "Ogre"}, 1, 1)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !combat.Active || combat.Round != 1 || combat.Turn != 1 {
		t.Fatalf("combat = %+v", combat)
	}

	for i := 0; i < 2; i++ {
		if combat, err = svc.AdvanceTurn(gmCtx(), "camp-1"); err != nil {
			t.Fatalf("advance: %v", err)
		}
	}
	if combat.Turn != 3 || combat.Round != 1 {
		t.Fatalf("combat = %+v, want turn 3 round 1", combat)
	}
	if combat, err = svc.AdvanceTurn(gmCtx(), "camp-1"); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if combat.Turn != 1 || combat.Round != 2 {
		t.Fatalf("combat = %+v, want turn 1 round 2", combat)
	}

	combat, err = svc.EndCombat(gmCtx(), "camp-1")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if combat.Active || combat.Turn != 0 || combat.Round != 0 {
		t.Fatalf("ended combat = %+v", combat)
	}
	if _, err := svc.StartCombat(playerCtx("u1"), "camp-1", []string{"Hero"}, 1, 1); apperrors.CodeOf(err) != apperrors.CodeGrantForbidden {
		t.Fatalf("player start err = %v", err)
	}
}

func TestAppendLogBroadcastsAndCaps(t *testing.T) {
	store := newFakeStore()
	broadcast := &fakeBroadcaster{}
	svc := testService(store, broadcast)

	entry, err := svc.AppendLog(playerCtx("u1"), "camp-1", battlemap.BattleLogEntry{
		Action:  "token_moved",
		Message: "Aya moved",
		Details: map[string]any{"token": "t1"},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.ID == "" || entry.ActorID != "u1" {
		t.Fatalf("entry = %+v", entry)
	}
	if len(broadcast.entries) != 1 {
		t.Fatalf("broadcasts = %d, want 1", len(broadcast.entries))
	}

	if _, err := svc.Log(playerCtx("u1"), "camp-1"); apperrors.CodeOf(err) != apperrors.CodeGrantForbidden {
		t.Fatalf("player log read err = %v", err)
	}
	entries, err := svc.Log(gmCtx(), "camp-1")
	if err != nil {
		t.Fatalf("gm log read: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
}

func TestLibraryLifecycle(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	if _, err := svc.SaveToLibrary(gmCtx(), "camp-1", ""); apperrors.CodeOf(err) != apperrors.CodeLibraryEmptyName {
		t.Fatalf("empty name err = %v", err)
	}

	_, _ = svc.AddToken(gmCtx(), "camp-1", battlemap.Token{Kind: battlemap.TokenKindEnemy, Label: "Orc"})
	entry, err := svc.SaveToLibrary(gmCtx(), "camp-1", "Ambush")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// Mutate the live map, then load the saved entry back.
	if err := svc.ClearMap(gmCtx(), "camp-1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	paused := true
	_, _ = svc.UpdateSettings(gmCtx(), "camp-1", battlemap.SettingsPatch{Paused: &paused})

	doc, err := svc.LoadFromLibrary(gmCtx(), "camp-1", entry.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(doc.Tokens) != 1 || doc.Tokens[0].Label != "Orc" {
		t.Fatalf("loaded tokens = %+v", doc.Tokens)
	}
	if !doc.Paused {
		t.Fatal("load overwrote table administration state")
	}

	if err := svc.DeleteFromLibrary(gmCtx(), "camp-1", entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.LoadFromLibrary(gmCtx(), "camp-1", entry.ID); apperrors.CodeOf(err) != apperrors.CodeLibraryEntryMissing {
		t.Fatalf("load deleted err = %v", err)
	}
}

func TestClearMapRequiresGM(t *testing.T) {
	svc := testService(newFakeStore(), nil)
	if err := svc.ClearMap(playerCtx("u1"), "camp-1"); apperrors.CodeOf(err) != apperrors.CodeGrantForbidden {
		t.Fatalf("err = %v, want GRANT_FORBIDDEN", err)
	}
}

func TestConcurrentMutationsAllPersist(t *testing.T) {
	store := newFakeStore()
	var seq atomic.Int64
	svc := NewService(store, nil).WithClock(
		func() time.Time { return time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC) },
		func() string { return fmt.Sprintf("id-%d", seq.Add(1)) },
	)

	const writers = 32
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			stroke := battlemap.Stroke{
				Color:  "#ffffff",
				Size:   4,
				Points: []geo.Point{{X: 0.1, Y: 0.1}, {X: 0.2, Y: 0.2}},
			}
			_, errs[i] = svc.AddStroke(gmCtx(), "camp-1", stroke)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}
	doc, err := svc.Snapshot(gmCtx(), "camp-1")
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(doc.Strokes) != writers {
		t.Fatalf("persisted %d of %d concurrent strokes (updates lost)", len(doc.Strokes), writers)
	}
}
