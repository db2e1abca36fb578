// Package app hosts the map authority runtime: the service that serializes
// every mutation against the canonical map document.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
	apperrors "github.com/seralith/wartable/internal/platform/errors"
	"github.com/seralith/wartable/internal/platform/id"
	"github.com/seralith/wartable/internal/platform/requestctx"
	"github.com/seralith/wartable/internal/services/table/storage"
)

// LogBroadcaster pushes freshly appended battle-log entries to live
// subscribers. The push channel is best effort; failures never affect the
// append.
type LogBroadcaster interface {
	Broadcast(campaignID string, entry battlemap.BattleLogEntry)
}

// Service applies mutations to campaign map documents. Every mutation loads
// the stored document, applies a narrow change, bumps UpdatedAt, and persists
// the normalized result; the response is what clients reconcile against.
type Service struct {
	store     storage.Store
	broadcast LogBroadcaster
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewService wires a Service. broadcast may be nil when no push channel is
// attached.
func NewService(store storage.Store, broadcast LogBroadcaster) *Service {
	return &Service{
		store:     store,
		broadcast: broadcast,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     id.MustNewID,
		locks:     map[string]*sync.Mutex{},
	}
}

// campaignLock returns the mutex serializing writes for one campaign.
func (s *Service) campaignLock(campaignID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[campaignID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[campaignID] = lock
	}
	return lock
}

// WithClock overrides time and id generation, for tests.
func (s *Service) WithClock(now func() time.Time, newID func() string) *Service {
	if now != nil {
		s.now = now
	}
	if newID != nil {
		s.newID = newID
	}
	return s
}

func principal(ctx context.Context) requestctx.Principal {
	p, _ := requestctx.PrincipalFromContext(ctx)
	return p
}

// Snapshot returns the campaign's current normalized document. A campaign
// with no saved document yet gets a fresh empty map.
func (s *Service) Snapshot(ctx context.Context, campaignID string) (battlemap.Map, error) {
	if campaignID == "" {
		return battlemap.Map{}, apperrors.New(apperrors.CodeMapEmptyCampaignID, "campaign id is required")
	}
	doc, err := s.store.GetMap(ctx, campaignID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return battlemap.Map{}.Normalize(), nil
		}
		return battlemap.Map{}, err
	}
	return doc, nil
}

// mutate runs apply against the loaded document, stamps UpdatedAt, and
// persists. apply returns the domain error that aborts the write. Mutations
// on the same campaign are serialized so concurrent load-modify-store cycles
// cannot erase each other's writes.
func (s *Service) mutate(ctx context.Context, campaignID string, apply func(*battlemap.Map) error) (battlemap.Map, error) {
	lock := s.campaignLock(campaignID)
	lock.Lock()
	defer lock.Unlock()

	doc, err := s.Snapshot(ctx, campaignID)
	if err != nil {
		return battlemap.Map{}, err
	}
	if err := apply(&doc); err != nil {
		return battlemap.Map{}, err
	}
	doc.UpdatedAt = s.now()
	doc = doc.Normalize()
	if err := s.store.PutMap(ctx, campaignID, doc); err != nil {
		return battlemap.Map{}, err
	}
	return doc, nil
}

// requireGM rejects non-GM principals.
func requireGM(ctx context.Context) error {
	if !principal(ctx).GM {
		return apperrors.New(apperrors.CodeGrantForbidden, "operation requires the gm role")
	}
	return nil
}

// AddStroke validates and appends a finalized stroke. The drawer assignment
// and player-drawing switch gate non-GM authors.
func (s *Service) AddStroke(ctx context.Context, campaignID string, stroke battlemap.Stroke) (battlemap.Stroke, error) {
	p := principal(ctx)
	var stored battlemap.Stroke
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		if !p.GM {
			if doc.Paused {
				return apperrors.New(apperrors.CodeMapPaused, "table is paused")
			}
			if !doc.Settings.AllowPlayerDrawing {
				return apperrors.New(apperrors.CodeStrokeNotPermitted, "player drawing is disabled")
			}
			if doc.Drawer.UserID != p.UserID {
				return apperrors.New(apperrors.CodeStrokeNotPermitted, "user is not the assigned drawer")
			}
		}
		stroke = stroke.Normalize()
		if len(stroke.Points) < battlemap.MinStrokePoints {
			return apperrors.New(apperrors.CodeStrokeTooShort, "stroke needs at least two points")
		}
		stroke.ID = s.newID()
		stroke.CreatedBy = p.UserID
		stroke.CreatedAt = s.now()
		doc.Strokes = append(doc.Strokes, stroke)
		stored = stroke
		return nil
	})
	if err != nil {
		return battlemap.Stroke{}, err
	}
	return stored, nil
}

// DeleteStroke removes one stroke. Authors may delete their own strokes; the
// GM may delete any.
func (s *Service) DeleteStroke(ctx context.Context, campaignID, strokeID string) error {
	p := principal(ctx)
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		stroke := doc.FindStroke(strokeID)
		if stroke == nil {
			return apperrors.New(apperrors.CodeStrokeNotFound, "stroke not found")
		}
		if !p.GM && stroke.CreatedBy != p.UserID {
			return apperrors.New(apperrors.CodeStrokeNotPermitted, "stroke belongs to another user")
		}
		doc.RemoveStroke(strokeID)
		return nil
	})
	return err
}

// ClearStrokes bulk-deletes all strokes. GM only.
func (s *Service) ClearStrokes(ctx context.Context, campaignID string) error {
	if err := requireGM(ctx); err != nil {
		return err
	}
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		doc.Strokes = nil
		return nil
	})
	return err
}

// ClearMap wipes strokes, shapes, tokens, and background in one action. GM only.
func (s *Service) ClearMap(ctx context.Context, campaignID string) error {
	if err := requireGM(ctx); err != nil {
		return err
	}
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		doc.Clear()
		return nil
	})
	return err
}

// AddToken places a new token. GM only; players receive tokens, they do not
// mint them.
func (s *Service) AddToken(ctx context.Context, campaignID string, token battlemap.Token) (battlemap.Token, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.Token{}, err
	}
	var stored battlemap.Token
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		if !battlemap.ValidTokenKind(token.Kind) {
			return apperrors.New(apperrors.CodeTokenInvalidKind, "unknown token kind")
		}
		token.ID = s.newID()
		stored = token.Normalize()
		doc.Tokens = append(doc.Tokens, stored)
		return nil
	})
	if err != nil {
		return battlemap.Token{}, err
	}
	return stored, nil
}

// UpdateToken applies a partial patch. The GM may patch anything; a token
// owner may issue position-only patches while player moves are allowed and
// the table is not paused.
func (s *Service) UpdateToken(ctx context.Context, campaignID, tokenID string, patch battlemap.TokenPatch) (battlemap.Token, error) {
	p := principal(ctx)
	var stored battlemap.Token
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		token := doc.FindToken(tokenID)
		if token == nil {
			return apperrors.New(apperrors.CodeTokenNotFound, "token not found")
		}
		if !p.GM {
			if !patch.PositionOnly() {
				return apperrors.New(apperrors.CodeTokenNotMovable, "players may only move tokens")
			}
			if !token.MovableBy(p.UserID, false, doc.Settings, doc.Paused) {
				return apperrors.New(apperrors.CodeTokenNotMovable, "token is not movable by this user")
			}
		}
		*token = patch.Apply(*token)
		stored = *token
		return nil
	})
	if err != nil {
		return battlemap.Token{}, err
	}
	return stored, nil
}

// DeleteToken removes a token. GM only.
func (s *Service) DeleteToken(ctx context.Context, campaignID, tokenID string) error {
	if err := requireGM(ctx); err != nil {
		return err
	}
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		if !doc.RemoveToken(tokenID) {
			return apperrors.New(apperrors.CodeTokenNotFound, "token not found")
		}
		return nil
	})
	return err
}

// AddShape places a new shape. GM only.
func (s *Service) AddShape(ctx context.Context, campaignID string, shape battlemap.Shape) (battlemap.Shape, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.Shape{}, err
	}
	var stored battlemap.Shape
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		if !battlemap.ValidShapeKind(shape.Kind) {
			return apperrors.New(apperrors.CodeShapeInvalidKind, "unknown shape kind")
		}
		shape.ID = s.newID()
		stored = shape.Normalize()
		doc.Shapes = append(doc.Shapes, stored)
		return nil
	})
	if err != nil {
		return battlemap.Shape{}, err
	}
	return stored, nil
}

// UpdateShape applies a partial patch. GM only.
func (s *Service) UpdateShape(ctx context.Context, campaignID, shapeID string, patch battlemap.ShapePatch) (battlemap.Shape, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.Shape{}, err
	}
	var stored battlemap.Shape
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		shape := doc.FindShape(shapeID)
		if shape == nil {
			return apperrors.New(apperrors.CodeShapeNotFound, "shape not found")
		}
		*shape = patch.Apply(*shape)
		stored = *shape
		return nil
	})
	if err != nil {
		return battlemap.Shape{}, err
	}
	return stored, nil
}

// DeleteShape removes a shape. GM only.
func (s *Service) DeleteShape(ctx context.Context, campaignID, shapeID string) error {
	if err := requireGM(ctx); err != nil {
		return err
	}
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		if !doc.RemoveShape(shapeID) {
			return apperrors.New(apperrors.CodeShapeNotFound, "shape not found")
		}
		return nil
	})
	return err
}

// UpdateBackground applies a partial patch to the backdrop. GM only.
func (s *Service) UpdateBackground(ctx context.Context, campaignID string, patch battlemap.BackgroundPatch) (battlemap.Background, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.Background{}, err
	}
	var stored battlemap.Background
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		doc.Background = patch.Apply(doc.Background)
		stored = doc.Background
		return nil
	})
	if err != nil {
		return battlemap.Background{}, err
	}
	return stored, nil
}

// ClearBackground resets the backdrop to its defaults. GM only.
func (s *Service) ClearBackground(ctx context.Context, campaignID string) error {
	if err := requireGM(ctx); err != nil {
		return err
	}
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		doc.Background = battlemap.Background{}.Normalize()
		return nil
	})
	return err
}

// UpdateSettings patches the permission switches and drawer assignment. GM only.
func (s *Service) UpdateSettings(ctx context.Context, campaignID string, patch battlemap.SettingsPatch) (battlemap.Map, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.Map{}, err
	}
	return s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		if patch.AllowPlayerDrawing != nil {
			doc.Settings.AllowPlayerDrawing = *patch.AllowPlayerDrawing
		}
		if patch.AllowPlayerTokenMoves != nil {
			doc.Settings.AllowPlayerTokenMoves = *patch.AllowPlayerTokenMoves
		}
		if patch.Paused != nil {
			doc.Paused = *patch.Paused
		}
		if patch.DrawerUserID != nil {
			doc.Drawer = battlemap.Drawer{}
			if *patch.DrawerUserID != "" {
				doc.Drawer = battlemap.Drawer{UserID: *patch.DrawerUserID, AssignedAt: s.now()}
			}
		}
		return nil
	})
}

// StartCombat begins an encounter. GM only.
func (s *Service) StartCombat(ctx context.Context, campaignID string, order []string, round, turn int) (battlemap.CombatState, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.CombatState{}, err
	}
	var stored battlemap.CombatState
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		combat, err := doc.Combat.Start(order, round, turn)
		if err != nil {
			return err
		}
		doc.Combat = combat
		stored = combat
		return nil
	})
	if err != nil {
		return battlemap.CombatState{}, err
	}
	return stored, nil
}

// AdvanceTurn moves to the next combatant, wrapping overflow into a new
// round. The wraparound arithmetic lives here; clients render the result.
func (s *Service) AdvanceTurn(ctx context.Context, campaignID string) (battlemap.CombatState, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.CombatState{}, err
	}
	var stored battlemap.CombatState
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		combat, err := doc.Combat.Advance()
		if err != nil {
			return err
		}
		doc.Combat = combat
		stored = combat
		return nil
	})
	if err != nil {
		return battlemap.CombatState{}, err
	}
	return stored, nil
}

// EndCombat stops the encounter. GM only.
func (s *Service) EndCombat(ctx context.Context, campaignID string) (battlemap.CombatState, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.CombatState{}, err
	}
	var stored battlemap.CombatState
	_, err := s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		doc.Combat = doc.Combat.End()
		stored = doc.Combat
		return nil
	})
	if err != nil {
		return battlemap.CombatState{}, err
	}
	return stored, nil
}

// AppendLog records a battle-log entry and pushes it to live subscribers.
// Any authenticated actor may append; only the GM reads.
func (s *Service) AppendLog(ctx context.Context, campaignID string, entry battlemap.BattleLogEntry) (battlemap.BattleLogEntry, error) {
	if campaignID == "" {
		return battlemap.BattleLogEntry{}, apperrors.New(apperrors.CodeMapEmptyCampaignID, "campaign id is required")
	}
	p := principal(ctx)
	entry.ID = s.newID()
	entry.ActorID = p.UserID
	entry.CreatedAt = s.now()
	entry.Details = battlemap.CopyDetails(entry.Details)
	if err := s.store.AppendLogEntry(ctx, campaignID, entry); err != nil {
		return battlemap.BattleLogEntry{}, err
	}
	if s.broadcast != nil {
		s.broadcast.Broadcast(campaignID, entry)
	}
	return entry, nil
}

// Log returns the battle log, oldest first. GM only.
func (s *Service) Log(ctx context.Context, campaignID string) ([]battlemap.BattleLogEntry, error) {
	if err := requireGM(ctx); err != nil {
		return nil, err
	}
	return s.store.ListLog(ctx, campaignID)
}

// ListLibrary returns the campaign's saved maps. GM only.
func (s *Service) ListLibrary(ctx context.Context, campaignID string) ([]storage.LibraryEntry, error) {
	if err := requireGM(ctx); err != nil {
		return nil, err
	}
	return s.store.ListLibrary(ctx, campaignID)
}

// SaveToLibrary snapshots the current document under a name. GM only.
func (s *Service) SaveToLibrary(ctx context.Context, campaignID, name string) (storage.LibraryEntry, error) {
	if err := requireGM(ctx); err != nil {
		return storage.LibraryEntry{}, err
	}
	if name == "" {
		return storage.LibraryEntry{}, apperrors.New(apperrors.CodeLibraryEmptyName, "library entry name is required")
	}
	doc, err := s.Snapshot(ctx, campaignID)
	if err != nil {
		return storage.LibraryEntry{}, err
	}
	now := s.now()
	entry := storage.LibraryEntry{
		ID:         s.newID(),
		CampaignID: campaignID,
		Name:       name,
		Document:   doc,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.store.PutLibraryEntry(ctx, entry); err != nil {
		return storage.LibraryEntry{}, err
	}
	return entry, nil
}

// LoadFromLibrary replaces the live document with a saved entry. GM only.
// The loaded entry is untrusted input and is re-normalized on the way in.
func (s *Service) LoadFromLibrary(ctx context.Context, campaignID, entryID string) (battlemap.Map, error) {
	if err := requireGM(ctx); err != nil {
		return battlemap.Map{}, err
	}
	entry, err := s.store.GetLibraryEntry(ctx, campaignID, entryID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return battlemap.Map{}, apperrors.New(apperrors.CodeLibraryEntryMissing, "library entry not found")
		}
		return battlemap.Map{}, err
	}
	return s.mutate(ctx, campaignID, func(doc *battlemap.Map) error {
		loaded := entry.Document.Normalize()
		// Table administration survives a load; only board content swaps.
		loaded.Settings = doc.Settings
		loaded.Paused = doc.Paused
		loaded.Drawer = doc.Drawer
		*doc = loaded
		return nil
	})
}

// DeleteFromLibrary removes a saved entry. GM only.
func (s *Service) DeleteFromLibrary(ctx context.Context, campaignID, entryID string) error {
	if err := requireGM(ctx); err != nil {
		return err
	}
	if err := s.store.DeleteLibraryEntry(ctx, campaignID, entryID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperrors.New(apperrors.CodeLibraryEntryMissing, "library entry not found")
		}
		return err
	}
	return nil
}
