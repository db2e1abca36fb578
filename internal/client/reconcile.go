package client

import (
	"context"
	"log"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
)

// pollInterval is the reconciliation cadence against the authority.
const pollInterval = 5 * time.Second

// Join performs the initial snapshot fetch, unconditionally adopting the
// authority's state.
func (s *Session) Join(ctx context.Context) error {
	doc, err := s.authority.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.applySnapshot(doc, true)
	return nil
}

// Reconcile fetches the authority snapshot and merges it in when the coarse
// structural heuristic says it differs from local state.
func (s *Session) Reconcile(ctx context.Context) error {
	doc, err := s.authority.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.applySnapshot(doc, false)
	return nil
}

// Run polls the authority until ctx ends. Poll failures are logged only,
// never surfaced; the loop retries on its own schedule.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Reconcile(ctx); err != nil {
				log.Printf("client: reconcile: %v", err)
			}
		}
	}
}

// applySnapshot normalizes a fetched document and replaces local state when
// forced or structurally different. An accepted snapshot supersedes every
// in-flight commit echo, filters the undo stack, and wakes all observers.
func (s *Session) applySnapshot(doc battlemap.Map, force bool) bool {
	doc = doc.Normalize()
	s.mu.Lock()
	if !force && !needsReplace(s.state, doc) {
		s.mu.Unlock()
		return false
	}
	s.state = doc
	s.writes = map[string]uint64{}
	s.filterUndoLocked()
	s.mu.Unlock()
	s.notifyAll()
	return true
}

// needsReplace is a deliberately coarse structural comparison, not a deep
// diff: a same-count content edit by another actor between polls is missed
// until a counted field changes. Accepted limitation.
func needsReplace(local, fetched battlemap.Map) bool {
	if local.UpdatedAt.IsZero() || fetched.UpdatedAt.IsZero() {
		return true
	}
	if !local.UpdatedAt.Equal(fetched.UpdatedAt) {
		return true
	}
	if len(local.Strokes) != len(fetched.Strokes) ||
		len(local.Tokens) != len(fetched.Tokens) ||
		len(local.Shapes) != len(fetched.Shapes) {
		return true
	}
	return local.Background.URL != fetched.Background.URL
}
