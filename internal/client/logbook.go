package client

import (
	"context"

	"github.com/seralith/wartable/internal/battlemap"
)

// AppendLog sends a battle-log entry fire-and-forget. Failures are swallowed
// and only logged when diagnostics are enabled; the entry folds into the
// local logbook once the authority names it.
func (s *Session) AppendLog(ctx context.Context, action, message string, details map[string]any) {
	entry := battlemap.BattleLogEntry{
		Action:  action,
		Message: message,
		Details: battlemap.CopyDetails(details),
	}
	go func() {
		stored, err := s.authority.AppendLog(ctx, entry)
		if err != nil {
			s.diag("append log %s: %v", action, err)
			return
		}
		s.mu.Lock()
		s.logbook = battlemap.AppendLog(s.logbook, stored)
		s.mu.Unlock()
		s.notify(DirtyLog)
	}()
}

// RefreshLog fetches the battle log. The authority enforces GM-only reads.
func (s *Session) RefreshLog(ctx context.Context) error {
	entries, err := s.authority.Log(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.logbook = entries
	s.mu.Unlock()
	s.notify(DirtyLog)
	return nil
}

// Logbook returns a copy of the locally known battle-log entries.
func (s *Session) Logbook() []battlemap.BattleLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]battlemap.BattleLogEntry(nil), s.logbook...)
}

// FollowLog consumes the push channel when the authority provides one,
// folding streamed entries into the local logbook. Best-effort only: polling
// and RefreshLog remain the source of truth.
func (s *Session) FollowLog(ctx context.Context) error {
	streamer, ok := s.authority.(LogStreamer)
	if !ok {
		return nil
	}
	return streamer.StreamLog(ctx, func(entry battlemap.BattleLogEntry) {
		s.mu.Lock()
		s.logbook = battlemap.AppendLog(s.logbook, entry)
		s.mu.Unlock()
		s.notify(DirtyLog)
	})
}
