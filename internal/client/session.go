// Package client implements the table-side half of the battle-map engine: a
// Session holding optimistically mutated local state, the drawing and
// transform engines that feed it, and the reconciliation loop that converges
// it against the authority's snapshots.
package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seralith/wartable/internal/battlemap"
	"github.com/seralith/wartable/internal/platform/config"
)

// DirtyReason tells observers which slice of the board changed.
type DirtyReason string

const (
	DirtyStrokes    DirtyReason = "strokes"
	DirtyTokens     DirtyReason = "tokens"
	DirtyShapes     DirtyReason = "shapes"
	DirtyBackground DirtyReason = "background"
	DirtyCombat     DirtyReason = "combat"
	DirtySettings   DirtyReason = "settings"
	DirtyLog        DirtyReason = "log"
)

var allDirtyReasons = []DirtyReason{
	DirtyStrokes, DirtyTokens, DirtyShapes, DirtyBackground,
	DirtyCombat, DirtySettings, DirtyLog,
}

// Observer receives coarse change notifications. Callbacks run on the
// notifying goroutine and must not call back into the session synchronously.
type Observer interface {
	MapChanged(reason DirtyReason)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(DirtyReason)

func (f ObserverFunc) MapChanged(reason DirtyReason) { f(reason) }

// Notice is a per-action failure surfaced to the user. Local state keeps the
// optimistic value; the next reconcile converges it.
type Notice struct {
	Op  string
	Err error
}

type clientEnv struct {
	Diagnostics bool `env:"WARTABLE_CLIENT_DIAGNOSTICS"`
}

// Session is one principal's live view of a campaign table.
type Session struct {
	authority   Authority
	userID      string
	gm          bool
	diagnostics bool

	mu         sync.Mutex
	state      battlemap.Map
	logbook    []battlemap.BattleLogEntry
	draft      *battlemap.Stroke
	undo       []string
	drag       *dragState
	tool       Tool
	brushColor string
	brushSize  float64

	// writes tracks the latest local write sequence per entity id so a slow
	// commit echo cannot clobber a newer local value.
	writeSeq uint64
	writes   map[string]uint64

	pendingBackground *battlemap.BackgroundPatch
	backgroundTimer   *time.Timer

	obsMu     sync.Mutex
	observers map[int]Observer
	nextObs   int
	notices   func(Notice)
}

// NewSession binds a principal to an authority. The session starts empty;
// call Join to fetch the initial snapshot.
func NewSession(authority Authority, userID string, gm bool) *Session {
	var envCfg clientEnv
	_ = config.ParseEnv(&envCfg)
	return &Session{
		authority:   authority,
		userID:      userID,
		gm:          gm,
		diagnostics: envCfg.Diagnostics,
		state:       battlemap.Map{}.Normalize(),
		tool:        ToolSelect,
		brushSize:   4,
		writes:      map[string]uint64{},
		observers:   map[int]Observer{},
	}
}

// UserID returns the bound principal.
func (s *Session) UserID() string { return s.userID }

// GM reports whether the bound principal holds the GM role.
func (s *Session) GM() bool { return s.gm }

// State returns a deep copy of local committed state.
func (s *Session) State() battlemap.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// AddObserver registers a change listener and returns its removal func.
func (s *Session) AddObserver(o Observer) func() {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = o
	s.obsMu.Unlock()
	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// SetNoticeHandler installs the per-action failure surface.
func (s *Session) SetNoticeHandler(fn func(Notice)) {
	s.obsMu.Lock()
	s.notices = fn
	s.obsMu.Unlock()
}

func (s *Session) notify(reason DirtyReason) {
	s.obsMu.Lock()
	obs := make([]Observer, 0, len(s.observers))
	for _, o := range s.observers {
		obs = append(obs, o)
	}
	s.obsMu.Unlock()
	for _, o := range obs {
		o.MapChanged(reason)
	}
}

func (s *Session) notifyAll() {
	for _, reason := range allDirtyReasons {
		s.notify(reason)
	}
}

func (s *Session) report(op string, err error) {
	s.obsMu.Lock()
	fn := s.notices
	s.obsMu.Unlock()
	if fn != nil {
		fn(Notice{Op: op, Err: err})
	}
}

// diag logs only when diagnostics are enabled; swallowed-failure paths use it
// so production sessions stay quiet.
func (s *Session) diag(format string, args ...any) {
	if s.diagnostics {
		log.Printf("client: "+format, args...)
	}
}

func (s *Session) recordWriteLocked(entityID string) uint64 {
	s.writeSeq++
	s.writes[entityID] = s.writeSeq
	return s.writeSeq
}

// draftID mints a transient id for an entity the authority has not named yet.
func draftID() string {
	return "draft-" + uuid.NewString()
}

// commitOp is one optimistic mutation: apply locally, send to the authority,
// fold the normalized echo back in unless a newer local write to the same
// entity superseded the request while it was in flight.
type commitOp[E any] struct {
	op         string
	reason     DirtyReason
	entityID   string
	optimistic func(*battlemap.Map)
	send       func(context.Context) (E, error)
	fold       func(*battlemap.Map, E)
	rollback   func(*battlemap.Map)
}

func runCommit[E any](ctx context.Context, s *Session, op commitOp[E]) error {
	s.mu.Lock()
	if op.optimistic != nil {
		op.optimistic(&s.state)
	}
	seq := s.recordWriteLocked(op.entityID)
	s.mu.Unlock()
	s.notify(op.reason)

	echo, err := op.send(ctx)
	if err != nil {
		if op.rollback != nil {
			s.mu.Lock()
			if s.writes[op.entityID] == seq {
				op.rollback(&s.state)
			}
			s.mu.Unlock()
			s.notify(op.reason)
		}
		s.report(op.op, err)
		return err
	}

	s.mu.Lock()
	if s.writes[op.entityID] == seq && op.fold != nil {
		op.fold(&s.state, echo)
	}
	s.mu.Unlock()
	s.notify(op.reason)
	return nil
}
