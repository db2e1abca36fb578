package storage

import (
	"context"
	"errors"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// LibraryEntry stores a named saved-map document.
type LibraryEntry struct {
	ID         string
	CampaignID string
	Name       string
	Document   battlemap.Map
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MapStore persists one map document per campaign.
type MapStore interface {
	// GetMap loads the document for a campaign. ErrNotFound when the
	// campaign has no saved document yet.
	GetMap(ctx context.Context, campaignID string) (battlemap.Map, error)
	// PutMap replaces the document for a campaign.
	PutMap(ctx context.Context, campaignID string, doc battlemap.Map) error
}

// LibraryStore persists named saved-map entries.
type LibraryStore interface {
	ListLibrary(ctx context.Context, campaignID string) ([]LibraryEntry, error)
	GetLibraryEntry(ctx context.Context, campaignID, entryID string) (LibraryEntry, error)
	PutLibraryEntry(ctx context.Context, entry LibraryEntry) error
	DeleteLibraryEntry(ctx context.Context, campaignID, entryID string) error
}

// LogStore persists the bounded battle log.
type LogStore interface {
	// AppendLogEntry appends an entry and trims the log from the oldest end
	// at battlemap.MaxLogEntries.
	AppendLogEntry(ctx context.Context, campaignID string, entry battlemap.BattleLogEntry) error
	// ListLog returns entries oldest first.
	ListLog(ctx context.Context, campaignID string) ([]battlemap.BattleLogEntry, error)
}

// Store bundles the persistence contracts the authority needs.
type Store interface {
	MapStore
	LibraryStore
	LogStore
}
