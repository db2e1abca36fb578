package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/seralith/wartable/internal/battlemap"
	sqlitemigrate "github.com/seralith/wartable/internal/platform/storage/sqlitemigrate"
	"github.com/seralith/wartable/internal/services/table/storage"
	"github.com/seralith/wartable/internal/services/table/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func encodeDocument(doc battlemap.Map) (string, error) {
	encoded, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal map document: %w", err)
	}
	return string(encoded), nil
}

func decodeDocument(value string) (battlemap.Map, error) {
	var doc battlemap.Map
	if err := json.Unmarshal([]byte(value), &doc); err != nil {
		return battlemap.Map{}, fmt.Errorf("unmarshal map document: %w", err)
	}
	// Stored documents are untrusted input.
	return doc.Normalize(), nil
}

// Store provides SQLite-backed persistence for map authority records.
type Store struct {
	sqlDB *sql.DB
}

// DB returns the underlying sql.DB instance.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a SQLite store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close closes the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) runMigrations() error {
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// GetMap loads the map document for a campaign.
func (s *Store) GetMap(ctx context.Context, campaignID string) (battlemap.Map, error) {
	if strings.TrimSpace(campaignID) == "" {
		return battlemap.Map{}, fmt.Errorf("campaign id is required")
	}
	var document string
	row := s.sqlDB.QueryRowContext(ctx, "SELECT document FROM maps WHERE campaign_id = ?", campaignID)
	if err := row.Scan(&document); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return battlemap.Map{}, storage.ErrNotFound
		}
		return battlemap.Map{}, fmt.Errorf("query map: %w", err)
	}
	return decodeDocument(document)
}

// PutMap replaces the map document for a campaign.
func (s *Store) PutMap(ctx context.Context, campaignID string, doc battlemap.Map) error {
	if strings.TrimSpace(campaignID) == "" {
		return fmt.Errorf("campaign id is required")
	}
	document, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO maps (campaign_id, document, updated_at) VALUES (?, ?, ?)
ON CONFLICT(campaign_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at
`, campaignID, document, toMillis(doc.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put map: %w", err)
	}
	return nil
}

// ListLibrary returns a campaign's saved-map entries, most recent first.
func (s *Store) ListLibrary(ctx context.Context, campaignID string) ([]storage.LibraryEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, campaign_id, name, document, created_at, updated_at
FROM map_library WHERE campaign_id = ? ORDER BY updated_at DESC
`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query library: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []storage.LibraryEntry
	for rows.Next() {
		entry, err := scanLibraryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate library: %w", err)
	}
	return entries, nil
}

// GetLibraryEntry loads one saved-map entry.
func (s *Store) GetLibraryEntry(ctx context.Context, campaignID, entryID string) (storage.LibraryEntry, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT id, campaign_id, name, document, created_at, updated_at
FROM map_library WHERE campaign_id = ? AND id = ?
`, campaignID, entryID)
	entry, err := scanLibraryEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.LibraryEntry{}, storage.ErrNotFound
		}
		return storage.LibraryEntry{}, err
	}
	return entry, nil
}

// PutLibraryEntry inserts or replaces a saved-map entry.
func (s *Store) PutLibraryEntry(ctx context.Context, entry storage.LibraryEntry) error {
	if strings.TrimSpace(entry.ID) == "" || strings.TrimSpace(entry.CampaignID) == "" {
		return fmt.Errorf("entry id and campaign id are required")
	}
	document, err := encodeDocument(entry.Document)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO map_library (id, campaign_id, name, document, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name, document = excluded.document, updated_at = excluded.updated_at
`, entry.ID, entry.CampaignID, entry.Name, document, toMillis(entry.CreatedAt), toMillis(entry.UpdatedAt))
	if err != nil {
		return fmt.Errorf("put library entry: %w", err)
	}
	return nil
}

// DeleteLibraryEntry removes a saved-map entry.
func (s *Store) DeleteLibraryEntry(ctx context.Context, campaignID, entryID string) error {
	result, err := s.sqlDB.ExecContext(ctx, "DELETE FROM map_library WHERE campaign_id = ? AND id = ?", campaignID, entryID)
	if err != nil {
		return fmt.Errorf("delete library entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete library entry result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// AppendLogEntry appends a battle-log entry and trims the log at the cap.
func (s *Store) AppendLogEntry(ctx context.Context, campaignID string, entry battlemap.BattleLogEntry) error {
	if strings.TrimSpace(campaignID) == "" || strings.TrimSpace(entry.ID) == "" {
		return fmt.Errorf("campaign id and entry id are required")
	}
	var details sql.NullString
	if entry.Details != nil {
		encoded, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal log details: %w", err)
		}
		details = sql.NullString{String: string(encoded), Valid: true}
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO battle_log (id, campaign_id, action, message, details, actor_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, entry.ID, campaignID, entry.Action, entry.Message, details, entry.ActorID, toMillis(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	_, err = s.sqlDB.ExecContext(ctx, `
DELETE FROM battle_log WHERE campaign_id = ? AND rowid NOT IN (
    SELECT rowid FROM battle_log WHERE campaign_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?
)
`, campaignID, campaignID, battlemap.MaxLogEntries)
	if err != nil {
		return fmt.Errorf("trim log: %w", err)
	}
	return nil
}

// ListLog returns a campaign's battle log, oldest first.
func (s *Store) ListLog(ctx context.Context, campaignID string) ([]battlemap.BattleLogEntry, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, action, message, details, actor_id, created_at
FROM battle_log WHERE campaign_id = ? ORDER BY created_at ASC, rowid ASC
`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []battlemap.BattleLogEntry
	for rows.Next() {
		var entry battlemap.BattleLogEntry
		var details sql.NullString
		var createdAt int64
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Message, &details, &entry.ActorID, &createdAt); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		if details.Valid && strings.TrimSpace(details.String) != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				// Malformed details degrade to nil rather than failing the read.
				entry.Details = nil
			}
		}
		entry.CreatedAt = fromMillis(createdAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLibraryEntry(row rowScanner) (storage.LibraryEntry, error) {
	var entry storage.LibraryEntry
	var document string
	var createdAt, updatedAt int64
	if err := row.Scan(&entry.ID, &entry.CampaignID, &entry.Name, &document, &createdAt, &updatedAt); err != nil {
		return storage.LibraryEntry{}, err
	}
	doc, err := decodeDocument(document)
	if err != nil {
		return storage.LibraryEntry{}, err
	}
	entry.Document = doc
	entry.CreatedAt = fromMillis(createdAt)
	entry.UpdatedAt = fromMillis(updatedAt)
	return entry, nil
}
