// Package persistence provides SQLite-based storage for map document revisions.
// Every save writes a new revision; the newest one per scenario is current.
package persistence

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/lob-los/internal/mapdoc"
)

// ErrNotFound is returned when no matching revision is stored.
var ErrNotFound = errors.New("map revision not found")

// DB wraps a SQLite connection for map storage.
type DB struct {
	conn *sqlx.DB
}

// Revision describes one saved version of a map document.
type Revision struct {
	ID       string    `db:"id" json:"id"`
	Scenario string    `db:"scenario" json:"scenario"`
	SavedAt  time.Time `db:"-" json:"saved_at"`
	HexCount int       `db:"hex_count" json:"hex_count"`

	SavedAtUnix int64 `db:"saved_at" json:"-"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS map_revisions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		scenario TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		hex_count INTEGER NOT NULL,
		document_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS map_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_map_revisions_scenario ON map_revisions(scenario, seq);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveMap stores doc as a new revision of its scenario.
func (db *DB) SaveMap(doc *mapdoc.Document) (Revision, error) {
	var buf bytes.Buffer
	if err := mapdoc.Encode(&buf, doc); err != nil {
		return Revision{}, fmt.Errorf("encode map: %w", err)
	}

	rev := Revision{
		ID:       uuid.NewString(),
		Scenario: doc.Scenario,
		SavedAt:  time.Now().UTC().Truncate(time.Second),
		HexCount: len(doc.Hexes),
	}
	rev.SavedAtUnix = rev.SavedAt.Unix()

	_, err := db.conn.Exec(`INSERT INTO map_revisions
		(id, scenario, saved_at, hex_count, document_json)
		VALUES (?, ?, ?, ?, ?)`,
		rev.ID, rev.Scenario, rev.SavedAtUnix, rev.HexCount, buf.String(),
	)
	if err != nil {
		return Revision{}, fmt.Errorf("insert revision %s: %w", rev.ID, err)
	}

	slog.Info("map revision saved", "scenario", rev.Scenario, "revision", rev.ID, "hexes", rev.HexCount)
	return rev, nil
}

// LatestMap returns the newest revision of a scenario's map.
func (db *DB) LatestMap(scenario string) (*mapdoc.Document, Revision, error) {
	return db.loadOne(`SELECT id, scenario, saved_at, hex_count, document_json
		FROM map_revisions WHERE scenario = ? ORDER BY seq DESC LIMIT 1`, scenario)
}

// LoadRevision returns one specific revision.
func (db *DB) LoadRevision(id string) (*mapdoc.Document, Revision, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, Revision{}, fmt.Errorf("%w: bad revision id %q", ErrNotFound, id)
	}
	return db.loadOne(`SELECT id, scenario, saved_at, hex_count, document_json
		FROM map_revisions WHERE id = ?`, id)
}

func (db *DB) loadOne(query string, arg any) (*mapdoc.Document, Revision, error) {
	var row struct {
		Revision
		DocumentJSON string `db:"document_json"`
	}
	if err := db.conn.Get(&row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, Revision{}, ErrNotFound
		}
		return nil, Revision{}, fmt.Errorf("load revision: %w", err)
	}

	doc, err := mapdoc.Decode(bytes.NewReader([]byte(row.DocumentJSON)))
	if err != nil {
		return nil, Revision{}, fmt.Errorf("revision %s: %w", row.ID, err)
	}
	rev := row.Revision
	rev.SavedAt = time.Unix(rev.SavedAtUnix, 0).UTC()
	return doc, rev, nil
}

// ListRevisions returns the most recent revisions of a scenario, newest first.
func (db *DB) ListRevisions(scenario string, limit int) ([]Revision, error) {
	var revs []Revision
	err := db.conn.Select(&revs,
		`SELECT id, scenario, saved_at, hex_count FROM map_revisions
		WHERE scenario = ? ORDER BY seq DESC LIMIT ?`,
		scenario, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	for i := range revs {
		revs[i].SavedAt = time.Unix(revs[i].SavedAtUnix, 0).UTC()
	}
	return revs, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO map_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM map_meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}
