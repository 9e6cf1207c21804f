package addonlib

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/stkaddons/addonmgr/pkg/catalog"
)

// InstalledEntry is the durable record of one installed addon. There
// is at most one record per identifier; a new revision replaces the
// record, it never appends. Records are written only on the verified
// success path of the download pool.
type InstalledEntry struct {
	ID        string
	Category  catalog.Category
	Revision  int
	Path      string
	Size      int64
	UpdatedAt time.Time
}

// StoreFileName is the installed-state database inside the addon root.
const StoreFileName = "installed.db"

// Store persists installed-state records in a SQLite database.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the installed-state database at
// the given path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open installed store: %w", err)
	}
	// The pool writes records from several workers; serialize through
	// a single connection instead of fighting SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS installed (
			id         TEXT PRIMARY KEY,
			category   TEXT NOT NULL,
			revision   INTEGER NOT NULL,
			path       TEXT NOT NULL,
			size       INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create installed table: %w", err)
	}
	return &Store{db: db}, nil
}

// Load returns all installed records ordered by identifier.
func (s *Store) Load() ([]InstalledEntry, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	rows, err := s.db.Query(`
		SELECT id, category, revision, path, size, updated_at
		FROM installed ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("load installed: %w", err)
	}
	defer rows.Close()

	var entries []InstalledEntry
	for rows.Next() {
		var (
			e  InstalledEntry
			c  string
			ts int64
		)
		if err := rows.Scan(&e.ID, &c, &e.Revision, &e.Path, &e.Size, &ts); err != nil {
			return nil, fmt.Errorf("scan installed row: %w", err)
		}
		e.Category = catalog.Category(c)
		e.UpdatedAt = time.Unix(ts, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate installed rows: %w", err)
	}
	return entries, nil
}

// Get returns the record for id, or nil when none exists.
func (s *Store) Get(id string) (*InstalledEntry, error) {
	if s.db == nil {
		return nil, ErrStoreClosed
	}
	var (
		e  InstalledEntry
		c  string
		ts int64
	)
	err := s.db.QueryRow(`
		SELECT id, category, revision, path, size, updated_at
		FROM installed WHERE id = ?
	`, id).Scan(&e.ID, &c, &e.Revision, &e.Path, &e.Size, &ts)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get installed %q: %w", id, err)
	}
	e.Category = catalog.Category(c)
	e.UpdatedAt = time.Unix(ts, 0).UTC()
	return &e, nil
}

// Put inserts or replaces the record for e.ID.
func (s *Store) Put(e InstalledEntry) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	_, err := s.db.Exec(`
		INSERT INTO installed (id, category, revision, path, size, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			category = excluded.category,
			revision = excluded.revision,
			path = excluded.path,
			size = excluded.size,
			updated_at = excluded.updated_at
	`, e.ID, string(e.Category), e.Revision, e.Path, e.Size, e.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("put installed %q: %w", e.ID, err)
	}
	return nil
}

// Remove deletes the record for id if present.
func (s *Store) Remove(id string) error {
	if s.db == nil {
		return ErrStoreClosed
	}
	if _, err := s.db.Exec(`DELETE FROM installed WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove installed %q: %w", id, err)
	}
	return nil
}

// Close closes the underlying database. Safe to call once.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
