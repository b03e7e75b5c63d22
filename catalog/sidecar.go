package catalog

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// sidecarFile is the per-directory index database holding tile bounding
// boxes so reopening a catalog does not re-read every tile header.
const sidecarFile = ".catalog-index.sqlite"

const sidecarSchema = `
CREATE TABLE IF NOT EXISTS tiles (
	path  TEXT PRIMARY KEY,
	xmin  REAL NOT NULL,
	xmax  REAL NOT NULL,
	ymin  REAL NOT NULL,
	ymax  REAL NOT NULL,
	mtime INTEGER NOT NULL
);`

func openSidecar(dir string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, sidecarFile))
	if err != nil {
		return nil, err
	}
	// Single writer; the sidecar is only touched at catalog open.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sidecarSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sidecar schema: %w", err)
	}
	return db, nil
}

// loadSidecar returns the indexed tile records when the sidecar covers
// exactly the scanned file set with matching modification times. Any
// mismatch or read error makes the sidecar stale; the caller then rebuilds
// it from tile headers.
func loadSidecar(dir string, entries []tileEntry, log *slog.Logger) ([]TileRecord, bool) {
	db, err := openSidecar(dir)
	if err != nil {
		log.Debug("sidecar index unavailable", "dir", dir, "error", err)
		return nil, false
	}
	defer db.Close()

	rows, err := db.Query(`SELECT path, xmin, xmax, ymin, ymax, mtime FROM tiles`)
	if err != nil {
		return nil, false
	}
	defer rows.Close()

	type cached struct {
		bounds Bounds
		mtime  int64
	}
	indexed := make(map[string]cached)
	for rows.Next() {
		var path string
		var c cached
		if err := rows.Scan(&path, &c.bounds.XMin, &c.bounds.XMax, &c.bounds.YMin, &c.bounds.YMax, &c.mtime); err != nil {
			return nil, false
		}
		indexed[path] = c
	}
	if rows.Err() != nil || len(indexed) != len(entries) {
		return nil, false
	}

	records := make([]TileRecord, len(entries))
	for i, e := range entries {
		c, ok := indexed[e.path]
		if !ok || c.mtime != e.mtime {
			return nil, false
		}
		records[i] = TileRecord{Path: e.path, Bounds: c.bounds}
	}
	log.Debug("sidecar index hit", "dir", dir, "tiles", len(records))
	return records, true
}

// saveSidecar rewrites the sidecar index to cover exactly the given tiles.
func saveSidecar(dir string, entries []tileEntry, records []TileRecord) error {
	db, err := openSidecar(dir)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tiles`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO tiles (path, xmin, xmax, ymin, ymax, mtime) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, rec := range records {
		b := rec.Bounds
		if _, err := stmt.Exec(rec.Path, b.XMin, b.XMax, b.YMin, b.YMax, entries[i].mtime); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InvalidateIndex clears the sidecar index so the next Open rebuilds it
// from tile headers.
func InvalidateIndex(dir string) error {
	db, err := openSidecar(dir)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM tiles`); err != nil {
		return fmt.Errorf("clearing sidecar index: %w", err)
	}
	return nil
}
