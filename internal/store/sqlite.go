package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// rowStore is the SQLite-backed half of the store: one row per chunk,
// holding everything except the vector itself.
type rowStore struct {
	db   *sql.DB
	path string
}

// validateSQLiteIntegrity runs PRAGMA integrity_check against an existing
// database file. A missing file is not corruption (fresh start).
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("open for integrity check: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity_check query: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity_check reported: %s", result)
	}
	return nil
}

// clearCorruptDB removes the main database file plus its WAL/SHM sidecars.
func clearCorruptDB(path string) {
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(path + suffix)
	}
}

func openRowStore(path string) (*rowStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	if err := validateSQLiteIntegrity(path); err != nil {
		clearCorruptDB(path)
	}

	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent
	// goroutines; WAL still allows concurrent readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// modernc.org/sqlite may ignore DSN query params, so set pragmas
	// explicitly too.
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-65536",
		"PRAGMA temp_store=MEMORY",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %q: %w", pragma, err)
		}
	}

	rs := &rowStore{db: db, path: path}
	if err := rs.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return rs, nil
}

func (r *rowStore) init() error {
	_, err := r.db.Exec(`
CREATE TABLE IF NOT EXISTS chunks (
	id         TEXT PRIMARY KEY,
	filepath   TEXT NOT NULL,
	content    TEXT NOT NULL,
	line_start INTEGER NOT NULL,
	line_end   INTEGER NOT NULL,
	hash       TEXT NOT NULL,
	timestamp  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_filepath ON chunks(filepath);
`)
	return err
}

func (r *rowStore) insert(rows []Chunk) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO chunks (id, filepath, content, line_start, line_end, hash, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer func() { _ = stmt.Close() }()

	for _, c := range rows {
		if _, err := stmt.Exec(c.ID, c.Filepath, c.Content, c.LineStart, c.LineEnd, c.Hash, c.Timestamp); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *rowStore) deleteByIDs(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", strings.Join(placeholders, ","))
	_, err := r.db.Exec(query, args...)
	return err
}

// deleteByFilepath deletes every row for path and returns the ids deleted
// so the caller can also orphan them from the ANN index.
func (r *rowStore) deleteByFilepath(path string) ([]string, error) {
	rows, err := r.db.Query(`SELECT id FROM chunks WHERE filepath = ?`, path)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	_ = rows.Close()

	if _, err := r.db.Exec(`DELETE FROM chunks WHERE filepath = ?`, path); err != nil {
		return nil, err
	}
	return ids, nil
}

type rowData struct {
	Filepath  string
	Content   string
	LineStart int
	LineEnd   int
}

// rowsByIDsWithPrefix fetches rows for ids whose filepath starts with
// prefix (prefix == "" matches everything). prefix is bound as a query
// parameter verbatim (the driver handles quotes/backslashes/control chars —
// safePathPrefix is for literal interpolation, not bound values, and would
// bind a mangled string that no longer matches the real rows). Only the
// LIKE metacharacters % and _ need escaping, since they're wildcards even
// inside a bound argument; escapeLikeWildcards plus ESCAPE '\' handles that.
func (r *rowStore) rowsByIDsWithPrefix(ids []string, prefix string) (map[string]rowData, error) {
	if len(ids) == 0 {
		return map[string]rowData{}, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf("SELECT id, filepath, content, line_start, line_end FROM chunks WHERE id IN (%s)", strings.Join(placeholders, ","))
	if prefix != "" {
		query += ` AND filepath LIKE ? || '%' ESCAPE '\'`
		args = append(args, escapeLikeWildcards(prefix))
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]rowData, len(ids))
	for rows.Next() {
		var id string
		var d rowData
		if err := rows.Scan(&id, &d.Filepath, &d.Content, &d.LineStart, &d.LineEnd); err != nil {
			return nil, err
		}
		out[id] = d
	}
	return out, rows.Err()
}

func (r *rowStore) count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

func (r *rowStore) uniqueFiles() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(DISTINCT filepath) FROM chunks`).Scan(&n)
	return n, err
}

func (r *rowStore) clear() error {
	_, err := r.db.Exec(`DELETE FROM chunks`)
	return err
}

func (r *rowStore) close() error {
	return r.db.Close()
}
