package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// SqliteStore stores all collections in a single SQLite database.
//
// Tables:
//
//	records(collection, id, data, deleted)  PRIMARY KEY (collection, id)
//
// A tombstoned row keeps its id with deleted = 1 and data = 'null'.
type SqliteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS records (
		collection TEXT NOT NULL,
		id INTEGER NOT NULL,
		data TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

// escapePath escapes the characters gjson and sjson treat as path syntax.
func escapePath(field string) string {
	r := strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(field)
}

func decode(raw string) (Record, error) {
	var doc Record
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Record{}
	}
	return doc, nil
}

func encode(rec Record) (string, error) {
	if rec == nil {
		rec = Record{}
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// load returns the raw document at id. Callers must hold s.mu.
func (s *SqliteStore) load(collection string, id int) (string, error) {
	var (
		raw     string
		deleted bool
	)
	err := s.db.QueryRow(
		"SELECT data, deleted FROM records WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw, &deleted)
	if err == sql.ErrNoRows || (err == nil && deleted) {
		return "", fmt.Errorf("%s/%d: %w", collection, id, ErrNotFound)
	}
	if err != nil {
		return "", err
	}
	return raw, nil
}

// store overwrites the document at id. Callers must hold s.mu.
func (s *SqliteStore) store(collection string, id int, raw string) error {
	_, err := s.db.Exec(
		"UPDATE records SET data = ? WHERE collection = ? AND id = ?",
		raw, collection, id,
	)
	return err
}

// appendLocked inserts rec at the next id. Callers must hold s.mu.
func (s *SqliteStore) appendLocked(collection string, rec Record) (int, error) {
	raw, err := encode(rec)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var id int
	if err := tx.QueryRow("SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&id); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(
		"INSERT INTO records (collection, id, data, deleted) VALUES (?, ?, ?, 0)",
		collection, id, raw,
	); err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

func (s *SqliteStore) Append(collection string, rec Record) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(collection, rec)
}

func (s *SqliteStore) AppendUnique(collection string, rec Record, field string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if want, ok := rec[field]; ok {
		wantRaw, err := json.Marshal(want)
		if err != nil {
			return 0, err
		}
		rows, err := s.db.Query(
			"SELECT id, data FROM records WHERE collection = ? AND deleted = 0 ORDER BY id",
			collection,
		)
		if err != nil {
			return 0, err
		}
		defer rows.Close()
		path := escapePath(field)
		for rows.Next() {
			var (
				id  int
				raw string
			)
			if err := rows.Scan(&id, &raw); err != nil {
				return 0, err
			}
			if have := gjson.Get(raw, path); have.Exists() && have.Raw == string(wantRaw) {
				return 0, fmt.Errorf("%s/%d already has %s=%v: %w", collection, id, field, want, ErrDuplicate)
			}
		}
		if err := rows.Err(); err != nil {
			return 0, err
		}
		rows.Close()
	}
	return s.appendLocked(collection, rec)
}

func (s *SqliteStore) Get(collection string, id int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.load(collection, id)
	if err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *SqliteStore) Replace(collection string, id int, rec Record, keep ...string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prevRaw, err := s.load(collection, id)
	if err != nil {
		return nil, err
	}
	prev, err := decode(prevRaw)
	if err != nil {
		return nil, err
	}
	raw, err := encode(withKept(copyRecord(rec), prev, keep))
	if err != nil {
		return nil, err
	}
	if err := s.store(collection, id, raw); err != nil {
		return nil, err
	}
	return decode(raw)
}

func (s *SqliteStore) Merge(collection string, id int, partial Record, keep ...string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := s.load(collection, id)
	if err != nil {
		return nil, err
	}
	doc := []byte(raw)
	for field, v := range withoutKept(deepCopy(partial), keep) {
		doc, err = sjson.SetBytes(doc, escapePath(field), v)
		if err != nil {
			return nil, fmt.Errorf("merge %s/%d field %q: %w", collection, id, field, err)
		}
	}
	if err := s.store(collection, id, string(doc)); err != nil {
		return nil, err
	}
	return decode(string(doc))
}

func (s *SqliteStore) Tombstone(collection string, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(
		"UPDATE records SET deleted = 1, data = 'null' WHERE collection = ? AND id = ? AND deleted = 0",
		collection, id,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%s/%d: %w", collection, id, ErrNotFound)
	}
	return nil
}

func (s *SqliteStore) Len(collection string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM records WHERE collection = ?", collection).Scan(&n)
	return n, err
}

func (s *SqliteStore) Slice(collection string, start, end int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if start < 0 {
		start = 0
	}
	result := []Record{}
	if end <= start {
		return result, nil
	}
	rows, err := s.db.Query(
		"SELECT data, deleted FROM records WHERE collection = ? AND id >= ? AND id < ? ORDER BY id",
		collection, start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			raw     string
			deleted bool
		)
		if err := rows.Scan(&raw, &deleted); err != nil {
			return nil, err
		}
		if deleted {
			result = append(result, nil)
			continue
		}
		doc, err := decode(raw)
		if err != nil {
			return nil, err
		}
		result = append(result, doc)
	}
	return result, rows.Err()
}
