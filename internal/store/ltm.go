// Package store persists long-term memory facts in SQLite. Facts are flat
// records (kind, lex, neg, belief) plus labeled links, mirroring the node
// and argument structure of the semantic network without referencing it,
// so the reasoning core stays free of storage concerns.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"noesis/internal/logging"
)

// FactRec is one stored node.
type FactRec struct {
	ID     int64
	Kind   string
	Lex    string
	Neg    int
	Done   int
	Belief float64
}

// LinkRec is one stored argument arc between facts.
type LinkRec struct {
	Fact   int64
	Slot   string
	Target int64
}

// LTMStore is a SQLite-backed long-term memory.
type LTMStore struct {
	db   *sql.DB
	path string
}

// Open creates (or opens) the long-term store at the given path.
func Open(path string) (*LTMStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty store path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ltm store: %w", err)
	}
	s := &LTMStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logging.Store("long-term store open at %s", path)
	return s, nil
}

// Close releases the database.
func (s *LTMStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *LTMStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		id      INTEGER PRIMARY KEY AUTOINCREMENT,
		kind    TEXT NOT NULL,
		lex     TEXT NOT NULL DEFAULT '',
		neg     INTEGER NOT NULL DEFAULT 0,
		done    INTEGER NOT NULL DEFAULT 0,
		belief  REAL NOT NULL DEFAULT 1.0,
		created INTEGER NOT NULL
	);
	CREATE TABLE IF NOT EXISTS links (
		fact    INTEGER NOT NULL REFERENCES facts(id) ON DELETE CASCADE,
		slot    TEXT NOT NULL,
		target  INTEGER NOT NULL REFERENCES facts(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_facts_lex ON facts(lex);
	CREATE INDEX IF NOT EXISTS idx_links_fact ON links(fact);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init ltm schema: %w", err)
	}
	return nil
}

// AddFact stores one node record, returning its id.
func (s *LTMStore) AddFact(ctx context.Context, f FactRec) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (kind, lex, neg, done, belief, created) VALUES (?, ?, ?, ?, ?, ?)`,
		f.Kind, f.Lex, f.Neg, f.Done, f.Belief, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("add fact: %w", err)
	}
	return res.LastInsertId()
}

// AddLink stores one argument arc.
func (s *LTMStore) AddLink(ctx context.Context, l LinkRec) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO links (fact, slot, target) VALUES (?, ?, ?)`,
		l.Fact, l.Slot, l.Target)
	if err != nil {
		return fmt.Errorf("add link: %w", err)
	}
	return err
}

// Facts loads every stored fact record.
func (s *LTMStore) Facts(ctx context.Context) ([]FactRec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, lex, neg, done, belief FROM facts ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("load facts: %w", err)
	}
	defer rows.Close()
	var out []FactRec
	for rows.Next() {
		var f FactRec
		if err := rows.Scan(&f.ID, &f.Kind, &f.Lex, &f.Neg, &f.Done, &f.Belief); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// Links loads every stored argument arc.
func (s *LTMStore) Links(ctx context.Context) ([]LinkRec, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT fact, slot, target FROM links ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("load links: %w", err)
	}
	defer rows.Close()
	var out []LinkRec
	for rows.Next() {
		var l LinkRec
		if err := rows.Scan(&l.Fact, &l.Slot, &l.Target); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Remove deletes one fact and its arcs.
func (s *LTMStore) Remove(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM links WHERE fact = ? OR target = ?`, id, id); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id)
	return err
}

// Count returns the stored fact count.
func (s *LTMStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts`).Scan(&n)
	return n, err
}
