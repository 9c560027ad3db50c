package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/benoitc/couchbase-lite-core/internal/value"
)

// Put stores a JSON document body under key and returns the saved
// document. An empty key generates a fresh UUID. Each write is assigned
// the next sequence; replacing an existing document re-sequences it,
// and any full-text indexes covering the document are updated in the
// same transaction.
func (s *Store) Put(ctx context.Context, key string, body []byte) (Document, error) {
	root, err := value.ParseJSON(body)
	if err != nil {
		return Document{}, fmt.Errorf("put: body is not valid JSON: %w", err)
	}
	if key == "" {
		key = uuid.NewString()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Document{}, fmt.Errorf("put: begin: %w", err)
	}
	defer tx.Rollback()

	// Drop FTS rows for the sequence being replaced, if any.
	oldSeq, err := keySequence(ctx, tx, key)
	if err != nil {
		return Document{}, err
	}

	indexes, err := ftsIndexPaths(ctx, tx)
	if err != nil {
		return Document{}, err
	}
	if oldSeq != 0 {
		if err := removeFTSRows(ctx, tx, indexes, oldSeq); err != nil {
			return Document{}, err
		}
	}

	var seq int64
	row := tx.QueryRowContext(ctx,
		`SELECT IFNULL(MAX(sequence), 0) + 1 FROM `+TableName)
	if err := row.Scan(&seq); err != nil {
		return Document{}, fmt.Errorf("put: next sequence: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO `+TableName+` (key, sequence, body) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET sequence = excluded.sequence, body = excluded.body`,
		key, seq, string(body))
	if err != nil {
		return Document{}, fmt.Errorf("put: insert: %w", err)
	}

	if err := insertFTSRows(ctx, tx, indexes, root, seq); err != nil {
		return Document{}, err
	}

	if err := tx.Commit(); err != nil {
		return Document{}, fmt.Errorf("put: commit: %w", err)
	}
	return Document{Key: key, Sequence: seq, Body: append([]byte(nil), body...)}, nil
}

// Delete removes a document and its full-text index rows.
// Deleting a missing key returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete: begin: %w", err)
	}
	defer tx.Rollback()

	seq, err := keySequence(ctx, tx, key)
	if err != nil {
		return err
	}
	if seq == 0 {
		return ErrNotFound
	}

	indexes, err := ftsIndexPaths(ctx, tx)
	if err != nil {
		return err
	}
	if err := removeFTSRows(ctx, tx, indexes, seq); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM `+TableName+` WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return tx.Commit()
}

// CreateFTSIndex creates the full-text index virtual table for a
// property path and backfills it from the existing documents. The table
// is named "<table>::<path>", which is exactly what the translator's
// FromClause joins against. Idempotent.
func (s *Store) CreateFTSIndex(ctx context.Context, propertyPath string) error {
	table := ftsTableName(propertyPath)
	if _, err := s.db.ExecContext(ctx,
		`CREATE VIRTUAL TABLE IF NOT EXISTS `+quoteIdent(table)+` USING fts4(text)`); err != nil {
		return fmt.Errorf("create fts index: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create fts index: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+quoteIdent(table)); err != nil {
		return fmt.Errorf("create fts index: clear: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT sequence, body FROM `+TableName)
	if err != nil {
		return fmt.Errorf("create fts index: scan documents: %w", err)
	}
	defer rows.Close()

	type pending struct {
		seq  int64
		text string
	}
	var backfill []pending
	for rows.Next() {
		var seq int64
		var body string
		if err := rows.Scan(&seq, &body); err != nil {
			return fmt.Errorf("create fts index: scan: %w", err)
		}
		root, err := value.ParseJSON([]byte(body))
		if err != nil {
			return fmt.Errorf("create fts index: body: %w", err)
		}
		if text, ok := indexableText(root, propertyPath); ok {
			backfill = append(backfill, pending{seq: seq, text: text})
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("create fts index: iterate: %w", err)
	}

	for _, p := range backfill {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+quoteIdent(table)+` (rowid, text) VALUES (?, ?)`,
			p.seq, p.text); err != nil {
			return fmt.Errorf("create fts index: backfill: %w", err)
		}
	}
	return tx.Commit()
}

// ErrNotFound reports a missing document key.
var ErrNotFound = errors.New("document not found")

// ftsTableName builds the virtual-table name for an indexed property
// path, unquoted.
func ftsTableName(propertyPath string) string {
	return TableName + "::" + propertyPath
}

// quoteIdent double-quotes a SQL identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// keySequence returns the sequence of a key, or 0 when absent.
func keySequence(ctx context.Context, tx *sql.Tx, key string) (int64, error) {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT sequence FROM `+TableName+` WHERE key = ?`, key).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup sequence: %w", err)
	}
	return seq, nil
}

// ftsIndexPaths lists the property paths that currently have full-text
// index tables, by scanning sqlite_master for our virtual tables.
func ftsIndexPaths(ctx context.Context, tx *sql.Tx) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name LIKE ? AND sql LIKE 'CREATE VIRTUAL TABLE%'`,
		TableName+"::%")
	if err != nil {
		return nil, fmt.Errorf("list fts indexes: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list fts indexes: %w", err)
		}
		paths = append(paths, strings.TrimPrefix(name, TableName+"::"))
	}
	return paths, rows.Err()
}

// removeFTSRows drops the index rows tied to a document sequence.
func removeFTSRows(ctx context.Context, tx *sql.Tx, paths []string, seq int64) error {
	for _, path := range paths {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM `+quoteIdent(ftsTableName(path))+` WHERE rowid = ?`, seq); err != nil {
			return fmt.Errorf("remove fts rows: %w", err)
		}
	}
	return nil
}

// insertFTSRows indexes a document body into every index whose property
// resolves to text.
func insertFTSRows(ctx context.Context, tx *sql.Tx, paths []string, root value.Value, seq int64) error {
	for _, path := range paths {
		text, ok := indexableText(root, path)
		if !ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+quoteIdent(ftsTableName(path))+` (rowid, text) VALUES (?, ?)`,
			seq, text); err != nil {
			return fmt.Errorf("index fts rows: %w", err)
		}
	}
	return nil
}

// indexableText extracts the string value at a property path, if any.
func indexableText(root value.Value, path string) (string, bool) {
	v, err := value.EvalPath(root, path)
	if err != nil {
		return "", false
	}
	s, ok := v.(value.String)
	if !ok {
		return "", false
	}
	return string(s), true
}
