package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/benoitc/couchbase-lite-core/internal/translator"
)

// Document is one stored row: the caller-visible key, the write
// sequence, and the JSON body.
type Document struct {
	Key      string
	Sequence int64
	Body     []byte
}

// Get returns the document stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (Document, error) {
	var doc Document
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT key, sequence, body FROM `+TableName+` WHERE key = ?`, key).
		Scan(&doc.Key, &doc.Sequence, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, fmt.Errorf("get: %w", err)
	}
	doc.Body = []byte(body)
	return doc, nil
}

// Query compiles a JSON where/sort expression and runs it against the
// document table. Placeholder bindings in the query (`[name]` values,
// compiled to :_name) are supplied through params, keyed without the
// underscore prefix.
//
// Returns documents in the requested order; an empty where matches all
// documents.
func (s *Store) Query(ctx context.Context, whereJSON, sortJSON []byte, params map[string]any) ([]Document, error) {
	qp := translator.New(TableName, BodyColumn)
	if err := qp.ParseJSON(whereJSON, sortJSON); err != nil {
		return nil, err
	}

	sqlText := buildSelect(qp)
	args := make([]any, 0, len(params))
	for name, val := range params {
		args = append(args, sql.Named("_"+name, val))
	}

	rows, err := s.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var doc Document
		var body string
		if err := rows.Scan(&doc.Key, &doc.Sequence, &body); err != nil {
			return nil, fmt.Errorf("query: scan: %w", err)
		}
		doc.Body = []byte(body)
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: iterate: %w", err)
	}
	return docs, nil
}

// CompileSelect returns the full SELECT statement a where/sort pair
// compiles to, without executing it.
func (s *Store) CompileSelect(whereJSON, sortJSON []byte) (string, error) {
	qp := translator.New(TableName, BodyColumn)
	if err := qp.ParseJSON(whereJSON, sortJSON); err != nil {
		return "", err
	}
	return buildSelect(qp), nil
}

// buildSelect assembles the SELECT from the translator's clause
// fragments. Columns are table-qualified because FromClause may carry
// FTS joins.
func buildSelect(qp *translator.Translator) string {
	sqlText := fmt.Sprintf("SELECT %s.key, %s.sequence, %s.body FROM %s",
		TableName, TableName, TableName, qp.FromClause())
	if where := qp.WhereClause(); where != "" {
		sqlText += " WHERE " + where
	}
	return sqlText + " ORDER BY " + qp.OrderBy()
}
