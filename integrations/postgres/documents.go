package postgres

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aqlanhadi/kisht/store"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

var _ store.Store = (*DB)(nil)

// Get returns a single document
func (db *DB) Get(ctx context.Context, path string) (*store.Document, error) {
	var raw []byte
	err := db.Pool.QueryRow(ctx, `SELECT fields FROM documents WHERE path = $1`, path).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", path, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}

	fields, err := decodeFields(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &store.Document{Path: path, Fields: fields}, nil
}

// Query lists the documents of a collection whose fields contain every filter
func (db *DB) Query(ctx context.Context, collection string, filters []store.Filter, limit int) ([]store.Document, error) {
	match := map[string]any{}
	for _, f := range filters {
		match[f.Field] = f.Value
	}
	matchJSON, err := json.Marshal(match)
	if err != nil {
		return nil, fmt.Errorf("failed to encode filters: %w", err)
	}

	sql := `SELECT path, fields FROM documents WHERE collection = $1 AND fields @> $2::jsonb ORDER BY path`
	args := []any{collection, matchJSON}
	if limit > 0 {
		sql += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []store.Document{}
	for rows.Next() {
		var path string
		var raw []byte
		if err := rows.Scan(&path, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", collection, err)
		}
		fields, err := decodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		docs = append(docs, store.Document{Path: path, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", collection, err)
	}
	return docs, nil
}

// Commit applies the writes inside one SQL transaction
func (db *DB) Commit(ctx context.Context, writes []store.Write) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, w := range writes {
		if err := applyWrite(ctx, tx, w); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	log.WithField("writes", len(writes)).Debug("postgres commit applied")
	return nil
}

func applyWrite(ctx context.Context, tx pgx.Tx, w store.Write) error {
	if w.IsDelete() {
		tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE path = $1`, w.Path)
		if err != nil {
			return fmt.Errorf("failed to delete %s: %w", w.Path, err)
		}
		if w.Precondition == store.MustExist && tag.RowsAffected() == 0 {
			return fmt.Errorf("%s does not exist: %w", w.Path, store.ErrPreconditionFailed)
		}
		return nil
	}

	collection, _ := store.Split(w.Path)

	if w.Precondition == store.MustNotExist {
		raw, err := encodeFields(store.Fields(nil).Merge(w.Fields, w.Mask))
		if err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO documents (path, collection, fields)
			VALUES ($1, $2, $3::jsonb)
			ON CONFLICT (path) DO NOTHING
		`, w.Path, collection, raw)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", w.Path, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%s already exists: %w", w.Path, store.ErrPreconditionFailed)
		}
		return nil
	}

	var existing store.Fields
	var current []byte
	err := tx.QueryRow(ctx, `SELECT fields FROM documents WHERE path = $1 FOR UPDATE`, w.Path).Scan(&current)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if w.Precondition == store.MustExist {
			return fmt.Errorf("%s does not exist: %w", w.Path, store.ErrPreconditionFailed)
		}
	case err != nil:
		return fmt.Errorf("failed to lock %s: %w", w.Path, err)
	default:
		if existing, err = decodeFields(current); err != nil {
			return fmt.Errorf("failed to decode %s: %w", w.Path, err)
		}
	}

	fields := w.Fields
	if len(w.Mask) > 0 {
		fields = existing.Merge(w.Fields, w.Mask)
	}
	raw, err := encodeFields(fields)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (path, collection, fields)
		VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (path) DO UPDATE SET fields = EXCLUDED.fields, updated_at = NOW()
	`, w.Path, collection, raw)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", w.Path, err)
	}
	return nil
}

// Patch merges fields into a document, creating it when absent
func (db *DB) Patch(ctx context.Context, path string, fields store.Fields, mask []string) error {
	if len(mask) == 0 {
		for k := range fields {
			mask = append(mask, k)
		}
	}
	return db.Commit(ctx, []store.Write{{Path: path, Fields: fields, Mask: mask}})
}

// Delete removes a document
func (db *DB) Delete(ctx context.Context, path string) error {
	if _, err := db.Pool.Exec(ctx, `DELETE FROM documents WHERE path = $1`, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

func encodeFields(fields store.Fields) ([]byte, error) {
	if fields == nil {
		fields = store.Fields{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode fields: %w", err)
	}
	return raw, nil
}

// decodeFields keeps numbers as json.Number so integers survive the round trip
func decodeFields(raw []byte) (store.Fields, error) {
	fields := store.Fields{}
	if len(raw) == 0 {
		return fields, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	if err := decoder.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}
