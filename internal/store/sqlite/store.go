// Package sqlite implements kvs.Store over a local SQLite database.
//
// Each row is one setting identified by (key, label); the empty label
// column means no label. Read-only rows reject writes and deletes with a
// 409 status.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"time"

	"github.com/Azure/AppConfiguration-Sync/internal/kvs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is a kvs.Store kept in a SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func labelColumn(l kvs.Label) string {
	name, _ := l.Name()
	return name
}

// List yields the rows passing filter, ordered by key then label.
func (s *Store) List(ctx context.Context, filter kvs.Filter) iter.Seq2[kvs.RemoteEntry, error] {
	return func(yield func(kvs.RemoteEntry, error) bool) {
		query := `SELECT key, label, value, tags, content_type, read_only, etag FROM settings`
		var args []any
		switch {
		case filter.LabelFilter == "":
		case filter.MatchesNoLabel():
			query += ` WHERE label = ''`
		default:
			query += ` WHERE label = ?`
			args = append(args, filter.LabelFilter)
		}
		query += ` ORDER BY key, label`

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(kvs.RemoteEntry{}, fmt.Errorf("query settings: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e     kvs.RemoteEntry
				label string
				tags  string
			)
			if err := rows.Scan(&e.Key, &label, &e.Value, &tags, &e.ContentType, &e.ReadOnly, &e.ETag); err != nil {
				yield(kvs.RemoteEntry{}, fmt.Errorf("scan setting: %w", err))
				return
			}
			e.Label = kvs.LabelOf(label)
			if !filter.Matches(e.Key, e.Label) {
				continue
			}
			if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
				yield(kvs.RemoteEntry{}, fmt.Errorf("decode tags of %s: %w", e.Key, err))
				return
			}
			if len(e.Tags) == 0 {
				e.Tags = nil
			}
			if !yield(e, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(kvs.RemoteEntry{}, fmt.Errorf("iterate settings: %w", err))
		}
	}
}

// Upsert sets the entry at its (key, label). A read-only row is left
// untouched and a 409 status error returned.
func (s *Store) Upsert(ctx context.Context, e kvs.Entry) error {
	tags, err := json.Marshal(e.Tags)
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if e.Tags == nil {
		tags = []byte("{}")
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, label, value, tags, content_type, etag, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (key, label) DO UPDATE SET
			value = excluded.value,
			tags = excluded.tags,
			content_type = excluded.content_type,
			etag = excluded.etag,
			updated_at = excluded.updated_at
		WHERE settings.read_only = 0`,
		e.Key, labelColumn(e.Label), e.Value, string(tags), e.ContentType,
		uuid.NewString(), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert %s: %w", e.Key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return readOnlyError(e.Key)
	}
	return nil
}

// Delete removes the row identified by the entry's key and label.
func (s *Store) Delete(ctx context.Context, e kvs.RemoteEntry) error {
	label := labelColumn(e.Label)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM settings WHERE key = ? AND label = ? AND read_only = 0`, e.Key, label)
	if err != nil {
		return fmt.Errorf("delete %s: %w", e.Key, err)
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}

	var readOnly bool
	err = s.db.QueryRowContext(ctx,
		`SELECT read_only FROM settings WHERE key = ? AND label = ?`, e.Key, label).Scan(&readOnly)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return &kvs.StatusError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("setting %s not found", e.Key)}
	case err != nil:
		return fmt.Errorf("lookup %s: %w", e.Key, err)
	}
	return readOnlyError(e.Key)
}

// SetReadOnly locks or unlocks a setting.
func (s *Store) SetReadOnly(ctx context.Context, key string, label kvs.Label, readOnly bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settings SET read_only = ? WHERE key = ? AND label = ?`, readOnly, key, labelColumn(label))
	if err != nil {
		return fmt.Errorf("set read-only %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &kvs.StatusError{StatusCode: http.StatusNotFound, Err: fmt.Errorf("setting %s not found", key)}
	}
	return nil
}

func readOnlyError(key string) error {
	return &kvs.StatusError{StatusCode: http.StatusConflict, Err: fmt.Errorf("setting %s is read-only", key)}
}
