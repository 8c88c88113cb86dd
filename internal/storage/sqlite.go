package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/starford/chronicle/internal/apperr"
	"github.com/starford/chronicle/internal/models"
)

const objectsSchemaSQL = `
CREATE TABLE IF NOT EXISTS objects (
	id         TEXT PRIMARY KEY,
	owner      TEXT NOT NULL,
	name       TEXT NOT NULL,
	blob       BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(owner, name)
);

CREATE INDEX IF NOT EXISTS idx_objects_owner_name ON objects(owner, name);
`

// DB is a SQLite-backed object store shared by all users.
type DB struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the SQLite database and applies the schema.
func OpenSQLite(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(objectsSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// ForUser returns a Provider whose rows are scoped to user.
func (db *DB) ForUser(user string) (Provider, error) {
	key, err := UserKey(user)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, owner: key}, nil
}

// SQLiteStore is one user's view of DB. Object ids are UUIDs.
type SQLiteStore struct {
	db    *DB
	owner string
}

func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// List returns objects whose name starts with prefix.
func (s *SQLiteStore) List(ctx context.Context, prefix string) ([]models.ObjectInfo, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, name FROM objects WHERE owner = ? AND name LIKE ? ESCAPE '\' ORDER BY name`,
		s.owner, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	defer rows.Close()

	var out []models.ObjectInfo
	for rows.Next() {
		var o models.ObjectInfo
		if err := rows.Scan(&o.ID, &o.Name); err != nil {
			return nil, fmt.Errorf("storage: scan: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Get returns the blob stored under id.
func (s *SQLiteStore) Get(ctx context.Context, id string) ([]byte, error) {
	var blob []byte
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT blob FROM objects WHERE owner = ? AND id = ?`, s.owner, id).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get %s: %w", id, err)
	}
	return blob, nil
}

// Create inserts a new object under a fresh UUID.
func (s *SQLiteStore) Create(ctx context.Context, name string, blob []byte) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC()
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO objects (id, owner, name, blob, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, s.owner, name, blob, now, now)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return "", fmt.Errorf("storage: create %s: %w", name, apperr.ErrAlreadyExists)
		}
		return "", fmt.Errorf("storage: create %s: %w", name, err)
	}
	return id, nil
}

// Update replaces the blob of an existing object.
func (s *SQLiteStore) Update(ctx context.Context, id string, blob []byte) error {
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE objects SET blob = ?, updated_at = ? WHERE owner = ? AND id = ?`,
		blob, time.Now().UTC(), s.owner, id)
	if err != nil {
		return fmt.Errorf("storage: update %s: %w", id, err)
	}
	return requireAffected(res, "update", id)
}

// Delete removes the object with id.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.conn.ExecContext(ctx,
		`DELETE FROM objects WHERE owner = ? AND id = ?`, s.owner, id)
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return requireAffected(res, "delete", id)
}

func requireAffected(res sql.Result, op, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: %s %s: %w", op, id, err)
	}
	if n == 0 {
		return fmt.Errorf("storage: %s %s: %w", op, id, apperr.ErrNotFound)
	}
	return nil
}

var (
	_ Provider = (*FS)(nil)
	_ Provider = (*SQLiteStore)(nil)
	_ Opener   = (*FSOpener)(nil)
	_ Opener   = (*DB)(nil)
)
