package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"splitgraph/cas"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

// SQLiteStore is a Backend on a single SQLite database file.
type SQLiteStore struct {
	conn *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path. ":memory:" opens a
// private in-memory database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		conn.SetMaxOpenConns(1)
	}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{conn: conn, path: path}, nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string { return s.path }

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

// Put stores blob under addr. Uses INSERT OR IGNORE for idempotence.
func (s *SQLiteStore) Put(ctx context.Context, kind ShardKind, addr cas.Hash, blob []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO shards (address, kind, size, blob, created_at) VALUES (?, ?, ?, ?, ?)`,
		addr[:], string(kind), len(blob), blob, cas.NowMs(),
	)
	if err != nil {
		return fmt.Errorf("inserting shard: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, addr cas.Hash) ([]byte, error) {
	var blob []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT blob FROM shards WHERE address = ?`, addr[:],
	).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying shard: %w", err)
	}
	return blob, nil
}

func (s *SQLiteStore) Has(ctx context.Context, addr cas.Hash) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM shards WHERE address = ?`, addr[:],
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("querying shard: %w", err)
	}
	return n > 0, nil
}

// List returns blobs of kind, or every blob when kind is empty, oldest first.
func (s *SQLiteStore) List(ctx context.Context, kind ShardKind) ([]ShardInfo, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT address, kind, size, created_at FROM shards
		 WHERE ? = '' OR kind = ?
		 ORDER BY created_at, address`,
		string(kind), string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("listing shards: %w", err)
	}
	defer rows.Close()

	var out []ShardInfo
	for rows.Next() {
		var (
			info  ShardInfo
			raw   []byte
			skind string
		)
		if err := rows.Scan(&raw, &skind, &info.Size, &info.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning shard: %w", err)
		}
		if len(raw) != cas.Size {
			return nil, fmt.Errorf("shard address has %d bytes", len(raw))
		}
		copy(info.Address[:], raw)
		info.Kind = ShardKind(skind)
		out = append(out, info)
	}
	return out, rows.Err()
}

// SetRef points name at addr, replacing any previous target.
func (s *SQLiteStore) SetRef(ctx context.Context, name string, addr cas.Hash) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO refs (name, address, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET address = excluded.address, updated_at = excluded.updated_at`,
		name, addr[:], cas.NowMs(),
	)
	if err != nil {
		return fmt.Errorf("setting ref: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetRef(ctx context.Context, name string) (cas.Hash, error) {
	var raw []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT address FROM refs WHERE name = ?`, name,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return cas.Nil, ErrRefNotFound
	}
	if err != nil {
		return cas.Nil, fmt.Errorf("querying ref: %w", err)
	}
	var addr cas.Hash
	if len(raw) != cas.Size {
		return cas.Nil, fmt.Errorf("ref %s: address has %d bytes", name, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
