package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nandanugg/geonotify/module/geofence/domain"
	"github.com/nandanugg/geonotify/module/geofence/internal/repository/database"
)

var _ database.NotificationStore = (*Store)(nil)

const tableName = "geo_notifications"

type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

type queries struct {
	create string
	exists string
	insert string
	update string
	find   string
	all    string
	remove string
	clear  string
}

func buildQueries(d Dialect) queries {
	blob := "BLOB"
	bind := func(int) string { return "?" }
	if d == Postgres {
		blob = "BYTEA"
		bind = func(n int) string { return fmt.Sprintf("$%d", n) }
	}

	return queries{
		create: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, data %s NOT NULL)`, tableName, blob),
		exists: fmt.Sprintf(`SELECT 1 FROM %s WHERE id = %s`, tableName, bind(1)),
		insert: fmt.Sprintf(`INSERT INTO %s (id, data) VALUES (%s, %s)`, tableName, bind(1), bind(2)),
		update: fmt.Sprintf(`UPDATE %s SET data = %s WHERE id = %s`, tableName, bind(1), bind(2)),
		find:   fmt.Sprintf(`SELECT data FROM %s WHERE id = %s`, tableName, bind(1)),
		all:    fmt.Sprintf(`SELECT data FROM %s ORDER BY id`, tableName),
		remove: fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, tableName, bind(1)),
		clear:  fmt.Sprintf(`DELETE FROM %s`, tableName),
	}
}

// Store keeps each definition as an opaque JSON blob in a single
// (id, data) table.
type Store struct {
	db *sql.DB
	q  queries

	mu    sync.Mutex
	ready bool
}

func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, q: buildQueries(dialect)}
}

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(s)) {
	case SQLite:
		return SQLite, nil
	case Postgres:
		return Postgres, nil
	}
	return "", fmt.Errorf("unknown sql dialect %q", s)
}

// EnsureSchema creates the table if it is missing. It is cheap after the
// first success and may be called before every operation.
func (s *Store) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, s.q.create); err != nil {
		return fmt.Errorf("%w: create table: %w", domain.ErrStorage, err)
	}
	s.ready = true
	return nil
}

func (s *Store) Upsert(ctx context.Context, def domain.Definition) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", domain.ErrStorage, def.ID, err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, s.q.exists, def.ID).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx, s.q.insert, def.ID, data)
	case err == nil:
		_, err = s.db.ExecContext(ctx, s.q.update, data, def.ID)
	}
	if err != nil {
		return s.fail("upsert "+def.ID, err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, id string) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.remove, id); err != nil {
		return s.fail("remove "+id, err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.q.clear); err != nil {
		return s.fail("clear", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, id string) (domain.Definition, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return domain.Definition{}, err
	}

	var data []byte
	err := s.db.QueryRowContext(ctx, s.q.find, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Definition{}, fmt.Errorf("%w: %s", domain.ErrNotFound, id)
	}
	if err != nil {
		return domain.Definition{}, s.fail("find "+id, err)
	}

	var def domain.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return domain.Definition{}, fmt.Errorf("%w: decode %s: %w", domain.ErrStorage, id, err)
	}
	return def, nil
}

func (s *Store) GetAll(ctx context.Context) ([]domain.Definition, error) {
	if err := s.EnsureSchema(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, s.q.all)
	if err != nil {
		return nil, s.fail("get all", err)
	}
	defer func() { _ = rows.Close() }()

	results := []domain.Definition{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, s.fail("scan", err)
		}
		var def domain.Definition
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("%w: decode row: %w", domain.ErrStorage, err)
		}
		results = append(results, def)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("get all", err)
	}
	return results, nil
}

// fail wraps err as a storage failure and re-arms the schema guard, so a
// dropped table is recreated on the next call.
func (s *Store) fail(op string, err error) error {
	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()
	return fmt.Errorf("%w: %s: %w", domain.ErrStorage, op, err)
}
