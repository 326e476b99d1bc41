package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/companion-memory/internal/model"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx *sql.Tx

	mu      *sync.Mutex
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
// The special path ":memory:" opens a private in-memory database.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
		dsn += "?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
	} else {
		dsn += "?_pragma=foreign_keys(on)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection: every write goes through a single serialized context.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{
		db:      db,
		q:       db,
		mu:      &sync.Mutex{},
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewID returns a new time-sortable identifier.
func (s *SQLiteStore) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS profiles (
		id          TEXT PRIMARY KEY,
		name        TEXT,
		created_at  TEXT NOT NULL,
		preferences TEXT
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		type        TEXT NOT NULL,
		started_at  TEXT NOT NULL,
		ended_at    TEXT,
		duration    REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);

	CREATE TABLE IF NOT EXISTS memories (
		id             TEXT PRIMARY KEY,
		user_id        TEXT NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
		session_id     TEXT REFERENCES sessions(id) ON DELETE SET NULL,
		content        TEXT NOT NULL,
		content_folded TEXT NOT NULL,
		embedding      TEXT,
		importance     REAL NOT NULL,
		access_count   INTEGER NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL,
		last_accessed  TEXT NOT NULL,
		layer          TEXT NOT NULL CHECK (layer IN ('working', 'episodic', 'semantic')),
		tags           TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_memories_layer_created ON memories(layer, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_memories_session ON memories(session_id);

	CREATE TABLE IF NOT EXISTS signals (
		id          TEXT PRIMARY KEY,
		session_id  TEXT REFERENCES sessions(id) ON DELETE CASCADE,
		timestamp   TEXT NOT NULL,
		type        TEXT NOT NULL,
		value       REAL NOT NULL,
		metadata    TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_signals_session_type ON signals(session_id, type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Update runs fn inside a transaction. Writes are property level, so when two
// transactions touch the same column of a record the last commit wins.
func (s *SQLiteStore) Update(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	txs := &SQLiteStore{db: s.db, q: tx, tx: tx, mu: s.mu, entropy: s.entropy}
	if err := fn(txs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Profile(ctx context.Context) (*model.UserProfile, error) {
	var p model.UserProfile
	var name, prefs sql.NullString
	var createdAt string
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, created_at, preferences FROM profiles ORDER BY created_at LIMIT 1`).
		Scan(&p.ID, &name, &createdAt, &prefs)
	if err == nil {
		p.Name = name.String
		p.Preferences = prefs.String
		p.CreatedAt = parseTime(createdAt)
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	p = model.UserProfile{ID: uuid.NewString(), CreatedAt: time.Now().UTC()}
	if err := s.insertProfile(ctx, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) insertProfile(ctx context.Context, p *model.UserProfile) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles (id, name, created_at, preferences) VALUES (?, ?, ?, ?)`,
		p.ID, nullString(p.Name), formatTime(p.CreatedAt), nullString(p.Preferences))
	if err != nil {
		return fmt.Errorf("insert profile: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SetProfileName(ctx context.Context, name string) error {
	p, err := s.Profile(ctx)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `UPDATE profiles SET name = ? WHERE id = ?`, nullString(name), p.ID)
	return err
}

func (s *SQLiteStore) Wipe(ctx context.Context) error {
	return s.Update(ctx, func(tx Store) error {
		q := tx.(*SQLiteStore).q
		for _, table := range []string{"signals", "memories", "sessions", "profiles"} {
			if _, err := q.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("wipe %s: %w", table, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func marshalJSON(v any, empty bool) *string {
	if empty {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	str := string(b)
	return &str
}

// inClause returns "(?, ?, ...)" and the matching args.
func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ") + ")", args
}
