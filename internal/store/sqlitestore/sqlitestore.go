// Package sqlitestore implements store.Store on a SQLite database file that
// several processes may open at once. Every write bumps a global revision;
// each handle polls for revisions written by others and notifies its
// subscribers.
package sqlitestore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/store"
	_ "github.com/ncruces/go-sqlite3/driver" // SQLite driver (pure Go)
	_ "github.com/ncruces/go-sqlite3/embed"  // Embed SQLite WASM binary
	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often a handle checks for sibling writes.
const DefaultPollInterval = 100 * time.Millisecond

const (
	qRead = `SELECT value FROM entries WHERE key = ?`

	// A NULL value marks a deleted key; the row is kept so the deletion
	// carries a revision that pollers can see.
	qUpsert = `
INSERT INTO entries (key, value, writer, revision)
VALUES (?, ?, ?, (SELECT COALESCE(MAX(revision), 0) + 1 FROM entries))
ON CONFLICT(key) DO UPDATE SET
    value = excluded.value,
    writer = excluded.writer,
    revision = excluded.revision`

	qMaxRevision = `SELECT COALESCE(MAX(revision), 0) FROM entries`

	qChanges = `
SELECT key, value, writer, revision FROM entries
WHERE revision > ?
ORDER BY revision`
)

type subscription struct {
	fn func([]byte)
}

// Store is one handle onto a SQLite store file.
type Store struct {
	db       *sql.DB
	writer   string
	interval time.Duration
	log      zerolog.Logger

	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	subs     map[string][]*subscription
	revision int64
	closed   bool
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithPollInterval sets how often sibling writes are picked up.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.interval = d
		}
	}
}

// Open opens (creating if needed) the store at path, applies migrations and
// starts polling. The logger is taken from ctx.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	db, err := NewConnection(ctx, path)
	if err != nil {
		return nil, err
	}

	var rev int64
	if err := db.QueryRowContext(ctx, qMaxRevision).Scan(&rev); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read store revision: %w", err)
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:       db,
		writer:   uuid.NewString(),
		interval: DefaultPollInterval,
		log:      logging.FromContext(ctx).With().Str("component", "sqlitestore").Logger(),
		cancel:   cancel,
		done:     make(chan struct{}),
		subs:     make(map[string][]*subscription),
		revision: rev,
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.poll(pollCtx)
	return s, nil
}

// NewConnection opens a SQLite database with pragmas suited to several
// processes sharing one small file, and runs migrations.
func NewConnection(ctx context.Context, path string) (*sql.DB, error) {
	const dbDirPerm = 0o750

	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dbDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) Read(ctx context.Context, key string) ([]byte, error) {
	if s.isClosed() {
		return nil, store.ErrClosed
	}
	var value []byte
	err := s.db.QueryRowContext(ctx, qRead, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if value == nil {
		return nil, store.ErrNotFound
	}
	return value, nil
}

func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	return s.put(ctx, key, value)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.put(ctx, key, nil)
}

func (s *Store) put(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	var arg any
	if value != nil {
		arg = value
	}
	if _, err := s.db.ExecContext(ctx, qUpsert, key, arg, s.writer); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Subscribe(key string, fn func(value []byte)) func() {
	sub := &subscription{fn: fn}
	s.mu.Lock()
	s.subs[key] = append(s.subs[key], sub)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			list := s.subs[key]
			for i, x := range list {
				if x == sub {
					s.subs[key] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Close stops polling and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[string][]*subscription)
	s.mu.Unlock()

	s.cancel()
	<-s.done
	return s.db.Close()
}

func (s *Store) poll(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.pollOnce(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("store poll failed")
			}
		}
	}
}

type change struct {
	key      string
	value    []byte
	writer   string
	revision int64
}

// pollOnce delivers every change newer than the last seen revision that was
// written by another handle. Only the latest value per key is delivered.
func (s *Store) pollOnce(ctx context.Context) error {
	s.mu.Lock()
	since := s.revision
	s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, qChanges, since)
	if err != nil {
		return fmt.Errorf("query changes: %w", err)
	}
	var changes []change
	for rows.Next() {
		var c change
		if err := rows.Scan(&c.key, &c.value, &c.writer, &c.revision); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	s.mu.Lock()
	s.revision = changes[len(changes)-1].revision
	s.mu.Unlock()

	for _, c := range changes {
		if c.writer == s.writer {
			continue
		}
		s.mu.Lock()
		subs := append([]*subscription(nil), s.subs[c.key]...)
		s.mu.Unlock()
		for _, sub := range subs {
			sub.fn(bytes.Clone(c.value))
		}
	}
	return nil
}
