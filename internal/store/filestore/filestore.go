// Package filestore implements store.Store as one file per key in a shared
// directory. Sibling processes opening the same directory see each other's
// writes through fsnotify.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/mj1618/winsync/internal/store"
	"github.com/rs/zerolog"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// entry is the last content this handle knows for a key, either written by
// itself or delivered to its subscribers.
type entry struct {
	present bool
	data    []byte
}

type subscription struct {
	fn func([]byte)
}

// Store is a handle onto a store directory.
type Store struct {
	dir     string
	log     zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}

	mu     sync.Mutex
	known  map[string]entry
	subs   map[string][]*subscription
	closed bool
}

var _ store.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for watch errors.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log.With().Str("component", "filestore").Logger()
	}
}

// Open creates dir if needed and starts watching it.
func Open(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	s := &Store{
		dir:     dir,
		log:     zerolog.Nop(),
		watcher: watcher,
		done:    make(chan struct{}),
		known:   make(map[string]entry),
		subs:    make(map[string][]*subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.watch()
	return s, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, key), nil
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Write replaces the key's file atomically through a dot-prefixed temp file
// and a rename, so readers never see a partial value.
func (s *Store) Write(ctx context.Context, key string, value []byte) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(value)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(tmpName, filePerm)
	}
	if werr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, werr)
	}

	// Record before the rename so the watcher recognizes its own write.
	s.remember(key, entry{present: true, data: bytes.Clone(value)})
	if err := os.Rename(tmpName, p); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if s.isClosed() {
		return store.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	s.remember(key, entry{})
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) remember(key string, e entry) {
	s.mu.Lock()
	s.known[key] = e
	s.mu.Unlock()
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

// Close stops the watcher and drops every subscription.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.subs = make(map[string][]*subscription)
	s.mu.Unlock()

	err := s.watcher.Close()
	<-s.done
	return err
}

func (s *Store) watch() {
	defer close(s.done)
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handle(ev)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn().Err(err).Str("dir", s.dir).Msg("store watch error")
		}
	}
}

// handle turns a filesystem event into at most one notification. The file
// is re-read rather than trusting the event kind, and nothing is delivered
// when the content matches what this handle last wrote or delivered.
func (s *Store) handle(ev fsnotify.Event) {
	key := filepath.Base(ev.Name)
	if strings.HasPrefix(key, ".") || filepath.Dir(ev.Name) != filepath.Clean(s.dir) {
		return
	}
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return
	}

	var next entry
	data, err := os.ReadFile(ev.Name)
	switch {
	case err == nil:
		next = entry{present: true, data: data}
	case errors.Is(err, fs.ErrNotExist):
		next = entry{}
	default:
		s.log.Debug().Err(err).Str("key", key).Msg("failed to read changed key")
		return
	}

	s.mu.Lock()
	prev, seen := s.known[key]
	if seen && prev.present == next.present && bytes.Equal(prev.data, next.data) {
		s.mu.Unlock()
		return
	}
	if !seen && !next.present {
		s.mu.Unlock()
		return
	}
	s.known[key] = next
	subs := append([]*subscription(nil), s.subs[key]...)
	s.mu.Unlock()

	var value []byte
	if next.present {
		value = next.data
		if value == nil {
			value = []byte{}
		}
	}
	for _, sub := range subs {
		sub.fn(bytes.Clone(value))
	}
}
