// Package registry keeps this process's window in the shared window list and
// keeps the local copy of that list in sync with sibling processes.
//
// The shared store is the only channel between windows. Every write is a
// full overwrite of the list, so concurrent writers race and the last one
// wins. Two registries that Init at the same moment can read the same counter
// and mint the same id; this is accepted for a handful of windows opened by
// one user.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/platform"
	"github.com/mj1618/winsync/internal/store"
	"github.com/rs/zerolog"
)

var (
	// ErrNotInitialized is returned by operations that need an id before Init.
	ErrNotInitialized = errors.New("registry: not initialized")
	// ErrClosed is returned by operations after Close.
	ErrClosed = errors.New("registry: closed")
)

// Registry is one window's view of the shared window list.
//
// Update, Close and the store notification handler may be called from
// different goroutines; they are serialized internally. Callbacks are invoked
// without any registry lock held, so they may call the accessors.
type Registry struct {
	store  store.Store
	shapes platform.ShapeSource
	log    zerolog.Logger
	differ model.Differ
	now    func() time.Time

	// opMu serializes operations that write to the store. It is never taken
	// by the notification handler, so a synchronous store can deliver to a
	// sibling registry while this one is writing.
	opMu sync.Mutex

	mu          sync.Mutex
	windows     []model.WindowRecord
	self        model.WindowRecord
	id          int
	initialized bool
	closed      bool
	unsubscribe func()

	onShapeChange   func()
	onWindowsChange func()
}

// New creates a registry over st and starts listening for sibling writes.
// The window is not part of the shared list until Init is called.
func New(st store.Store, shapes platform.ShapeSource, opts ...Option) *Registry {
	r := &Registry{
		store:   st,
		shapes:  shapes,
		log:     zerolog.Nop(),
		differ:  model.WindowsDiffer,
		now:     time.Now,
		windows: []model.WindowRecord{},
	}
	for _, opt := range opts {
		opt(r)
	}
	r.unsubscribe = st.Subscribe(store.KeyWindows, r.handleWindowsChanged)
	return r
}

// Init registers this window: it mints an id from the shared counter,
// appends a record with the current shape and meta to the shared list, and
// persists both. Init is not idempotent; a second call mints a second id and
// a second record.
func (r *Registry) Init(ctx context.Context, meta model.MetaData) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	closed, again, prevID := r.closed, r.initialized, r.id
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if again {
		r.log.Warn().Int("window_id", prevID).Msg("registry initialized twice, minting another record")
	}

	windows, err := ReadWindows(ctx, r.store)
	if err != nil {
		return err
	}
	count, err := ReadCount(ctx, r.store)
	if err != nil {
		return err
	}
	id := count + 1

	shape, err := r.shapes.CurrentShape()
	if err != nil {
		return fmt.Errorf("read window shape: %w", err)
	}
	if meta == nil {
		meta = model.MetaData{}
	}
	rec := model.WindowRecord{ID: id, Shape: shape, MetaData: meta}
	windows = append(windows, rec)

	data, err := EncodeWindows(windows)
	if err != nil {
		return err
	}

	if err := r.store.Write(ctx, store.KeyCount, EncodeCount(id)); err != nil {
		return fmt.Errorf("write %s: %w", store.KeyCount, err)
	}
	if err := r.store.Write(ctx, store.KeyWindows, data); err != nil {
		return fmt.Errorf("write %s: %w", store.KeyWindows, err)
	}

	// Local state is only committed once the record is in the store.
	r.mu.Lock()
	r.id = id
	r.self = rec
	r.windows = windows
	r.initialized = true
	r.mu.Unlock()

	r.log.Debug().Int("window_id", id).Int("windows", len(windows)).Str("shape", shape.String()).Msg("window registered")
	return nil
}

// Update re-reads this window's shape. When any of x, y, w or h changed it
// updates the local list, fires the shape callback and persists the list.
// An unchanged shape costs one comparison and never touches the store.
func (r *Registry) Update(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	shape, err := r.shapes.CurrentShape()
	if err != nil {
		return fmt.Errorf("read window shape: %w", err)
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if !r.initialized {
		r.mu.Unlock()
		return ErrNotInitialized
	}
	if shape == r.self.Shape {
		r.mu.Unlock()
		return nil
	}

	r.self.Shape = shape
	if i := model.IndexByID(r.windows, r.id); i > -1 {
		r.windows[i].Shape = shape
	} else {
		r.log.Warn().Int("window_id", r.id).Msg("own record missing from window list")
	}
	data, err := EncodeWindows(r.windows)
	cb := r.onShapeChange
	id := r.id
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if cb != nil {
		cb()
	}

	if err := r.store.Write(ctx, store.KeyWindows, data); err != nil {
		return fmt.Errorf("write %s: %w", store.KeyWindows, err)
	}
	r.log.Debug().Int("window_id", id).Str("shape", shape.String()).Msg("window shape persisted")
	return nil
}

// handleWindowsChanged receives the list written by a sibling. If the
// configured comparison says it differs from the local list, the local list
// is replaced wholesale and the list callback fires.
func (r *Registry) handleWindowsChanged(value []byte) {
	next, ok := DecodeWindows(value)
	if !ok {
		r.log.Debug().Int("bytes", len(value)).Msg("garbled window list from store, treating as empty")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if !r.differ(r.windows, next) {
		// Heartbeat stamps are not a membership change, but they are kept
		// current so that our own writes do not roll them back.
		for i := range r.windows {
			if j := model.IndexByID(next, r.windows[i].ID); j > -1 {
				r.windows[i].LastSeen = next[j].LastSeen
			}
		}
		r.mu.Unlock()
		return
	}
	prev := len(r.windows)
	r.windows = next
	cb := r.onWindowsChange
	r.mu.Unlock()

	r.log.Debug().Int("from", prev).Int("to", len(next)).Msg("window list changed by sibling")
	if cb != nil {
		cb()
	}
}

// Close removes this window's record from the shared list, persists the
// result and stops listening for sibling writes. It is the best-effort
// teardown path: if the process dies without calling it, the record stays in
// the list. Close is a no-op before Init and after the first call.
func (r *Registry) Close(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil

	var data []byte
	var err error
	removed := false
	if r.initialized {
		if i := model.IndexByID(r.windows, r.id); i > -1 {
			r.windows = append(r.windows[:i:i], r.windows[i+1:]...)
			data, err = EncodeWindows(r.windows)
			removed = true
		}
	}
	id := r.id
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	if err := r.store.Write(ctx, store.KeyWindows, data); err != nil {
		return fmt.Errorf("write %s: %w", store.KeyWindows, err)
	}
	r.log.Debug().Int("window_id", id).Msg("window unregistered")
	return nil
}

// Windows returns a copy of the local window list.
func (r *Registry) Windows() []model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return model.CloneWindows(r.windows)
}

// ThisWindowData returns this window's own record.
func (r *Registry) ThisWindowData() model.WindowRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.self
}

// ThisWindowID returns the id minted by Init, or 0 before Init.
func (r *Registry) ThisWindowID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.id
}

// SetWinShapeChangeCallback sets the function called after Update detects
// that this window moved or resized. It replaces any previous callback;
// nil clears it.
func (r *Registry) SetWinShapeChangeCallback(fn func()) {
	r.mu.Lock()
	r.onShapeChange = fn
	r.mu.Unlock()
}

// SetWinChangeCallback sets the function called after a sibling write
// changed the local window list. It replaces any previous callback; nil
// clears it.
func (r *Registry) SetWinChangeCallback(fn func()) {
	r.mu.Lock()
	r.onWindowsChange = fn
	r.mu.Unlock()
}
