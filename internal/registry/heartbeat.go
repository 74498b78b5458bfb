package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/store"
)

// Heartbeat stamps this window's record with the current time and persists
// the list. Windows that never call Heartbeat are never reaped.
//
// The list is re-read from the store first and only the own record is
// touched, so sibling stamps the local list never saw are written back
// unchanged. The local list is replaced by what was written.
func (r *Registry) Heartbeat(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	closed, initialized, id := r.closed, r.initialized, r.id
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !initialized {
		return ErrNotInitialized
	}

	windows, err := ReadWindows(ctx, r.store)
	if err != nil {
		return err
	}

	r.mu.Lock()
	seen := r.now().UnixMilli()
	self := r.self
	self.LastSeen = seen
	if i := model.IndexByID(windows, id); i > -1 {
		windows[i].LastSeen = seen
	} else {
		// A sibling's write dropped our record; put it back so the
		// heartbeat keeps the window visible.
		windows = append(windows, self)
		r.log.Warn().Int("window_id", id).Msg("own record missing from window list, re-adding")
	}
	r.mu.Unlock()

	data, err := EncodeWindows(windows)
	if err != nil {
		return err
	}
	if err := r.store.Write(ctx, store.KeyWindows, data); err != nil {
		return fmt.Errorf("write %s: %w", store.KeyWindows, err)
	}

	r.mu.Lock()
	r.self = self
	changed := r.differ(r.windows, windows)
	r.windows = windows
	cb := r.onWindowsChange
	r.mu.Unlock()

	if changed && cb != nil {
		cb()
	}
	return nil
}

// ReapStale removes sibling records whose heartbeat is older than staleAfter
// from the shared list. This window's own record is always kept. It returns
// the ids removed; the list callback fires when any were.
func (r *Registry) ReapStale(ctx context.Context, staleAfter time.Duration) ([]int, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	closed, id := r.closed, r.id
	r.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	windows, err := ReadWindows(ctx, r.store)
	if err != nil {
		return nil, err
	}
	kept, removed := FilterStale(windows, staleAfter, r.now(), id)
	if len(removed) == 0 {
		return nil, nil
	}

	data, err := EncodeWindows(kept)
	if err != nil {
		return nil, err
	}
	if err := r.store.Write(ctx, store.KeyWindows, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", store.KeyWindows, err)
	}

	r.mu.Lock()
	r.windows = kept
	cb := r.onWindowsChange
	r.mu.Unlock()

	r.log.Info().Ints("window_ids", removed).Msg("reaped stale windows")
	if cb != nil {
		cb()
	}
	return removed, nil
}

// Reap runs one reclamation pass directly against a store, without
// registering a window. It returns the ids removed.
func Reap(ctx context.Context, st store.Store, staleAfter time.Duration, now time.Time) ([]int, error) {
	windows, err := ReadWindows(ctx, st)
	if err != nil {
		return nil, err
	}
	kept, removed := FilterStale(windows, staleAfter, now, 0)
	if len(removed) == 0 {
		return nil, nil
	}
	data, err := EncodeWindows(kept)
	if err != nil {
		return nil, err
	}
	if err := st.Write(ctx, store.KeyWindows, data); err != nil {
		return nil, fmt.Errorf("write %s: %w", store.KeyWindows, err)
	}
	return removed, nil
}

// FilterStale splits windows into those to keep and the ids of those whose
// LastSeen is set and older than staleAfter. The record with id keep is
// never removed. Relative order of kept records is preserved.
func FilterStale(windows []model.WindowRecord, staleAfter time.Duration, now time.Time, keep int) ([]model.WindowRecord, []int) {
	cutoff := now.Add(-staleAfter).UnixMilli()
	kept := make([]model.WindowRecord, 0, len(windows))
	var removed []int
	for _, w := range windows {
		if w.ID != keep && w.LastSeen != 0 && w.LastSeen < cutoff {
			removed = append(removed, w.ID)
			continue
		}
		kept = append(kept, w)
	}
	return kept, removed
}
