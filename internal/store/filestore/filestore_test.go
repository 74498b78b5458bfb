package filestore_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/platform"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
	"github.com/mj1618/winsync/internal/store/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type recorder struct {
	mu     sync.Mutex
	values [][]byte
}

func (r *recorder) add(v []byte) {
	r.mu.Lock()
	r.values = append(r.values, v)
	r.mu.Unlock()
}

func (r *recorder) snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.values...)
}

func open(t *testing.T, dir string) *filestore.Store {
	t.Helper()
	s, err := filestore.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestReadWrite(t *testing.T) {
	ctx := context.Background()
	s := open(t, t.TempDir())

	_, err := s.Read(ctx, store.KeyCount)
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, s.Write(ctx, store.KeyCount, []byte("3")))
	got, err := s.Read(ctx, store.KeyCount)
	require.NoError(t, err)
	assert.Equal(t, "3", string(got))

	require.NoError(t, s.Delete(ctx, store.KeyCount))
	_, err = s.Read(ctx, store.KeyCount)
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, s.Delete(ctx, store.KeyCount), "deleting an absent key is fine")
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := open(t, dir)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Write(ctx, store.KeyWindows, []byte("[]")))
	}
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.KeyWindows, entries[0].Name())
}

func TestInvalidKey(t *testing.T) {
	ctx := context.Background()
	s := open(t, t.TempDir())
	for _, key := range []string{"", ".hidden", "a/b", `a\b`} {
		assert.Error(t, s.Write(ctx, key, []byte("x")), "key %q", key)
	}
}

func TestNotifiesOtherHandles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := open(t, dir)
	b := open(t, dir)

	var fromA, fromB recorder
	a.Subscribe(store.KeyWindows, fromA.add)
	b.Subscribe(store.KeyWindows, fromB.add)

	require.NoError(t, a.Write(ctx, store.KeyWindows, []byte(`[{"id":1}]`)))

	require.Eventually(t, func() bool { return len(fromB.snapshot()) > 0 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, `[{"id":1}]`, string(fromB.snapshot()[0]))

	require.NoError(t, b.Delete(ctx, store.KeyWindows))
	require.Eventually(t, func() bool {
		got := fromA.snapshot()
		return len(got) > 0 && got[len(got)-1] == nil
	}, waitFor, 10*time.Millisecond)

	// Neither handle ever hears its own write.
	for _, v := range fromA.snapshot() {
		assert.NotEqual(t, `[{"id":1}]`, string(v))
	}
	for _, v := range fromB.snapshot() {
		assert.NotNil(t, v)
	}
}

func TestCancelAndClose(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a := open(t, dir)
	b := open(t, dir)

	var got recorder
	cancel := b.Subscribe(store.KeyCount, got.add)
	cancel()
	cancel()

	require.NoError(t, a.Write(ctx, store.KeyCount, []byte("1")))
	time.Sleep(100 * time.Millisecond)
	assert.Empty(t, got.snapshot())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	_, err := b.Read(ctx, store.KeyCount)
	assert.ErrorIs(t, err, store.ErrClosed)
}

func TestRegistryAcrossHandles(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "shared")

	a := registry.New(open(t, dir), platform.NewFixedSource(model.Shape{W: 100, H: 100}))
	changed := make(chan struct{}, 8)
	a.SetWinChangeCallback(func() { changed <- struct{}{} })
	require.NoError(t, a.Init(ctx, nil))

	b := registry.New(open(t, dir), platform.NewFixedSource(model.Shape{X: 200, W: 100, H: 100}))
	require.NoError(t, b.Init(ctx, nil))
	assert.Equal(t, 2, b.ThisWindowID())

	select {
	case <-changed:
	case <-time.After(waitFor):
		t.Fatal("window A never saw window B")
	}
	require.Eventually(t, func() bool { return len(a.Windows()) == 2 }, waitFor, 10*time.Millisecond)

	require.NoError(t, b.Close(ctx))
	require.Eventually(t, func() bool { return len(a.Windows()) == 1 }, waitFor, 10*time.Millisecond)
}
