package sqlitestore_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mj1618/winsync/internal/logging"
	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/platform"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
	"github.com/mj1618/winsync/internal/store/sqlitestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

func testCtx() context.Context {
	logger := logging.NewFromConfigValues("debug", "console")
	return logging.WithContext(context.Background(), logger)
}

func open(t *testing.T, path string) *sqlitestore.Store {
	t.Helper()
	s, err := sqlitestore.Open(testCtx(), path, sqlitestore.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

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

func TestReadWriteDelete(t *testing.T) {
	ctx := testCtx()
	s := open(t, filepath.Join(t.TempDir(), "winsync.db"))

	_, err := s.Read(ctx, store.KeyWindows)
	assert.True(t, store.IsNotFound(err))

	require.NoError(t, s.Write(ctx, store.KeyWindows, []byte(`[{"id":1}]`)))
	require.NoError(t, s.Write(ctx, store.KeyWindows, []byte(`[{"id":2}]`)))
	got, err := s.Read(ctx, store.KeyWindows)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2}]`, string(got))

	require.NoError(t, s.Delete(ctx, store.KeyWindows))
	_, err = s.Read(ctx, store.KeyWindows)
	assert.True(t, store.IsNotFound(err))
}

func TestReopenKeepsData(t *testing.T) {
	ctx := testCtx()
	path := filepath.Join(t.TempDir(), "nested", "winsync.db")

	s, err := sqlitestore.Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, store.KeyCount, []byte("7")))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = s.Read(ctx, store.KeyCount)
	assert.ErrorIs(t, err, store.ErrClosed)

	s2 := open(t, path)
	got, err := s2.Read(ctx, store.KeyCount)
	require.NoError(t, err)
	assert.Equal(t, "7", string(got))
}

func TestNotifiesOtherHandlesOnly(t *testing.T) {
	ctx := testCtx()
	path := filepath.Join(t.TempDir(), "winsync.db")
	a := open(t, path)
	b := open(t, path)

	var fromA, fromB recorder
	a.Subscribe(store.KeyWindows, fromA.add)
	b.Subscribe(store.KeyWindows, fromB.add)

	require.NoError(t, a.Write(ctx, store.KeyWindows, []byte("[1]")))
	require.Eventually(t, func() bool { return len(fromB.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, "[1]", string(fromB.snapshot()[0]))

	require.NoError(t, b.Delete(ctx, store.KeyWindows))
	require.Eventually(t, func() bool { return len(fromA.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Nil(t, fromA.snapshot()[0])

	time.Sleep(50 * time.Millisecond)
	assert.Len(t, fromA.snapshot(), 1)
	assert.Len(t, fromB.snapshot(), 1)
}

func TestExistingRowsAreNotReplayed(t *testing.T) {
	ctx := testCtx()
	path := filepath.Join(t.TempDir(), "winsync.db")
	a := open(t, path)
	require.NoError(t, a.Write(ctx, store.KeyWindows, []byte("[]")))

	b := open(t, path)
	var got recorder
	b.Subscribe(store.KeyWindows, got.add)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, got.snapshot())
}

func TestRegistryAcrossHandles(t *testing.T) {
	ctx := testCtx()
	path := filepath.Join(t.TempDir(), "winsync.db")

	a := registry.New(open(t, path), platform.NewFixedSource(model.Shape{W: 10, H: 10}))
	require.NoError(t, a.Init(ctx, model.MetaData{"name": "a"}))

	b := registry.New(open(t, path), platform.NewFixedSource(model.Shape{X: 20, W: 10, H: 10}))
	require.NoError(t, b.Init(ctx, model.MetaData{"name": "b"}))
	assert.Equal(t, 1, a.ThisWindowID())
	assert.Equal(t, 2, b.ThisWindowID())

	require.Eventually(t, func() bool { return len(a.Windows()) == 2 }, waitFor, 10*time.Millisecond)

	require.NoError(t, b.Close(ctx))
	require.Eventually(t, func() bool { return len(a.Windows()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, 1, a.Windows()[0].ID)
}
