package wsbroker_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mj1618/winsync/internal/model"
	"github.com/mj1618/winsync/internal/platform"
	"github.com/mj1618/winsync/internal/registry"
	"github.com/mj1618/winsync/internal/store"
	"github.com/mj1618/winsync/internal/store/wsbroker"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

func startHub(t *testing.T) (*wsbroker.Hub, string) {
	t.Helper()
	hub := wsbroker.NewHub(zerolog.Nop())
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *wsbroker.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	c, err := wsbroker.Dial(ctx, url, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
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

func TestRelayBetweenClients(t *testing.T) {
	ctx := context.Background()
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, waitFor, 10*time.Millisecond)

	var fromA, fromB recorder
	a.Subscribe(store.KeyWindows, fromA.add)
	b.Subscribe(store.KeyWindows, fromB.add)

	require.NoError(t, a.Write(ctx, store.KeyWindows, []byte("[1]")))
	got, err := a.Read(ctx, store.KeyWindows)
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got), "own writes are visible immediately")

	require.Eventually(t, func() bool { return len(fromB.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Equal(t, "[1]", string(fromB.snapshot()[0]))
	got, err = b.Read(ctx, store.KeyWindows)
	require.NoError(t, err)
	assert.Equal(t, "[1]", string(got))

	require.NoError(t, b.Delete(ctx, store.KeyWindows))
	require.Eventually(t, func() bool { return len(fromA.snapshot()) == 1 }, waitFor, 10*time.Millisecond)
	assert.Nil(t, fromA.snapshot()[0])
	_, err = a.Read(ctx, store.KeyWindows)
	assert.True(t, store.IsNotFound(err))

	assert.Len(t, fromB.snapshot(), 1, "no echo of own delete")
}

func TestConcurrentWritesConverge(t *testing.T) {
	ctx := context.Background()
	hub, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, waitFor, 10*time.Millisecond)

	for i := 0; i < 20; i++ {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); assert.NoError(t, a.Write(ctx, store.KeyWindows, []byte("X"))) }()
		go func() { defer wg.Done(); assert.NoError(t, b.Write(ctx, store.KeyWindows, []byte("Y"))) }()
		wg.Wait()

		require.Eventually(t, func() bool {
			want := string(hub.Snapshot()[store.KeyWindows])
			va, errA := a.Read(ctx, store.KeyWindows)
			vb, errB := b.Read(ctx, store.KeyWindows)
			return errA == nil && errB == nil && string(va) == want && string(vb) == want
		}, waitFor, 5*time.Millisecond, "iteration %d: mirrors must settle on the hub value", i)
	}
}

func TestSnapshotOnConnect(t *testing.T) {
	ctx := context.Background()
	hub, url := startHub(t)
	a := dial(t, url)
	require.NoError(t, a.Write(ctx, store.KeyCount, []byte("4")))
	require.Eventually(t, func() bool { return string(hub.Snapshot()[store.KeyCount]) == "4" }, waitFor, 10*time.Millisecond)

	b := dial(t, url)
	got, err := b.Read(ctx, store.KeyCount)
	require.NoError(t, err)
	assert.Equal(t, "4", string(got))
}

func TestClientClose(t *testing.T) {
	ctx := context.Background()
	hub, url := startHub(t)
	a := dial(t, url)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, waitFor, 10*time.Millisecond)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Write(ctx, store.KeyCount, []byte("1")), store.ErrClosed)
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, waitFor, 10*time.Millisecond)
}

func TestDialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := wsbroker.Dial(ctx, "ws://127.0.0.1:1/", zerolog.Nop())
	assert.Error(t, err)
}

func TestRegistryThroughBroker(t *testing.T) {
	ctx := context.Background()
	_, url := startHub(t)

	a := registry.New(dial(t, url), platform.NewFixedSource(model.Shape{W: 100, H: 100}))
	require.NoError(t, a.Init(ctx, nil))

	// B's mirror must hold A's values before B registers.
	bStore := dial(t, url)
	require.Eventually(t, func() bool {
		v, err := bStore.Read(ctx, store.KeyCount)
		return err == nil && string(v) == "1"
	}, waitFor, 10*time.Millisecond)

	b := registry.New(bStore, platform.NewFixedSource(model.Shape{X: 300, W: 100, H: 100}))
	require.NoError(t, b.Init(ctx, nil))
	assert.Equal(t, 2, b.ThisWindowID())

	require.Eventually(t, func() bool { return len(a.Windows()) == 2 }, waitFor, 10*time.Millisecond)
	require.NoError(t, b.Close(ctx))
	require.Eventually(t, func() bool { return len(a.Windows()) == 1 }, waitFor, 10*time.Millisecond)
}
