package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/spacesedan/trendlens/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupValkey(t *testing.T) (*ValkeyClient, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	vc, err := NewValkeyClient(context.Background(), config.ValkeyConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(vc.Close)

	return vc, mr
}

func TestValkeyGetMiss(t *testing.T) {
	vc, _ := setupValkey(t)

	value, ok, err := vc.Get(context.Background(), "embedding:user:nobody")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestValkeySetGetWithTTL(t *testing.T) {
	vc, mr := setupValkey(t)
	ctx := context.Background()

	require.NoError(t, vc.Set(ctx, "recs:u1:all:all:10:false", `[]`, time.Hour))

	value, ok, err := vc.Get(ctx, "recs:u1:all:all:10:false")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, value)
	assert.Equal(t, time.Hour, mr.TTL("recs:u1:all:all:10:false"))

	mr.FastForward(time.Hour + time.Second)

	_, ok, err = vc.Get(ctx, "recs:u1:all:all:10:false")
	require.NoError(t, err)
	assert.False(t, ok, "entry should expire with its TTL")
}

func TestValkeySubSecondTTLRoundsUp(t *testing.T) {
	vc, mr := setupValkey(t)

	require.NoError(t, vc.Set(context.Background(), "k", "v", 10*time.Millisecond))
	assert.Equal(t, time.Second, mr.TTL("k"))
}

func TestValkeyDelete(t *testing.T) {
	vc, mr := setupValkey(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("a", "1"))
	require.NoError(t, mr.Set("b", "2"))

	require.NoError(t, vc.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
	assert.NoError(t, vc.Delete(ctx))
}

func TestValkeyHealth(t *testing.T) {
	vc, _ := setupValkey(t)
	assert.True(t, vc.IsHealthy(context.Background()))
}

func TestIsConnectionError(t *testing.T) {
	assert.False(t, isConnectionError(nil))
	assert.True(t, isConnectionError(errors.New("dial tcp: connection refused")))
	assert.True(t, isConnectionError(errors.New("unexpected EOF")))
	assert.False(t, isConnectionError(errors.New("WRONGTYPE")))
}

func TestValkeyRetryStopsWhenContextIsCancelled(t *testing.T) {
	vc, mr := setupValkey(t)
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(30*time.Millisecond, cancel)

	start := time.Now()
	err := vc.Set(ctx, "k", "v", time.Minute)
	require.Error(t, err)
	assert.Less(t, time.Since(start), valkeyRetryDelay,
		"a cancelled caller must not wait out the retry delay")
}

func TestValkeyRecreateKeepsReplacedClientOpen(t *testing.T) {
	vc, _ := setupValkey(t)
	ctx := context.Background()

	old := vc.current()
	vc.recreateClient(ctx, old)

	fresh := vc.current()
	assert.False(t, fresh == old, "client should have been replaced")
	require.NoError(t, old.Do(ctx, old.B().Ping().Build()).Error(),
		"commands already holding the replaced client must still succeed")

	vc.recreateClient(ctx, old)
	assert.True(t, vc.current() == fresh, "a stale client must not trigger a second swap")

	t.Cleanup(old.Close)
}
