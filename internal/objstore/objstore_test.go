package objstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shawn/slack-gpt-tenancy/internal/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeContract runs the behaviour every backend must share.
func storeContract(t *testing.T, s objstore.Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "T-missing")
	assert.ErrorIs(t, err, objstore.ErrNotFound)

	require.NoError(t, s.Put(ctx, "T1", []byte(`{"api_key":"sk-1"}`)))
	got, err := s.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, `{"api_key":"sk-1"}`, string(got))

	// overwrite
	require.NoError(t, s.Put(ctx, "T1", []byte("sk-2")))
	got, err = s.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "sk-2", string(got))

	// keys are isolated
	_, err = s.Get(ctx, "T2")
	assert.ErrorIs(t, err, objstore.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "T1"))
	_, err = s.Get(ctx, "T1")
	assert.ErrorIs(t, err, objstore.ErrNotFound)

	// deleting twice is not an error
	assert.NoError(t, s.Delete(ctx, "T1"))
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, objstore.NewMemory())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	m := objstore.NewMemory()
	ctx := context.Background()
	data := []byte("sk-abc")
	require.NoError(t, m.Put(ctx, "T1", data))
	data[0] = 'X'

	got, err := m.Get(ctx, "T1")
	require.NoError(t, err)
	assert.Equal(t, "sk-abc", string(got))
}

func TestMemoryStore_Fail(t *testing.T) {
	m := objstore.NewMemory()
	m.Fail = errors.New("backend down")
	_, err := m.Get(context.Background(), "T1")
	assert.EqualError(t, err, "backend down")
	assert.Error(t, m.Put(context.Background(), "T1", nil))
	assert.Error(t, m.Delete(context.Background(), "T1"))
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	storeContract(t, objstore.NewRedis(rdb))
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	s := objstore.NewRedis(rdb)
	require.NoError(t, s.Put(context.Background(), "T9", []byte("sk-9")))

	v, err := mr.Get("tenant:config:T9")
	require.NoError(t, err)
	assert.Equal(t, "sk-9", v)
}

func TestRedisStore_BackendDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	_, err := objstore.NewRedis(rdb).Get(context.Background(), "T1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, objstore.ErrNotFound)
}
